// Package archive records accepted check-in submissions in an object store.
// It re-exports the store abstraction and is the only package allowed to
// import the infra backends.
package archive

import "labcheckin/internal/archive/core"

type (
	// Driver identifies an archive backend.
	Driver = core.Driver
	// PutOptions configures an object write.
	PutOptions = core.PutOptions
	// Info describes a stored object.
	Info = core.Info
	// Store is the backend interface.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Backend errors.
var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)
