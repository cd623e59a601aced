package archive

import (
	"context"
	"fmt"

	"labcheckin/internal/infra/archive/fs"
	"labcheckin/internal/infra/archive/memory"
	"labcheckin/internal/infra/archive/s3"
)

// S3Config configures the S3 backend.
type S3Config = s3.Config

// Settings selects and configures a backend.
type Settings struct {
	Driver Driver
	Dir    string
	S3     S3Config
}

// Open returns the backend named by settings.Driver; empty means fs.
func Open(ctx context.Context, settings Settings) (Store, error) {
	switch settings.Driver {
	case "", DriverFilesystem:
		return fs.New(settings.Dir)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, settings.S3)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", settings.Driver)
	}
}

// NewMemory returns an in-memory backend.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 backend wired to an in-process fake bucket.
func NewMockS3ForTests() Store { return s3.NewMockForTests("") }
