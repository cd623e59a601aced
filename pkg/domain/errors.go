package domain

import "fmt"

// ErrNotFound is returned by sources and stores when a referenced record does
// not exist.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
