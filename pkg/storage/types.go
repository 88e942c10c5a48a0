package storage

import (
	"context"
	"errors"
	"time"

	"github.com/otakuflix/adata/pkg/catalog"
)

var (
	// ErrConflict is returned when the version passed to Write is stale.
	ErrConflict = errors.New("catalog was modified since it was read")
	// ErrStoreUnavailable wraps transport failures against the backing store.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
	// ErrDecode is returned when the stored document is not a valid catalog.
	ErrDecode = errors.New("stored catalog is malformed")
)

// Version is the opaque compare-and-swap token issued by Read and Write.
// The empty version means "no document yet".
type Version string

// Store is a single versioned catalog document.
type Store interface {
	// Read returns the current catalog and the version needed to write it back.
	Read(ctx context.Context) (catalog.Catalog, Version, error)
	// Write replaces the document if v is still current and returns the new version.
	// A stale v yields ErrConflict and leaves the document untouched.
	Write(ctx context.Context, c catalog.Catalog, v Version) (Version, error)
}

// Change types.
const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Change captures a single change event for auditing or printing.
type Change struct {
	OccurredAt time.Time
	ID         int
	Name       string
	ChangeType string // added | updated | removed
}

// ChangeLogger is implemented by stores that keep a change history.
type ChangeLogger interface {
	LogChanges(ctx context.Context, changes []Change) error
}
