package repository

import (
	"context"
	"errors"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

var (
	ErrNotFound = errors.New("document not found")
)

// WriteResult reports how a replace or update landed.
type WriteResult struct {
	Matched  int64
	Upserted int64
}

// Repository is the store boundary of the diff engine. Each mutation is one
// atomic request: the diff against the stored document is computed and the
// history entry appended inside the same write.
type Repository interface {
	// Replace swaps the non-reserved fields for body, inserting the document
	// when id doesn't exist.
	Replace(ctx context.Context, id any, body map[string]any, actor history.Actor) (WriteResult, error)
	// Update sets and unsets fields of an existing document.
	Update(ctx context.Context, id any, set map[string]any, unset []string, actor history.Actor) (WriteResult, error)
	// SetDeleted sets the soft-delete flag and reports whether id matched.
	SetDeleted(ctx context.Context, id any, state bool, actor history.Actor) (bool, error)
	// Get returns the stored document or ErrNotFound.
	Get(ctx context.Context, id any) (*history.Record, error)
}
