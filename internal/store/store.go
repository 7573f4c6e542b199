// Package store implements the persisted workflow store (spec C9): a
// pluggable interface with an in-memory default and a Postgres-backed
// implementation via uptrace/bun, grounded on the teacher's
// internal/infrastructure/storage package (same BunStore/memory-map shape),
// re-targeted at the current internal/domain.Workflow model, which holds
// its full node/connection graph inline rather than split across child
// tables — so unlike the teacher's per-entity CRUD, a workflow here is
// persisted as a single JSON-serializable document.
package store

import (
	"context"
	"errors"

	"github.com/flowbridge/engine/internal/domain"
)

// ErrNotFound is returned by Get/Delete when no workflow has the given id.
var ErrNotFound = errors.New("store: workflow not found")

// Store persists Workflow definitions. Implementations must be safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, wf *domain.Workflow) error
	Get(ctx context.Context, id string) (*domain.Workflow, error)
	List(ctx context.Context) ([]*domain.Workflow, error)
	Delete(ctx context.Context, id string) error
}
