// Package admin provides administrative operations for store management.
package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
)

// ResetTimeout is the maximum duration for reset operations.
const ResetTimeout = 30 * time.Second

// Resetter empties the tables of a store.
type Resetter interface {
	// ResetRoutes removes every route and shared entity.
	ResetRoutes(ctx context.Context) error
	// ResetImports removes the import ledger.
	ResetImports(ctx context.Context) error
}

// Reset runs destructive maintenance on a Resetter.
type Reset struct {
	Store Resetter
}

type resetFn struct {
	name string
	fn   func(ctx context.Context) error
}

// All empties routes, shared entities and the import ledger.
// Archived import files are left in the object store.
func (r *Reset) All(ctx context.Context) error {
	return r.run(ctx, []resetFn{
		{"routes", r.Store.ResetRoutes},
		{"imports", r.Store.ResetImports},
	})
}

// Routes empties routes and shared entities only.
func (r *Reset) Routes(ctx context.Context) error {
	return r.run(ctx, []resetFn{{"routes", r.Store.ResetRoutes}})
}

func (r *Reset) run(ctx context.Context, resets []resetFn) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	for _, reset := range resets {
		if err := reset.fn(ctx); err != nil {
			return errors.Wrapf(err, "reset %s", reset.name)
		}
		slog.Warn("store reset", "tables", reset.name)
	}
	return nil
}
