package database

import (
	"context"

	"github.com/go-faster/errors"
)

// ResetRoutes truncates routes and shared entities and restarts their ids.
func (q *Queries) ResetRoutes(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `TRUNCATE routes, coordinates, locations RESTART IDENTITY`)
	return errors.Wrap(err, "truncate routes")
}

// ResetImports truncates the import ledger.
func (q *Queries) ResetImports(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `TRUNCATE import_operations RESTART IDENTITY`)
	return errors.Wrap(err, "truncate import operations")
}
