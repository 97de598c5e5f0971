package core

import (
	"context"
	"errors"
	"fmt"
)

// RouteRepository persists routes. Lookups return ErrNotFound when no row
// matches. InsertRoute and UpdateRoute return a *DuplicateNameError when the
// case-insensitive name index rejects the write.
type RouteRepository interface {
	GetRoute(ctx context.Context, id int64) (Route, error)
	FindRouteByName(ctx context.Context, name string, excludeID int64) (Route, error)
	InsertRoute(ctx context.Context, rec RouteRecord) (Route, error)
	// UpdateRoute writes rec when the stored version equals expectedVersion
	// and bumps it. A stale version yields ErrVersionConflict.
	UpdateRoute(ctx context.Context, rec RouteRecord, expectedVersion int64) (Route, error)
	DeleteRoute(ctx context.Context, id int64) error
	ListRoutes(ctx context.Context, f RouteFilter) ([]Route, int64, error)
	RoutesByCoordinates(ctx context.Context, coordinatesID, excludeRouteID int64) ([]Route, error)
	RoutesByLocation(ctx context.Context, locationID, excludeRouteID int64) ([]Route, error)
	RouteWithMaxName(ctx context.Context) (Route, error)
	CountRoutesRatingBelow(ctx context.Context, threshold int64) (int64, error)
	RoutesRatingAbove(ctx context.Context, threshold int64) ([]Route, error)
	RoutesBetween(ctx context.Context, q BetweenQuery) ([]Route, error)
}

// CoordinatesRepository persists Coordinates rows. InsertCoordinates returns
// ErrConflict when a row with the same value already exists.
type CoordinatesRepository interface {
	FindCoordinates(ctx context.Context, v CoordinatesValue) (Coordinates, error)
	GetCoordinates(ctx context.Context, id int64) (Coordinates, error)
	InsertCoordinates(ctx context.Context, v CoordinatesValue) (Coordinates, error)
	DeleteCoordinates(ctx context.Context, id int64) error
	// CoordinatesUsage counts distinct routes referencing id, ignoring
	// excludeRouteID when it is non-zero.
	CoordinatesUsage(ctx context.Context, id, excludeRouteID int64) (int64, error)
	SetCoordinatesOwner(ctx context.Context, id int64, owner *int64) error
	ListCoordinates(ctx context.Context) ([]Coordinates, error)
}

// LocationRepository persists Location rows with the same contract as
// CoordinatesRepository. Usage counts references as from or to.
type LocationRepository interface {
	FindLocation(ctx context.Context, v LocationValue) (Location, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	InsertLocation(ctx context.Context, v LocationValue) (Location, error)
	DeleteLocation(ctx context.Context, id int64) error
	LocationUsage(ctx context.Context, id, excludeRouteID int64) (int64, error)
	SetLocationOwner(ctx context.Context, id int64, owner *int64) error
	ListLocations(ctx context.Context) ([]Location, error)
	ListLocationNames(ctx context.Context) ([]string, error)
}

// OperationRepository persists ImportOperation ledger rows.
type OperationRepository interface {
	InsertOperation(ctx context.Context, op ImportOperation) (ImportOperation, error)
	GetOperation(ctx context.Context, id int64) (ImportOperation, error)
	// UpdateOperation overwrites op when the stored status equals from.
	// Returns ErrInvalidTransition when it does not.
	UpdateOperation(ctx context.Context, op ImportOperation, from ImportStatus) error
	ListOperations(ctx context.Context, username string, limit, offset int) ([]ImportOperation, int64, error)
}

// Repository is the full relational surface the core needs.
type Repository interface {
	RouteRepository
	CoordinatesRepository
	LocationRepository
	OperationRepository
}

// Tx is a Repository bound to one relational transaction. Rollback after
// Commit is a no-op.
type Tx interface {
	Repository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is a Repository whose direct calls autocommit and which can open
// transactions.
type Store interface {
	Repository
	Begin(ctx context.Context) (Tx, error)
}

// InTx runs fn in a new transaction, committing on success and rolling back
// when fn fails.
func InTx(ctx context.Context, store Store, fn func(Repository) error) error {
	tx, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rErr := tx.Rollback(ctx); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
