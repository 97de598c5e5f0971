package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/routeimport/internal/logging"
)

// findOrCreateAttempts bounds the reselect loop after a lost insert race.
const findOrCreateAttempts = 3

// Resolver implements find-or-create deduplication, usage counting and
// owner hints for the shared Coordinates and Location entities.
//
// Usage counts are always computed from live route references; nothing in
// the resolver caches them.
type Resolver struct {
	repo Repository
}

// NewResolver returns a Resolver working against repo, which may be a
// transaction-bound repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// FindOrCreateCoordinates returns the Coordinates row whose value equals v,
// persisting a new one when none exists. created reports the latter.
func (r *Resolver) FindOrCreateCoordinates(ctx context.Context, v CoordinatesValue) (Coordinates, bool, error) {
	for attempt := 1; attempt <= findOrCreateAttempts; attempt++ {
		c, err := r.repo.FindCoordinates(ctx, v)
		if err == nil {
			return c, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Coordinates{}, false, fmt.Errorf("find coordinates: %w", err)
		}

		c, err = r.repo.InsertCoordinates(ctx, v)
		if err == nil {
			getMetrics().sharedCreated.WithLabelValues("coordinates").Inc()
			return c, true, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Coordinates{}, false, fmt.Errorf("insert coordinates: %w", err)
		}
		logging.FromContext(ctx).Debug("coordinates insert race, reselecting",
			"x", v.X, "y", v.Y, "attempt", attempt)
	}
	return Coordinates{}, false, fmt.Errorf("resolve coordinates (%v, %v): %w", v.X, v.Y, ErrConflict)
}

// FindOrCreateLocation is FindOrCreateCoordinates for Location rows.
func (r *Resolver) FindOrCreateLocation(ctx context.Context, v LocationValue) (Location, bool, error) {
	for attempt := 1; attempt <= findOrCreateAttempts; attempt++ {
		l, err := r.repo.FindLocation(ctx, v)
		if err == nil {
			return l, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Location{}, false, fmt.Errorf("find location: %w", err)
		}

		l, err = r.repo.InsertLocation(ctx, v)
		if err == nil {
			getMetrics().sharedCreated.WithLabelValues("location").Inc()
			return l, true, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Location{}, false, fmt.Errorf("insert location: %w", err)
		}
		logging.FromContext(ctx).Debug("location insert race, reselecting",
			"x", v.X, "y", v.Y, "attempt", attempt)
	}
	return Location{}, false, fmt.Errorf("resolve location (%v, %v): %w", v.X, v.Y, ErrConflict)
}

// CoordinatesUsage counts distinct routes referencing the Coordinates row.
func (r *Resolver) CoordinatesUsage(ctx context.Context, id int64) (int64, error) {
	return r.repo.CoordinatesUsage(ctx, id, 0)
}

// CoordinatesUsageExcluding counts routes referencing the row other than excludeRouteID.
func (r *Resolver) CoordinatesUsageExcluding(ctx context.Context, id, excludeRouteID int64) (int64, error) {
	return r.repo.CoordinatesUsage(ctx, id, excludeRouteID)
}

// CanDeleteCoordinates reports whether no route references the row.
func (r *Resolver) CanDeleteCoordinates(ctx context.Context, id int64) (bool, error) {
	n, err := r.CoordinatesUsage(ctx, id)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// DeleteCoordinates removes the row. The caller must have established
// CanDeleteCoordinates first.
func (r *Resolver) DeleteCoordinates(ctx context.Context, id int64) error {
	return r.repo.DeleteCoordinates(ctx, id)
}

// RebindCoordinates records routeID as the last writer of the row. A nil
// routeID clears the hint.
func (r *Resolver) RebindCoordinates(ctx context.Context, id int64, routeID *int64) error {
	return r.repo.SetCoordinatesOwner(ctx, id, routeID)
}

// LocationUsage counts distinct routes referencing the Location as from or to.
func (r *Resolver) LocationUsage(ctx context.Context, id int64) (int64, error) {
	return r.repo.LocationUsage(ctx, id, 0)
}

// LocationUsageExcluding counts routes referencing the row other than excludeRouteID.
func (r *Resolver) LocationUsageExcluding(ctx context.Context, id, excludeRouteID int64) (int64, error) {
	return r.repo.LocationUsage(ctx, id, excludeRouteID)
}

// CanDeleteLocation reports whether no route references the row.
func (r *Resolver) CanDeleteLocation(ctx context.Context, id int64) (bool, error) {
	n, err := r.LocationUsage(ctx, id)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// DeleteLocation removes the row. The caller must have established
// CanDeleteLocation first.
func (r *Resolver) DeleteLocation(ctx context.Context, id int64) error {
	return r.repo.DeleteLocation(ctx, id)
}

// RebindLocation records routeID as the last writer of the row.
func (r *Resolver) RebindLocation(ctx context.Context, id int64, routeID *int64) error {
	return r.repo.SetLocationOwner(ctx, id, routeID)
}

// rebindAll points the owner hints of the route's shared entities at
// routeID. It runs inside the caller's transaction, so a failure is
// returned and aborts the write.
func (r *Resolver) rebindAll(ctx context.Context, coordinatesID, fromID, toID int64, routeID *int64) error {
	if err := r.RebindCoordinates(ctx, coordinatesID, routeID); err != nil {
		return fmt.Errorf("rebind coordinates %d owner: %w", coordinatesID, err)
	}
	if err := r.RebindLocation(ctx, fromID, routeID); err != nil {
		return fmt.Errorf("rebind location %d owner: %w", fromID, err)
	}
	if toID != fromID {
		if err := r.RebindLocation(ctx, toID, routeID); err != nil {
			return fmt.Errorf("rebind location %d owner: %w", toID, err)
		}
	}
	return nil
}
