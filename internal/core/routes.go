package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/routeimport/internal/logging"
)

// RouteManager creates, updates and deletes routes, delegating shared
// entity resolution and reclamation to a Resolver over the same repository.
type RouteManager struct {
	repo     Repository
	resolver *Resolver
	now      func() time.Time
}

// NewRouteManager returns a RouteManager over repo.
func NewRouteManager(repo Repository) *RouteManager {
	return &RouteManager{
		repo:     repo,
		resolver: NewResolver(repo),
		now:      time.Now,
	}
}

// Create validates spec, resolves its shared entities and persists a new
// route. It fails with a *DuplicateNameError when the name is taken and a
// *ZeroDistanceError when from and to are the same value.
func (m *RouteManager) Create(ctx context.Context, spec RouteSpec) (Route, error) {
	spec = NormalizeRouteSpec(spec)
	logger := logging.WithFields(ctx, "route_name", spec.Name)

	if err := m.checkSpec(ctx, spec, 0); err != nil {
		return Route{}, err
	}

	coords, from, to, err := m.resolve(ctx, spec)
	if err != nil {
		return Route{}, err
	}

	route, err := m.repo.InsertRoute(ctx, RouteRecord{
		Name:          spec.Name,
		CoordinatesID: coords.ID,
		FromID:        from.ID,
		ToID:          to.ID,
		Distance:      spec.Distance,
		Rating:        spec.Rating,
		CreationDate:  m.now().UTC(),
	})
	if err != nil {
		return Route{}, fmt.Errorf("insert route: %w", err)
	}

	if err := m.resolver.rebindAll(ctx, coords.ID, from.ID, to.ID, &route.ID); err != nil {
		return Route{}, err
	}
	logger.Debug("route created", "route_id", route.ID)
	return route, nil
}

// Orphans lists shared entities a write stopped referencing. They are
// reclaimed with Reclaim once that write has committed.
type Orphans struct {
	Coordinates []int64
	Locations   []int64
}

// Update re-resolves the shared entities of route id from spec and writes
// it when the stored version still equals version. A zero version means
// "the version just loaded". CreationDate is never changed. The returned
// Orphans are the entities the route no longer references.
func (m *RouteManager) Update(ctx context.Context, id int64, spec RouteSpec, version int64) (Route, Orphans, error) {
	spec = NormalizeRouteSpec(spec)

	current, err := m.repo.GetRoute(ctx, id)
	if err != nil {
		return Route{}, Orphans{}, err
	}
	if version == 0 {
		version = current.Version
	}
	if version != current.Version {
		return Route{}, Orphans{}, fmt.Errorf("update route %d: %w", id, ErrVersionConflict)
	}

	if err := m.checkSpec(ctx, spec, id); err != nil {
		return Route{}, Orphans{}, err
	}

	coords, from, to, err := m.resolve(ctx, spec)
	if err != nil {
		return Route{}, Orphans{}, err
	}

	updated, err := m.repo.UpdateRoute(ctx, RouteRecord{
		ID:            id,
		Name:          spec.Name,
		CoordinatesID: coords.ID,
		FromID:        from.ID,
		ToID:          to.ID,
		Distance:      spec.Distance,
		Rating:        spec.Rating,
		CreationDate:  current.CreationDate,
	}, version)
	if err != nil {
		return Route{}, Orphans{}, fmt.Errorf("update route %d: %w", id, err)
	}

	if err := m.resolver.rebindAll(ctx, coords.ID, from.ID, to.ID, &updated.ID); err != nil {
		return Route{}, Orphans{}, err
	}
	return updated, orphansOf(current, coords.ID, from.ID, to.ID), nil
}

// Delete removes route id, then reclaims each shared entity it referenced
// that is no longer in use. Deleting the route is authoritative: reclamation
// is sequential and a failure on one entity neither stops the others nor
// restores the route.
func (m *RouteManager) Delete(ctx context.Context, id int64) error {
	logger := logging.WithFields(ctx, "route_id", id)

	route, err := m.repo.GetRoute(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.DeleteRoute(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("route already deleted by a concurrent request")
			return nil
		}
		return fmt.Errorf("delete route %d: %w", id, err)
	}

	m.reclaimCoordinates(ctx, logger, route.Coordinates.ID)
	m.reclaimLocation(ctx, logger, route.From.ID)
	if route.To.ID != route.From.ID {
		m.reclaimLocation(ctx, logger, route.To.ID)
	}
	logger.Debug("route deleted")
	return nil
}

// DeleteWithRebinding points targetID at the Coordinates, from and to of
// route id, moves their owner hints to targetID and deletes route id.
// It returns the updated target route and the entities the target
// referenced before, which are reclaimed once the change has committed.
func (m *RouteManager) DeleteWithRebinding(ctx context.Context, id, targetID int64) (Route, Orphans, error) {
	if id == targetID {
		return Route{}, Orphans{}, ErrSelfRebind
	}
	logger := logging.WithFields(ctx, "route_id", id, "target_route_id", targetID)

	source, err := m.repo.GetRoute(ctx, id)
	if err != nil {
		return Route{}, Orphans{}, err
	}
	target, err := m.repo.GetRoute(ctx, targetID)
	if err != nil {
		return Route{}, Orphans{}, err
	}

	updated, err := m.repo.UpdateRoute(ctx, RouteRecord{
		ID:            target.ID,
		Name:          target.Name,
		CoordinatesID: source.Coordinates.ID,
		FromID:        source.From.ID,
		ToID:          source.To.ID,
		Distance:      target.Distance,
		Rating:        target.Rating,
		CreationDate:  target.CreationDate,
	}, target.Version)
	if err != nil {
		return Route{}, Orphans{}, fmt.Errorf("rebind route %d: %w", targetID, err)
	}

	if err := m.repo.DeleteRoute(ctx, id); err != nil {
		return Route{}, Orphans{}, fmt.Errorf("delete route %d: %w", id, err)
	}
	if err := m.resolver.rebindAll(ctx, source.Coordinates.ID, source.From.ID, source.To.ID, &targetID); err != nil {
		return Route{}, Orphans{}, err
	}

	logger.Debug("route deleted with rebinding")
	return updated, orphansOf(target, source.Coordinates.ID, source.From.ID, source.To.ID), nil
}

// Reclaim deletes each orphan whose usage count is zero. Failures are
// logged and do not stop the remaining entities.
func (m *RouteManager) Reclaim(ctx context.Context, o Orphans) {
	logger := logging.FromContext(ctx)
	for _, id := range o.Coordinates {
		m.reclaimCoordinates(ctx, logger, id)
	}
	for _, id := range o.Locations {
		m.reclaimLocation(ctx, logger, id)
	}
}

// orphansOf lists the entities of before that are not among the new ids.
func orphansOf(before Route, coordinatesID, fromID, toID int64) Orphans {
	var o Orphans
	if before.Coordinates.ID != coordinatesID {
		o.Coordinates = append(o.Coordinates, before.Coordinates.ID)
	}
	for _, old := range uniqueIDs(before.From.ID, before.To.ID) {
		if old != fromID && old != toID {
			o.Locations = append(o.Locations, old)
		}
	}
	return o
}

func (m *RouteManager) checkSpec(ctx context.Context, spec RouteSpec, excludeID int64) error {
	if err := ValidateRouteSpec(spec); err != nil {
		return err
	}

	existing, err := m.repo.FindRouteByName(ctx, spec.Name, excludeID)
	switch {
	case err == nil:
		return &DuplicateNameError{Name: spec.Name, ExistingID: existing.ID}
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("check route name: %w", err)
	}

	if spec.From.Equal(spec.To) {
		return &ZeroDistanceError{From: spec.From, To: spec.To}
	}
	return nil
}

func (m *RouteManager) resolve(ctx context.Context, spec RouteSpec) (Coordinates, Location, Location, error) {
	coords, _, err := m.resolver.FindOrCreateCoordinates(ctx, spec.Coordinates)
	if err != nil {
		return Coordinates{}, Location{}, Location{}, err
	}
	from, _, err := m.resolver.FindOrCreateLocation(ctx, spec.From)
	if err != nil {
		return Coordinates{}, Location{}, Location{}, err
	}
	to, _, err := m.resolver.FindOrCreateLocation(ctx, spec.To)
	if err != nil {
		return Coordinates{}, Location{}, Location{}, err
	}
	if from.ID == to.ID {
		return Coordinates{}, Location{}, Location{}, &ZeroDistanceError{From: spec.From, To: spec.To}
	}
	return coords, from, to, nil
}

func (m *RouteManager) reclaimCoordinates(ctx context.Context, logger *slog.Logger, id int64) {
	ok, err := m.resolver.CanDeleteCoordinates(ctx, id)
	if err != nil {
		logger.Warn("coordinates usage check failed", "coordinates_id", id, "error", err)
		getMetrics().compensationFailures.WithLabelValues("reclaim_coordinates").Inc()
		return
	}
	if !ok {
		return
	}
	if err := m.resolver.DeleteCoordinates(ctx, id); err != nil {
		logger.Warn("coordinates cleanup failed", "coordinates_id", id, "error", err)
		getMetrics().compensationFailures.WithLabelValues("reclaim_coordinates").Inc()
		return
	}
	getMetrics().sharedReclaimed.WithLabelValues("coordinates").Inc()
	logger.Debug("cleaned up unused coordinates", "coordinates_id", id)
}

func (m *RouteManager) reclaimLocation(ctx context.Context, logger *slog.Logger, id int64) {
	ok, err := m.resolver.CanDeleteLocation(ctx, id)
	if err != nil {
		logger.Warn("location usage check failed", "location_id", id, "error", err)
		getMetrics().compensationFailures.WithLabelValues("reclaim_location").Inc()
		return
	}
	if !ok {
		return
	}
	if err := m.resolver.DeleteLocation(ctx, id); err != nil {
		logger.Warn("location cleanup failed", "location_id", id, "error", err)
		getMetrics().compensationFailures.WithLabelValues("reclaim_location").Inc()
		return
	}
	getMetrics().sharedReclaimed.WithLabelValues("location").Inc()
	logger.Debug("cleaned up unused location", "location_id", id)
}

func uniqueIDs(a, b int64) []int64 {
	if a == b {
		return []int64{a}
	}
	return []int64{a, b}
}
