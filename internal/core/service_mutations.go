package core

import (
	"context"
	"fmt"
)

// CreateRoute validates spec and persists a new route with its shared
// entities resolved by value, all in one transaction.
func (s *Service) CreateRoute(ctx context.Context, spec RouteSpec) (Route, error) {
	var route Route
	err := InTx(ctx, s.store, func(repo Repository) error {
		var err error
		route, err = NewRouteManager(repo).Create(ctx, spec)
		return err
	})
	getMetrics().routeOps.WithLabelValues("create", resultLabel(err)).Inc()
	if err != nil {
		return Route{}, err
	}

	LogAudit(ctx, AuditEntry{Action: ActionRouteCreate, RouteID: route.ID})
	return route, nil
}

// UpdateRoute rewrites route id from spec when its stored version still
// equals version (zero skips the check). Shared entities the route stops
// referencing are reclaimed after commit.
func (s *Service) UpdateRoute(ctx context.Context, id int64, spec RouteSpec, version int64) (Route, error) {
	var (
		route   Route
		orphans Orphans
	)
	err := InTx(ctx, s.store, func(repo Repository) error {
		var err error
		route, orphans, err = NewRouteManager(repo).Update(ctx, id, spec, version)
		return err
	})
	getMetrics().routeOps.WithLabelValues("update", resultLabel(err)).Inc()
	if err != nil {
		return Route{}, err
	}

	NewRouteManager(s.store).Reclaim(ctx, orphans)
	LogAudit(ctx, AuditEntry{Action: ActionRouteUpdate, RouteID: id})
	return route, nil
}

// DeleteRoute deletes route id and reclaims its shared entities that are
// no longer referenced. Reclamation failures are logged, not returned.
func (s *Service) DeleteRoute(ctx context.Context, id int64) error {
	err := NewRouteManager(s.store).Delete(ctx, id)
	getMetrics().routeOps.WithLabelValues("delete", resultLabel(err)).Inc()
	if err != nil {
		return err
	}

	LogAudit(ctx, AuditEntry{Action: ActionRouteDelete, RouteID: id})
	return nil
}

// DeleteRouteWithRebinding moves the shared entities of route id to
// targetID and deletes route id. It returns the updated target.
func (s *Service) DeleteRouteWithRebinding(ctx context.Context, id, targetID int64) (Route, error) {
	var (
		target  Route
		orphans Orphans
	)
	err := InTx(ctx, s.store, func(repo Repository) error {
		var err error
		target, orphans, err = NewRouteManager(repo).DeleteWithRebinding(ctx, id, targetID)
		return err
	})
	getMetrics().routeOps.WithLabelValues("delete_rebind", resultLabel(err)).Inc()
	if err != nil {
		return Route{}, err
	}

	NewRouteManager(s.store).Reclaim(ctx, orphans)
	LogAudit(ctx, AuditEntry{Action: ActionRouteRebind, RouteID: id, TargetRouteID: targetID})
	return target, nil
}

// ResolveCoordinates finds or creates the Coordinates with value v.
func (s *Service) ResolveCoordinates(ctx context.Context, v CoordinatesValue) (Coordinates, bool, error) {
	if err := validateStruct(v); err != nil {
		return Coordinates{}, false, err
	}
	var (
		c       Coordinates
		created bool
	)
	err := InTx(ctx, s.store, func(repo Repository) error {
		var err error
		c, created, err = NewResolver(repo).FindOrCreateCoordinates(ctx, v)
		return err
	})
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("resolve coordinates: %w", err)
	}
	if created {
		LogAudit(ctx, AuditEntry{Action: ActionSharedEntityClaim, Reason: fmt.Sprintf("coordinates %d", c.ID)})
	}
	return c, created, nil
}

// ResolveLocation finds or creates the Location with value v. A blank
// name is stored as no name.
func (s *Service) ResolveLocation(ctx context.Context, v LocationValue) (Location, bool, error) {
	v.Name = normalizeName(v.Name)
	var (
		l       Location
		created bool
	)
	err := InTx(ctx, s.store, func(repo Repository) error {
		var err error
		l, created, err = NewResolver(repo).FindOrCreateLocation(ctx, v)
		return err
	})
	if err != nil {
		return Location{}, false, fmt.Errorf("resolve location: %w", err)
	}
	if created {
		LogAudit(ctx, AuditEntry{Action: ActionSharedEntityClaim, Reason: fmt.Sprintf("location %d", l.ID)})
	}
	return l, created, nil
}
