package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

var (
	routeSortFields   = map[string]bool{"id": true, "name": true, "distance": true, "rating": true, "creation_date": true}
	betweenSortFields = map[string]bool{"name": true, "distance": true, "rating": true, "creation_date": true}
)

// RouteQuery selects a page of routes. Page is 1-based.
type RouteQuery struct {
	Page         int
	Size         int
	NameContains string
	SortBy       string
	Descending   bool
}

// GetRoute returns route id.
func (s *Service) GetRoute(ctx context.Context, id int64) (Route, error) {
	return s.store.GetRoute(ctx, id)
}

// ListRoutes returns one page of routes.
func (s *Service) ListRoutes(ctx context.Context, q RouteQuery) (RoutePage, error) {
	sortBy := strings.ToLower(strings.TrimSpace(q.SortBy))
	if sortBy == "" {
		sortBy = "id"
	}
	if !routeSortFields[sortBy] {
		return RoutePage{}, fmt.Errorf("sort field %q: %w", q.SortBy, ErrInvalidQuery)
	}

	page, size := clampPage(q.Page, q.Size, MaxPageSize)
	routes, total, err := s.store.ListRoutes(ctx, RouteFilter{
		NameContains: strings.TrimSpace(q.NameContains),
		SortBy:       sortBy,
		Descending:   q.Descending,
		Limit:        size,
		Offset:       (page - 1) * size,
	})
	if err != nil {
		return RoutePage{}, fmt.Errorf("list routes: %w", err)
	}
	if routes == nil {
		routes = []Route{}
	}
	return RoutePage{
		Routes:     routes,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages(total, size),
	}, nil
}

// CheckDependencies reports, for each shared entity of route id, how
// many other routes use it and whether route id holds its owner hint.
func (s *Service) CheckDependencies(ctx context.Context, id int64) (DependencyReport, error) {
	route, err := s.store.GetRoute(ctx, id)
	if err != nil {
		return DependencyReport{}, err
	}

	report := DependencyReport{Route: route}

	report.Coordinates, err = s.dependency(ctx, route.Coordinates.ID, route.Coordinates.OwnerRouteID, id,
		s.store.CoordinatesUsage, s.store.RoutesByCoordinates)
	if err != nil {
		return DependencyReport{}, fmt.Errorf("coordinates dependency: %w", err)
	}
	report.From, err = s.dependency(ctx, route.From.ID, route.From.OwnerRouteID, id,
		s.store.LocationUsage, s.store.RoutesByLocation)
	if err != nil {
		return DependencyReport{}, fmt.Errorf("from location dependency: %w", err)
	}
	report.To, err = s.dependency(ctx, route.To.ID, route.To.OwnerRouteID, id,
		s.store.LocationUsage, s.store.RoutesByLocation)
	if err != nil {
		return DependencyReport{}, fmt.Errorf("to location dependency: %w", err)
	}

	for _, d := range []EntityDependency{report.Coordinates, report.From, report.To} {
		if d.IsOwner && d.UsageCount > 0 {
			report.NeedsOwnershipTransfer = true
		}
	}
	return report, nil
}

func (s *Service) dependency(
	ctx context.Context,
	entityID int64,
	owner *int64,
	routeID int64,
	usage func(context.Context, int64, int64) (int64, error),
	users func(context.Context, int64, int64) ([]Route, error),
) (EntityDependency, error) {
	n, err := usage(ctx, entityID, routeID)
	if err != nil {
		return EntityDependency{}, err
	}
	var candidates []Route
	if n > 0 {
		if candidates, err = users(ctx, entityID, routeID); err != nil {
			return EntityDependency{}, err
		}
	}
	return EntityDependency{
		EntityID:   entityID,
		IsOwner:    owner != nil && *owner == routeID,
		UsageCount: n,
		Candidates: candidates,
	}, nil
}

// RouteWithMaxName returns the route whose name sorts last.
func (s *Service) RouteWithMaxName(ctx context.Context) (Route, error) {
	return s.store.RouteWithMaxName(ctx)
}

// CountRoutesRatingBelow counts routes with rating < threshold.
func (s *Service) CountRoutesRatingBelow(ctx context.Context, threshold int64) (int64, error) {
	return s.store.CountRoutesRatingBelow(ctx, threshold)
}

// RoutesRatingAbove lists routes with rating > threshold, highest first.
func (s *Service) RoutesRatingAbove(ctx context.Context, threshold int64) ([]Route, error) {
	routes, err := s.store.RoutesRatingAbove(ctx, threshold)
	if routes == nil && err == nil {
		routes = []Route{}
	}
	return routes, err
}

// RoutesBetween lists routes from one endpoint to another. Each endpoint
// is a location name or "(x, y)".
func (s *Service) RoutesBetween(ctx context.Context, from, to, sortBy string) ([]Route, error) {
	sortBy = strings.ToLower(strings.TrimSpace(sortBy))
	if sortBy == "" {
		sortBy = "name"
	}
	if !betweenSortFields[sortBy] {
		return nil, fmt.Errorf("sort field %q: %w", sortBy, ErrInvalidQuery)
	}

	q := BetweenQuery{SortBy: sortBy}
	var err error
	if q.FromName, q.FromXY, err = ParseEndpoint(from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if q.ToName, q.ToXY, err = ParseEndpoint(to); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	routes, err := s.store.RoutesBetween(ctx, q)
	if routes == nil && err == nil {
		routes = []Route{}
	}
	return routes, err
}

// ParseEndpoint reads a route endpoint: "(x, y)" yields coordinates,
// anything else is a location name.
func ParseEndpoint(s string) (string, *[2]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("endpoint is empty: %w", ErrInvalidQuery)
	}
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return s, nil, nil
	}

	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, "("), ")"), ",")
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("endpoint %q: want (x, y): %w", s, ErrInvalidQuery)
	}
	var xy [2]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("endpoint %q: %w", s, ErrInvalidQuery)
		}
		xy[i] = v
	}
	return "", &xy, nil
}

// AvailableCoordinates lists every Coordinates row.
func (s *Service) AvailableCoordinates(ctx context.Context) ([]Coordinates, error) {
	out, err := s.store.ListCoordinates(ctx)
	if out == nil && err == nil {
		out = []Coordinates{}
	}
	return out, err
}

// AvailableLocations lists every Location row.
func (s *Service) AvailableLocations(ctx context.Context) ([]Location, error) {
	out, err := s.store.ListLocations(ctx)
	if out == nil && err == nil {
		out = []Location{}
	}
	return out, err
}

// LocationNames lists the distinct non-null location names.
func (s *Service) LocationNames(ctx context.Context) ([]string, error) {
	out, err := s.store.ListLocationNames(ctx)
	if out == nil && err == nil {
		out = []string{}
	}
	return out, err
}
