package memstore

import (
	"maps"
	"strings"

	"github.com/JonMunkholm/routeimport/internal/core"
)

type routeRow struct {
	rec     core.RouteRecord
	version int64
}

// state is one consistent copy of every table.
type state struct {
	routes      map[int64]routeRow
	coordinates map[int64]core.Coordinates
	locations   map[int64]core.Location
	operations  map[int64]core.ImportOperation

	nextRouteID       int64
	nextCoordinatesID int64
	nextLocationID    int64
	nextOperationID   int64
}

func newState() *state {
	return &state{
		routes:      make(map[int64]routeRow),
		coordinates: make(map[int64]core.Coordinates),
		locations:   make(map[int64]core.Location),
		operations:  make(map[int64]core.ImportOperation),
	}
}

// clone copies the maps. Row values are copied by value; their pointer
// fields are replaced on write, never mutated, so sharing them is safe.
func (s *state) clone() *state {
	c := *s
	c.routes = maps.Clone(s.routes)
	c.coordinates = maps.Clone(s.coordinates)
	c.locations = maps.Clone(s.locations)
	c.operations = maps.Clone(s.operations)
	return &c
}

func (s *state) hydrate(row routeRow) core.Route {
	return core.Route{
		ID:           row.rec.ID,
		Name:         row.rec.Name,
		Coordinates:  s.coordinates[row.rec.CoordinatesID],
		From:         s.locations[row.rec.FromID],
		To:           s.locations[row.rec.ToID],
		Distance:     row.rec.Distance,
		Rating:       row.rec.Rating,
		CreationDate: row.rec.CreationDate,
		Version:      row.version,
	}
}

func (s *state) routeByName(name string, excludeID int64) (routeRow, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, row := range s.routes {
		if row.rec.ID != excludeID && strings.ToLower(row.rec.Name) == key {
			return row, true
		}
	}
	return routeRow{}, false
}

func (s *state) checkReferences(rec core.RouteRecord) error {
	if _, ok := s.coordinates[rec.CoordinatesID]; !ok {
		return ErrForeignKey
	}
	if _, ok := s.locations[rec.FromID]; !ok {
		return ErrForeignKey
	}
	if _, ok := s.locations[rec.ToID]; !ok {
		return ErrForeignKey
	}
	return nil
}

func (s *state) routesWhere(match func(core.RouteRecord) bool) []core.Route {
	var out []core.Route
	for _, row := range s.routes {
		if match(row.rec) {
			out = append(out, s.hydrate(row))
		}
	}
	return out
}

func (s *state) coordinatesUsers(id, excludeRouteID int64) []core.Route {
	return s.routesWhere(func(r core.RouteRecord) bool {
		return r.CoordinatesID == id && r.ID != excludeRouteID
	})
}

func (s *state) locationUsers(id, excludeRouteID int64) []core.Route {
	return s.routesWhere(func(r core.RouteRecord) bool {
		return (r.FromID == id || r.ToID == id) && r.ID != excludeRouteID
	})
}
