package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// routeFeature renders a route as a GeoJSON LineString from its From to
// its To location.
func routeFeature(route core.Route) (*geojson.Feature, error) {
	line, err := geom.NewLineString(geom.XY).SetCoords([]geom.Coord{
		{route.From.X, route.From.Y},
		{route.To.X, route.To.Y},
	})
	if err != nil {
		return nil, fmt.Errorf("route %d geometry: %w", route.ID, err)
	}

	props := map[string]any{
		"name":          route.Name,
		"distance":      route.Distance,
		"rating":        route.Rating,
		"creation_date": route.CreationDate,
		"coordinates":   []float64{route.Coordinates.X, route.Coordinates.Y},
	}
	if route.From.Name != nil {
		props["from"] = *route.From.Name
	}
	if route.To.Name != nil {
		props["to"] = *route.To.Name
	}

	return &geojson.Feature{
		ID:         strconv.FormatInt(route.ID, 10),
		Geometry:   line,
		Properties: props,
	}, nil
}

func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	route, err := s.service.GetRoute(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	feature, err := routeFeature(route)
	if err != nil {
		respondError(w, r, err)
		return
	}
	body, err := feature.MarshalJSON()
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
