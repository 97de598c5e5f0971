package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// updateRouteRequest is the body of PUT /api/routes/{id}. A zero version
// skips the optimistic check.
type updateRouteRequest struct {
	Spec    core.RouteSpec `json:"spec"`
	Version int64          `json:"version"`
}

type rebindRequest struct {
	TargetRouteID int64 `json:"target_route_id"`
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var spec core.RouteSpec
	if err := decodeJSON(w, r, &spec); err != nil {
		respondError(w, r, err)
		return
	}
	route, err := s.service.CreateRoute(r.Context(), spec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

// handleListRoutes serves ?page=&size=&name=&sort=&dir=.
func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.service.ListRoutes(r.Context(), core.RouteQuery{
		Page:         parseIntParam(r, "page", 1),
		Size:         parseIntParam(r, "size", 20),
		NameContains: q.Get("name"),
		SortBy:       q.Get("sort"),
		Descending:   strings.EqualFold(q.Get("dir"), "desc"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleUpdateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req updateRouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	route, err := s.service.UpdateRoute(r.Context(), id, req.Spec, req.Version)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.DeleteRoute(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteWithRebinding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req rebindRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	target, err := s.service.DeleteRouteWithRebinding(r.Context(), id, req.TargetRouteID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, err := s.service.CheckDependencies(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMaxName(w http.ResponseWriter, r *http.Request) {
	route, err := s.service.RouteWithMaxName(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleRatingBelow(w http.ResponseWriter, r *http.Request) {
	threshold, err := requiredInt64Query(r, "threshold")
	if err != nil {
		respondError(w, r, err)
		return
	}
	n, err := s.service.CountRoutesRatingBelow(r.Context(), threshold)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"threshold": threshold, "count": n})
}

func (s *Server) handleRatingAbove(w http.ResponseWriter, r *http.Request) {
	threshold, err := requiredInt64Query(r, "threshold")
	if err != nil {
		respondError(w, r, err)
		return
	}
	routes, err := s.service.RoutesRatingAbove(r.Context(), threshold)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

// handleBetween serves ?from=&to=&sort=. Each endpoint is a location name
// or "(x, y)".
func (s *Server) handleBetween(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	routes, err := s.service.RoutesBetween(r.Context(), q.Get("from"), q.Get("to"), q.Get("sort"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}
