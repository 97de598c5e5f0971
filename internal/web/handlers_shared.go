package web

import (
	"net/http"

	"github.com/JonMunkholm/routeimport/internal/core"
)

type resolvedCoordinates struct {
	Coordinates core.Coordinates `json:"coordinates"`
	Created     bool             `json:"created"`
}

type resolvedLocation struct {
	Location core.Location `json:"location"`
	Created  bool          `json:"created"`
}

func (s *Server) handleListCoordinates(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.AvailableCoordinates(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolveCoordinates(w http.ResponseWriter, r *http.Request) {
	var v core.CoordinatesValue
	if err := decodeJSON(w, r, &v); err != nil {
		respondError(w, r, err)
		return
	}
	c, created, err := s.service.ResolveCoordinates(r.Context(), v)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resolvedCoordinates{Coordinates: c, Created: created})
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.AvailableLocations(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLocationNames(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.LocationNames(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolveLocation(w http.ResponseWriter, r *http.Request) {
	var v core.LocationValue
	if err := decodeJSON(w, r, &v); err != nil {
		respondError(w, r, err)
		return
	}
	l, created, err := s.service.ResolveLocation(r.Context(), v)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resolvedLocation{Location: l, Created: created})
}
