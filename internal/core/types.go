package core

import (
	"math"
	"time"
)

// MaxCoordinatesY is the upper bound for Coordinates.Y.
const MaxCoordinatesY = 807

// MaxRouteNameLength is the maximum number of characters in a route name.
const MaxRouteNameLength = 100

// CoordinatesValue is the value key of a Coordinates row.
type CoordinatesValue struct {
	X float64 `json:"x"`
	Y float64 `json:"y" validate:"lte=807"`
}

// Equal reports bit-exact equality on both fields.
func (v CoordinatesValue) Equal(o CoordinatesValue) bool {
	return sameFloat(v.X, o.X) && sameFloat(v.Y, o.Y)
}

// LocationValue is the value key of a Location row. A nil Name is a
// distinct key from any non-nil name, including the empty string.
type LocationValue struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name *string `json:"name"`
}

// Equal reports bit-exact equality on x and y and equality of the name,
// where nil only equals nil.
func (v LocationValue) Equal(o LocationValue) bool {
	if !sameFloat(v.X, o.X) || !sameFloat(v.Y, o.Y) {
		return false
	}
	if v.Name == nil || o.Name == nil {
		return v.Name == nil && o.Name == nil
	}
	return *v.Name == *o.Name
}

func sameFloat(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

// Coordinates is a persisted, shareable coordinates pair.
type Coordinates struct {
	ID           int64   `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	OwnerRouteID *int64  `json:"owner_route_id,omitempty"`
}

// Value returns the value key of c.
func (c Coordinates) Value() CoordinatesValue {
	return CoordinatesValue{X: c.X, Y: c.Y}
}

// Location is a persisted, shareable named point.
type Location struct {
	ID           int64   `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Name         *string `json:"name"`
	OwnerRouteID *int64  `json:"owner_route_id,omitempty"`
}

// Value returns the value key of l.
func (l Location) Value() LocationValue {
	return LocationValue{X: l.X, Y: l.Y, Name: l.Name}
}

// Route is the primary managed record. Coordinates, From and To are the
// resolved shared entities it references.
type Route struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Coordinates  Coordinates `json:"coordinates"`
	From         Location    `json:"from"`
	To           Location    `json:"to"`
	Distance     int64       `json:"distance"`
	Rating       int64       `json:"rating"`
	CreationDate time.Time   `json:"creation_date"`
	Version      int64       `json:"version"`
}

// RouteSpec is the caller-supplied description of a route to create or
// update. Shared entities are given by value and resolved on write.
type RouteSpec struct {
	Name        string           `json:"name" validate:"required,max=100,routename"`
	Coordinates CoordinatesValue `json:"coordinates"`
	From        LocationValue    `json:"from"`
	To          LocationValue    `json:"to"`
	Distance    int64            `json:"distance" validate:"gte=2"`
	Rating      int64            `json:"rating" validate:"gt=0"`
}

// RouteRecord is the row-level form of a Route as the repository writes it.
type RouteRecord struct {
	ID            int64
	Name          string
	CoordinatesID int64
	FromID        int64
	ToID          int64
	Distance      int64
	Rating        int64
	CreationDate  time.Time
}

// RouteFilter selects a page of routes.
type RouteFilter struct {
	NameContains string
	SortBy       string // id, name, distance, rating, creation_date
	Descending   bool
	Limit        int
	Offset       int
}

// BetweenQuery selects routes by their endpoints. Each side matches either a
// location name or, when XY is set, the exact x and y of the location.
type BetweenQuery struct {
	FromName string
	FromXY   *[2]float64
	ToName   string
	ToXY     *[2]float64
	SortBy   string // name, distance, rating, creation_date
}

// ImportStatus is the state of an ImportOperation.
type ImportStatus string

const (
	StatusInProgress ImportStatus = "IN_PROGRESS"
	StatusSuccess    ImportStatus = "SUCCESS"
	StatusFailed     ImportStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ImportStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ImportOperation is the ledger record of one import request.
type ImportOperation struct {
	ID                int64        `json:"id"`
	Username          string       `json:"username"`
	Filename          string       `json:"filename"`
	Status            ImportStatus `json:"status"`
	StartTime         time.Time    `json:"start_time"`
	EndTime           *time.Time   `json:"end_time,omitempty"`
	TotalRecords      int          `json:"total_records"`
	ProcessedRecords  int          `json:"processed_records"`
	SuccessfulRecords int          `json:"successful_records"`
	ErrorMessage      string       `json:"error_message,omitempty"`
	FileKey           string       `json:"file_key,omitempty"`
	FileSize          int64        `json:"file_size,omitempty"`
	FileContentType   string       `json:"file_content_type,omitempty"`
}

// ImportResult is the structured outcome of ImportBatch.
type ImportResult struct {
	OperationID       int64        `json:"operation_id,omitempty"`
	Status            ImportStatus `json:"status"`
	TotalRecords      int          `json:"total_records"`
	SuccessfulRecords int          `json:"successful_records"`
	FailedRecords     int          `json:"failed_records"`
	Errors            []string     `json:"errors"`
	Message           string       `json:"message"`
}

// OperationPage is one page of ledger entries.
type OperationPage struct {
	Operations []ImportOperation `json:"operations"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	TotalPages int               `json:"total_pages"`
}

// RoutePage is one page of routes.
type RoutePage struct {
	Routes     []Route `json:"routes"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	Size       int     `json:"size"`
	TotalPages int     `json:"total_pages"`
}

// EntityDependency describes how one shared entity of a route is used.
type EntityDependency struct {
	EntityID   int64   `json:"entity_id"`
	IsOwner    bool    `json:"is_owner"`
	UsageCount int64   `json:"usage_count"`
	Candidates []Route `json:"candidates,omitempty"`
}

// DependencyReport is the result of CheckDependencies.
type DependencyReport struct {
	Route                  Route            `json:"route"`
	Coordinates            EntityDependency `json:"coordinates"`
	From                   EntityDependency `json:"from"`
	To                     EntityDependency `json:"to"`
	NeedsOwnershipTransfer bool             `json:"needs_ownership_transfer"`
}

// totalPages returns the page count for total rows at size rows per page.
func totalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// clampPage normalizes 1-based page numbers and page sizes.
func clampPage(page, size, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}
