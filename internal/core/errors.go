package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a route, shared entity or operation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a route name is already taken (case-insensitive).
	ErrDuplicateName = errors.New("route name already exists")

	// ErrZeroDistance is returned when a route's from and to locations are identical.
	ErrZeroDistance = errors.New("route from and to locations are identical")

	// ErrVersionConflict is returned when a route was modified since it was loaded.
	ErrVersionConflict = errors.New("route was modified concurrently")

	// ErrConflict is returned by repositories when a concurrent writer won an
	// insert race or the store reported a serialization failure. Retryable.
	ErrConflict = errors.New("concurrent write conflict")

	// ErrInvalidTransition is returned when a ledger update targets an
	// operation that is no longer in the required state.
	ErrInvalidTransition = errors.New("invalid import operation transition")

	// ErrInvalidRoute is returned when a RouteSpec fails field validation.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrSelfRebind is returned when a route is asked to rebind onto itself.
	ErrSelfRebind = errors.New("rebinding target must differ from the deleted route")

	// ErrEmptyFile is returned for CSV input without a header line.
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrNoDataRows is returned for CSV input with a header and no data rows.
	ErrNoDataRows = errors.New("no valid data rows found in CSV file")

	// ErrObjectStore marks failures of the object store gateway.
	ErrObjectStore = errors.New("object store failure")

	// ErrInvalidQuery reports a malformed query parameter.
	ErrInvalidQuery = errors.New("invalid query")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// DuplicateNameError carries the conflicting name and, when known, the id
// of the route that already holds it.
type DuplicateNameError struct {
	Name       string
	ExistingID int64
}

func (e *DuplicateNameError) Error() string {
	if e.ExistingID > 0 {
		return fmt.Sprintf("route with name '%s' already exists (id %d)", e.Name, e.ExistingID)
	}
	return fmt.Sprintf("route with name '%s' already exists", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// ZeroDistanceError carries the identical endpoints.
type ZeroDistanceError struct {
	From LocationValue
	To   LocationValue
}

func (e *ZeroDistanceError) Error() string {
	return fmt.Sprintf("route has identical start and end points: from=(%v, %v) to=(%v, %v)",
		e.From.X, e.From.Y, e.To.X, e.To.Y)
}

func (e *ZeroDistanceError) Is(target error) bool { return target == ErrZeroDistance }

// SchemaError reports a malformed CSV header.
type SchemaError struct {
	Column   int // 1-based; zero when the column count is wrong
	Expected string
	Found    string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("invalid header at column %d. Expected: %s, Found: %s", e.Column, e.Expected, e.Found)
	}
	return e.Reason
}

// RowParseError reports a syntactically malformed CSV row.
type RowParseError struct {
	Line   int
	Field  string
	Reason string
}

func (e *RowParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("error parsing line %d: invalid number format in %s: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("error parsing line %d: %s", e.Line, e.Reason)
}

// ObjectStoreError wraps a gateway failure with the operation and key.
type ObjectStoreError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectStoreError) Error() string {
	return fmt.Sprintf("object store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectStoreError) Unwrap() error { return e.Err }

func (e *ObjectStoreError) Is(target error) bool { return target == ErrObjectStore }

// ValidationError describes one invalid RouteSpec field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is the set of field errors for one RouteSpec.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid route: " + strings.Join(msgs, "; ")
}

func (e ValidationErrors) Is(target error) bool { return target == ErrInvalidRoute }
