package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "duplicate name", err: &DuplicateNameError{Name: "Alpha", ExistingID: 3}, wantCode: "ROUTE001"},
		{name: "wrapped duplicate name", err: fmt.Errorf("import line 4: %w", &DuplicateNameError{Name: "Alpha"}), wantCode: "ROUTE001"},
		{name: "zero distance", err: &ZeroDistanceError{}, wantCode: "ROUTE002"},
		{name: "not found", err: notFound("route", 9), wantCode: "ROUTE003"},
		{name: "version conflict", err: fmt.Errorf("update route 1: %w", ErrVersionConflict), wantCode: "ROUTE004"},
		{name: "invalid route", err: ValidationErrors{{Field: "name", Message: "is required"}}, wantCode: "ROUTE005"},
		{name: "self rebind", err: ErrSelfRebind, wantCode: "ROUTE006"},
		{name: "schema error", err: &SchemaError{Column: 2, Expected: "coordinates_x", Found: "x"}, wantCode: "CSV001"},
		{name: "row parse error", err: &RowParseError{Line: 3, Field: "distance", Reason: "empty value"}, wantCode: "CSV002"},
		{name: "empty file", err: ErrEmptyFile, wantCode: "CSV003"},
		{name: "no data rows", err: ErrNoDataRows, wantCode: "CSV004"},
		{name: "too many imports", err: ErrTooManyImports, wantCode: "IMP001"},
		{name: "invalid transition", err: ErrInvalidTransition, wantCode: "IMP002"},
		{name: "object store", err: &ObjectStoreError{Op: "put", Key: "k", Err: errors.New("boom")}, wantCode: "OBJ001"},
		{name: "conflict", err: ErrConflict, wantCode: "DB004"},
		{name: "connection refused text", err: errors.New("dial tcp: connection refused"), wantCode: "DB001"},
		{name: "case insensitive matching", err: errors.New("read: CONNECTION RESET by peer"), wantCode: "DB002"},
		{name: "rate limit text", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_TypedBeforePatterns(t *testing.T) {
	// The message mentions a timeout, but the typed match wins.
	err := fmt.Errorf("timeout while waiting: %w", ErrTooManyImports)
	if got := MapError(err).Code; got != "IMP001" {
		t.Errorf("MapError() code = %q, want IMP001", got)
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrSelfRebind)

	expected := "A route cannot be rebound to itself (Code: ROUTE006). Pick a different target route"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrEmptyFile, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
