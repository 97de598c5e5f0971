package core

// Error codes reference
//
// Every user-facing error carries a code that support staff can look up.
//
//	ROUTE001  duplicate route name        ROUTE004  concurrent modification
//	ROUTE002  identical from and to       ROUTE005  invalid route fields
//	ROUTE003  route or entity not found   ROUTE006  rebind target is the route itself
//	CSV001    bad header                  CSV003    empty file
//	CSV002    bad row syntax              CSV004    header without data rows
//	IMP001    import slots exhausted      IMP002    import already finished
//	OBJ001    object store failure        QRY001    bad query parameter
//	DB001     connection refused          DB003     timeout
//	DB002     connection reset            DB004     deadlock / serialization
//	FILE001   file too large              RATE001   rate limited
//	AUTH001   unauthorized                ERR000    anything else
//
// Typed errors are matched with errors.Is first. Substring patterns cover
// errors that only exist as text (driver and network failures); they are
// matched case-insensitively and the first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorMatch struct {
	target error
	msg    UserMessage
}

// errorMatches is checked in order with errors.Is.
var errorMatches = []errorMatch{
	{ErrDuplicateName, UserMessage{"A route with this name already exists", "Choose a different route name", "ROUTE001"}},
	{ErrZeroDistance, UserMessage{"From and To locations are identical", "Use different start and end locations", "ROUTE002"}},
	{ErrNotFound, UserMessage{"The requested record does not exist", "Check the id and try again", "ROUTE003"}},
	{ErrVersionConflict, UserMessage{"The route was changed by someone else", "Reload the route and apply your change again", "ROUTE004"}},
	{ErrConflict, UserMessage{"The database was busy with a conflicting change", "Please try again", "DB004"}},
	{ErrInvalidRoute, UserMessage{"Some route fields are invalid", "Correct the listed fields and resubmit", "ROUTE005"}},
	{ErrSelfRebind, UserMessage{"A route cannot be rebound to itself", "Pick a different target route", "ROUTE006"}},
	{ErrEmptyFile, UserMessage{"The uploaded file is empty", "Upload a CSV file with a header and data rows", "CSV003"}},
	{ErrNoDataRows, UserMessage{"The file has a header but no data rows", "Add at least one route row", "CSV004"}},
	{ErrTooManyImports, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP001"}},
	{ErrInvalidTransition, UserMessage{"The import operation has already finished", "Start a new import", "IMP002"}},
	{ErrObjectStore, UserMessage{"The file archive is unavailable", "Please try again later", "OBJ001"}},
	{ErrInvalidQuery, UserMessage{"A query parameter is invalid", "Check the request parameters", "QRY001"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// CSV Errors (CSV001-CSV002)
	// =========================================================================
	{
		pattern: "invalid header",
		msg: UserMessage{
			Message: "The CSV header does not match the expected columns",
			Action:  "Use the header name,coordinates_x,coordinates_y,from_x,from_y,from_name,to_x,to_y,to_name,distance,rating",
			Code:    "CSV001",
		},
	},
	{
		pattern: "csv must have exactly",
		msg: UserMessage{
			Message: "The CSV header does not match the expected columns",
			Action:  "The file must have exactly 11 comma-separated columns",
			Code:    "CSV001",
		},
	},
	{
		pattern: "error parsing line",
		msg: UserMessage{
			Message: "A row of the file could not be read",
			Action:  "Check the reported line for missing columns or malformed numbers",
			Code:    "CSV002",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB001-DB004)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},

	// =========================================================================
	// Request Errors (FILE001, RATE001, AUTH001)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum import size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum import size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "unauthorized",
		msg: UserMessage{
			Message: "Authentication required",
			Action:  "Provide a valid API key or token",
			Code:    "AUTH001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000). Check the
// application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return errorPatterns[0].msg
	}
	var rowErr *RowParseError
	if errors.As(err, &rowErr) {
		return errorPatterns[2].msg
	}
	for _, m := range errorMatches {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
