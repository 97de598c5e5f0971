package web

// errors.go maps service errors to HTTP responses.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as the user message from core.MapError.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// errBadRequest marks malformed request input on the web layer itself.
var errBadRequest = errors.New("bad request")

// errFileTooLarge is returned when the upload exceeds IMPORT_MAX_FILE_SIZE.
var errFileTooLarge = errors.New("file too large")

type statusRule struct {
	target error
	status int
}

// statusRules is checked in order with errors.Is.
var statusRules = []statusRule{
	{core.ErrNotFound, http.StatusNotFound},
	{core.ErrDuplicateName, http.StatusConflict},
	{core.ErrVersionConflict, http.StatusConflict},
	{core.ErrInvalidTransition, http.StatusConflict},
	{core.ErrConflict, http.StatusConflict},
	{core.ErrZeroDistance, http.StatusUnprocessableEntity},
	{core.ErrSelfRebind, http.StatusUnprocessableEntity},
	{core.ErrInvalidRoute, http.StatusBadRequest},
	{core.ErrInvalidQuery, http.StatusBadRequest},
	{core.ErrEmptyFile, http.StatusBadRequest},
	{core.ErrNoDataRows, http.StatusBadRequest},
	{errBadRequest, http.StatusBadRequest},
	{errFileTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrTooManyImports, http.StatusServiceUnavailable},
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	var schemaErr *core.SchemaError
	var rowErr *core.RowParseError
	if errors.As(err, &schemaErr) || errors.As(err, &rowErr) {
		return http.StatusBadRequest
	}
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user message with the mapped status.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if errors.Is(err, errFileTooLarge) {
		msg = core.UserMessage{
			Message: "The uploaded file is too large",
			Action:  "Split the file or raise IMPORT_MAX_FILE_SIZE",
			Code:    "FILE001",
		}
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		for _, v := range verrs {
			resp.Details = append(resp.Details, v.Error())
		}
	}
	writeJSON(w, status, resp)
}

// respondMessage writes a fixed user message with status.
func respondMessage(w http.ResponseWriter, _ *http.Request, status int, msg core.UserMessage) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
