package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/routeimport/internal/logging"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionRouteCreate       AuditAction = "route_create"
	ActionRouteUpdate       AuditAction = "route_update"
	ActionRouteDelete       AuditAction = "route_delete"
	ActionRouteRebind       AuditAction = "route_delete_rebind"
	ActionImportComplete    AuditAction = "import_complete"
	ActionImportFail        AuditAction = "import_fail"
	ActionSharedEntityClaim AuditAction = "shared_entity_resolve"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry describes one mutation. Zero fields are omitted from the log.
type AuditEntry struct {
	Action        AuditAction
	RouteID       int64
	TargetRouteID int64
	OperationID   int64
	Filename      string
	RowsAffected  int
	Reason        string
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionRouteDelete, ActionRouteRebind, ActionImportFail:
		return SeverityHigh
	case ActionSharedEntityClaim:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit writes entry as one structured INFO record carrying the
// username, client IP and User-Agent found in ctx.
func LogAudit(ctx context.Context, entry AuditEntry) {
	attrs := []any{
		slog.String("action", string(entry.Action)),
		slog.String("severity", string(determineSeverity(entry.Action))),
		slog.Time("at", time.Now().UTC()),
	}
	add := func(key string, v int64) {
		if v != 0 {
			attrs = append(attrs, slog.Int64(key, v))
		}
	}
	add("route_id", entry.RouteID)
	add("target_route_id", entry.TargetRouteID)
	add("operation_id", entry.OperationID)
	add("rows_affected", int64(entry.RowsAffected))
	if entry.Filename != "" {
		attrs = append(attrs, slog.String("filename", entry.Filename))
	}
	if entry.Reason != "" {
		attrs = append(attrs, slog.String("reason", entry.Reason))
	}
	if u := UsernameFromContext(ctx); u != "" {
		attrs = append(attrs, slog.String("username", u))
	}
	if ip := IPAddressFromContext(ctx); ip != "" {
		attrs = append(attrs, slog.String("ip_address", ip))
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	logging.FromContext(ctx).Info("audit", attrs...)
}
