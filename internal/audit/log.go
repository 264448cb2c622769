// Package audit emits the operational audit trail of administrative and
// authentication actions. It is distinct from the domain activity log:
// activities describe tracker content changes for project members, audit
// events describe who did what to the installation.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tinytrack.org/internal/auth"
	"tinytrack.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Well-known audit event names.
const (
	EventLogin         = "auth.login"
	EventLoginFailed   = "auth.login_failed"
	EventUserCreated   = "user.created"
	EventUserDeleted   = "user.deleted"
	EventProjectErased = "project.erased"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry["user_id"] = userID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
