package shared

import (
	"context"

	"github.com/google/uuid"
)

// SessionContext carries the caller identity that every finance operation runs under.
// It replaces process-wide ambient properties: it is built once per request and
// travels explicitly through context.Context.
type SessionContext struct {
	ClientID       uuid.UUID
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Language       string
}

type sessionContextKey struct{}

// WithSessionContext returns a context carrying sc
func WithSessionContext(ctx context.Context, sc SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sc)
}

// SessionFromContext returns the session context stored in ctx
func SessionFromContext(ctx context.Context) (SessionContext, bool) {
	sc, ok := ctx.Value(sessionContextKey{}).(SessionContext)
	return sc, ok
}

// MustSessionFromContext returns the session context or an invalid-input error
// when the caller did not attach one.
func MustSessionFromContext(ctx context.Context) (SessionContext, error) {
	sc, ok := SessionFromContext(ctx)
	if !ok || sc.ClientID == uuid.Nil {
		return SessionContext{}, NewDomainError(CodeValidation, "session context with client is required")
	}
	return sc, nil
}
