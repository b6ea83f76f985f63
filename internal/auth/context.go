package auth

import (
	"context"

	"github.com/rpattn/streamgate/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// ContextWithSession returns a new context that carries the authenticated session.
func ContextWithSession(ctx context.Context, session domain.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves the authenticated session from the context, if any.
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	if ctx == nil {
		return domain.Session{}, false
	}
	session, ok := ctx.Value(sessionKey).(domain.Session)
	if !ok {
		return domain.Session{}, false
	}
	return session, true
}
