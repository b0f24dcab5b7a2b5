package middleware

import (
	"context"

	"github.com/angelmondragon/chronus-storefront/internal/session"
)

type contextKey string

const ctxSession contextKey = "storefront_session"

// SessionFromContext returns the locked session seeded by Session, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSession).(*session.Session); ok {
		return v
	}
	return nil
}

// WithSession injects the storefront session into the context.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, sess)
}
