package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgauth "github.com/angelmondragon/chronus-storefront/pkg/auth"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

// SessionTokenHeader carries the storefront session token both ways.
const SessionTokenHeader = "X-Session-Token"

// SessionAcquirer hands out locked storefront sessions.
type SessionAcquirer interface {
	Acquire(ctx context.Context, id uuid.UUID) (*session.Session, func())
}

// Session resolves the storefront session of a request. A missing or forged
// token starts a new session; an authentic but expired one is re-issued for
// the same session. The current token is always echoed in the response.
// The session stays locked until the handler returns.
func Session(cfg config.JWTConfig, sessions SessionAcquirer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sessions == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
				return
			}

			id, token, err := resolveSessionToken(cfg, strings.TrimSpace(r.Header.Get(SessionTokenHeader)), time.Now())
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue session token"))
				return
			}
			w.Header().Set(SessionTokenHeader, token)

			if logg != nil {
				ctx = logg.WithSessionID(ctx, id.String())
			}
			sess, release := sessions.Acquire(ctx, id)
			defer release()

			if logg != nil && sess.Auth.IsAuthenticated() {
				ctx = logg.WithUserID(ctx, sess.Auth.UserID())
			}
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
		})
	}
}

func resolveSessionToken(cfg config.JWTConfig, raw string, now time.Time) (uuid.UUID, string, error) {
	if raw != "" {
		if claims, err := pkgauth.ParseSessionToken(cfg, raw); err == nil {
			return claims.SessionID, raw, nil
		}
		if claims, err := pkgauth.ParseSessionTokenAllowExpired(cfg, raw); err == nil {
			token, err := pkgauth.MintSessionToken(cfg, now, claims.SessionID)
			return claims.SessionID, token, err
		}
	}
	id := uuid.New()
	token, err := pkgauth.MintSessionToken(cfg, now, id)
	return id, token, err
}
