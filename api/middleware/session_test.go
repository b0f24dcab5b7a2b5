package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgauth "github.com/angelmondragon/chronus-storefront/pkg/auth"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
)

type stubAcquirer struct {
	ids      []uuid.UUID
	released int
}

func (s *stubAcquirer) Acquire(_ context.Context, id uuid.UUID) (*session.Session, func()) {
	s.ids = append(s.ids, id)
	return &session.Session{ID: id, Auth: &auth.State{}}, func() { s.released++ }
}

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "chronus-test", ExpirationMinutes: 10}

func serveSession(t *testing.T, acq *stubAcquirer, token string) (*httptest.ResponseRecorder, *session.Session) {
	t.Helper()
	var seen *session.Session
	handler := Session(jwtCfg, acq, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	if token != "" {
		req.Header.Set(SessionTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestSessionMintsTokenForNewVisitor(t *testing.T) {
	acq := &stubAcquirer{}
	rec, sess := serveSession(t, acq, "")

	token := rec.Header().Get(SessionTokenHeader)
	claims, err := pkgauth.ParseSessionToken(jwtCfg, token)
	if err != nil {
		t.Fatalf("minted token must parse: %v", err)
	}
	if sess == nil || sess.ID != claims.SessionID {
		t.Fatalf("expected context session %v", claims.SessionID)
	}
	if acq.released != 1 {
		t.Fatalf("expected release after the handler, got %d", acq.released)
	}
}

func TestSessionKeepsValidToken(t *testing.T) {
	id := uuid.New()
	token, err := pkgauth.MintSessionToken(jwtCfg, time.Now(), id)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	acq := &stubAcquirer{}
	rec, _ := serveSession(t, acq, token)

	if rec.Header().Get(SessionTokenHeader) != token {
		t.Fatal("a valid token must be echoed unchanged")
	}
	if len(acq.ids) != 1 || acq.ids[0] != id {
		t.Fatalf("expected session %v, got %v", id, acq.ids)
	}
}

func TestSessionReissuesExpiredToken(t *testing.T) {
	id := uuid.New()
	stale, err := pkgauth.MintSessionToken(jwtCfg, time.Now().Add(-time.Hour), id)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	acq := &stubAcquirer{}
	rec, _ := serveSession(t, acq, stale)

	fresh := rec.Header().Get(SessionTokenHeader)
	if fresh == stale {
		t.Fatal("expected a new token")
	}
	claims, err := pkgauth.ParseSessionToken(jwtCfg, fresh)
	if err != nil || claims.SessionID != id {
		t.Fatalf("expected the same session in the new token, got %v %v", claims, err)
	}
}

func TestSessionReplacesForgedToken(t *testing.T) {
	other := config.JWTConfig{Secret: "other", Issuer: jwtCfg.Issuer, ExpirationMinutes: 10}
	id := uuid.New()
	forged, err := pkgauth.MintSessionToken(other, time.Now(), id)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	acq := &stubAcquirer{}
	serveSession(t, acq, forged)

	if len(acq.ids) != 1 || acq.ids[0] == id {
		t.Fatal("a forged token must not reach its session")
	}
}
