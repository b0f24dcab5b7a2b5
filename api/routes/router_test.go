package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chronus-storefront/api/middleware"
	"github.com/angelmondragon/chronus-storefront/internal/address"
	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/checkout"
	"github.com/angelmondragon/chronus-storefront/internal/confirmation"
	product "github.com/angelmondragon/chronus-storefront/internal/products"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	"github.com/angelmondragon/chronus-storefront/internal/shipping"
	"github.com/angelmondragon/chronus-storefront/pkg/catalog"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	pkgredis "github.com/angelmondragon/chronus-storefront/pkg/redis"
)

type fakeRedis struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, counters: map[string]int64{}}
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeRedis) LoginAttemptsKey(scope string) string { return "chronus:login:" + scope }

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) SessionKey(sessionID, name string) string {
	return "chronus:session:" + sessionID + ":" + name
}

type stubLister struct{}

func (stubLister) ListProducts(context.Context) ([]catalog.Product, error) {
	return []catalog.Product{{ID: 1, Name: "Camisa Oficial 2026", Type: "Camisa Oficial"}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Env: "test"},
		JWT:        config.JWTConfig{Secret: "router-secret", Issuer: "chronus-storefront", ExpirationMinutes: 60},
		Session:    config.SessionConfig{TTL: time.Hour, IdleEviction: time.Minute, PendingOrderTTL: time.Hour},
		Store:      config.StoreConfig{HomeCity: "Salgueiro", PublicURL: "https://loja.chronus.club", Currency: "brl"},
		Shipping:   config.ShippingConfig{FallbackStandard: "25.00", FallbackExpress: "35.00"},
		LoginLimit: config.LoginRateLimitConfig{Window: time.Minute, IPLimit: 2, EmailLimit: 5},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	logg := logger.Nop()
	redis := newFakeRedis()
	reg := prometheus.NewRegistry()
	m := metrics.NewStorefront(reg)

	catalogSvc := product.NewService(stubLister{})
	manager := session.NewManager(session.NewStore(redis, cfg.Session.TTL, logg), cfg.Session)
	resolver := shipping.NewResolver(nil, cfg.Shipping, cfg.Store.HomeCity, m, logg)

	return NewRouter(
		cfg,
		logg,
		m,
		reg,
		nil,
		redis,
		manager,
		catalogSvc,
		auth.NewService(nil, logg),
		resolver,
		address.NewService(nil, nil, resolver, logg),
		checkout.NewOrchestrator(nil, cfg.Store),
		confirmation.NewVerifier(nil),
	)
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Header().Get(middleware.SessionTokenHeader) != "" {
			t.Fatalf("%s: health must not open a session", path)
		}
	}
}

func TestSessionTokenCarriesCartAcrossRequests(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/add-ons", strings.NewReader(`{"donation_checked":true}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	token := rec.Header().Get(middleware.SessionTokenHeader)
	if token == "" {
		t.Fatal("expected a minted session token")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(middleware.SessionTokenHeader, token)
	router.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `"donation_checked":true`) {
		t.Fatalf("expected the flag to survive, got %s", rec.Body.String())
	}
	if rec.Header().Get(middleware.SessionTokenHeader) != token {
		t.Fatal("a valid token must be kept")
	}
}

func TestCheckoutRequiresLogin(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	router := newTestRouter(t)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"fan@chronus.club","senha":"segredo"}`))
		req.RemoteAddr = "10.0.0.1:5555"
		router.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the third attempt, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "storefront_http_request_duration_seconds") {
		t.Fatalf("expected request histogram in %s", body)
	}
}
