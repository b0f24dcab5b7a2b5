package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chronus-storefront/api/controllers"
	"github.com/angelmondragon/chronus-storefront/api/middleware"
	"github.com/angelmondragon/chronus-storefront/internal/address"
	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/checkout"
	"github.com/angelmondragon/chronus-storefront/internal/confirmation"
	product "github.com/angelmondragon/chronus-storefront/internal/products"
	"github.com/angelmondragon/chronus-storefront/internal/shipping"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	"github.com/angelmondragon/chronus-storefront/pkg/db"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
)

// redisClient is the part of pkg/redis the router needs: health checks and
// login throttling counters.
type redisClient interface {
	Ping(context.Context) error
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	LoginAttemptsKey(scope string) string
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	m *metrics.Storefront,
	gatherer prometheus.Gatherer,
	dbP db.Pinger,
	redis redisClient,
	sessions middleware.SessionAcquirer,
	catalog product.Service,
	authService *auth.Service,
	resolver *shipping.Resolver,
	addressService address.Service,
	orchestrator *checkout.Orchestrator,
	verifier *confirmation.Verifier,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, m),
		middleware.CORS(cfg.App, cfg.Store),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.LoginLimit.Window,
		cfg.LoginLimit.IPLimit,
		cfg.LoginLimit.EmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redis, dbP))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWT, sessions, logg))

		r.Route("/auth", func(r chi.Router) {
			login := controllers.AuthLogin(authService, logg)
			if redis != nil {
				r.With(middleware.AuthRateLimit(loginPolicy, redis, logg)).Post("/login", login)
			} else {
				r.Post("/login", login)
			}
			r.Post("/logout", controllers.AuthLogout(authService, logg))
			r.Get("/me", controllers.AuthMe(authService, logg))
		})

		r.Get("/products", controllers.ProductsList(catalog, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(catalog, logg))
			r.Delete("/", controllers.CartClear(catalog, logg))
			r.Post("/items", controllers.CartAddItem(catalog, resolver, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateQuantity(catalog, resolver, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(catalog, resolver, logg))
			r.Put("/address", controllers.CartSetAddress(catalog, resolver, logg))
			r.Post("/address/lookup", controllers.AddressLookup(addressService, catalog, logg))
			r.Post("/address/profile", controllers.AddressProfile(addressService, catalog, logg))
			r.Put("/add-ons", controllers.CartSetAddOns(catalog, logg))
			r.Post("/shipping/quote", controllers.CartQuoteShipping(catalog, resolver, logg))
			r.Put("/shipping/selection", controllers.CartSelectShipping(catalog, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutSubmit(orchestrator, catalog, logg))
			r.Get("/pending", controllers.CheckoutPending(verifier, logg))
			r.Get("/sessions/{sessionId}", controllers.CheckoutVerify(verifier, logg))
			r.Get("/sessions/{sessionId}/order", controllers.CheckoutOrder(verifier, logg))
			r.Post("/sessions/{sessionId}/confirmation-email", controllers.CheckoutConfirmationEmail(verifier, logg))
		})
	})

	return r
}
