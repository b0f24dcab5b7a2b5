package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chronus-storefront/api/routes"
	"github.com/angelmondragon/chronus-storefront/internal/address"
	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/checkout"
	"github.com/angelmondragon/chronus-storefront/internal/confirmation"
	"github.com/angelmondragon/chronus-storefront/internal/orders"
	product "github.com/angelmondragon/chronus-storefront/internal/products"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	"github.com/angelmondragon/chronus-storefront/internal/shipping"
	"github.com/angelmondragon/chronus-storefront/pkg/catalog"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	"github.com/angelmondragon/chronus-storefront/pkg/db"
	"github.com/angelmondragon/chronus-storefront/pkg/freight"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
	"github.com/angelmondragon/chronus-storefront/pkg/instance"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	"github.com/angelmondragon/chronus-storefront/pkg/migrate"
	"github.com/angelmondragon/chronus-storefront/pkg/payments"
	"github.com/angelmondragon/chronus-storefront/pkg/redis"
	"github.com/angelmondragon/chronus-storefront/pkg/viacep"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefront(registry)

	httpClient := &http.Client{Timeout: cfg.Services.HTTPTimeout}
	catalogClient, err := catalog.NewClient(cfg.Services.Catalog(), catalog.WithHTTPClient(httpClient))
	requireClient(ctx, logg, "catalog", err)
	identityClient, err := identity.NewClient(cfg.Services.Identity(), identity.WithHTTPClient(httpClient))
	requireClient(ctx, logg, "identity", err)
	freightClient, err := freight.NewClient(cfg.Services.Shipping(), freight.WithHTTPClient(httpClient))
	requireClient(ctx, logg, "freight", err)
	paymentsClient, err := payments.NewClient(cfg.Services.Gateway(), payments.WithHTTPClient(httpClient))
	requireClient(ctx, logg, "payments", err)
	viacepClient := viacep.NewClient(viacep.WithBaseURL(cfg.Services.ViaCEPURL), viacep.WithHTTPClient(httpClient))

	ordersRepo := orders.NewRepository(dbClient.DB())

	catalogService := product.NewService(catalogClient,
		product.WithTTL(cfg.Catalog.CacheTTL),
		product.WithMetrics(storefrontMetrics),
		product.WithLogger(logg),
	)
	authService := auth.NewService(identityClient, logg)
	resolver := shipping.NewResolver(freightClient, cfg.Shipping, cfg.Store.HomeCity, storefrontMetrics, logg)
	addressService := address.NewService(viacepClient, identityClient, resolver, logg)
	orchestrator := checkout.NewOrchestrator(paymentsClient, cfg.Store,
		checkout.WithRecorder(ordersRepo),
		checkout.WithMetrics(storefrontMetrics),
		checkout.WithLogger(logg),
	)
	verifier := confirmation.NewVerifier(paymentsClient,
		confirmation.WithConfirmer(ordersRepo),
		confirmation.WithMetrics(storefrontMetrics),
		confirmation.WithPendingOrderTTL(cfg.Session.PendingOrderTTL),
		confirmation.WithLogger(logg),
	)

	sessions := session.NewManager(
		session.NewStore(redisClient, cfg.Session.TTL, logg),
		cfg.Session,
		session.WithRevalidator(authService),
		session.WithWarmer(catalogService),
		session.WithMetrics(storefrontMetrics),
		session.WithLogger(logg),
	)
	go sessions.Run(ctx)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting storefront api")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			storefrontMetrics,
			registry,
			dbClient,
			redisClient,
			sessions,
			catalogService,
			authService,
			resolver,
			addressService,
			orchestrator,
			verifier,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	closeErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if closeErr != nil {
		logg.Error(logCtx, "shutdown finished with errors", closeErr)
		exitCode = 1
	}
	logg.Info(logCtx, "storefront api stopped")
	os.Exit(exitCode)
}

func requireClient(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "client", name), "failed to build upstream client", err)
	os.Exit(1)
}
