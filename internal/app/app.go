// Package app wires configuration, storage, domain services and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/quickcart/internal/domain/auth"
	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/catalog"
	"github.com/xenking/quickcart/internal/domain/coupon"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/stats"
	"github.com/xenking/quickcart/internal/handler"
	"github.com/xenking/quickcart/internal/store"
	"github.com/xenking/quickcart/internal/store/filestore"
	"github.com/xenking/quickcart/internal/store/postgres"
	"github.com/xenking/quickcart/internal/store/redislock"
	"github.com/xenking/quickcart/pkg/health"
	"github.com/xenking/quickcart/pkg/httpmiddleware"
)

// Telemetry provides the tracer and meter providers. *app.Telemetry from
// go-faster/sdk satisfies it.
type Telemetry = httpmiddleware.Telemetry

var _ Telemetry = (*app.Telemetry)(nil)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()

	backend, closeBackend, err := openBackend(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer closeBackend()

	locker, closeLocker, err := openLocker(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer closeLocker()

	docs := store.NewDocuments(backend, locker, store.Options{MaxAttempts: cfg.Store.MaxRetries})

	healthSvc.AddReadinessCheck("document", 5*time.Second, health.PingCheck(docs))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	services, err := newServices(cfg, m, docs)
	if err != nil {
		return err
	}

	router := handler.NewHandler(services).Router()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.TokenHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.TokenHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.HeaderOrIP(handler.TokenHeader),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("quickcart-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer healthSvc.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// openBackend selects PostgreSQL when a database URL is configured and the
// JSON file otherwise.
func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (store.Backend, func(), error) {
	if cfg.DatabaseURL == "" {
		lg.Info("Using file store", zap.String("path", cfg.DataFile))
		return filestore.New(cfg.DataFile), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	lg.Info("Using postgres store", zap.String("document_id", cfg.Store.DocumentID))
	return postgres.New(pool, cfg.Store.DocumentID), pool.Close, nil
}

// openLocker selects the Redis lock when a Redis URL is configured. Without
// one, writers are serialized within this process only.
func openLocker(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (store.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return store.NewLocalLocker(), func() {}, nil
	}

	client, err := redislock.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	h.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	lg.Info("Using redis document lock")
	return redislock.New(client, redislock.Options{}), func() {
		if err := client.Close(); err != nil {
			lg.Warn("Close redis client", zap.Error(err))
		}
	}, nil
}

func newServices(cfg *Config, m Telemetry, docs *store.Documents) (handler.Services, error) {
	authSvc, err := auth.NewService(auth.Config{
		Secret:   []byte(cfg.Auth.Secret),
		TokenTTL: cfg.Auth.TokenTTL,
	}, docs)
	if err != nil {
		return handler.Services{}, errors.Wrap(err, "create auth service")
	}

	orders, err := order.NewService(order.ServiceConfig{
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	}, docs)
	if err != nil {
		return handler.Services{}, errors.Wrap(err, "create order service")
	}

	issuer, err := coupon.NewIssuer(coupon.IssuerConfig{
		Validity:       cfg.Coupon.Validity,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	}, docs)
	if err != nil {
		return handler.Services{}, errors.Wrap(err, "create coupon issuer")
	}

	return handler.Services{
		Auth:    authSvc,
		Catalog: catalog.NewService(docs),
		Cart:    cart.NewService(docs),
		Orders:  orders,
		Coupons: issuer,
		Stats:   stats.NewService(docs),
	}, nil
}
