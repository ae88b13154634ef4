package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prodishi/dishi-shop/internal/catalog"
	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/internal/handler"
	"github.com/prodishi/dishi-shop/internal/storage/memory"
	"github.com/prodishi/dishi-shop/internal/storage/postgres"
	"github.com/prodishi/dishi-shop/internal/webhook"
	"github.com/prodishi/dishi-shop/pkg/health"
	"github.com/prodishi/dishi-shop/pkg/httpmiddleware"
)

// stores bundles the checkout persistence backends.
type stores struct {
	sessions order.SessionStore
	journal  order.Journal
	tokens   func(ctx context.Context) ([]string, error)
	// pinger is nil for in-memory stores.
	pinger health.Pinger
	close  func()
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	if cfg.DatabaseURL == "" {
		lg.Warn("No database configured, using in-memory stores")
		j := memory.NewJournal()
		return &stores{
			sessions: memory.NewSessionStore(),
			journal:  j,
			tokens:   j.Tokens,
			close:    func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	orders := postgres.NewOrderRepository(pool)
	return &stores{
		sessions: postgres.NewSessionRepository(pool),
		journal:  orders,
		tokens:   orders.Tokens,
		pinger:   pool,
		close:    pool.Close,
	}, nil
}

func newSubmitter(cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (order.Submitter, error) {
	if cfg.DemoMode() {
		return webhook.Demo{}, nil
	}
	return webhook.New(cfg.Webhook.URL, webhook.Options{
		Timeout:        cfg.Webhook.Timeout,
		TracerProvider: tp,
		MeterProvider:  mp,
	})
}

// service is the assembled HTTP surface.
type service struct {
	handler http.Handler
	health  *health.Health
}

func newService(
	ctx context.Context,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	st *stores,
) (*service, error) {
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	submitter, err := newSubmitter(cfg, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create webhook client")
	}

	// Domain services.
	var opts []order.Option
	if cfg.DemoMode() {
		opts = append(opts, order.WithDemoMode())
	}
	orderService := order.NewService(st.sessions, st.journal, submitter, opts...)

	completed, err := st.tokens(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load completed tokens")
	}
	orderService.Preload(completed)
	lg.Info("Loaded completed orders", zap.Int("count", len(completed)))

	carts := cart.NewAggregator(cat.Calculator())

	// Health check service.
	healthSvc := health.New()
	if st.pinger != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(st.pinger))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	h := handler.NewHandler(cat.Products, cat.Coupons, carts, orderService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	return &service{
		health: healthSvc,
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.Session(httpmiddleware.SessionConfig{
				MaxAge: cfg.Session.MaxAge,
				Secure: cfg.Session.Secure,
			}),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("shop-api", tp, mp),
			httpmiddleware.LogRequests(),
		),
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("demo", cfg.DemoMode()),
	)

	st, err := openStores(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := newService(ctx, zctx.From(ctx), m.TracerProvider(), m.MeterProvider(), cfg, st)
	if err != nil {
		return err
	}
	healthSvc := svc.health
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Webhook.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
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
