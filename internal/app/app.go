// Package app wires configuration, storage, domain services, and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/domain-escrow/internal/clock"
	"github.com/xenking/domain-escrow/internal/domain/order"
	"github.com/xenking/domain-escrow/internal/domain/payment"
	"github.com/xenking/domain-escrow/internal/handler"
	"github.com/xenking/domain-escrow/internal/notify"
	"github.com/xenking/domain-escrow/internal/storage/postgres"
	"github.com/xenking/domain-escrow/internal/sweeper"
	"github.com/xenking/domain-escrow/pkg/health"
	"github.com/xenking/domain-escrow/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the lifecycle
// sweeper, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	feeRate, err := cfg.ParsedFeeRate()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	walletLedger := postgres.NewWalletLedger(pool)
	listingRepo := postgres.NewListingRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services. The sandbox gateway stands in for a real payment
	// processor; swap here once one is integrated.
	gateway := payment.NewSandbox()
	orderService := order.NewService(
		orderRepo,
		gateway,
		walletLedger,
		notify.NewLogSink(lg.Named("notify")),
		clock.NewSystem(),
		order.Config{
			FeeRate:         feeRate,
			SettlementDays:  cfg.SettlementDays,
			ExternalTimeout: cfg.ExternalTimeout,
		},
	)

	// Background sweeper for code expiry and due settlements.
	sw := sweeper.New(orderService, cfg.SweepInterval, m.TracerProvider())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("Sweeper stopped", zap.Error(err))
		}
	}()

	// HTTP handlers. API routes sit behind API key authentication; health
	// probes do not.
	h := handler.NewHandler(orderService, listingRepo, walletLedger)
	authn := handler.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	apiMux := http.NewServeMux()
	h.Routes(apiMux)

	instrument, err := httpmiddleware.Instrument("escrow-api", m.MeterProvider().Meter("escrow-api"))
	if err != nil {
		return errors.Wrap(err, "create instrumentation")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", otelhttp.NewHandler(
		authn.Middleware(apiMux),
		"escrow-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			instrument,
			httpmiddleware.AccessLog(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	<-sweepDone
	return nil
}
