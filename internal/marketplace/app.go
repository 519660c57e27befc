package marketplace

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/handler"
	"github.com/xenking/marketplace/pkg/health"
	"github.com/xenking/marketplace/pkg/httpmiddleware"
)

// Run opens the document store and the optional Redis locker, serves the
// marketplace API on cfg.Addr and shuts down gracefully once ctx is done.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	store, err := OpenStore(ctx, lg, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			lg.Warn("Close store", zap.Error(err))
		}
	}()

	redisLocker, closeRedis, err := OpenLocker(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = closeRedis() }()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var locker cart.Locker
	if redisLocker != nil {
		lg.Info("Cart locking enabled", zap.String("redis", cfg.Redis.Addr))
		locker = redisLocker
		healthSvc.AddReadinessCheck("redis", time.Second, health.PingCheck(redisLocker))
	}
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.NewHandler(
		handler.HandlerConfig{
			StoreDriver:  cfg.Store.Driver,
			DatabaseName: cfg.Store.Database,
		},
		store,
		locker,
		order.WithTelemetry(m.MeterProvider(), m.TracerProvider()),
		order.WithConcurrency(cfg.Checkout.Concurrency),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           withMiddleware(ctx, mux, m, cfg),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	return serve(ctx, lg, server, healthSvc, cfg.Graceful)
}

// withMiddleware wraps mux with the middleware chain, outermost first.
func withMiddleware(ctx context.Context, mux *http.ServeMux, m *app.Telemetry, cfg *Config) http.Handler {
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	// Proxies were checked by Config.Validate.
	clientKey := httpmiddleware.ClientIP
	if proxies, err := httpmiddleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies); err == nil && len(proxies) > 0 {
		clientKey = httpmiddleware.ProxiedClientIP(proxies)
	}

	return httpmiddleware.Wrap(mux,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: clientKey,
			Skip:    httpmiddleware.SkipPaths("/livez", "/readyz"),
		}),
		httpmiddleware.Instrument("marketplace-api", routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
}

// serve runs server until ctx is done. Readiness is dropped first so load
// balancers stop routing, then in-flight requests get ShutdownTimeout to
// finish.
func serve(ctx context.Context, lg *zap.Logger, server *http.Server, hs *health.Health, cfg GracefulConfig) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer hs.Stop()

		hs.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Draining", zap.Duration("delay", cfg.ReadinessDelay))
			time.Sleep(cfg.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		lg.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
