// Package app assembles the valuation server from configuration: session
// store, result cache, metrics, tracing, the JSON API and the web pages.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/config"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/database/redis"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/prometheus"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/tracing"
	apihttp "github.com/JohanRGustafsson/valuation-model/internal/interfaces/http"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/http/handlers"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/http/middleware"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/web"
)

// App is a fully wired server. Build it with New, start it with Run and
// release it with Close.
type App struct {
	cfg        *config.Config
	configPath string
	logger     logging.Logger

	settings *appvaluation.SettingsHolder
	service  appvaluation.Service
	memStore *session.MemoryStore
	redis    *redis.Client
	tracer   *tracing.Provider
	limiter  *middleware.TokenBucketLimiter
	metrics  *prometheus.AppMetrics

	server *apihttp.Server
}

// Option customizes New.
type Option func(*App)

// WithConfigPath enables hot reload of the valuation section from path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// New builds every component cfg asks for. On error, whatever was
// already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, version string, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	settings, err := cfg.Valuation.Settings()
	if err != nil {
		return nil, fmt.Errorf("app: valuation settings: %w", err)
	}
	if a.settings, err = appvaluation.NewSettingsHolder(settings); err != nil {
		return nil, fmt.Errorf("app: valuation settings: %w", err)
	}

	var collector prometheus.MetricsCollector
	if cfg.Metrics.Enabled {
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
			EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
		a.metrics = prometheus.NewAppMetrics(collector)
	}

	if a.tracer, err = tracing.New(ctx, cfg.Tracing, logger); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store, err := a.buildStore()
	if err != nil {
		return nil, err
	}

	svcOpts := []appvaluation.Option{
		appvaluation.WithTracer(a.tracer.Tracer()),
	}
	if a.metrics != nil {
		svcOpts = append(svcOpts, appvaluation.WithMetrics(a.metrics))
	}
	if cfg.Cache.Enabled {
		if a.redis == nil {
			if a.redis, err = redis.NewClient(&cfg.Redis, logger); err != nil {
				return nil, fmt.Errorf("app: result cache: %w", err)
			}
		}
		cache := redis.NewRedisCache(a.redis, logger, redis.WithPrefix(cfg.Redis.KeyPrefix), redis.WithJitter(0.1))
		svcOpts = append(svcOpts, appvaluation.WithCache(cache, cfg.Cache.TTL))
	}
	a.service = appvaluation.NewService(store, a.settings, logger, svcOpts...)

	handler, err := a.buildRouter(version, store, collector)
	if err != nil {
		return nil, err
	}
	a.server = apihttp.NewServer(cfg.Server, handler, logger)
	return a, nil
}

func (a *App) buildStore() (session.Store, error) {
	cfg := a.cfg.Session
	switch cfg.Store {
	case config.SessionStoreRedis:
		client, err := redis.NewClient(&a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("app: session store: %w", err)
		}
		a.redis = client
		cache := redis.NewRedisCache(client, a.logger, redis.WithPrefix(a.cfg.Redis.KeyPrefix))
		return session.NewRedisStore(cache, cfg.TTL, a.logger), nil
	default:
		var opts []session.MemoryOption
		if a.metrics != nil {
			gauge := a.metrics.ActiveSessions.WithLabelValues()
			opts = append(opts, session.WithSweepHook(func(live int) { gauge.Set(float64(live)) }))
		}
		a.memStore = session.NewMemoryStore(cfg.TTL, a.logger, opts...)
		return a.memStore, nil
	}
}

func (a *App) buildRouter(version string, store session.Store, collector prometheus.MetricsCollector) (http.Handler, error) {
	srv := a.cfg.Server

	pages, err := web.NewHandler(a.service, a.logger, web.Config{
		CookieName:   a.cfg.Session.CookieName,
		CookieSecure: a.cfg.Session.CookieSecure,
		CookieTTL:    a.cfg.Session.TTL,
		MaxBodyBytes: srv.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("app: web: %w", err)
	}

	rc := apihttp.RouterConfig{
		ValuationHandler: handlers.NewValuationHandler(a.service, a.logger, srv.MaxBodyBytes),
		SessionHandler:   handlers.NewSessionHandler(a.service, a.logger, srv.MaxBodyBytes),
		HealthHandler: handlers.NewHealthHandler(version, handlers.CheckerFunc{
			CheckName: "session_store",
			Fn:        store.Ping,
		}),
		Web:         pages.Routes(),
		Logging:     middleware.NewLoggingMiddleware(a.logger, middleware.DefaultLoggingConfig()),
		Metrics:     a.metrics,
		MetricsPath: a.cfg.Metrics.Path,
		Logger:      a.logger,
	}
	if collector != nil {
		rc.MetricsCollector = collector
	}
	if len(srv.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = srv.CORSOrigins
		rc.CORS = middleware.NewCORSMiddleware(cors)
	}
	if keys := middleware.NewStaticKeys(srv.APIKeys); keys.Len() > 0 {
		rc.Auth = middleware.NewAuthMiddleware(keys, middleware.AuthConfig{
			SkipPaths: []string{"/api/v1/defaults"},
		}, a.logger)
	}
	if srv.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = srv.RateLimit.RequestsPerSecond
		rl.BurstSize = srv.RateLimit.Burst
		rl.KeyFunc = middleware.APIKeyKeyFunc
		rl.SkipPaths = append(rl.SkipPaths, a.cfg.Metrics.Path, "/static")
		a.limiter = middleware.NewTokenBucketLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.CleanupInterval)
		rc.RateLimit = middleware.RateLimit(a.limiter, rl)
	}
	return apihttp.NewRouter(rc), nil
}

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Service is the valuation service behind the handlers.
func (a *App) Service() appvaluation.Service { return a.service }

// Settings holds the engine constants that config reloads replace.
func (a *App) Settings() *appvaluation.SettingsHolder { return a.settings }

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Serve(ln) })
	g.Go(func() error {
		<-ctx.Done()
		return a.server.Shutdown(context.Background())
	})
	if a.memStore != nil {
		g.Go(func() error {
			a.memStore.Run(ctx, a.cfg.Session.CleanupInterval)
			return nil
		})
	}
	if a.configPath != "" {
		g.Go(func() error {
			if err := config.Watch(ctx, a.configPath, a.logger, a.applyConfig); err != nil {
				a.logger.Warn("config hot reload disabled", logging.Err(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// applyConfig swaps in the valuation section of a reloaded config. Other
// sections need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	settings, err := cfg.Valuation.Settings()
	if err == nil {
		err = a.settings.Store(settings)
	}
	if a.metrics != nil {
		prometheus.RecordConfigReload(a.metrics, err)
	}
	if err != nil {
		a.logger.Warn("valuation settings rejected", logging.Err(err))
		return
	}
	a.logger.Info("valuation settings reloaded",
		logging.Int("entry_ranks", len(settings.EntrySchedule)),
		logging.Float64("elasticity", settings.Elasticity))
}

// Close releases the tracer, limiter and Redis connection.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
