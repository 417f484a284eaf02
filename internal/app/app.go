package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/httpapi"
	"github.com/MrEthical07/adminauth/internal/identity/sqlite"
	otelexport "github.com/MrEthical07/adminauth/metrics/export/otel"
	promexport "github.com/MrEthical07/adminauth/metrics/export/prometheus"
)

// App owns every long-lived resource of the service.
type App struct {
	cfg    Config
	logger *slog.Logger

	mini   *miniredis.Miniredis
	redis  redis.UniversalClient
	store  *sqlite.Store
	engine *adminauth.Engine
	otel   *otelexport.OTelExporter
	server *http.Server

	closeOnce sync.Once
}

// New builds the service from cfg. On error every resource opened so far is
// released.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.initRedis(ctx); err != nil {
		return nil, err
	}
	if err := a.initStore(); err != nil {
		return nil, err
	}
	if err := a.initEngine(); err != nil {
		return nil, err
	}
	if err := a.initServer(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) initRedis(ctx context.Context) error {
	addr := a.cfg.Redis.Addr
	if a.cfg.Redis.Embedded {
		mini, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("embedded redis: %w", err)
		}
		a.mini = mini
		addr = mini.Addr()
		a.logger.Warn("using embedded redis; sessions are lost on restart")
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (a *App) initStore() error {
	store, err := sqlite.Open(a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open identity db: %w", err)
	}
	a.store = store
	if a.cfg.Database.Migrate {
		if err := store.ApplyMigrations(); err != nil {
			return fmt.Errorf("migrate identity db: %w", err)
		}
	}
	return nil
}

func (a *App) initEngine() error {
	ecfg := a.cfg.EngineConfig()
	priv, pub, ephemeral, err := loadKeys(a.cfg)
	if err != nil {
		return err
	}
	if ephemeral {
		a.logger.Warn("using ephemeral signing key; tokens do not survive a restart")
	}
	ecfg.JWT.PrivateKey = priv
	ecfg.JWT.PublicKey = pub

	for _, w := range ecfg.Lint() {
		a.logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	b := adminauth.New().
		WithConfig(ecfg).
		WithRedis(a.redis).
		WithUserProvider(a.store).
		WithRoleResolver(a.store).
		WithLoginLogger(a.store).
		WithLogger(a.logger)
	if len(a.cfg.Roles) > 0 {
		b = b.WithRoles(a.cfg.Roles)
	}
	if ecfg.Audit.Enabled {
		b = b.WithAuditSink(adminauth.NewSlogSink(a.logger.With("component", "audit")))
	}

	a.engine, err = b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if a.cfg.Metrics.OTel {
		a.otel, err = otelexport.NewOTelExporter(
			otel.Meter("github.com/MrEthical07/adminauth"),
			a.engine,
			otelexport.WithAttributes(attribute.String("env", a.cfg.Env)),
		)
		if err != nil {
			return fmt.Errorf("otel exporter: %w", err)
		}
	}
	return nil
}

func (a *App) initServer() error {
	api := httpapi.New(a.engine, httpapi.Config{
		TrustProxy:   a.cfg.Server.TrustProxy,
		AuthThrottle: a.cfg.Throttle(),
		Metrics:      a.metricsHandler(),
		Ready:        a.store.Ping,
		Logger:       a.logger,
	})
	a.server = &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	return nil
}

func (a *App) metricsHandler() http.Handler {
	if !a.cfg.Metrics.Prometheus {
		return nil
	}
	return promexport.NewPrometheusExporter(a.engine).Handler()
}

func (a *App) Engine() *adminauth.Engine { return a.engine }
func (a *App) Store() *sqlite.Store      { return a.store }

// Handler is the fully wired HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// for at most Server.ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- a.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the engine, exporters and connections. It is safe to call
// more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.otel != nil {
			if err := a.otel.Close(); err != nil {
				a.logger.Warn("otel exporter close", "error", err)
			}
		}
		if a.engine != nil {
			a.engine.Close()
		}
		if a.redis != nil {
			_ = a.redis.Close()
		}
		if a.mini != nil {
			a.mini.Close()
		}
		if a.store != nil {
			_ = a.store.Close()
		}
	})
}
