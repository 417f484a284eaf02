// Package httpapi is the HTTP surface of the adminauth service: captcha,
// login, refresh, logout, the online-session monitor and operator actions.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logx"
	"github.com/MrEthical07/adminauth/middleware"
)

type Config struct {
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// AuthThrottle limits /auth/captcha, /auth/login and /auth/refresh per IP.
	AuthThrottle ThrottleConfig
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// Ready reports extra dependencies for /healthz, e.g. the identity
	// database.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

type API struct {
	engine *adminauth.Engine
	cfg    Config
	logger *slog.Logger
	perms  adminauth.PermissionConfig
}

func New(engine *adminauth.Engine, cfg Config) *API {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		engine: engine,
		cfg:    cfg,
		logger: logger,
		perms:  engine.Config().Permission,
	}
}

// Handler returns the routed, logged and throttled handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(a.engine)
	needs := func(perm string, h http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(a.engine, perm)(h)
	}
	limited := newThrottle(a.cfg.AuthThrottle, func(r *http.Request) string {
		return middleware.ClientIP(r, a.cfg.TrustProxy)
	}).middleware

	mux.Handle("GET /auth/captcha", limited(http.HandlerFunc(a.captcha)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(a.login)))
	mux.Handle("POST /auth/refresh", limited(http.HandlerFunc(a.refresh)))
	mux.Handle("POST /auth/logout", authed(http.HandlerFunc(a.logout)))
	mux.Handle("GET /auth/me", authed(http.HandlerFunc(a.me)))

	mux.Handle("GET /online/list", needs(a.perms.ListAllPermission, a.listOnline))
	mux.Handle("POST /online/kick", needs(a.perms.KickPermission, a.kick))
	mux.Handle("POST /admin/users/{userId}/force-logout", needs(a.perms.KickPermission, a.forceLogout))
	mux.Handle("POST /admin/permissions/invalidate", needs(a.perms.InvalidatePermission, a.invalidatePermissions))

	mux.HandleFunc("GET /healthz", a.healthz)
	if a.cfg.Metrics != nil {
		mux.Handle("GET /metrics", a.cfg.Metrics)
	}

	var h http.Handler = mux
	h = middleware.ClientInfo(a.cfg.TrustProxy)(h)
	h = logx.HTTPMiddleware(a.logger)(h)
	return h
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	latency, err := a.engine.Ping(ctx)
	if err != nil {
		logx.FromContext(ctx).Error("healthz: session cache", "error", err)
		writeError(w, http.StatusServiceUnavailable, "redis_unavailable", "session cache unreachable")
		return
	}
	if a.cfg.Ready != nil {
		if err := a.cfg.Ready(ctx); err != nil {
			logx.FromContext(ctx).Error("healthz: dependency", "error", err)
			writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", "dependency unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"redisLatencyMs": latency.Milliseconds(),
	})
}
