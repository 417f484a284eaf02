package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/adminauth/internal/logx"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds request rate per client IP. A zero
// RequestsPerWindow disables throttling.
type ThrottleConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// DefaultAuthThrottle applies to the unauthenticated /auth endpoints.
var DefaultAuthThrottle = ThrottleConfig{
	RequestsPerWindow: 30,
	Window:            time.Minute,
	Burst:             10,
}

type throttle struct {
	cfg      ThrottleConfig
	limit    rate.Limit
	key      func(*http.Request) string
	now      func() time.Time
	limiters sync.Map // map[string]*rate.Limiter

	mu          sync.Mutex
	lastCleanup time.Time
}

func newThrottle(cfg ThrottleConfig, key func(*http.Request) string) *throttle {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}
	return &throttle{
		cfg:         cfg,
		limit:       rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		key:         key,
		now:         time.Now,
		lastCleanup: time.Now(),
	}
}

func (t *throttle) limiter(key string) *rate.Limiter {
	if l, ok := t.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	actual, _ := t.limiters.LoadOrStore(key, rate.NewLimiter(t.limit, t.cfg.Burst))
	t.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters (full buckets) at most every 5 minutes.
func (t *throttle) maybeCleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastCleanup) < 5*time.Minute {
		return
	}
	t.lastCleanup = now

	t.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(t.cfg.Burst) {
			t.limiters.Delete(key)
		}
		return true
	})
}

func (t *throttle) middleware(next http.Handler) http.Handler {
	if t.cfg.RequestsPerWindow <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := t.key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		l := t.limiter(key)
		now := t.now()
		if l.AllowN(now, 1) {
			next.ServeHTTP(w, r)
			return
		}

		res := l.ReserveN(now, 1)
		delay := res.DelayFrom(now)
		res.CancelAt(now)
		retryAfter := max(int(delay.Seconds()), 1)

		logx.FromContext(r.Context()).Warn("http throttle exceeded",
			"key", key,
			"path", r.URL.Path,
			"retry_after", retryAfter,
		)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
	})
}
