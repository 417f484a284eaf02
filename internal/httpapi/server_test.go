package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/captcha"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	cred  adminauth.UserCredential
	roles []string
	perms []string
}

type directory struct {
	mu       sync.Mutex
	accounts map[string]*account
}

func (d *directory) FindUserByUsername(_ context.Context, username string) (adminauth.UserCredential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.accounts {
		if a.cred.Username == username {
			return a.cred, nil
		}
	}
	return adminauth.UserCredential{}, adminauth.ErrUserNotFound
}

func (d *directory) ResolveRoles(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accounts[userID]; ok {
		return a.roles, nil
	}
	return nil, nil
}

func (d *directory) ResolvePermissions(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accounts[userID]; ok {
		return a.perms, nil
	}
	return nil, nil
}

type fixedPuzzle struct{}

func (fixedPuzzle) Generate() (captcha.Puzzle, error) {
	return captcha.Puzzle{Image: "data:image/png;base64,AA==", Answer: "42"}, nil
}

type harness struct {
	server *httptest.Server
	engine *adminauth.Engine
	mr     *miniredis.Miniredis
}

func newHarness(t *testing.T, mutate func(*adminauth.Config), apiCfg Config) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := adminauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Captcha.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	dir := &directory{accounts: map[string]*account{}}
	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(dir).
		WithRoleResolver(dir).
		WithCaptchaGenerator(fixedPuzzle{}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	add := func(id, name, pw string, roles []string, perms ...string) {
		hash, err := engine.HashPassword(pw, "salt-"+id)
		require.NoError(t, err)
		dir.accounts[id] = &account{
			cred: adminauth.UserCredential{
				UserID: id, Username: name, PasswordHash: hash, Salt: "salt-" + id, Status: adminauth.StatusEnabled,
			},
			roles: roles,
			perms: perms,
		}
	}
	add("1", "admin", "admin-pw", []string{"admin"}, "*:*:*")
	add("2", "viewer", "viewer-pw", []string{"viewer"}, "system:user:list")

	if apiCfg.Logger == nil {
		apiCfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := httptest.NewServer(New(engine, apiCfg).Handler())
	t.Cleanup(srv.Close)

	return &harness{server: srv, engine: engine, mr: mr}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp, out
}

func (h *harness) login(t *testing.T, username, password string) (string, string) {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login body: %v", body)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func TestLoginMeLogout(t *testing.T) {
	h := newHarness(t, nil, Config{})

	access, _ := h.login(t, "viewer", "viewer-pw")

	resp, body := h.do(t, http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", body["userId"])
	assert.Equal(t, "viewer", body["username"])
	assert.Equal(t, []any{"system:user:list"}, body["permissions"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = h.do(t, http.MethodPost, "/auth/logout", access, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_revoked", body["code"])
}

func TestLoginRejections(t *testing.T) {
	h := newHarness(t, nil, Config{})

	resp, body := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "viewer", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["code"])

	resp, body = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "ghost", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["code"])

	resp, body = h.do(t, http.MethodPost, "/auth/login", "", map[string]any{"username": "viewer", "extra": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", body["code"])
}

func TestLoginLockoutSetsRetryAfter(t *testing.T) {
	h := newHarness(t, func(c *adminauth.Config) { c.Security.MaxLoginAttempts = 2 }, Config{})

	for i := 0; i < 2; i++ {
		resp, _ := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "viewer", "password": "bad"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "viewer", "password": "viewer-pw"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["code"])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestCaptchaEndpoint(t *testing.T) {
	h := newHarness(t, nil, Config{})
	resp, body := h.do(t, http.MethodGet, "/auth/captcha", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["enabled"])

	h = newHarness(t, func(c *adminauth.Config) { c.Captcha.Enabled = true }, Config{})
	resp, body = h.do(t, http.MethodGet, "/auth/captcha", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["enabled"])
	id, _ := body["challengeId"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "data:image/png;base64,AA==", body["puzzle"])

	resp, body = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "viewer", "password": "viewer-pw", "captchaId": id, "captchaAnswer": "41",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "captcha_mismatch", body["code"])

	_, body = h.do(t, http.MethodGet, "/auth/captcha", "", nil)
	resp, _ = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "viewer", "password": "viewer-pw", "captchaId": body["challengeId"].(string), "captchaAnswer": "42",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshEndpoint(t *testing.T) {
	h := newHarness(t, nil, Config{})
	_, refresh := h.login(t, "viewer", "viewer-pw")

	resp, body := h.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, refresh, body["refreshToken"])

	resp, body = h.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "refresh_token_not_found", body["code"])

	resp, _ = h.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOnlineListGateAndKick(t *testing.T) {
	h := newHarness(t, nil, Config{})
	adminAccess, _ := h.login(t, "admin", "admin-pw")
	viewerAccess, _ := h.login(t, "viewer", "viewer-pw")

	resp, body := h.do(t, http.MethodGet, "/online/list?page=1&pageSize=10", adminAccess, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])

	resp, body = h.do(t, http.MethodGet, "/online/list", viewerAccess, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", body["code"])

	resp, body = h.do(t, http.MethodGet, "/online/list?userName=view", adminAccess, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	viewerToken := rows[0].(map[string]any)["tokenId"].(string)

	resp, body = h.do(t, http.MethodPost, "/online/kick", viewerAccess, map[string]string{"tokenId": viewerToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", body["code"])

	resp, _ = h.do(t, http.MethodPost, "/online/kick", adminAccess, map[string]string{"tokenId": viewerToken})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/auth/me", viewerAccess, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForceLogoutAndInvalidate(t *testing.T) {
	h := newHarness(t, nil, Config{})
	adminAccess, _ := h.login(t, "admin", "admin-pw")
	viewerAccess, viewerRefresh := h.login(t, "viewer", "viewer-pw")

	resp, body := h.do(t, http.MethodPost, "/admin/users/2/force-logout", adminAccess, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["retired"])

	resp, _ = h.do(t, http.MethodGet, "/auth/me", viewerAccess, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": viewerRefresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/admin/permissions/invalidate", adminAccess, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "all", body["scope"])

	resp, body = h.do(t, http.MethodPost, "/admin/permissions/invalidate", adminAccess, map[string]any{"userIds": []string{"2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "users", body["scope"])
}

func TestHealthz(t *testing.T) {
	var fail atomic.Bool
	h := newHarness(t, nil, Config{Ready: func(context.Context) error {
		if fail.Load() {
			return errors.New("db down")
		}
		return nil
	}})

	resp, body := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	fail.Store(true)
	resp, body = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "dependency_unavailable", body["code"])

	fail.Store(false)
	h.mr.Close()
	resp, _ = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsMounted(t *testing.T) {
	h := newHarness(t, nil, Config{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "adminauth_login_success_total 0\n")
	})})

	resp, err := h.server.Client().Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(raw), "adminauth_login_success_total"))
}

func TestAuthThrottle(t *testing.T) {
	h := newHarness(t, nil, Config{AuthThrottle: ThrottleConfig{RequestsPerWindow: 2, Window: time.Hour, Burst: 2}})

	for i := 0; i < 2; i++ {
		resp, _ := h.do(t, http.MethodGet, "/auth/captcha", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := h.do(t, http.MethodGet, "/auth/captcha", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["code"])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Only the /auth endpoints are throttled.
	resp, _ = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
