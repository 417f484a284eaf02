package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type staticDirectory struct {
	cred  adminauth.UserCredential
	perms []string
}

func (d *staticDirectory) FindUserByUsername(_ context.Context, username string) (adminauth.UserCredential, error) {
	if username != d.cred.Username {
		return adminauth.UserCredential{}, adminauth.ErrUserNotFound
	}
	return d.cred, nil
}

func (d *staticDirectory) ResolveRoles(context.Context, string) ([]string, error) {
	return []string{"operator"}, nil
}

func (d *staticDirectory) ResolvePermissions(context.Context, string) ([]string, error) {
	return d.perms, nil
}

func newEngine(t *testing.T) (*adminauth.Engine, string) {
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

	dir := &staticDirectory{perms: []string{"system:user:list"}}
	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(dir).
		WithRoleResolver(dir).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	hash, err := engine.HashPassword("op-pw", "salt")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	dir.cred = adminauth.UserCredential{
		UserID:       "7",
		Username:     "op",
		PasswordHash: hash,
		Salt:         "salt",
		Status:       adminauth.StatusEnabled,
	}

	pair, err := engine.Login(context.Background(), adminauth.LoginRequest{Username: "op", Password: "op-pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return engine, pair.AccessToken
}

func serve(h http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardStatuses(t *testing.T) {
	engine, token := newEngine(t)

	var seen *adminauth.AuthResult
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		handler http.Handler
		auth    string
		status  int
		code    string
	}{
		{"missing header", RequireAuth(engine)(ok), "", http.StatusUnauthorized, "token_invalid"},
		{"wrong scheme", RequireAuth(engine)(ok), "Basic abc", http.StatusUnauthorized, "token_invalid"},
		{"garbage token", RequireAuth(engine)(ok), "Bearer nope", http.StatusUnauthorized, "token_invalid"},
		{"authenticated", RequireAuth(engine)(ok), "Bearer " + token, http.StatusNoContent, ""},
		{"lowercase scheme", RequireAuth(engine)(ok), "bearer " + token, http.StatusNoContent, ""},
		{"permission granted", RequirePermission(engine, "system:user:list")(ok), "Bearer " + token, http.StatusNoContent, ""},
		{"permission denied", RequirePermission(engine, "system:role:edit")(ok), "Bearer " + token, http.StatusForbidden, "permission_denied"},
		{"nil engine", RequireAuth(nil)(ok), "Bearer " + token, http.StatusServiceUnavailable, "engine_not_ready"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			rec := serve(tc.handler, tc.auth)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if tc.code == "" {
				if seen == nil || seen.UserID != "7" {
					t.Fatalf("expected auth result on context, got %+v", seen)
				}
				return
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, body.Code)
			}
			if seen != nil {
				t.Fatal("handler must not run on rejection")
			}
		})
	}
}

func TestWriteErrorSetsChallengeHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, adminauth.ErrTokenExpired)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}

	rec = httptest.NewRecorder()
	WriteError(rec, adminauth.ErrLoginRateLimited)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := ClientIP(req, false); got != "192.0.2.10" {
		t.Fatalf("untrusted: expected remote addr, got %q", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.7" {
		t.Fatalf("trusted: expected first forwarded hop, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	if got := ClientIP(req, true); got != "192.0.2.10" {
		t.Fatalf("bad forwarded value: expected remote addr, got %q", got)
	}
}
