//go:build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// redisMode describes which Redis backend a suite runs against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the backends to test. miniredis is always available; a
// throwaway redis:7 container is started unless ADMINAUTH_SKIP_CONTAINERS is
// set; REDIS_ADDR adds an externally managed server.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			t.Helper()
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return rdb
		},
	}}

	if os.Getenv("ADMINAUTH_SKIP_CONTAINERS") == "" {
		modes = append(modes, redisMode{name: "container", setup: containerRedis})
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				pingOrSkip(t, rdb)
				rdb.FlushDB(context.Background())
				t.Cleanup(func() {
					rdb.FlushDB(context.Background())
					_ = rdb.Close()
				})
				return rdb
			},
		})
	}

	return modes
}

func containerRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("container endpoint: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	pingOrSkip(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func pingOrSkip(t *testing.T, rdb redis.UniversalClient) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("cannot reach redis: %v", err)
	}
}

// newEngine builds an engine over rdb with two accounts: "admin" holding
// every permission and "viewer" holding system:user:list.
func newEngine(t testing.TB, rdb redis.UniversalClient, mutate func(*adminauth.Config)) *adminauth.Engine {
	t.Helper()

	cfg := exampleConfig()
	cfg.Session.RedisPrefix = "it"
	if mutate != nil {
		mutate(&cfg)
	}

	dir := newDirectory()
	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(dir).
		WithRoleResolver(dir).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	add := func(id, name, pw string, roles []string, perms ...string) {
		hash, err := engine.HashPassword(pw, "salt-"+id)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		dir.add(adminauth.UserCredential{
			UserID:       id,
			Username:     name,
			PasswordHash: hash,
			Salt:         "salt-" + id,
			Status:       adminauth.StatusEnabled,
		}, roles, perms...)
	}
	add("1", "admin", "admin-password", []string{"admin"}, "*:*:*")
	add("2", "viewer", "viewer-password", []string{"viewer"}, "system:user:list")
	return engine
}

func mustLogin(t testing.TB, engine *adminauth.Engine, username, password string) *adminauth.TokenPair {
	t.Helper()
	ctx := adminauth.WithClientIP(context.Background(), "10.0.0.1")
	pair, err := engine.Login(ctx, adminauth.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return pair
}
