package test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/adminauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// directory is an in-memory identity store for examples and integration
// tests.
type directory struct {
	mu    sync.Mutex
	users map[string]adminauth.UserCredential
	roles map[string][]string
	perms map[string][]string
}

func newDirectory() *directory {
	return &directory{
		users: map[string]adminauth.UserCredential{},
		roles: map[string][]string{},
		perms: map[string][]string{},
	}
}

func (d *directory) add(cred adminauth.UserCredential, roles []string, perms ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[cred.Username] = cred
	d.roles[cred.UserID] = roles
	d.perms[cred.UserID] = perms
}

func (d *directory) FindUserByUsername(_ context.Context, username string) (adminauth.UserCredential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cred, ok := d.users[username]
	if !ok {
		return adminauth.UserCredential{}, adminauth.ErrUserNotFound
	}
	return cred, nil
}

func (d *directory) ResolveRoles(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roles[userID], nil
}

func (d *directory) ResolvePermissions(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perms[userID], nil
}

func exampleConfig() adminauth.Config {
	cfg := adminauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("example-secret-example-secret-0123")
	cfg.Captcha.Enabled = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

// Example wires an engine to Redis and an identity store, logs in and checks
// permissions.
func Example() {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	dir := newDirectory()
	engine, err := adminauth.New().
		WithConfig(exampleConfig()).
		WithRedis(rdb).
		WithUserProvider(dir).
		WithRoleResolver(dir).
		Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	hash, err := engine.HashPassword("correct-horse", "s1")
	if err != nil {
		panic(err)
	}
	dir.add(adminauth.UserCredential{
		UserID:       "1",
		Username:     "alice",
		PasswordHash: hash,
		Salt:         "s1",
		Status:       adminauth.StatusEnabled,
	}, []string{"admin"}, "system:user:list")

	pair, err := engine.Login(ctx, adminauth.LoginRequest{Username: "alice", Password: "correct-horse"})
	if err != nil {
		panic(err)
	}

	res, err := engine.Authorize(ctx, pair.AccessToken, "system:user:list")
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Username, res.Roles, res.Permissions)

	_, err = engine.Authorize(ctx, pair.AccessToken, "system:user:remove")
	fmt.Println(errors.Is(err, adminauth.ErrPermissionDenied))

	// Output:
	// alice [admin] [system:user:list]
	// true
}
