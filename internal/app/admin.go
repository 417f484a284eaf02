package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/adminauth/internal/identity/sqlite"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/session"
)

// Admin manages accounts and roles directly in the identity database. It
// backs the CLI commands. When the configured Redis is external, Admin also
// reaches the session cache so password resets and role edits take effect
// on live tokens at once.
type Admin struct {
	store    *sqlite.Store
	verifier *password.Verifier

	redis    redis.UniversalClient
	sessions *session.Store
}

// OpenAdmin opens the identity database from cfg and applies migrations.
func OpenAdmin(cfg Config) (*Admin, error) {
	pc := cfg.EngineConfig().Password
	hasher, err := password.NewArgon2(password.Config{
		Memory:           pc.Memory,
		Time:             pc.Time,
		Parallelism:      pc.Parallelism,
		SaltLength:       pc.SaltLength,
		KeyLength:        pc.KeyLength,
		MaxPasswordBytes: pc.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := password.NewVerifier(hasher)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open identity db: %w", err)
	}
	if err := store.ApplyMigrations(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate identity db: %w", err)
	}
	return &Admin{store: store, verifier: verifier}, nil
}

// ConnectSessions dials the session cache named by cfg. An embedded Redis
// lives inside the server process and cannot be reached, so it is a no-op
// and Admin stays offline.
func (a *Admin) ConnectSessions(ctx context.Context, cfg Config) error {
	if cfg.Redis.Embedded || a.sessions != nil {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping: %w", err)
	}
	a.redis = rdb
	a.sessions = session.NewStore(rdb, cfg.EngineConfig().Session.RedisPrefix)
	return nil
}

func (a *Admin) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.store.Close()
}

// Live reports whether Admin writes through to the session cache.
func (a *Admin) Live() bool { return a.sessions != nil }

func (a *Admin) Store() *sqlite.Store { return a.store }

// HashPassword hashes plain with a fresh per-user salt.
func (a *Admin) HashPassword(plain string) (hash, salt string, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	salt = hex.EncodeToString(raw)
	hash, err = a.verifier.HashSalted(plain, salt)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}

// CreateUser stores a new enabled account and grants roles to it.
func (a *Admin) CreateUser(ctx context.Context, username, plain string, roles ...string) (string, error) {
	hash, salt, err := a.HashPassword(plain)
	if err != nil {
		return "", err
	}
	id, err := a.store.CreateUser(ctx, sqlite.NewUser{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
	})
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if err := a.store.GrantRole(ctx, id, role); err != nil {
			return "", fmt.Errorf("grant %s: %w", role, err)
		}
	}
	return id, nil
}

// ResetPassword replaces the password of username and returns the password
// version new tokens will carry. When Admin is live, every token issued
// before the reset is revoked on return.
func (a *Admin) ResetPassword(ctx context.Context, username, plain string) (int64, error) {
	cred, err := a.store.FindUserByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	hash, salt, err := a.HashPassword(plain)
	if err != nil {
		return 0, err
	}
	version, err := a.store.SetPassword(ctx, cred.UserID, hash, salt)
	if err != nil {
		return 0, err
	}
	if a.sessions == nil {
		return version, nil
	}
	live, err := a.sessions.AdvancePasswordVersion(ctx, cred.UserID, version)
	if err != nil {
		return 0, fmt.Errorf("password stored, revoking sessions failed: %w", err)
	}
	return live, nil
}

// GrantRole grants role to username and drops the user's cached permission
// set when Admin is live.
func (a *Admin) GrantRole(ctx context.Context, username, role string) error {
	cred, err := a.store.FindUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := a.store.GrantRole(ctx, cred.UserID, role); err != nil {
		return err
	}
	if a.sessions == nil {
		return nil
	}
	return a.sessions.InvalidatePermissions(ctx, cred.UserID)
}

// CreateRole stores an enabled role with its permission set.
func (a *Admin) CreateRole(ctx context.Context, key, name string, perms ...string) (string, error) {
	if name == "" {
		name = key
	}
	return a.store.CreateRole(ctx, key, name, perms...)
}
