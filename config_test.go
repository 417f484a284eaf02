package adminauth

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = testSecret
	return cfg
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	hs := HighSecurityConfig()
	hs.JWT.SigningMethod = "hs256"
	hs.JWT.PrivateKey = testSecret
	if err := hs.Validate(); err != nil {
		t.Fatalf("high security config should validate: %v", err)
	}
}

func TestConfigValidateFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "jwt leeway valid",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:   "jwt leeway invalid",
			mutate: func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
		},
		{
			name:   "jwt audience blank invalid",
			mutate: func(c *Config) { c.JWT.Audience = "   " },
		},
		{
			name:   "jwt max future iat negative",
			mutate: func(c *Config) { c.JWT.MaxFutureIAT = -time.Second },
		},
		{
			name:   "refresh shorter than access",
			mutate: func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL - time.Second },
		},
		{
			name:   "unknown signing method",
			mutate: func(c *Config) { c.JWT.SigningMethod = "rs256" },
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PublicKey = nil
			},
		},
		{
			name:   "hs256 without secret",
			mutate: func(c *Config) { c.JWT.PrivateKey = nil },
		},
		{
			name:   "redis prefix empty",
			mutate: func(c *Config) { c.Session.RedisPrefix = " " },
		},
		{
			name:   "redis prefix with whitespace",
			mutate: func(c *Config) { c.Session.RedisPrefix = "a a" },
		},
		{
			name:   "refresh claim ttl too long",
			mutate: func(c *Config) { c.Session.RefreshClaimTTL = 2 * time.Minute },
		},
		{
			name:   "permission cache ttl zero",
			mutate: func(c *Config) { c.Permission.CacheTTL = 0 },
		},
		{
			name:   "kick permission empty",
			mutate: func(c *Config) { c.Permission.KickPermission = "" },
		},
		{
			name:   "captcha unknown kind",
			mutate: func(c *Config) { c.Captcha.Kind = "audio" },
		},
		{
			name: "captcha settings ignored when disabled",
			mutate: func(c *Config) {
				c.Captcha.Enabled = false
				c.Captcha.Kind = "audio"
				c.Captcha.TTL = 0
			},
			wantValid: true,
		},
		{
			name: "digit captcha requires length",
			mutate: func(c *Config) {
				c.Captcha.Kind = "digit"
				c.Captcha.Length = 0
			},
		},
		{
			name:   "argon2 memory too small",
			mutate: func(c *Config) { c.Password.Memory = 1024 },
		},
		{
			name:   "argon2 salt too short",
			mutate: func(c *Config) { c.Password.SaltLength = 8 },
		},
		{
			name:   "max login attempts zero",
			mutate: func(c *Config) { c.Security.MaxLoginAttempts = 0 },
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.PrivateKey = append([]byte(nil), testSecret...)

	out := cloneConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	if out.JWT.PrivateKey[0] == 'X' {
		t.Fatal("cloneConfig must not alias key material")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	dir := &fakeDirectory{users: map[string]*fakeUser{}}

	cfg := validConfig()
	cfg.JWT.AccessTTL = 0

	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(dir).
		WithRoleResolver(dir).
		Build()
	if err == nil {
		t.Fatal("expected Build to reject invalid config")
	}
}
