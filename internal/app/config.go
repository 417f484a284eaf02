// Package app wires the adminauth service together: configuration loading,
// the session cache, the identity database, the auth engine, metrics
// exporters and the HTTP server.
package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/httpapi"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ADMINAUTH_"

// Config is the on-disk service configuration. Durations use Go syntax
// such as "15m" or "168h".
type Config struct {
	// Env is "dev" or "prod". Dev allows an embedded Redis and ephemeral
	// signing keys.
	Env string `yaml:"env"`

	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Audit    AuditConfig    `yaml:"audit"`
	Password PasswordConfig `yaml:"password"`

	// Roles is an optional static role table merged with database roles.
	Roles map[string][]string `yaml:"roles,omitempty"`
}

type ServerConfig struct {
	Addr            string         `yaml:"addr"`
	TrustProxy      bool           `yaml:"trust_proxy"`
	ReadTimeout     time.Duration  `yaml:"read_timeout"`
	WriteTimeout    time.Duration  `yaml:"write_timeout"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Throttle        ThrottleConfig `yaml:"throttle"`
}

type ThrottleConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	// Embedded starts an in-process Redis. Dev only.
	Embedded bool `yaml:"embedded"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
	// Migrate applies pending schema migrations on startup.
	Migrate bool `yaml:"migrate"`
}

type AuthConfig struct {
	SigningMethod  string `yaml:"signing_method"`
	PrivateKeyFile string `yaml:"private_key_file,omitempty"`
	PublicKeyFile  string `yaml:"public_key_file,omitempty"`
	Secret         string `yaml:"secret,omitempty"`
	KeyID          string `yaml:"key_id,omitempty"`
	Issuer         string `yaml:"issuer"`
	Audience       string `yaml:"audience,omitempty"`

	AccessTTL       time.Duration `yaml:"access_ttl"`
	RefreshTTL      time.Duration `yaml:"refresh_ttl"`
	PermissionTTL   time.Duration `yaml:"permission_ttl"`
	RedisPrefix     string        `yaml:"redis_prefix"`
	SingleDevice    bool          `yaml:"single_device"`
	MaxLoginAttempt int           `yaml:"max_login_attempts"`
	LockoutDuration time.Duration `yaml:"lockout_duration"`

	Captcha        bool   `yaml:"captcha"`
	CaptchaKind    string `yaml:"captcha_kind"`
	RevealDisabled bool   `yaml:"reveal_disabled_account"`
}

// PasswordConfig overrides the argon2id cost. Zero fields keep the engine
// defaults.
type PasswordConfig struct {
	MemoryKB    uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Histograms bool `yaml:"histograms"`
	Prometheus bool `yaml:"prometheus"`
	OTel       bool `yaml:"otel"`
}

type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

// DefaultConfig is a dev-friendly configuration: embedded Redis, a local
// sqlite file and ephemeral keys.
func DefaultConfig() Config {
	base := adminauth.DefaultConfig()
	throttle := httpapi.DefaultAuthThrottle
	return Config{
		Env: "dev",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Throttle: ThrottleConfig{
				RequestsPerWindow: throttle.RequestsPerWindow,
				Window:            throttle.Window,
				Burst:             throttle.Burst,
			},
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			Embedded: true,
		},
		Database: DatabaseConfig{
			DSN:     "file:adminauth.db?_pragma=busy_timeout(5000)",
			Migrate: true,
		},
		Auth: AuthConfig{
			SigningMethod:   base.JWT.SigningMethod,
			Issuer:          "adminauth",
			AccessTTL:       base.JWT.AccessTTL,
			RefreshTTL:      base.JWT.RefreshTTL,
			PermissionTTL:   base.Permission.CacheTTL,
			RedisPrefix:     base.Session.RedisPrefix,
			MaxLoginAttempt: base.Security.MaxLoginAttempts,
			LockoutDuration: base.Security.LockoutDuration,
			Captcha:         base.Captcha.Enabled,
			CaptchaKind:     base.Captcha.Kind,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			Histograms: true,
			Prometheus: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: base.Audit.BufferSize,
		},
	}
}

// LoadConfig reads path (if non-empty) over DefaultConfig, expands ${VARS}
// in the file and then applies ADMINAUTH_* overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the service-level settings. Engine settings are validated
// again by adminauth.Config.Validate when the engine is built.
func (c Config) Validate() error {
	switch c.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("env must be dev or prod, got %q", c.Env)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be > 0")
	}
	if c.Server.Throttle.RequestsPerWindow < 0 || c.Server.Throttle.Burst < 0 {
		return errors.New("server.throttle values must be non-negative")
	}
	if c.Server.Throttle.RequestsPerWindow > 0 && c.Server.Throttle.Window <= 0 {
		return errors.New("server.throttle.window must be > 0")
	}
	if !c.Redis.Embedded && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Env == "prod" {
		if c.Redis.Embedded {
			return errors.New("redis.embedded is not allowed in prod")
		}
		if !c.hasKeys() {
			return errors.New("signing keys are required in prod")
		}
	}
	if c.Metrics.Prometheus && !c.Metrics.Enabled {
		return errors.New("metrics.prometheus requires metrics.enabled")
	}
	if c.Metrics.OTel && !c.Metrics.Enabled {
		return errors.New("metrics.otel requires metrics.enabled")
	}
	return nil
}

func (c Config) hasKeys() bool {
	if c.Auth.SigningMethod == "hs256" {
		return c.Auth.Secret != ""
	}
	return c.Auth.PrivateKeyFile != "" && c.Auth.PublicKeyFile != ""
}

// Throttle converts the YAML throttle into the HTTP layer's type.
func (c Config) Throttle() httpapi.ThrottleConfig {
	return httpapi.ThrottleConfig{
		RequestsPerWindow: c.Server.Throttle.RequestsPerWindow,
		Window:            c.Server.Throttle.Window,
		Burst:             c.Server.Throttle.Burst,
	}
}

// EngineConfig maps the service configuration onto adminauth.Config. Key
// material is attached separately by loadKeys.
func (c Config) EngineConfig() adminauth.Config {
	cfg := adminauth.DefaultConfig()
	if c.Env == "prod" {
		cfg = adminauth.HighSecurityConfig()
	}

	cfg.JWT.SigningMethod = c.Auth.SigningMethod
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.Audience = c.Auth.Audience
	cfg.JWT.KeyID = c.Auth.KeyID
	if c.Auth.AccessTTL > 0 {
		cfg.JWT.AccessTTL = c.Auth.AccessTTL
	}
	if c.Auth.RefreshTTL > 0 {
		cfg.JWT.RefreshTTL = c.Auth.RefreshTTL
	}
	if c.Auth.PermissionTTL > 0 {
		cfg.Permission.CacheTTL = c.Auth.PermissionTTL
	}
	if c.Auth.RedisPrefix != "" {
		cfg.Session.RedisPrefix = c.Auth.RedisPrefix
	}
	cfg.Session.SingleDevice = cfg.Session.SingleDevice || c.Auth.SingleDevice

	if c.Auth.MaxLoginAttempt > 0 {
		cfg.Security.MaxLoginAttempts = c.Auth.MaxLoginAttempt
	}
	if c.Auth.LockoutDuration > 0 {
		cfg.Security.LockoutDuration = c.Auth.LockoutDuration
	}
	cfg.Security.ProductionMode = c.Env == "prod"
	cfg.Security.RevealDisabledAccount = c.Auth.RevealDisabled

	cfg.Captcha.Enabled = c.Auth.Captcha
	if c.Auth.CaptchaKind != "" {
		cfg.Captcha.Kind = c.Auth.CaptchaKind
	}

	if c.Password.MemoryKB > 0 {
		cfg.Password.Memory = c.Password.MemoryKB
	}
	if c.Password.Time > 0 {
		cfg.Password.Time = c.Password.Time
	}
	if c.Password.Parallelism > 0 {
		cfg.Password.Parallelism = c.Password.Parallelism
	}

	cfg.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Histograms
	return cfg
}

/*
====================================
ENVIRONMENT OVERRIDES
====================================
*/

type envSetter func(cfg *Config, value string) error

var envOverrides = map[string]envSetter{
	"ENV":              func(c *Config, v string) error { c.Env = v; return nil },
	"HTTP_ADDR":        func(c *Config, v string) error { c.Server.Addr = v; return nil },
	"TRUST_PROXY":      boolSetter(func(c *Config, b bool) { c.Server.TrustProxy = b }),
	"REDIS_ADDR":       func(c *Config, v string) error { c.Redis.Addr = v; return nil },
	"REDIS_PASSWORD":   func(c *Config, v string) error { c.Redis.Password = v; return nil },
	"REDIS_DB":         intSetter(func(c *Config, n int) { c.Redis.DB = n }),
	"REDIS_EMBEDDED":   boolSetter(func(c *Config, b bool) { c.Redis.Embedded = b }),
	"DB_DSN":           func(c *Config, v string) error { c.Database.DSN = v; return nil },
	"JWT_METHOD":       func(c *Config, v string) error { c.Auth.SigningMethod = v; return nil },
	"JWT_SECRET":       func(c *Config, v string) error { c.Auth.Secret = v; return nil },
	"JWT_PRIVATE_KEY":  func(c *Config, v string) error { c.Auth.PrivateKeyFile = v; return nil },
	"JWT_PUBLIC_KEY":   func(c *Config, v string) error { c.Auth.PublicKeyFile = v; return nil },
	"CAPTCHA":          boolSetter(func(c *Config, b bool) { c.Auth.Captcha = b }),
	"LOG_LEVEL":        func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG_FORMAT":       func(c *Config, v string) error { c.Log.Format = v; return nil },
	"METRICS_OTEL":     boolSetter(func(c *Config, b bool) { c.Metrics.OTel = b }),
	"ACCESS_TTL":       durationSetter(func(c *Config, d time.Duration) { c.Auth.AccessTTL = d }),
	"REFRESH_TTL":      durationSetter(func(c *Config, d time.Duration) { c.Auth.RefreshTTL = d }),
	"SHUTDOWN_TIMEOUT": durationSetter(func(c *Config, d time.Duration) { c.Server.ShutdownTimeout = d }),
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for suffix, set := range envOverrides {
		v, ok := lookup(EnvPrefix + suffix)
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, suffix, err)
		}
	}
	return nil
}

func boolSetter(fn func(*Config, bool)) envSetter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		fn(c, b)
		return nil
	}
}

func intSetter(fn func(*Config, int)) envSetter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		fn(c, n)
		return nil
	}
}

func durationSetter(fn func(*Config, time.Duration)) envSetter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		fn(c, d)
		return nil
	}
}
