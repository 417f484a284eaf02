package adminauth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/captcha"
)

// Config is the complete Engine configuration. Build it from DefaultConfig
// (or HighSecurityConfig), adjust fields, and hand it to Builder.WithConfig.
// The Engine keeps its own copy; later edits have no effect.
type Config struct {
	JWT        JWTConfig
	Session    SessionConfig
	Permission PermissionConfig
	Captcha    CaptchaConfig
	Password   PasswordConfig
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing and the refresh lifetime.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis session cache.
type SessionConfig struct {
	RedisPrefix string
	// SingleDevice keeps at most one live token pair per user. A new login
	// retires the previous pair.
	SingleDevice bool
	// RefreshClaimTTL bounds how long a refresh token stays claimed by an
	// in-flight rotation.
	RefreshClaimTTL time.Duration
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls the per-user permission cache and the
// permissions the Engine itself checks.
type PermissionConfig struct {
	CacheTTL time.Duration
	// ListAllPermission lets ListOnline callers see every user's sessions.
	ListAllPermission string
	// KickPermission gates kick and force-logout on the HTTP surface.
	KickPermission string
	// InvalidatePermission gates the permission invalidation endpoint.
	InvalidatePermission string
}

/*
====================================
CAPTCHA CONFIG
====================================
*/

type CaptchaConfig struct {
	Enabled bool
	TTL     time.Duration
	Kind    string // "math" (default) or "digit"
	Width   int
	Height  int
	Length  int
	Noise   int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	ProductionMode   bool
	EnableIPThrottle bool
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	// RevealDisabledAccount answers ErrAccountDisabled instead of
	// ErrInvalidCredentials once the password of a disabled account checked
	// out.
	RevealDisabledAccount bool
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	DefaultListAllPermission    = "monitor:online:list"
	DefaultKickPermission       = "monitor:online:forceLogout"
	DefaultInvalidatePermission = "system:role:edit"
)

// DefaultConfig returns a development-friendly configuration. Signing keys
// must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "adminauth",
			MaxFutureIAT:  10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix:     "aa",
			SingleDevice:    false,
			RefreshClaimTTL: 10 * time.Second,
		},
		Permission: PermissionConfig{
			CacheTTL:             time.Minute,
			ListAllPermission:    DefaultListAllPermission,
			KickPermission:       DefaultKickPermission,
			InvalidatePermission: DefaultInvalidatePermission,
		},
		Captcha: CaptchaConfig{
			Enabled: true,
			TTL:     2 * time.Minute,
			Kind:    string(captcha.KindMath),
			Width:   160,
			Height:  60,
			Length:  4,
			Noise:   2,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LockoutDuration:       10 * time.Minute,
			RevealDisabledAccount: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig tightens DefaultConfig for internet-facing deployments:
// short access tokens, single-device sessions, IP lockout and audit on.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.Session.SingleDevice = true
	cfg.Permission.CacheTTL = 30 * time.Second
	cfg.Security.ProductionMode = true
	cfg.Security.EnableIPThrottle = true
	cfg.Security.MaxLoginAttempts = 5
	cfg.Security.LockoutDuration = 15 * time.Minute
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first structural problem in c. It does not check that
// keys parse; Builder.Build does that when it constructs the signer.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}
	if c.Session.RefreshClaimTTL <= 0 {
		return errors.New("Session RefreshClaimTTL must be > 0")
	}
	if c.Session.RefreshClaimTTL > time.Minute {
		return errors.New("Session RefreshClaimTTL must be <= 1m")
	}

	// Permission
	if c.Permission.CacheTTL <= 0 {
		return errors.New("Permission CacheTTL must be > 0")
	}
	if strings.TrimSpace(c.Permission.ListAllPermission) == "" {
		return errors.New("Permission ListAllPermission must not be empty")
	}
	if strings.TrimSpace(c.Permission.KickPermission) == "" {
		return errors.New("Permission KickPermission must not be empty")
	}
	if strings.TrimSpace(c.Permission.InvalidatePermission) == "" {
		return errors.New("Permission InvalidatePermission must not be empty")
	}

	// Captcha
	if c.Captcha.Enabled {
		if c.Captcha.TTL <= 0 {
			return errors.New("Captcha TTL must be > 0 when captcha is enabled")
		}
		switch captcha.Kind(c.Captcha.Kind) {
		case captcha.KindMath, captcha.KindDigit:
		default:
			return errors.New("Captcha Kind must be 'math' or 'digit'")
		}
		if c.Captcha.Width <= 0 || c.Captcha.Height <= 0 {
			return errors.New("Captcha Width and Height must be > 0")
		}
		if c.Captcha.Kind == string(captcha.KindDigit) && c.Captcha.Length <= 0 {
			return errors.New("Captcha Length must be > 0 for digit captchas")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LockoutDuration <= 0 {
		return errors.New("Security LockoutDuration must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if !c.Captcha.Enabled {
			return errors.New("ProductionMode requires Captcha Enabled")
		}
	}

	return nil
}
