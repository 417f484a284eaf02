package adminauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/adminauth/captcha"
	"github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder may be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	roles map[string][]string

	userProvider UserProvider
	roleResolver RoleResolver
	loginLogger  LoginLogger
	logger       *slog.Logger
	auditSink    AuditSink
	captchaGen   captcha.Generator
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the session cache client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoles registers a static role table. Permissions of every role a user
// holds are merged into the set returned by the RoleResolver.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithRoleResolver(rr RoleResolver) *Builder {
	b.roleResolver = rr
	return b
}

// WithLoginLogger records successful logins. Optional.
func (b *Builder) WithLoginLogger(ll LoginLogger) *Builder {
	b.loginLogger = ll
	return b
}

// WithLogger sets the logger used for best-effort warnings. Defaults to
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithCaptchaGenerator replaces the image generator built from
// Config.Captcha.
func (b *Builder) WithCaptchaGenerator(gen captcha.Generator) *Builder {
	b.captchaGen = gen
	return b
}

// WithClock overrides time.Now for token timestamps, refresh expiry and
// captcha expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Engine. No Redis command is
// issued; call Engine.Ping to check connectivity.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.roleResolver == nil {
		return nil, errors.New("role resolver required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- ROLE TABLE --------
	var roleTable *permission.RoleTable
	if len(b.roles) > 0 {
		roleTable = permission.NewRoleTable()
		for roleName, permList := range b.roles {
			if err := roleTable.RegisterRole(roleName, permList); err != nil {
				return nil, err
			}
		}
	}

	// -------- SESSION STORE --------
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix)

	engine := &Engine{
		config:       cloneConfig(cfg),
		store:        store,
		roleTable:    roleTable,
		userProvider: b.userProvider,
		roleResolver: b.roleResolver,
		loginLogger:  b.loginLogger,
		logger:       logger,
		now:          now,
	}

	engine.limiter = rate.New(b.redis, rate.Config{
		Prefix:           cfg.Session.RedisPrefix,
		EnableIPThrottle: cfg.Security.EnableIPThrottle,
		MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
		LockoutDuration:  cfg.Security.LockoutDuration,
	})
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if cfg.Captcha.Enabled {
		gen := b.captchaGen
		if gen == nil {
			var err error
			gen, err = captcha.NewGenerator(captcha.GeneratorConfig{
				Kind:   captcha.Kind(cfg.Captcha.Kind),
				Width:  cfg.Captcha.Width,
				Height: cfg.Captcha.Height,
				Length: cfg.Captcha.Length,
				Noise:  cfg.Captcha.Noise,
			})
			if err != nil {
				return nil, err
			}
		}
		svc, err := captcha.NewService(gen, captcha.NewStore(b.redis, cfg.Session.RedisPrefix), cfg.Captcha.TTL)
		if err != nil {
			return nil, err
		}
		engine.captcha = svc.WithClock(now)
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.verifier, err = password.NewVerifier(ph)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.initFlowDeps()

	b.built = true

	return engine, nil
}
