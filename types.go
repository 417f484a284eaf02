package adminauth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/adminauth/internal/audit"
	internalmetrics "github.com/MrEthical07/adminauth/internal/metrics"
)

// UserStatus is the enabled/disabled state of a stored credential.
type UserStatus uint8

const (
	StatusEnabled UserStatus = iota
	StatusDisabled
)

// UserCredential is the identity store's view of one admin account. The
// Engine only reads it.
type UserCredential struct {
	UserID       string
	Username     string
	PasswordHash string
	// Salt is appended to the plaintext before verification. It may be
	// empty when the PHC hash carries its own salt only.
	Salt   string
	Status UserStatus
	// PasswordVersion is raised by the identity store on password change.
	// The Engine treats it as a floor for the live counter.
	PasswordVersion int64
}

// UserProvider looks up credentials by username. Unknown usernames must
// return an error wrapping ErrUserNotFound; any other error is treated as a
// backend failure.
type UserProvider interface {
	FindUserByUsername(ctx context.Context, username string) (UserCredential, error)
}

// RoleResolver projects a user's role assignments. ResolveRoles feeds the
// role snapshot embedded in tokens; ResolvePermissions feeds the permission
// cache.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, userID string) ([]string, error)
	ResolvePermissions(ctx context.Context, userID string) ([]string, error)
}

// LoginLogger records successful logins. Failures are logged and otherwise
// ignored.
type LoginLogger interface {
	LogLogin(ctx context.Context, userID, ip, userAgent string) error
}

// LoginRequest is the input of Engine.Login.
type LoginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	CaptchaID     string `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenID          string    `json:"tokenId"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthResult is attached to a request once the guard accepted it.
// Permissions is only populated when a permission check ran.
type AuthResult struct {
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	TokenID         string    `json:"tokenId"`
	Roles           []string  `json:"roles"`
	Permissions     []string  `json:"permissions,omitempty"`
	PasswordVersion int64     `json:"passwordVersion"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// OnlineQuery filters Engine.ListOnline. Username and IP are substring
// matches.
type OnlineQuery struct {
	UserID   string
	Username string
	IP       string
	Offset   int
	Limit    int
}

// OnlineSession is one entry of the online-session registry.
type OnlineSession struct {
	TokenID   string    `json:"tokenId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	LoginAt   time.Time `json:"loginAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OnlinePage is one page of ListOnline results.
type OnlinePage struct {
	Sessions []OnlineSession `json:"sessions"`
	Total    int             `json:"total"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess          = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure          = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginRateLimited      = MetricID(internalmetrics.MetricLoginRateLimited)
	MetricCaptchaIssued         = MetricID(internalmetrics.MetricCaptchaIssued)
	MetricCaptchaFailure        = MetricID(internalmetrics.MetricCaptchaFailure)
	MetricRefreshSuccess        = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure        = MetricID(internalmetrics.MetricRefreshFailure)
	MetricAuthorizeAllowed      = MetricID(internalmetrics.MetricAuthorizeAllowed)
	MetricAuthorizeDenied       = MetricID(internalmetrics.MetricAuthorizeDenied)
	MetricTokenRejected         = MetricID(internalmetrics.MetricTokenRejected)
	MetricTokenSuperseded       = MetricID(internalmetrics.MetricTokenSuperseded)
	MetricBackendUnavailable    = MetricID(internalmetrics.MetricBackendUnavailable)
	MetricSessionCreated        = MetricID(internalmetrics.MetricSessionCreated)
	MetricSessionKicked         = MetricID(internalmetrics.MetricSessionKicked)
	MetricLogout                = MetricID(internalmetrics.MetricLogout)
	MetricForceLogout           = MetricID(internalmetrics.MetricForceLogout)
	MetricPasswordVersionBump   = MetricID(internalmetrics.MetricPasswordVersionBump)
	MetricPermissionInvalidated = MetricID(internalmetrics.MetricPermissionInvalidated)
	MetricAuthorizeLatency      = MetricID(internalmetrics.MetricAuthorizeLatency)
)

// Metrics holds atomic counters and the optional authorize latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a Metrics instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

// CaptchaChallenge is returned by Engine.IssueCaptcha. Puzzle is a data URI
// the client renders; ChallengeID is echoed back with the answer on login.
type CaptchaChallenge struct {
	ChallengeID string    `json:"challengeId"`
	Puzzle      string    `json:"puzzle"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
