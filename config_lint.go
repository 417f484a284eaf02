package adminauth

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a LintWarning.
type LintSeverity int

const (
	LintLow LintSeverity = iota
	LintMedium
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintLow:
		return "LOW"
	case LintMedium:
		return "MEDIUM"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a configuration choice that is valid but risky.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint inspects a configuration that already passed Validate and reports
// settings that weaken revocation, lockout or observability.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintMedium, "JWT leeway above 1m extends token validity past exp")
	}
	if c.JWT.AccessTTL > 30*time.Minute {
		add("access_ttl_long", LintMedium, "access tokens live longer than 30m")
	}
	if c.JWT.RefreshTTL > 14*24*time.Hour {
		add("refresh_ttl_long", LintLow, "refresh tokens live longer than 14d")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintLow, "hs256 shares the signing secret with every verifier")
	}
	if c.JWT.Audience == "" {
		add("audience_unset", LintLow, "tokens carry no audience claim")
	}
	if c.Permission.CacheTTL > 10*time.Minute {
		add("permission_cache_long", LintMedium, "role edits take more than 10m to reach cached permission sets")
	}
	if c.Session.RefreshClaimTTL > 30*time.Second {
		add("refresh_claim_long", LintLow, "a crashed refresh blocks the token for more than 30s")
	}
	if !c.Captcha.Enabled {
		add("captcha_disabled", LintMedium, "login is not protected by a captcha")
	}
	if !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", LintLow, "failed logins are only counted per username")
	}
	if c.Security.MaxLoginAttempts > 20 {
		add("lockout_threshold_high", LintMedium, "more than 20 failed logins are allowed before lockout")
	}
	if c.Security.RevealDisabledAccount {
		add("reveal_disabled_account", LintMedium, "disabled accounts are distinguishable from bad credentials")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintMedium, "Argon2 memory below 64 MB")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintLow, "no audit events are emitted")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drop_if_full", LintLow, "audit events are dropped when the buffer is full")
	}
	if c.Security.ProductionMode && !c.Session.SingleDevice && !c.Security.EnableIPThrottle {
		add("production_weak_sessions", LintHigh, "production mode without single-device sessions or IP lockout")
	}

	return ws
}
