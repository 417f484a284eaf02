package adminauth

import "time"

// SecurityReport summarizes the effective security posture of an Engine. The
// serve command logs it at startup.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	PermissionCacheTTL    time.Duration
	Argon2                PasswordConfigReport
	CaptchaEnabled        bool
	SingleDevice          bool
	LoginLockoutActive    bool
	IPLockoutActive       bool
	RevealDisabledAccount bool
	AuditEnabled          bool
	MetricsEnabled        bool
	LintWarnings          []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	lockout := e.config.Security.MaxLoginAttempts > 0 &&
		e.config.Security.LockoutDuration > 0

	return SecurityReport{
		ProductionMode:     e.config.Security.ProductionMode,
		SigningAlgorithm:   e.config.JWT.SigningMethod,
		AccessTTL:          e.config.JWT.AccessTTL,
		RefreshTTL:         e.config.JWT.RefreshTTL,
		PermissionCacheTTL: e.config.Permission.CacheTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		CaptchaEnabled:        e.config.Captcha.Enabled,
		SingleDevice:          e.config.Session.SingleDevice,
		LoginLockoutActive:    lockout,
		IPLockoutActive:       lockout && e.config.Security.EnableIPThrottle,
		RevealDisabledAccount: e.config.Security.RevealDisabledAccount,
		AuditEnabled:          e.config.Audit.Enabled,
		MetricsEnabled:        e.config.Metrics.Enabled,
		LintWarnings:          e.config.Lint().Codes(),
	}
}
