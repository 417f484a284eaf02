package adminauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/captcha"
	"github.com/MrEthical07/adminauth/internal"
	"github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/flows"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/session"
)

// Engine is the authentication, token-lifecycle and authorization core.
// Build one with New().…Build(); all methods are safe for concurrent use.
type Engine struct {
	config       Config
	store        *session.Store
	limiter      *rate.Limiter
	captcha      *captcha.Service
	verifier     *password.Verifier
	jwtManager   *jwt.Manager
	roleTable    *permission.RoleTable
	userProvider UserProvider
	roleResolver RoleResolver
	loginLogger  LoginLogger
	logger       *slog.Logger
	audit        *audit.Dispatcher
	metrics      *Metrics
	now          func() time.Time

	flow flows.Service
}

func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.flow.Initialized()
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

/*
====================================
FLOW WIRING
====================================
*/

func (e *Engine) initFlowDeps() {
	issue := flows.IssueDeps{
		Now:        e.now,
		RefreshTTL: e.config.JWT.RefreshTTL,
		NewTokenID: func() (string, error) {
			id, err := internal.NewTokenID()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		CreateAccess:       e.jwtManager.CreateAccess,
		Store:              e.store,
	}

	login := flows.LoginDeps{
		Now:                 e.now,
		CaptchaEnabled:      e.captcha != nil,
		CaptchaMismatch:     captcha.ErrMismatch,
		RateLimited:         rate.ErrRateLimited,
		CheckLoginRate:      e.limiter.CheckLogin,
		IncrementLoginRate:  e.limiter.IncrementLogin,
		ResetLoginRate:      e.limiter.ResetLogin,
		FindUser:            e.findUser,
		UserNotFound:        ErrUserNotFound,
		CheckPassword:       e.verifier.Check,
		DummyPassword:       e.verifier.Dummy,
		RevealDisabled:      e.config.Security.RevealDisabledAccount,
		SeedPasswordVersion: e.store.SeedPasswordVersion,
		ResolveRoles:        e.roleResolver.ResolveRoles,
		SingleDevice:        e.config.Session.SingleDevice,
		SetActiveToken:      e.store.SetActiveToken,
		RetirePair:          e.store.RetirePair,
		Warn:                e.warn,
		Issue:               issue,
	}
	if e.captcha != nil {
		login.VerifyCaptcha = e.captcha.Verify
	}
	if e.loginLogger != nil {
		login.LogLogin = e.loginLogger.LogLogin
	}

	perms := flows.PermissionDeps{
		Cache:   e.store,
		TTL:     e.config.Permission.CacheTTL,
		Resolve: e.resolvePermissions,
		Warn:    e.warn,
	}

	e.flow = flows.New(flows.Deps{
		Login: login,
		Refresh: flows.RefreshDeps{
			Now:                e.now,
			ClaimTTL:           e.config.Session.RefreshClaimTTL,
			DecodeRefreshToken: internal.DecodeRefreshToken,
			HashRefreshSecret:  internal.HashRefreshSecret,
			Store:              e.store,
			FindUser:           e.findUser,
			UserNotFound:       ErrUserNotFound,
			ResolveRoles:       e.roleResolver.ResolveRoles,
			SingleDevice:       e.config.Session.SingleDevice,
			Warn:               e.warn,
			Issue:              issue,
		},
		Authorize: flows.AuthorizeDeps{
			ParseAccess:  e.jwtManager.ParseAccess,
			TokenExpired: jwt.ErrExpired,
			SingleDevice: e.config.Session.SingleDevice,
			Snapshot:     e.store.Snapshot,
			Permissions: func(ctx context.Context, userID string) (permission.Set, error) {
				return flows.RunPermissions(ctx, userID, perms)
			},
		},
		Permissions: perms,
		Online: flows.OnlineDeps{
			Store:             e.store,
			ListAllPermission: e.config.Permission.ListAllPermission,
		},
	})
}

func (e *Engine) findUser(ctx context.Context, username string) (flows.LoginUser, error) {
	cred, err := e.userProvider.FindUserByUsername(ctx, username)
	if err != nil {
		return flows.LoginUser{}, err
	}
	return flows.LoginUser{
		UserID:          cred.UserID,
		Username:        cred.Username,
		PasswordHash:    cred.PasswordHash,
		Salt:            cred.Salt,
		Enabled:         cred.Status == StatusEnabled,
		PasswordVersion: cred.PasswordVersion,
	}, nil
}

// resolvePermissions merges the resolver's permissions with the static role
// table, when one is configured.
func (e *Engine) resolvePermissions(ctx context.Context, userID string) ([]string, error) {
	keys, err := e.roleResolver.ResolvePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e.roleTable == nil || e.roleTable.Count() == 0 {
		return keys, nil
	}
	roles, err := e.roleResolver.ResolveRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := e.roleTable.Expand(roles)
	for _, k := range keys {
		set.Add(k)
	}
	return set.Sorted(), nil
}

/*
====================================
CAPTCHA
====================================
*/

// CaptchaEnabled reports whether Login requires a solved challenge.
func (e *Engine) CaptchaEnabled() bool {
	return e != nil && e.captcha != nil
}

// IssueCaptcha creates a single-use challenge. It returns ErrCaptchaDisabled
// when captcha is switched off.
func (e *Engine) IssueCaptcha(ctx context.Context) (*CaptchaChallenge, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.captcha == nil {
		return nil, ErrCaptchaDisabled
	}

	ch, err := e.captcha.Issue(ctx)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	e.metricInc(MetricCaptchaIssued)
	return &CaptchaChallenge{ChallengeID: ch.ID, Puzzle: ch.Puzzle, ExpiresAt: ch.ExpiresAt}, nil
}

/*
====================================
LOGIN
====================================
*/

// Login verifies the captcha (when enabled) and the credentials, then issues
// a token pair. The client IP and User-Agent are read from ctx (see
// WithClientIP and WithUserAgent).
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	ip := clientIPFromContext(ctx)
	res := e.flow.Login(ctx, flows.LoginRequest{
		Username:      username,
		Password:      req.Password,
		CaptchaID:     req.CaptchaID,
		CaptchaAnswer: req.CaptchaAnswer,
		IP:            ip,
		UserAgent:     userAgentFromContext(ctx),
	})

	if res.Failure != flows.LoginFailureNone {
		err := e.mapLoginFailure(res)
		switch res.Failure {
		case flows.LoginFailureRateLimited:
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", err, func() map[string]string {
				return map[string]string{"username": username}
			})
		case flows.LoginFailureCaptchaMissing, flows.LoginFailureCaptchaMismatch:
			e.metricInc(MetricCaptchaFailure)
			e.emitAudit(ctx, auditEventCaptchaFailure, false, "", "", err, func() map[string]string {
				return map[string]string{"username": username}
			})
		default:
			if errors.Is(err, ErrAuthUnavailable) {
				e.metricInc(MetricBackendUnavailable)
			}
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", err, func() map[string]string {
				return map[string]string{"username": username}
			})
		}
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, res.Tokens.TokenID, nil, nil)
	if res.Superseded != "" {
		e.metricInc(MetricTokenSuperseded)
		e.emitAudit(ctx, auditEventSessionSuperseded, true, res.UserID, res.Superseded, nil, func() map[string]string {
			return map[string]string{"by_token_id": res.Tokens.TokenID}
		})
	}

	return tokenPairFromIssued(res.Tokens), nil
}

func (e *Engine) mapLoginFailure(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureRateLimited:
		return ErrLoginRateLimited
	case flows.LoginFailureCaptchaMissing:
		if errors.Is(res.Err, captcha.ErrBackend) {
			return fmt.Errorf("%w: %v", ErrAuthUnavailable, res.Err)
		}
		return ErrCaptchaExpiredOrMissing
	case flows.LoginFailureCaptchaMismatch:
		return ErrCaptchaMismatch
	case flows.LoginFailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.LoginFailureAccountDisabled:
		return ErrAccountDisabled
	default:
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, res.Err)
	}
}

// RetryAfter returns how long username stays locked out, or 0.
func (e *Engine) RetryAfter(ctx context.Context, username string) time.Duration {
	if !e.ready() {
		return 0
	}
	d, err := e.limiter.RetryAfter(ctx, strings.TrimSpace(username))
	if err != nil {
		return 0
	}
	return d
}

/*
====================================
REFRESH
====================================
*/

// Refresh rotates a refresh token. The old pair stays valid until the new
// one is persisted, then it is retired; a reused refresh token is rejected
// with ErrRefreshTokenNotFound.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.Refresh(ctx, flows.RefreshRequest{
		RefreshToken: refreshToken,
		IP:           clientIPFromContext(ctx),
		UserAgent:    userAgentFromContext(ctx),
	})
	if res.Failure != flows.RefreshFailureNone {
		err := mapRefreshFailure(res)
		if errors.Is(err, ErrAuthUnavailable) {
			e.metricInc(MetricBackendUnavailable)
		}
		if res.Failure == flows.RefreshFailureSuperseded {
			e.metricInc(MetricTokenSuperseded)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, res.ParentToken, err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.Tokens.TokenID, nil, func() map[string]string {
		return map[string]string{"parent_token_id": res.ParentToken}
	})
	return tokenPairFromIssued(res.Tokens), nil
}

func mapRefreshFailure(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureNotFound:
		return ErrRefreshTokenNotFound
	case flows.RefreshFailureExpired:
		return ErrRefreshTokenExpired
	case flows.RefreshFailureRevoked:
		return ErrTokenRevoked
	case flows.RefreshFailureSuperseded:
		return ErrTokenSuperseded
	case flows.RefreshFailureAccountDisabled:
		return ErrAccountDisabled
	default:
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, res.Err)
	}
}

func tokenPairFromIssued(t *flows.IssuedTokens) *TokenPair {
	return &TokenPair{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenID:          t.TokenID,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

/*
====================================
AUTHORIZE
====================================
*/

// Authorize runs the request guard: signature and expiry, live password
// version, single-device slot, server-side record and, when required is
// non-empty, the permission check. Backend failures deny with
// ErrAuthUnavailable.
func (e *Engine) Authorize(ctx context.Context, accessToken, required string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res := e.flow.Authorize(ctx, accessToken, required)

	if !start.IsZero() {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}

	if res.Failure != flows.AuthorizeFailureNone {
		err := mapAuthorizeFailure(res)
		switch res.Failure {
		case flows.AuthorizeFailurePermissionDenied:
			e.metricInc(MetricAuthorizeDenied)
		case flows.AuthorizeFailureSuperseded:
			e.metricInc(MetricTokenSuperseded)
		case flows.AuthorizeFailureUnavailable:
			e.metricInc(MetricBackendUnavailable)
			e.warn("adminauth: authorize backend failure", "error", res.Err)
		default:
			e.metricInc(MetricTokenRejected)
		}
		return nil, err
	}

	e.metricInc(MetricAuthorizeAllowed)
	return authResultFromClaims(res.Claims, res.Permissions), nil
}

func mapAuthorizeFailure(res flows.AuthorizeResult) error {
	switch res.Failure {
	case flows.AuthorizeFailureTokenExpired:
		return ErrTokenExpired
	case flows.AuthorizeFailureTokenInvalid:
		return ErrTokenInvalid
	case flows.AuthorizeFailureRevoked:
		return ErrTokenRevoked
	case flows.AuthorizeFailureSuperseded:
		return ErrTokenSuperseded
	case flows.AuthorizeFailurePermissionDenied:
		return ErrPermissionDenied
	default:
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, res.Err)
	}
}

func authResultFromClaims(claims *jwt.AccessClaims, perms permission.Set) *AuthResult {
	out := &AuthResult{
		UserID:          claims.UID,
		Username:        claims.Username,
		TokenID:         claims.ID,
		Roles:           append([]string(nil), claims.Roles...),
		PasswordVersion: claims.PasswordVersion,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if perms != nil {
		out.Permissions = perms.Sorted()
	}
	return out
}

// Permissions returns userID's effective permission set from the cache,
// resolving it on a miss.
func (e *Engine) Permissions(ctx context.Context, userID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	set, err := e.flow.Permissions(ctx, userID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	return set.Sorted(), nil
}

/*
====================================
LOGOUT / ONLINE SESSIONS
====================================
*/

// Logout retires the pair identified by tokenID. It is idempotent.
func (e *Engine) Logout(ctx context.Context, tokenID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	existed, err := e.store.RetirePair(ctx, tokenID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if existed {
		e.metricInc(MetricLogout)
	}
	e.emitAudit(ctx, auditEventLogout, true, "", tokenID, nil, nil)
	return nil
}

// LogoutByAccessToken authorizes accessToken and retires its pair.
func (e *Engine) LogoutByAccessToken(ctx context.Context, accessToken string) error {
	result, err := e.Authorize(ctx, accessToken, "")
	if err != nil {
		return err
	}
	return e.Logout(ctx, result.TokenID)
}

// ListOnline pages the online-session registry, newest first. A nil caller
// sees every session; otherwise a caller without
// Permission.ListAllPermission only sees their own.
func (e *Engine) ListOnline(ctx context.Context, q OnlineQuery, caller *AuthResult) (*OnlinePage, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	oc := flows.OnlineCaller{Permissions: permission.NewSet(e.config.Permission.ListAllPermission)}
	if caller != nil {
		oc = flows.OnlineCaller{UserID: caller.UserID, Permissions: permission.NewSet(caller.Permissions...)}
		if caller.Permissions == nil {
			set, err := e.flow.Permissions(ctx, caller.UserID)
			if err != nil {
				e.metricInc(MetricBackendUnavailable)
				return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
			}
			oc.Permissions = set
		}
	}

	page, err := e.flow.ListOnline(ctx, session.ListQuery{
		UserID:   q.UserID,
		Username: q.Username,
		IP:       q.IP,
		Offset:   q.Offset,
		Limit:    q.Limit,
	}, oc)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	out := &OnlinePage{
		Sessions: make([]OnlineSession, 0, len(page.Sessions)),
		Total:    page.Total,
		Offset:   page.Offset,
		Limit:    page.Limit,
	}
	for _, s := range page.Sessions {
		out.Sessions = append(out.Sessions, OnlineSession{
			TokenID:   s.TokenID,
			UserID:    s.UserID,
			Username:  s.Username,
			IP:        s.IP,
			UserAgent: s.UserAgent,
			LoginAt:   time.Unix(s.LoginAt, 0).UTC(),
			ExpiresAt: time.Unix(s.ExpiresAt, 0).UTC(),
		})
	}
	return out, nil
}

// OnlineCount returns the number of live sessions in the online registry.
func (e *Engine) OnlineCount(ctx context.Context) (int, error) {
	page, err := e.ListOnline(ctx, OnlineQuery{Limit: 1}, nil)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// Kick forcibly ends one session. Kicking an unknown or already ended
// session succeeds.
func (e *Engine) Kick(ctx context.Context, tokenID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(tokenID) == "" {
		return ErrTokenInvalid
	}
	existed, err := e.flow.Kick(ctx, tokenID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if existed {
		e.metricInc(MetricSessionKicked)
	}
	e.emitAudit(ctx, auditEventSessionKicked, true, "", tokenID, nil, func() map[string]string {
		if existed {
			return map[string]string{"existed": "true"}
		}
		return map[string]string{"existed": "false"}
	})
	return nil
}

// BumpPasswordVersion revokes every outstanding access token of userID at
// the guard. Identity stores call it after a password change.
func (e *Engine) BumpPasswordVersion(ctx context.Context, userID string) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	v, err := e.store.BumpPasswordVersion(ctx, userID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	e.metricInc(MetricPasswordVersionBump)
	e.emitAudit(ctx, auditEventPasswordVersionBump, true, userID, "", nil, nil)
	return v, nil
}

// PasswordChanged revokes every outstanding token of userID after the
// identity store raised its password version to credentialVersion. The live
// counter ends strictly above its previous value and at least at
// credentialVersion, so the two counters can never meet on a stale token.
func (e *Engine) PasswordChanged(ctx context.Context, userID string, credentialVersion int64) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	v, err := e.store.AdvancePasswordVersion(ctx, userID, credentialVersion)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	e.metricInc(MetricPasswordVersionBump)
	e.emitAudit(ctx, auditEventPasswordVersionBump, true, userID, "", nil, func() map[string]string {
		return map[string]string{"credential_version": fmt.Sprint(credentialVersion)}
	})
	return v, nil
}

// ForceLogout revokes every token of userID and removes their sessions. It
// returns the number of pairs retired.
func (e *Engine) ForceLogout(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.flow.ForceLogout(ctx, userID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	e.metricInc(MetricForceLogout)
	e.emitAudit(ctx, auditEventForceLogout, true, userID, "", nil, func() map[string]string {
		return map[string]string{"retired": fmt.Sprint(n)}
	})
	return n, nil
}

/*
====================================
PERMISSION CACHE
====================================
*/

// InvalidatePermissions drops the cached permission sets of userIDs. Their
// next permission check resolves afresh.
func (e *Engine) InvalidatePermissions(ctx context.Context, userIDs ...string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.store.InvalidatePermissions(ctx, userIDs...); err != nil {
		e.metricInc(MetricBackendUnavailable)
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	e.metricInc(MetricPermissionInvalidated)
	e.emitAudit(ctx, auditEventPermissionsInvalidated, true, "", "", nil, func() map[string]string {
		return map[string]string{"user_ids": strings.Join(userIDs, ",")}
	})
	return nil
}

// InvalidateAllPermissions drops every cached permission set, for edits to a
// role definition.
func (e *Engine) InvalidateAllPermissions(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.store.InvalidateAllPermissions(ctx)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	e.metricInc(MetricPermissionInvalidated)
	e.emitAudit(ctx, auditEventPermissionsInvalidated, true, "", "", nil, func() map[string]string {
		return map[string]string{"scope": "all", "count": fmt.Sprint(n)}
	})
	return n, nil
}

// SetRolePermissions replaces a role of the static role table and drops
// every cached permission set.
func (e *Engine) SetRolePermissions(ctx context.Context, role string, perms []string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if e.roleTable == nil {
		return errors.New("no static role table configured")
	}
	if err := e.roleTable.SetRole(role, perms); err != nil {
		return err
	}
	_, err := e.InvalidateAllPermissions(ctx)
	return err
}

/*
====================================
MISC
====================================
*/

// HashPassword returns the PHC hash the identity store should persist for
// password and salt.
func (e *Engine) HashPassword(plain, salt string) (string, error) {
	if e == nil || e.verifier == nil {
		return "", ErrEngineNotReady
	}
	return e.verifier.HashSalted(plain, salt)
}

// Ping round-trips the session cache.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	d, err := e.store.Ping(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	return d, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}
