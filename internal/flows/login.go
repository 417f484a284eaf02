package flows

import (
	"context"
	"errors"
	"time"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureCaptchaMissing
	LoginFailureCaptchaMismatch
	LoginFailureInvalidCredentials
	LoginFailureAccountDisabled
	LoginFailureBackend
	LoginFailureIssue
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Username      string
	Password      string
	CaptchaID     string
	CaptchaAnswer string
	IP            string
	UserAgent     string
}

// LoginUser is the flow-local view of a stored credential.
type LoginUser struct {
	UserID          string
	Username        string
	PasswordHash    string
	Salt            string
	Enabled         bool
	PasswordVersion int64
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure         LoginFailureKind
	Err             error
	UserID          string
	Roles           []string
	PasswordVersion int64
	Superseded      string
	Tokens          *IssuedTokens
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Now func() time.Time

	CaptchaEnabled  bool
	VerifyCaptcha   func(ctx context.Context, id, answer string) error
	CaptchaMismatch error

	RateLimited        error
	CheckLoginRate     func(ctx context.Context, username, ip string) error
	IncrementLoginRate func(ctx context.Context, username, ip string) error
	ResetLoginRate     func(ctx context.Context, username string) error

	FindUser       func(ctx context.Context, username string) (LoginUser, error)
	UserNotFound   error
	CheckPassword  func(password, salt, hash string) error
	DummyPassword  func(password string)
	RevealDisabled bool

	SeedPasswordVersion func(ctx context.Context, userID string, floor int64) (int64, error)
	ResolveRoles        func(ctx context.Context, userID string) ([]string, error)

	SingleDevice   bool
	SetActiveToken func(ctx context.Context, userID, tokenID string, ttl time.Duration) (string, error)
	RetirePair     func(ctx context.Context, tokenID string) (bool, error)

	LogLogin func(ctx context.Context, userID, ip, userAgent string) error
	Warn     func(string, ...any)

	Issue IssueDeps
}

// RunLogin verifies captcha and credentials, then issues a token pair.
//
// Unknown usernames and wrong passwords fail with the same kind; disabled
// accounts do too unless RevealDisabled is set, in which case the disabled
// state is only reported after the password verified.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.FindUser == nil || deps.CheckPassword == nil || deps.SeedPasswordVersion == nil || deps.ResolveRoles == nil {
		return LoginResult{Failure: LoginFailureBackend, Err: errors.New("login flow not configured")}
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, req.Username, req.IP); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureBackend, Err: err}
		}
	}

	if deps.CaptchaEnabled {
		if err := deps.VerifyCaptcha(ctx, req.CaptchaID, req.CaptchaAnswer); err != nil {
			if deps.CaptchaMismatch != nil && errors.Is(err, deps.CaptchaMismatch) {
				return LoginResult{Failure: LoginFailureCaptchaMismatch, Err: err}
			}
			return LoginResult{Failure: LoginFailureCaptchaMissing, Err: err}
		}
	}

	user, err := deps.FindUser(ctx, req.Username)
	if err != nil {
		if deps.UserNotFound == nil || !errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureBackend, Err: err}
		}
		if deps.DummyPassword != nil {
			deps.DummyPassword(req.Password)
		}
		return deps.recordFailure(ctx, req, "", err)
	}

	if err := deps.CheckPassword(req.Password, user.Salt, user.PasswordHash); err != nil {
		return deps.recordFailure(ctx, req, user.UserID, err)
	}

	if !user.Enabled {
		res := deps.recordFailure(ctx, req, user.UserID, errors.New("account disabled"))
		if deps.RevealDisabled && res.Failure == LoginFailureInvalidCredentials {
			res.Failure = LoginFailureAccountDisabled
		}
		return res
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, req.Username); err != nil {
			deps.Warn("adminauth: login rate reset failed", "user_id", user.UserID, "error", err)
		}
	}

	version, err := deps.SeedPasswordVersion(ctx, user.UserID, user.PasswordVersion)
	if err != nil {
		return LoginResult{Failure: LoginFailureBackend, Err: err, UserID: user.UserID}
	}
	roles, err := deps.ResolveRoles(ctx, user.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureBackend, Err: err, UserID: user.UserID}
	}

	tokens, err := RunIssue(ctx, IssueRequest{
		Identity: Identity{
			UserID:          user.UserID,
			Username:        user.Username,
			PasswordVersion: version,
			Roles:           roles,
		},
		IP:        req.IP,
		UserAgent: req.UserAgent,
		LoginAt:   deps.Now(),
	}, deps.Issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: user.UserID}
	}

	res := LoginResult{
		UserID:          user.UserID,
		Roles:           roles,
		PasswordVersion: version,
		Tokens:          tokens,
	}

	if deps.SingleDevice {
		prev, err := deps.SetActiveToken(ctx, user.UserID, tokens.TokenID, deps.Issue.RefreshTTL)
		if err != nil {
			// The new pair is useless without the active slot.
			if _, retireErr := deps.RetirePair(ctx, tokens.TokenID); retireErr != nil {
				deps.Warn("adminauth: orphan pair cleanup failed", "token_id", tokens.TokenID, "error", retireErr)
			}
			return LoginResult{Failure: LoginFailureBackend, Err: err, UserID: user.UserID}
		}
		if prev != "" && prev != tokens.TokenID {
			res.Superseded = prev
			if _, err := deps.RetirePair(ctx, prev); err != nil {
				// The guard already rejects prev through the active slot.
				deps.Warn("adminauth: superseded pair cleanup failed", "token_id", prev, "error", err)
			}
		}
	}

	if deps.LogLogin != nil {
		if err := deps.LogLogin(ctx, user.UserID, req.IP, req.UserAgent); err != nil {
			deps.Warn("adminauth: login log failed", "user_id", user.UserID, "error", err)
		}
	}

	return res
}

func (deps LoginDeps) recordFailure(ctx context.Context, req LoginRequest, userID string, cause error) LoginResult {
	if deps.IncrementLoginRate != nil {
		if err := deps.IncrementLoginRate(ctx, req.Username, req.IP); err != nil && (deps.RateLimited == nil || !errors.Is(err, deps.RateLimited)) {
			deps.Warn("adminauth: login rate increment failed", "error", err)
		}
	}
	return LoginResult{Failure: LoginFailureInvalidCredentials, Err: cause, UserID: userID}
}
