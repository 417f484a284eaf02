package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureRevoked
	RefreshFailureSuperseded
	RefreshFailureAccountDisabled
	RefreshFailureBackend
	RefreshFailureIssue
)

// RefreshRequest is the flow-local refresh input.
type RefreshRequest struct {
	RefreshToken string
	IP           string
	UserAgent    string
}

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure     RefreshFailureKind
	Err         error
	UserID      string
	ParentToken string
	Roles       []string
	Tokens      *IssuedTokens
}

type RefreshStore interface {
	ClaimRefresh(ctx context.Context, refreshID string, hash [32]byte, now time.Time, claimTTL time.Duration) (*session.RefreshRecord, error)
	ReleaseRefreshClaim(ctx context.Context, refreshID string) error
	GetAccess(ctx context.Context, tokenID string) (*session.AccessRecord, error)
	GetOnline(ctx context.Context, tokenID string) (*session.OnlineSession, error)
	SeedPasswordVersion(ctx context.Context, userID string, floor int64) (int64, error)
	GetActiveToken(ctx context.Context, userID string) (string, error)
	ReplaceActiveToken(ctx context.Context, userID, expected, next string, ttl time.Duration) (bool, error)
	RetirePair(ctx context.Context, tokenID string) (bool, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now                func() time.Time
	ClaimTTL           time.Duration
	DecodeRefreshToken func(string) (string, [32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	Store              RefreshStore
	FindUser           func(ctx context.Context, username string) (LoginUser, error)
	UserNotFound       error
	ResolveRoles       func(ctx context.Context, userID string) ([]string, error)
	SingleDevice       bool
	Warn               func(string, ...any)
	Issue              IssueDeps
}

// RunRefresh rotates a refresh token: it claims the old pair, mints a new
// one from the user's current roles and password version, and only then
// retires the old pair. A failure after the claim releases it so the client
// can retry with the same token.
func RunRefresh(ctx context.Context, req RefreshRequest, deps RefreshDeps) RefreshResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	refreshID, secret, err := deps.DecodeRefreshToken(req.RefreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNotFound, Err: err}
	}

	rec, err := deps.Store.ClaimRefresh(ctx, refreshID, deps.HashRefreshSecret(secret), deps.Now(), deps.ClaimTTL)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshExpired):
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		case errors.Is(err, session.ErrRefreshNotFound),
			errors.Is(err, session.ErrRefreshHashMismatch),
			errors.Is(err, session.ErrRefreshClaimed):
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err}
		default:
			return RefreshResult{Failure: RefreshFailureBackend, Err: err}
		}
	}

	res := RefreshResult{UserID: rec.UserID, ParentToken: rec.AccessTokenID}
	release := func() {
		if err := deps.Store.ReleaseRefreshClaim(ctx, refreshID); err != nil {
			deps.Warn("adminauth: refresh claim release failed", "error", err)
		}
	}
	retireOld := func() {
		if _, err := deps.Store.RetirePair(ctx, rec.AccessTokenID); err != nil {
			deps.Warn("adminauth: refresh pair retire failed", "token_id", rec.AccessTokenID, "error", err)
		}
	}
	fail := func(kind RefreshFailureKind, err error) RefreshResult {
		res.Failure, res.Err = kind, err
		return res
	}

	parent, err := deps.Store.GetAccess(ctx, rec.AccessTokenID)
	if err != nil {
		if errors.Is(err, session.ErrRecordNotFound) {
			retireOld()
			return fail(RefreshFailureNotFound, err)
		}
		release()
		return fail(RefreshFailureBackend, err)
	}

	user, err := deps.FindUser(ctx, parent.Username)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			retireOld()
			return fail(RefreshFailureNotFound, err)
		}
		release()
		return fail(RefreshFailureBackend, err)
	}
	if user.UserID != parent.UserID {
		// Username was reassigned to a different account.
		retireOld()
		return fail(RefreshFailureNotFound, errors.New("refresh subject changed"))
	}
	if !user.Enabled {
		retireOld()
		return fail(RefreshFailureAccountDisabled, errors.New("account disabled"))
	}

	version, err := deps.Store.SeedPasswordVersion(ctx, user.UserID, user.PasswordVersion)
	if err != nil {
		release()
		return fail(RefreshFailureBackend, err)
	}
	if version != parent.PasswordVersion {
		retireOld()
		return fail(RefreshFailureRevoked, nil)
	}

	if deps.SingleDevice {
		active, err := deps.Store.GetActiveToken(ctx, user.UserID)
		if err != nil {
			release()
			return fail(RefreshFailureBackend, err)
		}
		if active != "" && active != parent.TokenID {
			retireOld()
			return fail(RefreshFailureSuperseded, nil)
		}
	}

	roles, err := deps.ResolveRoles(ctx, user.UserID)
	if err != nil {
		release()
		return fail(RefreshFailureBackend, err)
	}
	res.Roles = roles

	loginAt := deps.Now()
	if online, err := deps.Store.GetOnline(ctx, parent.TokenID); err == nil {
		loginAt = time.Unix(online.LoginAt, 0)
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
		LoginAt:   loginAt,
	}, deps.Issue)
	if err != nil {
		release()
		return fail(RefreshFailureIssue, err)
	}

	retireNew := func() {
		if _, err := deps.Store.RetirePair(ctx, tokens.TokenID); err != nil {
			deps.Warn("adminauth: rotated pair cleanup failed", "token_id", tokens.TokenID, "error", err)
		}
	}

	if deps.SingleDevice {
		ok, err := deps.Store.ReplaceActiveToken(ctx, user.UserID, parent.TokenID, tokens.TokenID, deps.Issue.RefreshTTL)
		if err != nil {
			retireNew()
			release()
			return fail(RefreshFailureBackend, err)
		}
		if !ok {
			// A newer login took the slot between the check and the swap.
			retireNew()
			retireOld()
			return fail(RefreshFailureSuperseded, nil)
		}
	}

	// The new pair is live before the old one goes away.
	existed, err := deps.Store.RetirePair(ctx, parent.TokenID)
	if err != nil {
		// Old pair stays valid until its TTL; the claim blocks its reuse.
		deps.Warn("adminauth: refresh pair retire failed", "token_id", parent.TokenID, "error", err)
	} else if !existed {
		// Kicked while rotating: the successor must not outlive the kick.
		retireNew()
		return fail(RefreshFailureNotFound, session.ErrRecordNotFound)
	}

	res.Tokens = tokens
	return res
}
