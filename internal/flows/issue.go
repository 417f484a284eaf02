package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/session"
)

// Identity is the subject a token pair is minted for.
type Identity struct {
	UserID          string
	Username        string
	PasswordVersion int64
	Roles           []string
}

// IssueRequest carries the identity plus the client metadata recorded in the
// online-session registry.
type IssueRequest struct {
	Identity
	IP        string
	UserAgent string
	LoginAt   time.Time
}

// IssuedTokens is the client-facing half of a freshly minted pair.
type IssuedTokens struct {
	TokenID          string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type PairWriter interface {
	SaveIssued(ctx context.Context, p *session.IssuedPair) error
}

// IssueDeps captures token-pair issuance dependencies.
type IssueDeps struct {
	Now                func() time.Time
	RefreshTTL         time.Duration
	NewTokenID         func() (string, error)
	NewRefreshSecret   func() ([32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	EncodeRefreshToken func(string, [32]byte) (string, error)
	CreateAccess       func(jwt.AccessInput) (string, time.Time, error)
	Store              PairWriter
}

// RunIssue mints an access token and its paired refresh token, then persists
// the access record, refresh record and online session. Nothing is persisted
// when signing fails; nothing is returned when persisting fails.
func RunIssue(ctx context.Context, req IssueRequest, deps IssueDeps) (*IssuedTokens, error) {
	if deps.Store == nil || deps.CreateAccess == nil || deps.NewTokenID == nil {
		return nil, errors.New("issuer not configured")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	tokenID, err := deps.NewTokenID()
	if err != nil {
		return nil, err
	}
	refreshID, err := deps.NewTokenID()
	if err != nil {
		return nil, err
	}
	secret, err := deps.NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	refreshToken, err := deps.EncodeRefreshToken(refreshID, secret)
	if err != nil {
		return nil, err
	}

	accessToken, accessExp, err := deps.CreateAccess(jwt.AccessInput{
		UserID:          req.UserID,
		Username:        req.Username,
		TokenID:         tokenID,
		PasswordVersion: req.PasswordVersion,
		Roles:           req.Roles,
	})
	if err != nil {
		return nil, err
	}

	now := deps.Now()
	loginAt := req.LoginAt
	if loginAt.IsZero() {
		loginAt = now
	}
	refreshExp := now.Add(deps.RefreshTTL)

	pair := &session.IssuedPair{
		Access: session.AccessRecord{
			TokenID:         tokenID,
			RefreshID:       refreshID,
			UserID:          req.UserID,
			Username:        req.Username,
			PasswordVersion: req.PasswordVersion,
			Roles:           req.Roles,
			IssuedAt:        now.Unix(),
			ExpiresAt:       accessExp.Unix(),
		},
		Refresh: session.RefreshRecord{
			RefreshID:     refreshID,
			AccessTokenID: tokenID,
			UserID:        req.UserID,
			ExpiresAt:     refreshExp.Unix(),
		},
		RefreshHash: deps.HashRefreshSecret(secret),
		Online: session.OnlineSession{
			TokenID:   tokenID,
			UserID:    req.UserID,
			Username:  req.Username,
			IP:        req.IP,
			UserAgent: req.UserAgent,
			LoginAt:   loginAt.Unix(),
			ExpiresAt: refreshExp.Unix(),
		},
		TTL: deps.RefreshTTL,
	}
	if err := deps.Store.SaveIssued(ctx, pair); err != nil {
		return nil, err
	}

	return &IssuedTokens{
		TokenID:          tokenID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
