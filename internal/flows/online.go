package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/session"
)

const (
	defaultOnlinePageSize = 20
	maxOnlinePageSize     = 200
)

// OnlineCaller identifies who is listing sessions.
type OnlineCaller struct {
	UserID      string
	Permissions permission.Set
}

type OnlineStore interface {
	ListSessions(ctx context.Context, q session.ListQuery) ([]session.OnlineSession, int, error)
	RetirePair(ctx context.Context, tokenID string) (bool, error)
	RetireUser(ctx context.Context, userID string) (int, error)
	BumpPasswordVersion(ctx context.Context, userID string) (int64, error)
}

// OnlineDeps captures online-session management dependencies.
type OnlineDeps struct {
	Store OnlineStore
	// ListAllPermission lets a caller see every user's sessions. Callers
	// without it only see their own.
	ListAllPermission string
}

// OnlinePage is one page of the registry plus the unpaged match count.
type OnlinePage struct {
	Sessions []session.OnlineSession
	Total    int
	Offset   int
	Limit    int
}

// RunListOnline lists registry entries visible to caller.
func RunListOnline(ctx context.Context, q session.ListQuery, caller OnlineCaller, deps OnlineDeps) (OnlinePage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultOnlinePageSize
	}
	if q.Limit > maxOnlinePageSize {
		q.Limit = maxOnlinePageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if deps.ListAllPermission == "" || !caller.Permissions.Allows(deps.ListAllPermission) {
		if caller.UserID == "" {
			return OnlinePage{}, errors.New("online listing requires a caller")
		}
		q.UserID = caller.UserID
	}

	sessions, total, err := deps.Store.ListSessions(ctx, q)
	if err != nil {
		return OnlinePage{}, err
	}
	return OnlinePage{Sessions: sessions, Total: total, Offset: q.Offset, Limit: q.Limit}, nil
}

// RunKick retires tokenID's pair and online entry. It reports whether a live
// record existed; kicking an unknown token is not an error.
func RunKick(ctx context.Context, tokenID string, deps OnlineDeps) (bool, error) {
	if tokenID == "" {
		return false, errors.New("token id required")
	}
	return deps.Store.RetirePair(ctx, tokenID)
}

// RunForceLogout bumps userID's password version, which revokes every
// outstanding token at the guard, then retires the user's pairs so refresh
// tokens and registry entries go too.
func RunForceLogout(ctx context.Context, userID string, deps OnlineDeps) (int, error) {
	if userID == "" {
		return 0, errors.New("user id required")
	}
	if _, err := deps.Store.BumpPasswordVersion(ctx, userID); err != nil {
		return 0, err
	}
	return deps.Store.RetireUser(ctx, userID)
}
