package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/session"
)

// AuthorizeFailureKind classifies guard failures for root-level mapping.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureTokenInvalid
	AuthorizeFailureTokenExpired
	AuthorizeFailureRevoked
	AuthorizeFailureSuperseded
	AuthorizeFailurePermissionDenied
	AuthorizeFailureUnavailable
)

// AuthorizeResult returns the verified claims and permission set, or a
// classified failure.
type AuthorizeResult struct {
	Failure     AuthorizeFailureKind
	Err         error
	Claims      *jwt.AccessClaims
	Permissions permission.Set
}

// AuthorizeDeps captures guard dependencies.
type AuthorizeDeps struct {
	ParseAccess  func(string) (*jwt.AccessClaims, error)
	TokenExpired error
	SingleDevice bool
	Snapshot     func(ctx context.Context, tokenID, userID string, withActive bool) (session.GuardSnapshot, error)
	Permissions  func(ctx context.Context, userID string) (permission.Set, error)
}

// RunAuthorize runs the per-request guard. An empty required permission
// authenticates without an authorization check. Any backend error fails
// closed with AuthorizeFailureUnavailable.
func RunAuthorize(ctx context.Context, tokenStr, required string, deps AuthorizeDeps) AuthorizeResult {
	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		if deps.TokenExpired != nil && errors.Is(err, deps.TokenExpired) {
			return AuthorizeResult{Failure: AuthorizeFailureTokenExpired, Err: err}
		}
		return AuthorizeResult{Failure: AuthorizeFailureTokenInvalid, Err: err}
	}

	snap, err := deps.Snapshot(ctx, claims.ID, claims.UID, deps.SingleDevice)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureUnavailable, Err: err, Claims: claims}
	}

	// A missing counter means the cache lost it; treat as revoked rather
	// than trusting the embedded snapshot.
	if !snap.HasPasswordVersion || snap.PasswordVersion != claims.PasswordVersion {
		return AuthorizeResult{Failure: AuthorizeFailureRevoked, Claims: claims}
	}

	if deps.SingleDevice && snap.ActiveTokenID != "" && snap.ActiveTokenID != claims.ID {
		return AuthorizeResult{Failure: AuthorizeFailureSuperseded, Claims: claims}
	}

	if !snap.RecordExists {
		return AuthorizeResult{Failure: AuthorizeFailureRevoked, Claims: claims}
	}

	if required == "" {
		return AuthorizeResult{Claims: claims}
	}

	perms, err := deps.Permissions(ctx, claims.UID)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureUnavailable, Err: err, Claims: claims}
	}
	if !perms.Allows(required) {
		return AuthorizeResult{Failure: AuthorizeFailurePermissionDenied, Claims: claims, Permissions: perms}
	}

	return AuthorizeResult{Claims: claims, Permissions: perms}
}

type PermissionCache interface {
	GetPermissions(ctx context.Context, userID string) (permission.Set, bool, error)
	SetPermissions(ctx context.Context, userID string, set permission.Set, ttl time.Duration) error
}

// PermissionDeps captures cache-or-resolve dependencies.
type PermissionDeps struct {
	Cache   PermissionCache
	TTL     time.Duration
	Resolve func(ctx context.Context, userID string) ([]string, error)
	Warn    func(string, ...any)
}

// RunPermissions returns the cached permission set for userID, resolving and
// caching it on a miss. Cache read failures are returned; a failed cache
// write still returns the freshly resolved set.
func RunPermissions(ctx context.Context, userID string, deps PermissionDeps) (permission.Set, error) {
	set, ok, err := deps.Cache.GetPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		return set, nil
	}

	keys, err := deps.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	set = permission.NewSet(keys...)
	if err := deps.Cache.SetPermissions(ctx, userID, set, deps.TTL); err != nil && deps.Warn != nil {
		deps.Warn("adminauth: permission cache write failed", "user_id", userID, "error", err)
	}
	return set, nil
}
