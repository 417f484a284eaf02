package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())

	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestFindUserByUsername(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateUser(ctx, NewUser{Username: "alice", PasswordHash: "$argon2id$x", Salt: "pepper"})
	require.NoError(t, err)

	cred, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, cred.UserID)
	assert.Equal(t, "$argon2id$x", cred.PasswordHash)
	assert.Equal(t, "pepper", cred.Salt)
	assert.Equal(t, adminauth.StatusEnabled, cred.Status)
	assert.Zero(t, cred.PasswordVersion)

	_, err = s.FindUserByUsername(ctx, "mallory")
	assert.True(t, errors.Is(err, adminauth.ErrUserNotFound))

	_, err = s.CreateUser(ctx, NewUser{Username: "alice", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRolesAndPermissions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	uid, err := s.CreateUser(ctx, NewUser{Username: "bob", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.CreateRole(ctx, "viewer", "Viewer", "system:user:list", "monitor:online:list")
	require.NoError(t, err)
	_, err = s.CreateRole(ctx, "auditor", "", "system:log:list", "system:user:list")
	require.NoError(t, err)

	require.NoError(t, s.GrantRole(ctx, uid, "viewer"))
	require.NoError(t, s.GrantRole(ctx, uid, "auditor"))
	require.NoError(t, s.GrantRole(ctx, uid, "auditor"))
	assert.ErrorIs(t, s.GrantRole(ctx, uid, "ghost"), ErrNotFound)

	roles, err := s.ResolveRoles(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"auditor", "viewer"}, roles)

	perms, err := s.ResolvePermissions(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"monitor:online:list", "system:log:list", "system:user:list"}, perms)

	require.NoError(t, s.SetRoleEnabled(ctx, "auditor", false))
	perms, err = s.ResolvePermissions(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"monitor:online:list", "system:user:list"}, perms)

	require.NoError(t, s.SetRolePermissions(ctx, "viewer", "system:dept:list"))
	perms, err = s.ResolvePermissions(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"system:dept:list"}, perms)

	require.NoError(t, s.RevokeRole(ctx, uid, "viewer"))
	roles, err = s.ResolveRoles(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, roles)

	assert.ErrorIs(t, s.SetRolePermissions(ctx, "ghost"), ErrNotFound)
}

func TestSetPasswordRaisesVersion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	uid, err := s.CreateUser(ctx, NewUser{Username: "carol", PasswordHash: "old", Salt: "a"})
	require.NoError(t, err)

	v, err := s.SetPassword(ctx, uid, "new", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	cred, err := s.FindUserByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "new", cred.PasswordHash)
	assert.Equal(t, int64(1), cred.PasswordVersion)

	_, err = s.SetPassword(ctx, "missing", "x", "y")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetUserStatus(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	uid, err := s.CreateUser(ctx, NewUser{Username: "dora", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, s.SetUserStatus(ctx, uid, adminauth.StatusDisabled))

	cred, err := s.FindUserByUsername(ctx, "dora")
	require.NoError(t, err)
	assert.Equal(t, adminauth.StatusDisabled, cred.Status)

	assert.ErrorIs(t, s.SetUserStatus(ctx, "missing", adminauth.StatusEnabled), ErrNotFound)
}

func TestLoginLog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	base := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return base }
	require.NoError(t, s.LogLogin(ctx, "u1", "10.0.0.1", "curl"))
	s.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, s.LogLogin(ctx, "u1", "10.0.0.2", "firefox"))
	require.NoError(t, s.LogLogin(ctx, "u2", "10.0.0.3", "curl"))

	events, err := s.RecentLogins(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "10.0.0.2", events[0].IP)
	assert.Equal(t, base.Add(time.Minute).UTC(), events[0].At)
	assert.Equal(t, "curl", events[1].UserAgent)
}
