// Package sqlite is the bundled identity store: admin accounts, roles,
// role permissions and the login log, kept in a SQLite database.
//
// *Store implements adminauth.UserProvider, adminauth.RoleResolver and
// adminauth.LoginLogger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("identity: not found")
	ErrDuplicate = errors.New("identity: already exists")
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ adminauth.UserProvider = (*Store)(nil)
	_ adminauth.RoleResolver = (*Store)(nil)
	_ adminauth.LoginLogger  = (*Store)(nil)
)

// Open connects to the database at dsn. Call ApplyMigrations before use.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction and commits when it returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

/*
====================================
COLLABORATORS
====================================
*/

// FindUserByUsername loads one credential. Unknown usernames return an
// error wrapping adminauth.ErrUserNotFound.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (adminauth.UserCredential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, salt, status, password_version
		FROM users WHERE username = ?`, username)

	var (
		cred   adminauth.UserCredential
		status int
	)
	err := row.Scan(&cred.UserID, &cred.Username, &cred.PasswordHash, &cred.Salt, &status, &cred.PasswordVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return adminauth.UserCredential{}, fmt.Errorf("%w: %s", adminauth.ErrUserNotFound, username)
	}
	if err != nil {
		return adminauth.UserCredential{}, err
	}
	cred.Status = adminauth.UserStatus(status)
	return cred, nil
}

// ResolveRoles returns the keys of the user's enabled roles, sorted.
func (s *Store) ResolveRoles(ctx context.Context, userID string) ([]string, error) {
	return s.strings(ctx, `
		SELECT r.role_key
		FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.status = 0
		ORDER BY r.role_key`, userID)
}

// ResolvePermissions returns the union of permissions granted by the user's
// enabled roles.
func (s *Store) ResolvePermissions(ctx context.Context, userID string) ([]string, error) {
	return s.strings(ctx, `
		SELECT DISTINCT rp.permission
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		JOIN role_permissions rp ON rp.role_id = r.id
		WHERE ur.user_id = ? AND r.status = 0
		ORDER BY rp.permission`, userID)
}

// LogLogin appends a login_log row.
func (s *Store) LogLogin(ctx context.Context, userID, ip, userAgent string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_log (user_id, ip, user_agent, login_at) VALUES (?, ?, ?, ?)`,
		userID, ip, userAgent, s.now().Unix())
	return err
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

/*
====================================
ADMINISTRATION
====================================
*/

// NewUser is the input of CreateUser. PasswordHash must already be hashed
// with Salt appended.
type NewUser struct {
	Username     string
	PasswordHash string
	Salt         string
	Disabled     bool
}

// CreateUser inserts an account and returns its id.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (string, error) {
	if strings.TrimSpace(u.Username) == "" || u.PasswordHash == "" {
		return "", errors.New("identity: username and password hash are required")
	}

	id := ulid.Make().String()
	now := s.now().Unix()
	status := adminauth.StatusEnabled
	if u.Disabled {
		status = adminauth.StatusDisabled
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, salt, status, password_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		id, u.Username, u.PasswordHash, u.Salt, int(status), now, now)
	if err != nil {
		return "", mapConstraint(err)
	}
	return id, nil
}

// SetPassword replaces the stored hash and raises password_version, returning
// the new version. Pass that version to Engine.PasswordChanged to end live
// sessions.
func (s *Store) SetPassword(ctx context.Context, userID, hash, salt string) (int64, error) {
	var version int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET password_hash = ?, salt = ?, password_version = password_version + 1, updated_at = ?
			WHERE id = ?`, hash, salt, s.now().Unix(), userID)
		if err != nil {
			return err
		}
		if err := expectRow(res); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT password_version FROM users WHERE id = ?`, userID).Scan(&version)
	})
	return version, err
}

func (s *Store) SetUserStatus(ctx context.Context, userID string, status adminauth.UserStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		int(status), s.now().Unix(), userID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// CreateRole inserts a role with its permission keys and returns its id.
func (s *Store) CreateRole(ctx context.Context, key, name string, permissions ...string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("identity: role key is required")
	}
	if name == "" {
		name = key
	}

	id := ulid.Make().String()
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roles (id, role_key, name, status, created_at) VALUES (?, ?, ?, 0, ?)`,
			id, key, name, s.now().Unix()); err != nil {
			return mapConstraint(err)
		}
		return insertPermissions(ctx, tx, id, permissions)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetRolePermissions replaces the permission keys of the role with key.
func (s *Store) SetRolePermissions(ctx context.Context, key string, permissions ...string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE role_key = ?`, key).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = ?`, id); err != nil {
			return err
		}
		return insertPermissions(ctx, tx, id, permissions)
	})
}

// SetRoleEnabled toggles a role. Disabled roles grant nothing.
func (s *Store) SetRoleEnabled(ctx context.Context, key string, enabled bool) error {
	status := 1
	if enabled {
		status = 0
	}
	res, err := s.db.ExecContext(ctx, `UPDATE roles SET status = ? WHERE role_key = ?`, status, key)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// GrantRole assigns the role with key to userID. Granting twice is a no-op.
func (s *Store) GrantRole(ctx context.Context, userID, key string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_id, role_id)
		SELECT ?, id FROM roles WHERE role_key = ?`, userID, key)
	if err != nil {
		return mapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either already granted or the role does not exist.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE role_key = ?`, key).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *Store) RevokeRole(ctx context.Context, userID, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_roles
		WHERE user_id = ? AND role_id = (SELECT id FROM roles WHERE role_key = ?)`, userID, key)
	return err
}

// LoginEvent is one login_log row.
type LoginEvent struct {
	UserID    string
	IP        string
	UserAgent string
	At        time.Time
}

// RecentLogins returns up to limit logins for userID, newest first.
func (s *Store) RecentLogins(ctx context.Context, userID string, limit int) ([]LoginEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, ip, user_agent, login_at FROM login_log
		WHERE user_id = ? ORDER BY login_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoginEvent
	for rows.Next() {
		var (
			ev LoginEvent
			at int64
		)
		if err := rows.Scan(&ev.UserID, &ev.IP, &ev.UserAgent, &at); err != nil {
			return nil, err
		}
		ev.At = time.Unix(at, 0).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func insertPermissions(ctx context.Context, tx *sql.Tx, roleID string, permissions []string) error {
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO role_permissions (role_id, permission) VALUES (?, ?)`, roleID, p); err != nil {
			return err
		}
	}
	return nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
