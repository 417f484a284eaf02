package session

import "time"

// AccessRecord is the server-side twin of an issued access token. Its
// presence is what keeps the token (and its refresh token) usable.
type AccessRecord struct {
	TokenID         string
	RefreshID       string
	UserID          string
	Username        string
	PasswordVersion int64
	Roles           []string
	IssuedAt        int64
	ExpiresAt       int64
}

// RefreshRecord links an opaque refresh token to its parent access record.
// Only the SHA-256 of the refresh secret is persisted.
type RefreshRecord struct {
	RefreshID     string
	AccessTokenID string
	UserID        string
	ExpiresAt     int64
}

// OnlineSession is one entry of the online-session registry.
type OnlineSession struct {
	TokenID   string
	UserID    string
	Username  string
	IP        string
	UserAgent string
	LoginAt   int64
	ExpiresAt int64
}

// IssuedPair groups everything written when a token pair is minted.
type IssuedPair struct {
	Access      AccessRecord
	Refresh     RefreshRecord
	RefreshHash [32]byte
	Online      OnlineSession

	// TTL bounds every key of the pair; normally the refresh lifetime.
	TTL time.Duration
}

// GuardSnapshot is the per-request state read by the authorization guard in a
// single round trip.
type GuardSnapshot struct {
	RecordExists       bool
	PasswordVersion    int64
	HasPasswordVersion bool
	ActiveTokenID      string
}

// ListQuery filters and pages the online-session registry. Username and IP
// are substring matches; an empty field matches everything.
type ListQuery struct {
	UserID   string
	Username string
	IP       string
	Offset   int
	Limit    int
}
