package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// TokenID is the 128-bit random identifier shared by access tokens (jti),
// refresh records and online-session entries.
type TokenID [16]byte

// A refresh token is base64url(refreshID || secret): 16 + 32 bytes.
const refreshTokenLen = len(TokenID{}) + 32

// ErrMalformedRefreshToken is returned by DecodeRefreshToken for any input that
// is not a well-formed opaque refresh token.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

var b64 = base64.RawURLEncoding

// NewTokenID draws a fresh identifier from crypto/rand.
func NewTokenID() (TokenID, error) {
	var id TokenID
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("token id: %w", err)
	}
	return id, nil
}

// String renders the id as unpadded base64url (22 characters).
func (t TokenID) String() string { return b64.EncodeToString(t[:]) }

// ParseTokenID reverses TokenID.String.
func ParseTokenID(s string) (TokenID, error) {
	var id TokenID
	if b64.DecodedLen(len(s)) != len(id) {
		return id, errors.New("invalid token id size")
	}
	if _, err := b64.Decode(id[:], []byte(s)); err != nil {
		return id, err
	}
	return id, nil
}

// NewRefreshSecret draws the 32-byte secret half of a refresh token.
func NewRefreshSecret() ([32]byte, error) {
	var s [32]byte
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("refresh secret: %w", err)
	}
	return s, nil
}

// HashRefreshSecret is the only form of the secret that is persisted.
func HashRefreshSecret(secret [32]byte) [32]byte { return sha256.Sum256(secret[:]) }

// EncodeRefreshToken packs refreshID and secret into the opaque value handed
// to clients.
func EncodeRefreshToken(refreshID string, secret [32]byte) (string, error) {
	id, err := ParseTokenID(refreshID)
	if err != nil {
		return "", err
	}
	raw := make([]byte, 0, refreshTokenLen)
	raw = append(raw, id[:]...)
	raw = append(raw, secret[:]...)
	return b64.EncodeToString(raw), nil
}

// DecodeRefreshToken splits a client refresh token into its record id and
// secret.
func DecodeRefreshToken(token string) (refreshID string, secret [32]byte, err error) {
	raw, err := b64.DecodeString(token)
	if err != nil || len(raw) != refreshTokenLen {
		return "", secret, ErrMalformedRefreshToken
	}
	var id TokenID
	n := copy(id[:], raw)
	copy(secret[:], raw[n:])
	return id.String(), secret, nil
}
