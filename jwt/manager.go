package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the access-token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys (raw or PEM).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 using PrivateKey as the shared secret.
	MethodHS256 SigningMethod = "hs256"
)

var (
	// ErrExpired is returned by ParseAccess when the signature is valid but exp has passed.
	ErrExpired = errors.New("access token expired")
	// ErrInvalid is returned by ParseAccess for malformed, tampered or foreign tokens.
	ErrInvalid = errors.New("access token invalid")
)

const (
	maxLeeway       = 2 * time.Minute
	defaultFutureIA = 10 * time.Minute
	maxFutureIAT    = 24 * time.Hour
	minHMACSecret   = 32
)

// Config holds signing and validation parameters for Manager.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration

	// KeyID is stamped into the kid header. When VerifyKeys is set, tokens
	// are verified against the key their kid names.
	KeyID      string
	VerifyKeys map[string][]byte

	// Now overrides the wall clock for issuance and validation.
	Now func() time.Time
}

// AccessClaims is the payload of an access token. ID (jti) is the token id
// that keys the server-side access record.
type AccessClaims struct {
	UID             string   `json:"uid"`
	Username        string   `json:"unm,omitempty"`
	PasswordVersion int64    `json:"pv"`
	Roles           []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// AccessInput is the identity material embedded into a new access token.
type AccessInput struct {
	UserID          string
	Username        string
	TokenID         string
	PasswordVersion int64
	Roles           []string
}

// Manager signs and verifies access tokens. Keys are decoded once, in
// NewManager.
type Manager struct {
	cfg    Config
	method jwt.SigningMethod
	parser *jwt.Parser

	signKey   any
	verifyKey any
	keyring   map[string]any
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultFutureIA
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > maxFutureIAT {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{cfg: cfg}
	if err := m.loadKeys(); err != nil {
		return nil, err
	}
	if cfg.KeyID != "" && len(m.keyring) > 0 {
		if _, ok := m.keyring[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func (m *Manager) loadKeys() error {
	switch m.cfg.SigningMethod {
	case MethodHS256:
		if len(m.cfg.PrivateKey) < minHMACSecret {
			return fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACSecret)
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = m.cfg.PrivateKey
		m.verifyKey = m.cfg.PrivateKey
		if len(m.cfg.VerifyKeys) > 0 {
			m.keyring = make(map[string]any, len(m.cfg.VerifyKeys))
			for kid, secret := range m.cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return errors.New("verify key map contains empty kid")
				}
				m.keyring[kid] = secret
			}
		}
		return nil

	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(m.cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(m.cfg.PrivateKey)
			if err != nil {
				return err
			}
			m.signKey = priv
		}
		if len(m.cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(m.cfg.PublicKey)
			if err != nil {
				return err
			}
			m.verifyKey = pub
		}
		if len(m.cfg.VerifyKeys) > 0 {
			m.keyring = make(map[string]any, len(m.cfg.VerifyKeys))
			for kid, raw := range m.cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return errors.New("verify key map contains empty kid")
				}
				pub, err := parseEdPublicKey(raw)
				if err != nil {
					return fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
				}
				m.keyring[kid] = pub
			}
		}
		if m.verifyKey == nil && len(m.keyring) == 0 {
			return errors.New("ed25519 requires public key or verify key set")
		}
		return nil

	default:
		return errors.New("unsupported signing method")
	}
}

// CreateAccess signs a new access token and returns it with its expiry.
func (m *Manager) CreateAccess(in AccessInput) (string, time.Time, error) {
	if in.UserID == "" || in.TokenID == "" {
		return "", time.Time{}, errors.New("access token requires user id and token id")
	}
	if m.signKey == nil {
		return "", time.Time{}, errors.New("no signing key configured")
	}

	now := m.cfg.Now()
	exp := now.Add(m.cfg.AccessTTL)

	claims := AccessClaims{
		UID:             in.UserID,
		Username:        in.Username,
		PasswordVersion: in.PasswordVersion,
		Roles:           in.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        in.TokenID,
			Subject:   in.UserID,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.cfg.KeyID != "" {
		token.Header["kid"] = m.cfg.KeyID
	}
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess verifies signature, algorithm, issuer, audience and expiry.
// Failures are reported as ErrExpired or ErrInvalid (wrapping the cause).
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFor)
	if err != nil {
		// Expiry is only reported once the signature checked out.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !token.Valid {
		return nil, ErrInvalid
	}

	if claims.UID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing uid or jti", ErrInvalid)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.cfg.Now().Add(m.cfg.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}
	return claims, nil
}

func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)

	if len(m.keyring) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.keyring[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	}
	if m.cfg.KeyID != "" && kid != m.cfg.KeyID {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return m.verifyKey, nil
}

// parseEdPrivateKey accepts a raw 64-byte key or a PKCS#8 PEM block.
func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return priv, nil
}

// parseEdPublicKey accepts a raw 32-byte key or a PKIX PEM block.
func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return pub, nil
}
