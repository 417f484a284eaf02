package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcPrefix    = "$argon2id$"
	minPassBytes = 10
)

// DefaultMaxPasswordBytes caps plaintext input when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooLong is returned by Hash and Verify for oversized input.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrPasswordTooShort is returned by Hash for input under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrMalformedHash is returned for stored values that are not argon2id PHC strings.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// floor is the weakest cost accepted both in Config and in stored hashes.
var floor = Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

// Config holds Argon2id cost parameters.
type Config struct {
	Memory           uint32 // KiB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

func (c Config) validate() error {
	switch {
	case c.Memory < floor.Memory:
		return fmt.Errorf("password memory must be >= %d KB", floor.Memory)
	case c.Time < floor.Time:
		return errors.New("password time must be >= 1")
	case c.Parallelism < floor.Parallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < floor.SaltLength:
		return fmt.Errorf("password salt length must be >= %d", floor.SaltLength)
	case c.KeyLength < floor.KeyLength:
		return fmt.Errorf("password key length must be >= %d", floor.KeyLength)
	}
	return nil
}

// Argon2 hashes and verifies passwords as PHC strings.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id hash of password with a fresh salt.
// Input bytes are used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.cfg.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	d := digest{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
	}
	if _, err := rand.Read(d.salt); err != nil {
		return "", err
	}
	d.key = d.derive(password, a.cfg.KeyLength)
	return d.String(), nil
}

// Verify reports whether password matches encodedHash in constant time.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.cfg.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	d, err := parseDigest(encodedHash)
	if err != nil {
		return false, err
	}
	got := d.derive(password, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(got, d.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	d, err := parseDigest(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := d.memory < a.cfg.Memory ||
		d.time < a.cfg.Time ||
		d.parallelism < a.cfg.Parallelism ||
		uint32(len(d.key)) != a.cfg.KeyLength
	return weaker, nil
}

// digest is one decoded PHC record.
type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

// String renders $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (d digest) String() string {
	enc := base64.StdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version, d.memory, d.time, d.parallelism,
		enc.EncodeToString(d.salt), enc.EncodeToString(d.key))
}

func parseDigest(encoded string) (digest, error) {
	var d digest

	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return d, fmt.Errorf("%w: unsupported algorithm", ErrMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return d, fmt.Errorf("%w: expected 4 sections, got %d", ErrMalformedHash, len(fields))
	}

	version, err := strconv.Atoi(strings.TrimPrefix(fields[0], "v="))
	if err != nil || !strings.HasPrefix(fields[0], "v=") {
		return d, fmt.Errorf("%w: bad version", ErrMalformedHash)
	}
	if version != argon2.Version {
		return d, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	if err := d.parseCosts(fields[1]); err != nil {
		return d, err
	}

	enc := base64.StdEncoding
	if d.salt, err = enc.DecodeString(fields[2]); err != nil || len(d.salt) < int(floor.SaltLength) {
		return d, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if d.key, err = enc.DecodeString(fields[3]); err != nil || len(d.key) == 0 {
		return d, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return d, nil
}

// parseCosts reads exactly the three m, t and p entries, in any order.
func (d *digest) parseCosts(section string) error {
	entries := strings.Split(section, ",")
	if len(entries) != 3 {
		return fmt.Errorf("%w: bad parameter list", ErrMalformedHash)
	}

	seen := map[string]bool{}
	for _, entry := range entries {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, entry)
		}
		seen[name] = true

		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, entry)
		}

		switch name {
		case "m":
			d.memory = uint32(v)
		case "t":
			d.time = uint32(v)
		case "p":
			d.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}

	if d.memory < floor.Memory || d.time < floor.Time || d.parallelism < floor.Parallelism {
		return fmt.Errorf("%w: costs below minimum", ErrMalformedHash)
	}
	return nil
}
