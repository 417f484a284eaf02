package password

import (
	"errors"
	"sync"
)

// ErrMismatch is returned by Verifier.Check when the password does not match.
var ErrMismatch = errors.New("password mismatch")

// Verifier checks salted credentials against stored PHC hashes.
type Verifier struct {
	hasher *Argon2

	dummyOnce sync.Once
	dummyHash string
	dummyErr  error
}

// NewVerifier wraps hasher.
func NewVerifier(hasher *Argon2) (*Verifier, error) {
	if hasher == nil {
		return nil, errors.New("password: nil hasher")
	}
	return &Verifier{hasher: hasher}, nil
}

// HashSalted hashes password with the stored per-user salt appended.
func (v *Verifier) HashSalted(password, salt string) (string, error) {
	return v.hasher.Hash(password + salt)
}

// Check returns nil when password+salt matches encodedHash, ErrMismatch when
// it does not, and any other error for malformed hashes or oversized input.
func (v *Verifier) Check(password, salt, encodedHash string) error {
	ok, err := v.hasher.Verify(password+salt, encodedHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatch
	}
	return nil
}

// NeedsUpgrade reports whether encodedHash should be re-hashed.
func (v *Verifier) NeedsUpgrade(encodedHash string) (bool, error) {
	return v.hasher.NeedsUpgrade(encodedHash)
}

// Dummy performs a full verification against a fixed hash and discards the
// result.
func (v *Verifier) Dummy(password string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, v.dummyErr = v.hasher.Hash("adminauth-dummy-credential")
	})
	if v.dummyErr != nil {
		return
	}
	_, _ = v.hasher.Verify(password, v.dummyHash)
}
