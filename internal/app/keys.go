package app

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// KeyPair is PEM-encoded ed25519 key material as accepted by the jwt
// package (PKCS#8 private key, PKIX public key).
type KeyPair struct {
	PrivatePEM []byte
	PublicPEM  []byte
}

// GenerateKeyPair creates a fresh ed25519 signing key.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return KeyPair{}, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		PrivatePEM: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}),
		PublicPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
	}, nil
}

// WriteFiles writes the pair to disk. The private key is owner-readable only.
func (k KeyPair) WriteFiles(privatePath, publicPath string) error {
	if err := os.WriteFile(privatePath, k.PrivatePEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(publicPath, k.PublicPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}

// loadKeys returns the private and public key bytes for the configured
// signing method. ephemeral is true when dev mode generated a throwaway
// ed25519 pair.
func loadKeys(cfg Config) (priv, pub []byte, ephemeral bool, err error) {
	if cfg.Auth.SigningMethod == "hs256" {
		if cfg.Auth.Secret == "" {
			if cfg.Env != "dev" {
				return nil, nil, false, errors.New("auth.secret is required for hs256")
			}
			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, nil, false, err
			}
			return secret, nil, true, nil
		}
		return []byte(cfg.Auth.Secret), nil, false, nil
	}

	if cfg.Auth.PrivateKeyFile == "" && cfg.Auth.PublicKeyFile == "" {
		if cfg.Env != "dev" {
			return nil, nil, false, errors.New("auth key files are required")
		}
		kp, err := GenerateKeyPair()
		if err != nil {
			return nil, nil, false, err
		}
		return kp.PrivatePEM, kp.PublicPEM, true, nil
	}

	priv, err = os.ReadFile(cfg.Auth.PrivateKeyFile)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read private key: %w", err)
	}
	pub, err = os.ReadFile(cfg.Auth.PublicKeyFile)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read public key: %w", err)
	}
	return priv, pub, false, nil
}
