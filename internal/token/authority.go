// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package token issues and verifies RS256 bearer tokens signed by a
// periodically rotated keypair.
package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/keyward/keyward/pkg/errutil"
)

// Defaults for Config.
const (
	DefaultTTL     = 15 * time.Minute
	DefaultKeyBits = 2048
	minKeyBits     = 1024
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// expiry, wrong algorithm, or malformed input are deliberately indistinguishable.
var ErrInvalidToken = oops.Code("TOKEN_INVALID").Wrap(errutil.ErrUnauthenticated)

// Claims binds a subject to an account.
type Claims struct {
	Subject   string
	AccountID string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config configures an Authority.
type Config struct {
	TTL              time.Duration `koanf:"ttl"`
	RotationInterval time.Duration `koanf:"rotation_interval"`
	KeyBits          int           `koanf:"key_bits"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").With("ttl", c.TTL).Errorf("token ttl must be positive")
	}
	if c.RotationInterval < 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").With("rotation_interval", c.RotationInterval).
			Errorf("rotation interval cannot be negative")
	}
	if c.KeyBits < minKeyBits {
		return oops.Code("TOKEN_CONFIG_INVALID").With("key_bits", c.KeyBits).
			Errorf("key size must be at least %d bits", minKeyBits)
	}
	return nil
}

type jwtClaims struct {
	AccountID string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type keyPair struct {
	private   *rsa.PrivateKey
	publicB64 string
}

// Authority owns the active signing keypair. The pair is replaced as a whole;
// readers load it once per call and never observe a partial update.
type Authority struct {
	keys    atomic.Pointer[keyPair]
	ttl     time.Duration
	bits    int
	now     func() time.Time
	logger  *slog.Logger
	rotated atomic.Int64
}

// Option configures an Authority.
type Option func(*Authority)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// WithLogger sets the logger used for rotation events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

// NewAuthority validates cfg and generates the initial keypair.
func NewAuthority(cfg Config, opts ...Option) (*Authority, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Authority{
		ttl:    cfg.TTL,
		bits:   cfg.KeyBits,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.Rotate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Rotate generates a new keypair and swaps it in. Tokens signed by the
// previous key stop verifying immediately.
func (a *Authority) Rotate() error {
	kp, err := generateKeyPair(a.bits)
	if err != nil {
		return err
	}
	a.keys.Store(kp)
	a.rotated.Add(1)
	a.logger.Info("token keypair rotated", "generation", a.rotated.Load())
	return nil
}

// Issue signs claims with the active private key. Subject defaults to the
// claims email when empty.
func (a *Authority) Issue(c Claims) (string, error) {
	kp := a.keys.Load()
	now := a.now()
	subject := c.Subject
	if subject == "" {
		subject = c.Email
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwtClaims{
		AccountID: c.AccountID,
		Email:     c.Email,
		Role:      c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	signed, err := tok.SignedString(kp.private)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("subject", subject).Wrap(err)
	}
	return signed, nil
}

// Verify checks raw against the active public key and returns its claims.
func (a *Authority) Verify(raw string) (*Claims, error) {
	kp := a.keys.Load()
	parsed := &jwtClaims{}
	_, err := jwt.ParseWithClaims(raw, parsed,
		func(*jwt.Token) (any, error) { return &kp.private.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		Subject:   parsed.Subject,
		AccountID: parsed.AccountID,
		Email:     parsed.Email,
		Role:      parsed.Role,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}

// PublicKey returns the active public key as base64-encoded PKIX DER.
func (a *Authority) PublicKey() string {
	return a.keys.Load().publicB64
}

// Generation reports how many keypairs have been installed.
func (a *Authority) Generation() int64 {
	return a.rotated.Load()
}

func generateKeyPair(bits int) (*keyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, oops.Code("TOKEN_KEYGEN_FAILED").With("bits", bits).Wrap(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, oops.Code("TOKEN_KEYGEN_FAILED").With("operation", "encode public key").Wrap(err)
	}
	return &keyPair{private: private, publicB64: base64.StdEncoding.EncodeToString(der)}, nil
}
