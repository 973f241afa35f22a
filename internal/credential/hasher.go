// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package credential derives and checks Argon2id master-password digests.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"math"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Default Argon2id parameters.
const (
	DefaultSaltSize    = 16
	DefaultKeySize     = 32
	DefaultIterations  = 3
	DefaultMemoryKB    = 64 * 1024
	DefaultParallelism = 4
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("CREDENTIAL_EMPTY_PASSWORD").Errorf("password cannot be empty")

// Params configures Argon2id. The variant and version are fixed; changing any
// of these values invalidates every stored digest.
type Params struct {
	SaltSize    int `koanf:"salt_size"`
	KeySize     int `koanf:"key_size"`
	Iterations  int `koanf:"iterations"`
	MemoryKB    int `koanf:"memory_kb"`
	Parallelism int `koanf:"parallelism"`
}

// DefaultParams returns the default Argon2id parameters.
func DefaultParams() Params {
	return Params{
		SaltSize:    DefaultSaltSize,
		KeySize:     DefaultKeySize,
		Iterations:  DefaultIterations,
		MemoryKB:    DefaultMemoryKB,
		Parallelism: DefaultParallelism,
	}
}

// Validate checks that every parameter is usable by argon2.IDKey.
func (p Params) Validate() error {
	check := func(name string, v, limit int) error {
		if v <= 0 || v > limit {
			return oops.Code("CREDENTIAL_PARAMS_INVALID").
				With("param", name).
				With("value", v).
				Errorf("%s must be between 1 and %d", name, limit)
		}
		return nil
	}
	if err := check("salt_size", p.SaltSize, 1024); err != nil {
		return err
	}
	if err := check("key_size", p.KeySize, 1024); err != nil {
		return err
	}
	if err := check("iterations", p.Iterations, math.MaxUint32); err != nil {
		return err
	}
	if err := check("memory_kb", p.MemoryKB, math.MaxUint32); err != nil {
		return err
	}
	return check("parallelism", p.Parallelism, math.MaxUint8)
}

// GenerateSalt returns size cryptographically random bytes.
func GenerateSalt(size int) ([]byte, error) {
	if size <= 0 {
		return nil, oops.Code("CREDENTIAL_SALT_FAILED").With("size", size).Errorf("salt size must be positive")
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("CREDENTIAL_SALT_FAILED").Wrap(err)
	}
	return salt, nil
}

// Hash computes the Argon2id digest of password with salt. It is
// deterministic for identical inputs. p must have passed Validate.
func Hash(password string, salt []byte, p Params) []byte {
	//nolint:gosec // bounds enforced by Params.Validate
	return argon2.IDKey([]byte(password), salt, uint32(p.Iterations), uint32(p.MemoryKB), uint8(p.Parallelism), uint32(p.KeySize))
}

// Argon2idHasher binds a validated parameter set.
type Argon2idHasher struct {
	params Params
}

// NewArgon2idHasher creates a hasher after validating params.
func NewArgon2idHasher(params Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Params returns the parameters the hasher was built with.
func (h *Argon2idHasher) Params() Params {
	return h.params
}

// Derive generates a fresh salt and returns it with the digest of password.
func (h *Argon2idHasher) Derive(password string) (salt, hash []byte, err error) {
	if password == "" {
		return nil, nil, ErrEmptyPassword
	}
	salt, err = GenerateSalt(h.params.SaltSize)
	if err != nil {
		return nil, nil, err
	}
	return salt, Hash(password, salt, h.params), nil
}

// Verify recomputes the digest with the stored salt and compares it in
// constant time. Corrupt stored data and a wrong password both yield false.
func (h *Argon2idHasher) Verify(password string, salt, hash []byte) bool {
	if password == "" || len(salt) == 0 || len(hash) == 0 {
		return false
	}
	computed := Hash(password, salt, h.params)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}
