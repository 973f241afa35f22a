// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package account implements the account lifecycle: signup, email
// verification, login, credential rotation, email change and deletion.
package account

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// State gates which operations an account may perform.
type State string

// Account states. The only transition is StateUnverified to StateVerified.
const (
	StateUnverified State = "UNVERIFIED"
	StateVerified   State = "VERIFIED"
)

// Field limits.
const (
	MaxEmailLength   = 100
	MaxHintLength    = 100
	MaxPropicBytes   = 4 * 1024 * 1024
	ChangeCodeDigits = 6
)

// Account is the persisted identity record keyed by email.
type Account struct {
	ID    ulid.ULID
	Email string
	State State

	Salt         []byte
	PasswordHash []byte

	// Client-encrypted material, stored verbatim.
	ProtectedSymmetricKey string
	InitializationVector  string

	Hint     string
	Propic   string
	Language string

	CreatedAt         time.Time
	LastAccessAt      time.Time
	PasswordChangedAt time.Time
	EmailChangedAt    time.Time

	// Pending is non-nil only while a confirmation code is outstanding.
	Pending *Pending
}

// Pending is an operation awaiting confirmation by code: either the initial
// signup confirmation or, when EmailChange is set, an email change.
type Pending struct {
	Code        string
	EmailChange *EmailChange
}

// EmailChange tracks an in-flight email change.
type EmailChange struct {
	NewEmail string
	Attempt  int
}

// PendingEmailChange returns the in-flight email change, if any.
func (a *Account) PendingEmailChange() *EmailChange {
	if a.Pending == nil {
		return nil
	}
	return a.Pending.EmailChange
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Salt = append([]byte(nil), a.Salt...)
	c.PasswordHash = append([]byte(nil), a.PasswordHash...)
	if a.Pending != nil {
		p := *a.Pending
		if a.Pending.EmailChange != nil {
			ec := *a.Pending.EmailChange
			p.EmailChange = &ec
		}
		c.Pending = &p
	}
	return &c
}

// Access is returned by a successful login.
type Access struct {
	Token                 string    `json:"token"`
	TokenPublicKey        string    `json:"tokenPublicKey"`
	ProtectedSymmetricKey string    `json:"protectedSymmetricKey"`
	InitializationVector  string    `json:"initializationVector"`
	Language              string    `json:"language"`
	Propic                string    `json:"propic"`
	Hint                  string    `json:"hint"`
	TimestampCreation     time.Time `json:"timestampCreation"`
	TimestampLastAccess   time.Time `json:"timestampLastAccess"`
	TimestampPassword     time.Time `json:"timestampPassword"`
	TimestampEmail        time.Time `json:"timestampEmail"`
}

func newAccess(a *Account, tok, publicKey string) *Access {
	return &Access{
		Token:                 tok,
		TokenPublicKey:        publicKey,
		ProtectedSymmetricKey: a.ProtectedSymmetricKey,
		InitializationVector:  a.InitializationVector,
		Language:              a.Language,
		Propic:                a.Propic,
		Hint:                  a.Hint,
		TimestampCreation:     a.CreatedAt,
		TimestampLastAccess:   a.LastAccessAt,
		TimestampPassword:     a.PasswordChangedAt,
		TimestampEmail:        a.EmailChangedAt,
	}
}

// advance moves *ts to now unless that would move it backwards.
func advance(ts *time.Time, now time.Time) {
	if now.After(*ts) {
		*ts = now
	}
}
