// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import (
	"github.com/samber/oops"

	"github.com/keyward/keyward/pkg/errutil"
)

// Error codes returned by the lifecycle.
const (
	CodeAccountExists          = "ACCOUNT_EXISTS"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAccountUnverified      = "ACCOUNT_UNVERIFIED"
	CodeChangeCodeMismatch     = "EMAIL_CHANGE_CODE_MISMATCH"
	CodeChangeExpired          = "EMAIL_CHANGE_EXPIRED"
	CodeChangeAttemptsExceeded = "EMAIL_CHANGE_ATTEMPTS_EXHAUSTED"
)

// NewExistsError reports that email already belongs to an account.
func NewExistsError(email string) error {
	return oops.Code(CodeAccountExists).With("email", email).
		Wrapf(errutil.ErrInvalidRequest, "email already registered")
}

// NewNotFoundError reports that no account matched the lookup.
func NewNotFoundError(email string) error {
	return oops.Code(CodeAccountNotFound).With("email", email).
		Wrapf(errutil.ErrNotFound, "account not found")
}

func errInvalidCredentials(email string) error {
	return oops.Code(CodeInvalidCredentials).With("email", email).
		Wrapf(errutil.ErrUnauthenticated, "invalid credentials")
}

func errUnverified(email string) error {
	return oops.Code(CodeAccountUnverified).With("email", email).
		Wrapf(errutil.ErrUnauthenticated, "account not confirmed")
}

func errChangeCodeMismatch(oldEmail, newEmail string) error {
	return oops.Code(CodeChangeCodeMismatch).With("email", oldEmail).With("new_email", newEmail).
		Wrapf(errutil.ErrInvalidRequest, "incorrect verification code")
}

func errChangeExpired(oldEmail, newEmail string) error {
	return oops.Code(CodeChangeExpired).With("email", oldEmail).With("new_email", newEmail).
		Wrapf(errutil.ErrInvalidRequest, "email change window expired")
}

func errChangeAttemptsExceeded(oldEmail, newEmail string) error {
	return oops.Code(CodeChangeAttemptsExceeded).With("email", oldEmail).With("new_email", newEmail).
		Wrapf(errutil.ErrInvalidRequest, "email change attempt limit reached")
}
