// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

var changeCodeSpace = big.NewInt(1_000_000)

// newConfirmationCode returns the signup confirmation code embedded in the
// confirm link.
func newConfirmationCode() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("CODE_GENERATION_FAILED").With("kind", "confirmation").Wrap(err)
	}
	return id.String(), nil
}

// newChangeCode returns a uniformly random zero-padded numeric code the user
// types back to confirm an email change.
func newChangeCode() (string, error) {
	n, err := rand.Int(rand.Reader, changeCodeSpace)
	if err != nil {
		return "", oops.Code("CODE_GENERATION_FAILED").With("kind", "email_change").Wrap(err)
	}
	return fmt.Sprintf("%0*d", ChangeCodeDigits, n.Int64()), nil
}
