// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import "context"

// Store persists accounts. Mutations happen only inside InTx.
type Store interface {
	// InTx runs fn in a transaction. The transaction commits if fn returns
	// nil and rolls back otherwise. Implementations must serialize
	// concurrent transactions touching the same account.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ExistsByEmail reports whether any account uses email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Tx is the store view inside a transaction. Finders return an error
// wrapping errutil.ErrNotFound when nothing matches.
type Tx interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailAndState(ctx context.Context, email string, state State) (*Account, error)
	FindByEmailAndVerificationCode(ctx context.Context, email, code string) (*Account, error)
	FindByEmailAndNewEmailAndState(ctx context.Context, email, newEmail string, state State) (*Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Persist inserts or updates a by ID. A write that would duplicate
	// another account's email fails with CodeAccountExists.
	Persist(ctx context.Context, a *Account) error
	Delete(ctx context.Context, a *Account) error
}
