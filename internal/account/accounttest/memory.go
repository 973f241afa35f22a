// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package accounttest provides in-memory account collaborators for tests.
package accounttest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/keyward/keyward/internal/account"
)

// MemoryStore is an account.Store backed by a map. Transactions are fully
// serialized and run against a copy that replaces the live map on commit.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*account.Account
}

var _ account.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[ulid.ULID]*account.Account)}
}

// InTx runs fn with exclusive access to a snapshot of the store.
func (s *MemoryStore) InTx(ctx context.Context, fn func(context.Context, account.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{accounts: cloneAll(s.accounts)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.accounts = tx.accounts
	return nil
}

// ExistsByEmail reports whether a committed account uses email.
func (s *MemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findEmail(s.accounts, email) != nil, nil
}

// Get returns a copy of the committed account at email, or nil.
func (s *MemoryStore) Get(email string) *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findEmail(s.accounts, email).Clone()
}

// Put stores a copy of a directly, bypassing transactions.
func (s *MemoryStore) Put(a *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a.Clone()
}

// Len returns the number of committed accounts.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

type memoryTx struct {
	accounts map[ulid.ULID]*account.Account
}

func (t *memoryTx) find(email string, match func(*account.Account) bool) (*account.Account, error) {
	a := findEmail(t.accounts, email)
	if a == nil || (match != nil && !match(a)) {
		return nil, account.NewNotFoundError(email)
	}
	return a.Clone(), nil
}

func (t *memoryTx) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	return t.find(email, nil)
}

func (t *memoryTx) FindByEmailAndState(_ context.Context, email string, state account.State) (*account.Account, error) {
	return t.find(email, func(a *account.Account) bool { return a.State == state })
}

func (t *memoryTx) FindByEmailAndVerificationCode(_ context.Context, email, code string) (*account.Account, error) {
	return t.find(email, func(a *account.Account) bool {
		return a.Pending != nil && a.Pending.Code == code
	})
}

func (t *memoryTx) FindByEmailAndNewEmailAndState(_ context.Context, email, newEmail string, state account.State) (*account.Account, error) {
	return t.find(email, func(a *account.Account) bool {
		ec := a.PendingEmailChange()
		return a.State == state && ec != nil && ec.NewEmail == newEmail
	})
}

func (t *memoryTx) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return findEmail(t.accounts, email) != nil, nil
}

func (t *memoryTx) Persist(_ context.Context, a *account.Account) error {
	if other := findEmail(t.accounts, a.Email); other != nil && other.ID != a.ID {
		return account.NewExistsError(a.Email)
	}
	t.accounts[a.ID] = a.Clone()
	return nil
}

func (t *memoryTx) Delete(_ context.Context, a *account.Account) error {
	if _, ok := t.accounts[a.ID]; !ok {
		return account.NewNotFoundError(a.Email)
	}
	delete(t.accounts, a.ID)
	return nil
}

func findEmail(accounts map[ulid.ULID]*account.Account, email string) *account.Account {
	for _, a := range accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func cloneAll(in map[ulid.ULID]*account.Account) map[ulid.ULID]*account.Account {
	out := make(map[ulid.ULID]*account.Account, len(in))
	for id, a := range in {
		out[id] = a.Clone()
	}
	return out
}
