// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package postgres implements account.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/account"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is an account.Store backed by the accounts table. Finders inside a
// transaction lock the matched row until commit.
type Store struct {
	db DB
}

var _ account.Store = (*Store)(nil)

// NewStore creates a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const existsByEmailSQL = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`

// ExistsByEmail reports whether an account uses email.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return existsByEmail(ctx, s.db, email)
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(context.Context, account.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // re-panicking
			panic(p)
		}
	}()

	if err := fn(ctx, &txView{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return oops.Code("TX_ROLLBACK_FAILED").With("cause", err.Error()).Wrap(rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func existsByEmail(ctx context.Context, q rowQuerier, email string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, existsByEmailSQL, email).Scan(&exists); err != nil {
		return false, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "exists by email").
			With("email", email).
			Wrap(err)
	}
	return exists, nil
}

type txView struct {
	tx pgx.Tx
}

const selectAccountSQL = `
	SELECT id, email, state, salt, password_hash,
	       protected_symmetric_key, initialization_vector,
	       hint, propic, language,
	       created_at, last_access_at, password_changed_at, email_changed_at,
	       pending_code, pending_new_email, pending_attempt
	FROM accounts
`

func (t *txView) findOne(ctx context.Context, op, email, where string, args ...any) (*account.Account, error) {
	row := t.tx.QueryRow(ctx, selectAccountSQL+where+" FOR UPDATE", args...)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.NewNotFoundError(email)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", op).
			With("email", email).
			Wrap(err)
	}
	return a, nil
}

func (t *txView) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	return t.findOne(ctx, "find by email", email, "WHERE email = $1", email)
}

func (t *txView) FindByEmailAndState(ctx context.Context, email string, state account.State) (*account.Account, error) {
	return t.findOne(ctx, "find by email and state", email,
		"WHERE email = $1 AND state = $2", email, string(state))
}

func (t *txView) FindByEmailAndVerificationCode(ctx context.Context, email, code string) (*account.Account, error) {
	return t.findOne(ctx, "find by email and code", email,
		"WHERE email = $1 AND pending_code = $2", email, code)
}

func (t *txView) FindByEmailAndNewEmailAndState(ctx context.Context, email, newEmail string, state account.State) (*account.Account, error) {
	return t.findOne(ctx, "find by email and new email", email,
		"WHERE email = $1 AND pending_new_email = $2 AND state = $3", email, newEmail, string(state))
}

func (t *txView) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return existsByEmail(ctx, t.tx, email)
}

const upsertAccountSQL = `
	INSERT INTO accounts (
		id, email, state, salt, password_hash,
		protected_symmetric_key, initialization_vector,
		hint, propic, language,
		created_at, last_access_at, password_changed_at, email_changed_at,
		pending_code, pending_new_email, pending_attempt
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE SET
		email = EXCLUDED.email,
		state = EXCLUDED.state,
		salt = EXCLUDED.salt,
		password_hash = EXCLUDED.password_hash,
		protected_symmetric_key = EXCLUDED.protected_symmetric_key,
		initialization_vector = EXCLUDED.initialization_vector,
		hint = EXCLUDED.hint,
		propic = EXCLUDED.propic,
		language = EXCLUDED.language,
		last_access_at = EXCLUDED.last_access_at,
		password_changed_at = EXCLUDED.password_changed_at,
		email_changed_at = EXCLUDED.email_changed_at,
		pending_code = EXCLUDED.pending_code,
		pending_new_email = EXCLUDED.pending_new_email,
		pending_attempt = EXCLUDED.pending_attempt
`

func (t *txView) Persist(ctx context.Context, a *account.Account) error {
	var code, newEmail *string
	attempt := 0
	if a.Pending != nil {
		code = &a.Pending.Code
		if ec := a.Pending.EmailChange; ec != nil {
			newEmail = &ec.NewEmail
			attempt = ec.Attempt
		}
	}

	_, err := t.tx.Exec(ctx, upsertAccountSQL,
		a.ID.String(), a.Email, string(a.State), a.Salt, a.PasswordHash,
		a.ProtectedSymmetricKey, a.InitializationVector,
		a.Hint, a.Propic, a.Language,
		a.CreatedAt, a.LastAccessAt, a.PasswordChangedAt, a.EmailChangedAt,
		code, newEmail, attempt,
	)
	if isUniqueViolation(err) {
		return account.NewExistsError(a.Email)
	}
	if err != nil {
		return oops.Code("ACCOUNT_PERSIST_FAILED").
			With("operation", "upsert account").
			With("id", a.ID.String()).
			Wrap(err)
	}
	return nil
}

func (t *txView) Delete(ctx context.Context, a *account.Account) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, a.ID.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", a.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return account.NewNotFoundError(a.Email)
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		a        account.Account
		id       string
		state    string
		code     *string
		newEmail *string
		attempt  int
	)
	err := row.Scan(
		&id, &a.Email, &state, &a.Salt, &a.PasswordHash,
		&a.ProtectedSymmetricKey, &a.InitializationVector,
		&a.Hint, &a.Propic, &a.Language,
		&a.CreatedAt, &a.LastAccessAt, &a.PasswordChangedAt, &a.EmailChangedAt,
		&code, &newEmail, &attempt,
	)
	if err != nil {
		return nil, err
	}

	a.ID, err = ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT").With("id", id).Wrap(err)
	}
	a.State = account.State(state)
	if code != nil {
		a.Pending = &account.Pending{Code: *code}
		if newEmail != nil {
			a.Pending.EmailChange = &account.EmailChange{NewEmail: *newEmail, Attempt: attempt}
		}
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
