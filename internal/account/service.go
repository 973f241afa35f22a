// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keyward/keyward/internal/token"
	"github.com/keyward/keyward/pkg/errutil"
)

var tracer = otel.Tracer("keyward/account")

// Hasher derives and checks password digests.
type Hasher interface {
	Derive(password string) (salt, hash []byte, err error)
	Verify(password string, salt, hash []byte) bool
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(claims token.Claims) (string, error)
	PublicKey() string
}

// Config holds lifecycle tunables.
type Config struct {
	// FrontendURL is the base of the signup confirmation link.
	FrontendURL string
	// EmailChangeExpiration bounds how long an email change code is valid.
	EmailChangeExpiration time.Duration
	// EmailChangeMaxAttempts is how many wrong codes are tolerated.
	EmailChangeMaxAttempts int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.FrontendURL == "" {
		return oops.Code("ACCOUNT_CONFIG_INVALID").Errorf("frontend url is required")
	}
	if c.EmailChangeExpiration <= 0 {
		return oops.Code("ACCOUNT_CONFIG_INVALID").With("expiration", c.EmailChangeExpiration).
			Errorf("email change expiration must be positive")
	}
	if c.EmailChangeMaxAttempts <= 0 {
		return oops.Code("ACCOUNT_CONFIG_INVALID").With("max_attempts", c.EmailChangeMaxAttempts).
			Errorf("email change max attempts must be positive")
	}
	return nil
}

// Service runs the account state machine.
type Service struct {
	store    Store
	hasher   Hasher
	tokens   TokenIssuer
	notifier Notifier
	cfg      Config

	now        func() time.Time
	logger     *slog.Logger
	observe    func(operation string, err error)
	confirmGen func() (string, error)
	changeGen  func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithOperationObserver registers a callback invoked once per operation
// with its final error.
func WithOperationObserver(fn func(operation string, err error)) Option {
	return func(s *Service) { s.observe = fn }
}

// NewService creates a Service.
func NewService(store Store, hasher Hasher, tokens TokenIssuer, notifier Notifier, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, oops.Code("ACCOUNT_CONFIG_INVALID").Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_CONFIG_INVALID").Errorf("hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("ACCOUNT_CONFIG_INVALID").Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Code("ACCOUNT_CONFIG_INVALID").Errorf("notifier is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		store:      store,
		hasher:     hasher,
		tokens:     tokens,
		notifier:   notifier,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     slog.Default(),
		observe:    func(string, error) {},
		confirmGen: newConfirmationCode,
		changeGen:  newChangeCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// txResult collects side effects that apply only once the transaction commits.
type txResult struct {
	outbox []Notification
	// outcome is returned to the caller after a successful commit. It lets a
	// failing branch persist partial state.
	outcome error
}

func (r *txResult) notify(to, language string, tmpl Template, subs map[string]string) {
	r.outbox = append(r.outbox, Notification{To: to, Language: language, Template: tmpl, Substitutions: subs})
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx, res *txResult) error) error {
	var res txResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		res = txResult{}
		return fn(ctx, tx, &res)
	})
	if err != nil {
		return err
	}
	for _, n := range res.outbox {
		if nErr := s.notifier.Notify(ctx, n); nErr != nil {
			errutil.LogWarn(s.logger, "notification dispatch failed", nErr,
				"template", string(n.Template), "to", n.To)
		}
	}
	return res.outcome
}

// begin opens the operation span, logs entry and returns the matching
// exit hook.
func (s *Service) begin(ctx context.Context, op, email string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "account."+op,
		trace.WithAttributes(attribute.String("account.operation", op)))
	s.logger.InfoContext(ctx, "account operation started", "operation", op, "email", email)
	return ctx, func(errp *error) {
		defer span.End()
		err := *errp
		s.observe(op, err)
		kind := errutil.KindOf(err)
		span.SetAttributes(attribute.String("account.outcome", string(kind)))
		switch kind {
		case errutil.KindNone:
			s.logger.InfoContext(ctx, "account operation completed", "operation", op, "email", email)
		case errutil.KindInternal:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errutil.LogError(s.logger, "account operation failed", err, "operation", op, "email", email)
		default:
			errutil.LogWarn(s.logger, "account operation rejected", err, "operation", op, "email", email)
		}
	}
}

// SignUpRequest carries the fields of a new account.
type SignUpRequest struct {
	Email                 string
	Password              string
	ProtectedSymmetricKey string
	InitializationVector  string
	Language              string
	Hint                  string
	Propic                string
}

// SignUp creates an unverified account and sends its confirmation link.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (err error) {
	ctx, end := s.begin(ctx, "sign_up", req.Email)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		exists, err := tx.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if exists {
			return NewExistsError(req.Email)
		}

		salt, hash, err := s.hasher.Derive(req.Password)
		if err != nil {
			return err
		}
		code, err := s.confirmGen()
		if err != nil {
			return err
		}

		now := s.now()
		a := &Account{
			ID:                    ulid.Make(),
			Email:                 req.Email,
			State:                 StateUnverified,
			Salt:                  salt,
			PasswordHash:          hash,
			ProtectedSymmetricKey: req.ProtectedSymmetricKey,
			InitializationVector:  req.InitializationVector,
			Hint:                  req.Hint,
			Propic:                req.Propic,
			Language:              req.Language,
			CreatedAt:             now,
			LastAccessAt:          now,
			PasswordChangedAt:     now,
			EmailChangedAt:        now,
			Pending:               &Pending{Code: code},
		}
		if err := tx.Persist(ctx, a); err != nil {
			return err
		}

		res.notify(a.Email, a.Language, TemplateSignUp, map[string]string{
			"href": s.confirmLink(a.Email, code),
		})
		return nil
	})
}

func (s *Service) confirmLink(email, code string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/" + url.PathEscape(email) + "/" + url.PathEscape(code) + "/confirm"
}

// ConfirmEmail verifies the account identified by email and its signup code.
func (s *Service) ConfirmEmail(ctx context.Context, email, code string) (err error) {
	ctx, end := s.begin(ctx, "confirm_email", email)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, _ *txResult) error {
		a, err := tx.FindByEmailAndVerificationCode(ctx, email, code)
		if err != nil {
			return err
		}
		// An email change code lives in the same slot; it must not confirm.
		if a.State != StateUnverified {
			return NewNotFoundError(email)
		}
		a.State = StateVerified
		a.Pending = nil
		return tx.Persist(ctx, a)
	})
}

// LoginRequest carries the credentials and client context of a login.
type LoginRequest struct {
	Email         string
	Password      string
	IPAddress     string
	DeviceType    string
	LocalDateTime string
}

// Login authenticates a verified account and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (access *Access, err error) {
	ctx, end := s.begin(ctx, "log_in", req.Email)
	defer end(&err)

	err = s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		a, err := tx.FindByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if a.State == StateUnverified {
			return errUnverified(req.Email)
		}
		if !s.hasher.Verify(req.Password, a.Salt, a.PasswordHash) {
			return errInvalidCredentials(req.Email)
		}

		advance(&a.LastAccessAt, s.now())
		if err := tx.Persist(ctx, a); err != nil {
			return err
		}

		tok, err := s.tokens.Issue(token.Claims{
			AccountID: a.ID.String(),
			Email:     a.Email,
			Role:      string(a.State),
		})
		if err != nil {
			return err
		}

		res.notify(a.Email, a.Language, TemplateLogIn, map[string]string{
			"date_value":      req.LocalDateTime,
			"ipAddress_value": req.IPAddress,
			"device_value":    req.DeviceType,
		})
		access = newAccess(a, tok, s.tokens.PublicKey())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return access, nil
}

// CheckEmailExists reports whether email is registered.
func (s *Service) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return false, oops.With("operation", "check email").With("email", email).Wrap(err)
	}
	return exists, nil
}

// ChangePasswordRequest carries the current and replacement credentials.
type ChangePasswordRequest struct {
	Email                    string
	CurrentPassword          string
	NewPassword              string
	NewProtectedSymmetricKey string
	NewInitializationVector  string
}

// ChangePassword replaces the password digest and the client key material.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) (err error) {
	ctx, end := s.begin(ctx, "change_password", req.Email)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		a, err := tx.FindByEmailAndState(ctx, req.Email, StateVerified)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(req.CurrentPassword, a.Salt, a.PasswordHash) {
			return errInvalidCredentials(req.Email)
		}
		if err := s.setCredentials(a, req.NewPassword, req.NewProtectedSymmetricKey, req.NewInitializationVector); err != nil {
			return err
		}
		advance(&a.PasswordChangedAt, s.now())
		if err := tx.Persist(ctx, a); err != nil {
			return err
		}
		res.notify(a.Email, a.Language, TemplateChangePassword, map[string]string{})
		return nil
	})
}

func (s *Service) setCredentials(a *Account, password, protectedKey, iv string) error {
	salt, hash, err := s.hasher.Derive(password)
	if err != nil {
		return err
	}
	a.Salt = salt
	a.PasswordHash = hash
	a.ProtectedSymmetricKey = protectedKey
	a.InitializationVector = iv
	return nil
}

// SendHint mails the stored password hint to a verified account.
func (s *Service) SendHint(ctx context.Context, email string) (err error) {
	ctx, end := s.begin(ctx, "send_hint", email)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		a, err := tx.FindByEmailAndState(ctx, email, StateVerified)
		if err != nil {
			return err
		}
		res.notify(a.Email, a.Language, TemplateSendHint, map[string]string{"hint_value": a.Hint})
		return nil
	})
}

// DeleteAccount removes a verified account after checking its password.
func (s *Service) DeleteAccount(ctx context.Context, email, password string) (err error) {
	ctx, end := s.begin(ctx, "delete_account", email)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		a, err := tx.FindByEmailAndState(ctx, email, StateVerified)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(password, a.Salt, a.PasswordHash) {
			return errInvalidCredentials(email)
		}
		if err := tx.Delete(ctx, a); err != nil {
			return err
		}
		res.notify(a.Email, a.Language, TemplateDeleteAccount, map[string]string{})
		return nil
	})
}

// ChangeEmail starts an email change: a code is sent to newEmail and a
// notice to oldEmail.
func (s *Service) ChangeEmail(ctx context.Context, oldEmail, newEmail, password string) (err error) {
	ctx, end := s.begin(ctx, "change_email", oldEmail)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		if newEmail == oldEmail {
			return NewExistsError(newEmail)
		}
		taken, err := tx.ExistsByEmail(ctx, newEmail)
		if err != nil {
			return err
		}
		if taken {
			return NewExistsError(newEmail)
		}

		a, err := tx.FindByEmailAndState(ctx, oldEmail, StateVerified)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(password, a.Salt, a.PasswordHash) {
			return errInvalidCredentials(oldEmail)
		}

		code, err := s.changeGen()
		if err != nil {
			return err
		}
		a.Pending = &Pending{Code: code, EmailChange: &EmailChange{NewEmail: newEmail}}
		advance(&a.EmailChangedAt, s.now())
		if err := tx.Persist(ctx, a); err != nil {
			return err
		}

		res.notify(oldEmail, a.Language, TemplateChangeEmailNotification, map[string]string{"email": newEmail})
		res.notify(newEmail, a.Language, TemplateChangeEmailCode, map[string]string{"code": code})
		return nil
	})
}

// ConfirmChangeEmailRequest completes an email change.
type ConfirmChangeEmailRequest struct {
	OldEmail                 string
	NewEmail                 string
	Password                 string
	Code                     string
	NewPassword              string
	NewProtectedSymmetricKey string
	NewInitializationVector  string
}

// ConfirmChangeEmail applies a pending email change when the code matches
// within the expiration window and attempt budget. A wrong code consumes an
// attempt; an expired or exhausted change is cancelled.
func (s *Service) ConfirmChangeEmail(ctx context.Context, req ConfirmChangeEmailRequest) (err error) {
	ctx, end := s.begin(ctx, "confirm_change_email", req.OldEmail)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, res *txResult) error {
		taken, err := tx.ExistsByEmail(ctx, req.NewEmail)
		if err != nil {
			return err
		}
		if taken {
			return NewExistsError(req.NewEmail)
		}

		a, err := tx.FindByEmailAndNewEmailAndState(ctx, req.OldEmail, req.NewEmail, StateVerified)
		if err != nil {
			return err
		}
		change := a.PendingEmailChange()
		if change == nil {
			return NewNotFoundError(req.OldEmail)
		}
		if !s.hasher.Verify(req.Password, a.Salt, a.PasswordHash) {
			return errInvalidCredentials(req.OldEmail)
		}

		switch {
		case s.now().After(a.EmailChangedAt.Add(s.cfg.EmailChangeExpiration)):
			a.Pending = nil
			res.outcome = errChangeExpired(req.OldEmail, req.NewEmail)
		case change.Attempt >= s.cfg.EmailChangeMaxAttempts:
			a.Pending = nil
			res.outcome = errChangeAttemptsExceeded(req.OldEmail, req.NewEmail)
		case subtle.ConstantTimeCompare([]byte(req.Code), []byte(a.Pending.Code)) != 1:
			change.Attempt++
			res.outcome = errChangeCodeMismatch(req.OldEmail, req.NewEmail)
		default:
			if err := s.setCredentials(a, req.NewPassword, req.NewProtectedSymmetricKey, req.NewInitializationVector); err != nil {
				return err
			}
			a.Email = change.NewEmail
			a.Pending = nil
			res.notify(a.Email, a.Language, TemplateChangeEmail, map[string]string{})
		}

		return tx.Persist(ctx, a)
	})
}

// ChangeInformationRequest carries replacement profile attributes.
type ChangeInformationRequest struct {
	Email    string
	Language string
	Hint     string
	Propic   string
}

// ChangeInformation overwrites the profile attributes of a verified account.
func (s *Service) ChangeInformation(ctx context.Context, req ChangeInformationRequest) (err error) {
	ctx, end := s.begin(ctx, "change_information", req.Email)
	defer end(&err)

	return s.inTx(ctx, func(ctx context.Context, tx Tx, _ *txResult) error {
		a, err := tx.FindByEmailAndState(ctx, req.Email, StateVerified)
		if err != nil {
			return err
		}
		a.Language = req.Language
		a.Hint = req.Hint
		a.Propic = req.Propic
		return tx.Persist(ctx, a)
	})
}

// PublicKey returns the key that currently verifies issued tokens.
func (s *Service) PublicKey() string {
	return s.tokens.PublicKey()
}
