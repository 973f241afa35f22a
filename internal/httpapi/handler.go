// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/keyward/keyward/internal/account"
)

// AccountService is the lifecycle the handlers drive.
type AccountService interface {
	SignUp(ctx context.Context, req account.SignUpRequest) error
	ConfirmEmail(ctx context.Context, email, code string) error
	Login(ctx context.Context, req account.LoginRequest) (*account.Access, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	ChangePassword(ctx context.Context, req account.ChangePasswordRequest) error
	SendHint(ctx context.Context, email string) error
	DeleteAccount(ctx context.Context, email, password string) error
	ChangeEmail(ctx context.Context, oldEmail, newEmail, password string) error
	ConfirmChangeEmail(ctx context.Context, req account.ConfirmChangeEmailRequest) error
	ChangeInformation(ctx context.Context, req account.ChangeInformationRequest) error
	PublicKey() string
}

var _ AccountService = (*account.Service)(nil)

type signUpBody struct {
	Email                 string `json:"email" binding:"required,email,max=100"`
	MasterPasswordHash    string `json:"masterPasswordHash" binding:"required,notblank"`
	ProtectedSymmetricKey string `json:"protectedSymmetricKey" binding:"required,notblank"`
	InitializationVector  string `json:"initializationVector" binding:"required,notblank"`
	Language              string `json:"language" binding:"required,language"`
	Hint                  string `json:"hint" binding:"required,notblank,max=100"`
	Propic                string `json:"propic" binding:"required,notblank,propic"`
}

type logInBody struct {
	Email              string `json:"email" binding:"required,email,max=100"`
	MasterPasswordHash string `json:"masterPasswordHash" binding:"required,notblank"`
	IPAddress          string `json:"ipAddress" binding:"required,ipv4"`
	DeviceType         string `json:"deviceType" binding:"required,notblank"`
	LocalDateTime      string `json:"localDateTime" binding:"required,notblank"`
}

type changePasswordBody struct {
	CurrentMasterPasswordHash string `json:"currentMasterPasswordHash" binding:"required,notblank"`
	NewMasterPasswordHash     string `json:"newMasterPasswordHash" binding:"required,notblank"`
	NewProtectedSymmetricKey  string `json:"newProtectedSymmetricKey" binding:"required,notblank"`
	NewInitializationVector   string `json:"newInitializationVector" binding:"required,notblank"`
}

type deleteBody struct {
	MasterPasswordHash string `json:"masterPasswordHash" binding:"required,notblank"`
}

type changeEmailBody struct {
	Email              string `json:"email" binding:"required,email,max=100"`
	MasterPasswordHash string `json:"masterPasswordHash" binding:"required,notblank"`
}

type confirmChangeEmailBody struct {
	changeEmailBody
	VerificationCode         string `json:"verificationCode" binding:"required,notblank"`
	NewMasterPasswordHash    string `json:"newMasterPasswordHash" binding:"required,notblank"`
	NewProtectedSymmetricKey string `json:"newProtectedSymmetricKey" binding:"required,notblank"`
	NewInitializationVector  string `json:"newInitializationVector" binding:"required,notblank"`
}

type changeInformationBody struct {
	Language string `json:"language" binding:"required,language"`
	Hint     string `json:"hint" binding:"required,notblank,max=100"`
	Propic   string `json:"propic" binding:"required,notblank,propic"`
}

type emailQuery struct {
	Email string `form:"email" json:"email" binding:"required,email,max=100"`
}

// normalizeEmail folds an address to the lower-case form accounts are
// keyed by.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type handler struct {
	svc    AccountService
	logger *slog.Logger
}

// bind decodes and validates the request into dst, writing a 400 on failure.
func (h *handler) bind(c *gin.Context, dst any, b binding.Binding) bool {
	if err := c.ShouldBindWith(dst, b); err != nil {
		abort(c, http.StatusBadRequest, "validation failed", ErrorBody{
			Code:    "VALIDATION_FAILED",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

func (h *handler) done(c *gin.Context, status int, err error) {
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, status, true, "ok")
}

func (h *handler) signUp(c *gin.Context) {
	var body signUpBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	err := h.svc.SignUp(c.Request.Context(), account.SignUpRequest{
		Email:                 normalizeEmail(body.Email),
		Password:              body.MasterPasswordHash,
		ProtectedSymmetricKey: body.ProtectedSymmetricKey,
		InitializationVector:  body.InitializationVector,
		Language:              body.Language,
		Hint:                  body.Hint,
		Propic:                body.Propic,
	})
	h.done(c, http.StatusCreated, err)
}

func (h *handler) logIn(c *gin.Context) {
	var body logInBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	access, err := h.svc.Login(c.Request.Context(), account.LoginRequest{
		Email:         normalizeEmail(body.Email),
		Password:      body.MasterPasswordHash,
		IPAddress:     body.IPAddress,
		DeviceType:    body.DeviceType,
		LocalDateTime: body.LocalDateTime,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, access, "ok")
}

func (h *handler) checkEmail(c *gin.Context) {
	var q emailQuery
	if !h.bind(c, &q, binding.Query) {
		return
	}
	exists, err := h.svc.CheckEmailExists(c.Request.Context(), normalizeEmail(q.Email))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, exists, "ok")
}

func (h *handler) confirmEmail(c *gin.Context) {
	err := h.svc.ConfirmEmail(c.Request.Context(), normalizeEmail(c.Param("email")), c.Param("code"))
	h.done(c, http.StatusOK, err)
}

func (h *handler) changePassword(c *gin.Context) {
	var body changePasswordBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	err := h.svc.ChangePassword(c.Request.Context(), account.ChangePasswordRequest{
		Email:                    subject(c),
		CurrentPassword:          body.CurrentMasterPasswordHash,
		NewPassword:              body.NewMasterPasswordHash,
		NewProtectedSymmetricKey: body.NewProtectedSymmetricKey,
		NewInitializationVector:  body.NewInitializationVector,
	})
	h.done(c, http.StatusOK, err)
}

func (h *handler) sendHint(c *gin.Context) {
	var q emailQuery
	if !h.bind(c, &q, binding.Query) {
		return
	}
	h.done(c, http.StatusOK, h.svc.SendHint(c.Request.Context(), normalizeEmail(q.Email)))
}

func (h *handler) deleteAccount(c *gin.Context) {
	var body deleteBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	h.done(c, http.StatusOK, h.svc.DeleteAccount(c.Request.Context(), subject(c), body.MasterPasswordHash))
}

func (h *handler) changeEmail(c *gin.Context) {
	var body changeEmailBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	h.done(c, http.StatusOK, h.svc.ChangeEmail(c.Request.Context(), subject(c), normalizeEmail(body.Email), body.MasterPasswordHash))
}

func (h *handler) confirmChangeEmail(c *gin.Context) {
	var body confirmChangeEmailBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	err := h.svc.ConfirmChangeEmail(c.Request.Context(), account.ConfirmChangeEmailRequest{
		OldEmail:                 subject(c),
		NewEmail:                 normalizeEmail(body.Email),
		Password:                 body.MasterPasswordHash,
		Code:                     body.VerificationCode,
		NewPassword:              body.NewMasterPasswordHash,
		NewProtectedSymmetricKey: body.NewProtectedSymmetricKey,
		NewInitializationVector:  body.NewInitializationVector,
	})
	h.done(c, http.StatusOK, err)
}

func (h *handler) changeInformation(c *gin.Context) {
	var body changeInformationBody
	if !h.bind(c, &body, binding.JSON) {
		return
	}
	err := h.svc.ChangeInformation(c.Request.Context(), account.ChangeInformationRequest{
		Email:    subject(c),
		Language: body.Language,
		Hint:     body.Hint,
		Propic:   body.Propic,
	})
	h.done(c, http.StatusOK, err)
}

func (h *handler) publicKey(c *gin.Context) {
	respond(c, http.StatusOK, h.svc.PublicKey(), "ok")
}
