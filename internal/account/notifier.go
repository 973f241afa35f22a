// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package account

import "context"

// Template identifies a notification layout.
type Template string

// Notification templates.
const (
	TemplateSignUp                  Template = "sign_up"
	TemplateLogIn                   Template = "log_in"
	TemplateSendHint                Template = "send_hint"
	TemplateChangePassword          Template = "change_password"
	TemplateDeleteAccount           Template = "delete_account"
	TemplateChangeEmail             Template = "change_email"
	TemplateChangeEmailCode         Template = "change_email_code"
	TemplateChangeEmailNotification Template = "change_email_notification"
)

// Templates lists every template the lifecycle emits.
func Templates() []Template {
	return []Template{
		TemplateSignUp,
		TemplateLogIn,
		TemplateSendHint,
		TemplateChangePassword,
		TemplateDeleteAccount,
		TemplateChangeEmail,
		TemplateChangeEmailCode,
		TemplateChangeEmailNotification,
	}
}

// Notification is an outbound message request.
type Notification struct {
	To            string            `json:"to"`
	Language      string            `json:"language"`
	Template      Template          `json:"template"`
	Substitutions map[string]string `json:"substitutions,omitempty"`
}

// Notifier dispatches notifications. Delivery is best effort: the lifecycle
// logs errors and never surfaces them to callers.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
