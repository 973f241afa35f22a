// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/samber/oops"
)

// mailgunClient is the part of mailgun.Mailgun the sender uses.
type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunConfig configures MailgunSender.
type MailgunConfig struct {
	Domain string `koanf:"domain"`
	APIKey string `koanf:"api_key"`
	Sender string `koanf:"sender"`
	// APIBase overrides the API endpoint, e.g. for the EU region.
	APIBase string `koanf:"api_base"`
}

// Validate checks that the sender can be built.
func (c MailgunConfig) Validate() error {
	if c.Domain == "" || c.APIKey == "" || c.Sender == "" {
		return oops.Code("MAILGUN_CONFIG_INVALID").
			With("domain_set", c.Domain != "").
			With("api_key_set", c.APIKey != "").
			With("sender_set", c.Sender != "").
			Errorf("mailgun domain, api key and sender are required")
	}
	return nil
}

// MailgunSender sends rendered emails through Mailgun.
type MailgunSender struct {
	client mailgunClient
	from   string
}

var _ Sender = (*MailgunSender)(nil)

// NewMailgunSender creates a MailgunSender.
func NewMailgunSender(cfg MailgunConfig) (*MailgunSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	return &MailgunSender{client: mg, from: cfg.Sender}, nil
}

// Send delivers e as an HTML message.
func (s *MailgunSender) Send(ctx context.Context, e Email) error {
	msg := s.client.NewMessage(s.from, e.Subject, "", e.To)
	msg.SetHtml(e.HTML)
	if _, _, err := s.client.Send(ctx, msg); err != nil {
		return oops.Code("MAILGUN_SEND_FAILED").With("to", e.To).Wrap(err)
	}
	return nil
}
