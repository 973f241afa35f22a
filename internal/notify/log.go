// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package notify delivers account notifications: it logs them, queues them
// on RabbitMQ, and renders and mails queued messages from a worker.
package notify

import (
	"context"
	"log/slog"

	"github.com/keyward/keyward/internal/account"
)

// LogNotifier writes notifications to a logger instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

var _ account.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n. Substitution values are included since they are the only
// way to read codes and links in development.
func (l *LogNotifier) Notify(ctx context.Context, n account.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"to", n.To,
		"language", n.Language,
		"template", string(n.Template),
		"substitutions", n.Substitutions,
	)
	return nil
}
