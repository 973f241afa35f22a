// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package accounttest

import (
	"context"
	"sync"

	"github.com/keyward/keyward/internal/account"
)

// RecordingNotifier records every notification it receives. Err, when set,
// is returned from Notify after recording.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []account.Notification
	Err  error
}

var _ account.Notifier = (*RecordingNotifier)(nil)

// Notify records n.
func (r *RecordingNotifier) Notify(_ context.Context, n account.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.Err
}

// Sent returns a copy of the recorded notifications in order.
func (r *RecordingNotifier) Sent() []account.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]account.Notification(nil), r.sent...)
}

// Last returns the most recent notification for template, and whether one
// exists.
func (r *RecordingNotifier) Last(tmpl account.Template) (account.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Template == tmpl {
			return r.sent[i], true
		}
	}
	return account.Notification{}, false
}

// Reset discards recorded notifications.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
