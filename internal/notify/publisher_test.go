// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/pkg/errutil"
)

type fakeChannel struct {
	mu        sync.Mutex
	failures  int
	err       error
	published []amqp.Publishing
	keys      []string
	attempts  int
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.failures > 0 {
		c.failures--
		return c.err
	}
	if exchange != "" {
		return errors.New("unexpected exchange")
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

var fastRetry = RetryPolicy{Base: time.Millisecond, Cap: 5 * time.Millisecond, MaxRetries: 2}

func TestPublisher_Notify(t *testing.T) {
	ch := &fakeChannel{}
	var observed []error
	p := NewPublisher(ch, "keyward.email",
		WithRetryPolicy(fastRetry),
		WithPublishObserver(func(tmpl string, err error) {
			assert.Equal(t, "sign_up", tmpl)
			observed = append(observed, err)
		}))

	n := account.Notification{
		To:            "a@x.com",
		Language:      "EN",
		Template:      account.TemplateSignUp,
		Substitutions: map[string]string{"href": "https://x/confirm"},
	}
	require.NoError(t, p.Notify(context.Background(), n))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "keyward.email", ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "sign_up", msg.Type)

	var decoded account.Notification
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, n, decoded)
	assert.Equal(t, []error{nil}, observed)
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	ch := &fakeChannel{failures: 2, err: amqp.ErrClosed}
	p := NewPublisher(ch, "q", WithRetryPolicy(fastRetry))

	require.NoError(t, p.Notify(context.Background(), account.Notification{To: "a@x.com", Template: account.TemplateLogIn}))
	assert.Equal(t, 3, ch.attempts)
	assert.Len(t, ch.published, 1)
}

func TestPublisher_GivesUp(t *testing.T) {
	ch := &fakeChannel{failures: 100, err: amqp.ErrClosed}
	var observed error
	p := NewPublisher(ch, "q",
		WithRetryPolicy(fastRetry),
		WithPublishObserver(func(_ string, err error) { observed = err }))

	err := p.Notify(context.Background(), account.Notification{To: "a@x.com", Template: account.TemplateLogIn})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "NOTIFY_PUBLISH_FAILED")
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.Equal(t, int(fastRetry.MaxRetries)+1, ch.attempts)
	assert.Equal(t, err, observed)
}

func TestPublisher_StopsOnCancel(t *testing.T) {
	ch := &fakeChannel{failures: 100, err: amqp.ErrClosed}
	p := NewPublisher(ch, "q", WithRetryPolicy(RetryPolicy{Base: time.Hour, Cap: time.Hour, MaxRetries: 5}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Notify(ctx, account.Notification{To: "a@x.com", Template: account.TemplateLogIn})
	require.Error(t, err)
	assert.LessOrEqual(t, ch.attempts, 1)
}
