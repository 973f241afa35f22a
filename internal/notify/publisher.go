// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/keyward/keyward/internal/account"
)

// publishChannel is the part of *amqp.Channel the Publisher uses.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RetryPolicy bounds publish retries.
type RetryPolicy struct {
	Base       time.Duration `koanf:"base"`
	Cap        time.Duration `koanf:"cap"`
	MaxRetries uint64        `koanf:"max_retries"`
}

// DefaultRetryPolicy is used when a Publisher is created without one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 100 * time.Millisecond, Cap: 2 * time.Second, MaxRetries: 3}
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(p.Cap, b)
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Publisher queues notifications as persistent JSON messages on a durable
// queue for the Worker.
type Publisher struct {
	ch      publishChannel
	queue   string
	policy  RetryPolicy
	now     func() time.Time
	observe func(template string, err error)
}

var _ account.Notifier = (*Publisher)(nil)

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithRetryPolicy sets the publish retry policy.
func WithRetryPolicy(p RetryPolicy) PublisherOption {
	return func(pub *Publisher) { pub.policy = p }
}

// WithPublishObserver registers a callback invoked once per Notify.
func WithPublishObserver(fn func(template string, err error)) PublisherOption {
	return func(pub *Publisher) { pub.observe = fn }
}

// NewPublisher creates a Publisher on ch.
func NewPublisher(ch publishChannel, queue string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		ch:      ch,
		queue:   queue,
		policy:  DefaultRetryPolicy(),
		now:     time.Now,
		observe: func(string, error) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify publishes n, retrying transient broker failures.
func (p *Publisher) Notify(ctx context.Context, n account.Notification) (err error) {
	defer func() { p.observe(string(n.Template), err) }()

	body, err := json.Marshal(n)
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").With("template", string(n.Template)).Wrap(err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Type:         string(n.Template),
		Body:         body,
	}

	err = retry.Do(ctx, p.policy.backoff(), func(ctx context.Context) error {
		if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("queue", p.queue).
			With("template", string(n.Template)).
			Wrap(err)
	}
	return nil
}
