// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/pkg/errutil"
)

// Renderer turns a notification into an email.
type Renderer interface {
	Render(n account.Notification) (Email, error)
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

type disposition int

const (
	dispositionAck disposition = iota
	dispositionReject
	dispositionRequeue
)

func (d disposition) String() string {
	switch d {
	case dispositionAck:
		return "sent"
	case dispositionReject:
		return "rejected"
	default:
		return "requeued"
	}
}

// Worker consumes queued notifications, renders them and sends them.
// Malformed or unrenderable messages are dropped; send failures are
// requeued.
type Worker struct {
	renderer    Renderer
	sender      Sender
	logger      *slog.Logger
	sendTimeout time.Duration
	observe     func(template, outcome string)
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// WithSendTimeout bounds each send.
func WithSendTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) { w.sendTimeout = d }
}

// WithDeliveryObserver registers a callback invoked per delivery with its
// template and outcome.
func WithDeliveryObserver(fn func(template, outcome string)) WorkerOption {
	return func(w *Worker) { w.observe = fn }
}

// NewWorker creates a Worker.
func NewWorker(renderer Renderer, sender Sender, opts ...WorkerOption) *Worker {
	w := &Worker{
		renderer:    renderer,
		sender:      sender,
		logger:      slog.Default(),
		sendTimeout: 15 * time.Second,
		observe:     func(string, string) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes deliveries until ctx is cancelled or the channel closes.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return oops.Code("BROKER_CHANNEL_CLOSED").Errorf("delivery channel closed")
			}
			w.settle(d, w.handle(ctx, d.Body))
		}
	}
}

func (w *Worker) settle(d amqp.Delivery, disp disposition) {
	var err error
	switch disp {
	case dispositionAck:
		err = d.Ack(false)
	case dispositionReject:
		err = d.Nack(false, false)
	case dispositionRequeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		errutil.LogError(w.logger, "settle delivery failed", err,
			"delivery_tag", d.DeliveryTag, "disposition", disp.String())
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) disposition {
	var n account.Notification
	if err := json.Unmarshal(body, &n); err != nil || n.To == "" || n.Template == "" {
		if err == nil {
			err = oops.Code("NOTIFY_MESSAGE_INVALID").Errorf("message lacks recipient or template")
		}
		errutil.LogWarn(w.logger, "dropping malformed notification", err)
		w.observe("", dispositionReject.String())
		return dispositionReject
	}

	email, err := w.renderer.Render(n)
	if err != nil {
		errutil.LogWarn(w.logger, "dropping unrenderable notification", err,
			"template", string(n.Template), "to", n.To)
		w.observe(string(n.Template), dispositionReject.String())
		return dispositionReject
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, email); err != nil {
		errutil.LogWarn(w.logger, "send failed, requeueing", err,
			"template", string(n.Template), "to", n.To)
		w.observe(string(n.Template), dispositionRequeue.String())
		return dispositionRequeue
	}

	w.logger.InfoContext(ctx, "notification sent", "template", string(n.Template), "to", n.To)
	w.observe(string(n.Template), dispositionAck.String())
	return dispositionAck
}
