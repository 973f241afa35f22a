// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/keyward/keyward/pkg/errutil"
)

// KeyRotator replaces signing material.
type KeyRotator interface {
	Rotate() error
}

// Rotator calls Rotate on a fixed interval. A failed rotation leaves the
// current key active until the next tick.
type Rotator struct {
	target   KeyRotator
	interval time.Duration
	logger   *slog.Logger
	observe  func(error)
}

// RotatorOption configures a Rotator.
type RotatorOption func(*Rotator)

// WithRotationObserver registers a callback invoked after every attempt.
func WithRotationObserver(fn func(error)) RotatorOption {
	return func(r *Rotator) { r.observe = fn }
}

// WithRotatorLogger sets the rotator's logger.
func WithRotatorLogger(logger *slog.Logger) RotatorOption {
	return func(r *Rotator) { r.logger = logger }
}

// NewRotator creates a Rotator for target.
func NewRotator(target KeyRotator, interval time.Duration, opts ...RotatorOption) *Rotator {
	r := &Rotator{
		target:   target,
		interval: interval,
		logger:   slog.Default(),
		observe:  func(error) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is done. A non-positive interval disables rotation.
func (r *Rotator) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("token key rotation disabled")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("token key rotation scheduled", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := r.target.Rotate()
			if err != nil {
				errutil.LogError(r.logger, "token key rotation failed", err)
			}
			r.observe(err)
		}
	}
}
