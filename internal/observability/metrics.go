// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/keyward/keyward/pkg/errutil"
)

// Metrics holds the keyward counters.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	AccountOperations *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	KeyRotations      *prometheus.CounterVec
}

// NewMetrics creates the keyward counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyward_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		AccountOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyward_account_operations_total",
				Help: "Account lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyward_notifications_total",
				Help: "Notifications by stage, template and outcome",
			},
			[]string{"stage", "template", "outcome"},
		),
		KeyRotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyward_key_rotations_total",
				Help: "Signing key rotations by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.HTTPRequests, m.AccountOperations, m.Notifications, m.KeyRotations)
	return m
}

// ObserveRequest counts one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// ObserveOperation counts one account operation. The outcome is the error
// kind, "ok" on success.
func (m *Metrics) ObserveOperation(operation string, err error) {
	m.AccountOperations.WithLabelValues(operation, string(errutil.KindOf(err))).Inc()
}

// ObservePublish counts one notification handed to the broker.
func (m *Metrics) ObservePublish(template string, err error) {
	outcome := "published"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues("publish", template, outcome).Inc()
}

// ObserveDelivery counts one notification settled by the worker.
func (m *Metrics) ObserveDelivery(template, outcome string) {
	m.Notifications.WithLabelValues("deliver", template, outcome).Inc()
}

// ObserveRotation counts one signing key rotation attempt.
func (m *Metrics) ObserveRotation(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.KeyRotations.WithLabelValues(outcome).Inc()
}
