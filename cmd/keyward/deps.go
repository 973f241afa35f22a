// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/keyward/keyward/internal/account/postgres"
	"github.com/keyward/keyward/internal/notify"
	"github.com/keyward/keyward/internal/observability"
	"github.com/keyward/keyward/internal/store"
)

// Deps contains injectable dependencies for the serve, worker and migrate
// commands. Nil fields use their default implementations.
type Deps struct {
	// PoolFactory opens the database pool.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string, opts store.PoolOptions) (Database, error)

	// BrokerDialer connects to RabbitMQ.
	// Default: notify.DialBroker
	BrokerDialer func(url, queue string) (Broker, error)

	// SenderFactory creates the email sender used by the worker.
	// Default: notify.NewMailgunSender
	SenderFactory func(cfg notify.MailgunConfig) (notify.Sender, error)

	// MigratorFactory opens a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checks map[string]observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Started is called once the command is serving, with the API address
	// for serve and the queue name for worker.
	Started func(addr string)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string, opts store.PoolOptions) (Database, error) {
			return store.Open(ctx, url, opts)
		}
	}
	if out.BrokerDialer == nil {
		out.BrokerDialer = func(url, queue string) (Broker, error) {
			return notify.DialBroker(url, queue)
		}
	}
	if out.SenderFactory == nil {
		out.SenderFactory = func(cfg notify.MailgunConfig) (notify.Sender, error) {
			return notify.NewMailgunSender(cfg)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, checks map[string]observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, checks, logger)
		}
	}
	if out.Started == nil {
		out.Started = func(string) {}
	}
	return &out
}

// Database is the pool surface used by serve.
type Database interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// Broker wraps the methods used from notify.Broker.
type Broker interface {
	Publisher(opts ...notify.PublisherOption) *notify.Publisher
	Consume(prefetch int) (<-chan amqp.Delivery, error)
	Close() error
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
