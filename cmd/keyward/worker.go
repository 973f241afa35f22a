// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/logging"
	"github.com/keyward/keyward/internal/notify"
	"github.com/keyward/keyward/internal/observability"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	return newWorkerCmd(nil)
}

func newWorkerCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the email worker",
		Long: `Consume queued notifications from RabbitMQ, render them from the
embedded catalog and deliver them through Mailgun.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkerWithDeps(cmd.Context(), cmd, deps)
		},
	}
	addCommonFlags(cmd.Flags())
	return cmd
}

func runWorkerWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}
	logger, err := logging.SetDefault(serviceName, version, cfg.Log)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log").Wrap(err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	catalog, err := notify.LoadCatalog()
	if err != nil {
		return err
	}
	sender, err := deps.SenderFactory(cfg.Mailgun)
	if err != nil {
		return err
	}

	broker, err := deps.BrokerDialer(cfg.Notify.RabbitMQURL, cfg.Notify.Queue)
	if err != nil {
		return err
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("error closing broker", "error", err)
		}
	}()

	metrics, obsServer, err := startObservability(ctx, cancel, cfg, deps, map[string]observability.ReadinessChecker{}, logger)
	if err != nil {
		return err
	}
	if obsServer != nil {
		defer stopServer(logger, "observability", obsServer.Stop)
	}

	deliveries, err := broker.Consume(cfg.Notify.Prefetch)
	if err != nil {
		return err
	}

	worker := notify.NewWorker(catalog, sender,
		notify.WithWorkerLogger(logger),
		notify.WithSendTimeout(cfg.Notify.SendTimeout),
		notify.WithDeliveryObserver(metrics.ObserveDelivery),
	)

	cmd.Println("keyward worker consuming " + cfg.Notify.Queue)
	logger.Info("worker ready", "queue", cfg.Notify.Queue, "prefetch", cfg.Notify.Prefetch)
	deps.Started(cfg.Notify.Queue)

	if err := worker.Run(ctx, deliveries); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
