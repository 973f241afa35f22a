// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/account/postgres"
	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/credential"
	"github.com/keyward/keyward/internal/httpapi"
	"github.com/keyward/keyward/internal/logging"
	"github.com/keyward/keyward/internal/notify"
	"github.com/keyward/keyward/internal/observability"
	"github.com/keyward/keyward/internal/token"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API with signing key rotation and, when configured,
the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}

	cmd.Flags().String("http-addr", ":8080", "API listen address")
	addCommonFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the API until ctx is cancelled or a signal arrives.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
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

	db, err := deps.PoolFactory(ctx, cfg.Database.URL, cfg.Database.Pool)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	checks := map[string]observability.ReadinessChecker{"database": db.Ping}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	metrics, obsServer, err := startObservability(ctx, cancel, cfg, deps, checks, logger)
	if err != nil {
		return err
	}
	if obsServer != nil {
		defer stopServer(logger, "observability", obsServer.Stop)
	}

	authority, err := token.NewAuthority(cfg.Token, token.WithLogger(logger))
	if err != nil {
		return err
	}
	hasher, err := credential.NewArgon2idHasher(cfg.Hashing)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(cfg, deps, metrics, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc, err := account.NewService(postgres.NewStore(db), hasher, authority, notifier, cfg.Account(),
		account.WithLogger(logger),
		account.WithOperationObserver(metrics.ObserveOperation),
	)
	if err != nil {
		return err
	}

	var limiter *httpapi.RateLimiter
	if rdb != nil {
		limiter, err = httpapi.NewRateLimiter(httpapi.NewRedisCounter(rdb), cfg.RateLimit.Rules, logger)
		if err != nil {
			return err
		}
	}

	router := httpapi.NewRouter(httpapi.Options{
		Service:        svc,
		Verifier:       authority,
		Logger:         logger,
		Limiter:        limiter,
		ObserveRequest: metrics.ObserveRequest,
		AllowOrigins:   cfg.HTTP.CORSOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	api := httpapi.NewServer(cfg.HTTP.Addr, router, logger)
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}
	defer stopServer(logger, "api", api.Stop)
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	rotator := token.NewRotator(authority, cfg.Token.RotationInterval,
		token.WithRotatorLogger(logger),
		token.WithRotationObserver(metrics.ObserveRotation),
	)
	rotDone := make(chan struct{})
	go func() {
		defer close(rotDone)
		rotator.Run(ctx)
	}()

	cmd.Println("keyward API listening on " + api.Addr())
	logger.Info("keyward ready", "http_addr", api.Addr(), "notify_driver", cfg.Notify.Driver)
	deps.Started(api.Addr())

	<-ctx.Done()
	logger.Info("shutting down")
	cancel()
	<-rotDone
	return nil
}

func startObservability(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	deps *Deps,
	checks map[string]observability.ReadinessChecker,
	logger *slog.Logger,
) (*observability.Metrics, ObservabilityServer, error) {
	if cfg.Metrics.Addr == "" {
		return observability.NewMetrics(prometheus.NewRegistry()), nil, nil
	}
	srv := deps.ObservabilityServerFactory(cfg.Metrics.Addr, checks, logger)
	errCh, err := srv.Start()
	if err != nil {
		return nil, nil, err
	}
	go monitorServerErrors(ctx, cancel, errCh, "observability")
	return srv.Metrics(), srv, nil
}

// buildNotifier returns the configured notifier and its release function.
func buildNotifier(cfg *config.Config, deps *Deps, metrics *observability.Metrics, logger *slog.Logger) (account.Notifier, func(), error) {
	if cfg.Notify.Driver != config.DriverRabbitMQ {
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	broker, err := deps.BrokerDialer(cfg.Notify.RabbitMQURL, cfg.Notify.Queue)
	if err != nil {
		return nil, nil, err
	}
	publisher := broker.Publisher(
		notify.WithRetryPolicy(cfg.Notify.Retry),
		notify.WithPublishObserver(metrics.ObservePublish),
	)
	release := func() {
		if err := broker.Close(); err != nil {
			logger.Warn("error closing broker", "error", err)
		}
	}
	return publisher, release, nil
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}
