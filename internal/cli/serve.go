package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/claims-pipeline/internal/api/handler"
	"github.com/cuongbtq/claims-pipeline/internal/api/router"
	"github.com/cuongbtq/claims-pipeline/internal/config"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
	"github.com/cuongbtq/claims-pipeline/internal/messaging"
	"github.com/cuongbtq/claims-pipeline/internal/rail"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
	"github.com/cuongbtq/claims-pipeline/internal/storage"
	"github.com/cuongbtq/claims-pipeline/shared/logger"
	"github.com/cuongbtq/claims-pipeline/shared/postgresql"
	"github.com/cuongbtq/claims-pipeline/shared/rabbitmq"
	"github.com/cuongbtq/claims-pipeline/shared/redis"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, intake consumer and job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}

			appLogger, err := logger.New(cfg.LoggerConfig())
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer appLogger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, appLogger.Logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("Starting claims service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// The gate is checked before anything can reach the network
	safetyGate := gate.New(cfg.GatePolicy(), log.With(slog.String("component", "gate")))
	if err := safetyGate.VerifyStartupPosture(); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	dbClient, err := postgresql.NewClient(cfg.PostgreSQLConfig(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(ctx, dbClient.GetDB().DB, log); err != nil {
			return err
		}
	}

	healthChecks := map[string]handler.HealthCheck{
		"postgres": dbClient.HealthCheck,
	}

	credentials := storage.NewCombinedStore(
		storage.NewCredentialStore(dbClient.GetDB(), log),
		rail.NewStaticStore(cfg.RailCredentials()),
	)
	connectors := rail.NewFactory(
		credentials,
		safetyGate.Wrap(safetyGate.NewHTTPClient(cfg.Rails.Timeout)),
		log.With(slog.String("component", "rail")),
	)

	schedOpts := []scheduler.Option{
		scheduler.WithPollAfterSubmit(cfg.Scheduler.PollAfterSubmit),
	}

	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = rabbitmq.NewClient(cfg.RabbitMQClientConfig(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		healthChecks["rabbitmq"] = func(context.Context) error {
			if !rabbitClient.IsConnected() {
				return rabbitmq.ErrNotConnected
			}
			return nil
		}

		schedOpts = append(schedOpts, scheduler.WithNotifier(
			messaging.NewPublisher(rabbitClient, cfg.RabbitMQ.Outcome.RoutingKey, log),
		))
	}

	var deduper messaging.Deduper
	if cfg.RabbitMQ.Enabled && cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.RedisClientConfig(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.GetClient().Ping(ctx).Err()
		}
		deduper = messaging.NewRedisDeduper(redisClient.GetClient(), cfg.Redis.KeyPrefix, cfg.Redis.DedupeTTL)
	}

	sched := scheduler.New(
		cfg.SchedulerSettings(),
		storage.NewClaimStore(dbClient.GetDB(), log),
		connectors,
		log.With(slog.String("component", "scheduler")),
		schedOpts...,
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.SetupRouter(&handler.Dependencies{
			Logger:       log,
			Jobs:         sched,
			Gate:         safetyGate,
			HealthChecks: healthChecks,
			ServiceName:  cfg.App.Name,
			MetricsPath:  metricsPath,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server",
			slog.String("address", srv.Addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	if rabbitClient != nil {
		consumer := messaging.NewConsumer(rabbitClient, sched, deduper, cfg.RabbitMQ.Intake.ConsumerTag, log)
		g.Go(func() error {
			return consumer.Run(gCtx)
		})
	}

	g.Go(func() error {
		return sched.RunRetentionSweep(gCtx, cfg.Scheduler.SweepInterval, cfg.Scheduler.RetentionMaxAge)
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down claims service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", slog.Any("error", err))
		}

		return sched.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Claims service stopped")
	return nil
}
