package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"school-notify/internal/config"
	pgRepo "school-notify/internal/infra/adapter/persistence/postgres"
	"school-notify/internal/infra/db"
	"school-notify/internal/infra/sender"
	workerPkg "school-notify/internal/infra/worker"
	"school-notify/internal/observability/logging"
	"school-notify/internal/observability/metrics"
	"school-notify/internal/resilience/circuitbreaker"
	"school-notify/internal/resilience/retry"
	"school-notify/internal/usecase/dispatch"
	"school-notify/internal/usecase/redeliver"
	pkgconfig "school-notify/pkg/config"
)

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("retry_schedule", workerConfig.RetrySchedule),
		slog.String("sweep_schedule", workerConfig.SweepSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("job_timeout", workerConfig.JobTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	// Load dispatch tuning
	dispatchConfig, err := config.LoadDispatchConfig()
	if err != nil {
		logger.Error("failed to load dispatch configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Load channel configuration and build senders
	channelsConfig, err := config.LoadChannelsConfig(channelsConfigPath())
	if err != nil {
		logger.Error("failed to load channels configuration", slog.Any("error", err))
		os.Exit(1)
	}
	senders, err := sender.FromConfig(channelsConfig)
	if err != nil {
		logger.Error("failed to build channel senders", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("channel senders initialized", slog.Int("count", len(senders)))

	engine, coordinator, err := setupDispatch(database, senders, dispatchConfig)
	if err != nil {
		logger.Error("failed to set up dispatch engine", slog.Any("error", err))
		os.Exit(1)
	}

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, engine)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	// Keep connection pool gauges fresh and tie readiness to database health
	startDBMonitor(ctx, logger, database, healthServer)

	startCronWorker(logger, coordinator, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and applies migrations. Migration
// failures are retried with backoff so a worker racing a cold database start
// does not exit immediately.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()

	err := retry.WithBackoff(context.Background(), retry.DBConfig(), func() error {
		return db.MigrateUp(database)
	})
	if err != nil {
		logger.Error("database migration failed", slog.String("error", logging.SanitizeError(err)))
		os.Exit(1)
	}
	logger.Info("database migrations applied")
	return database
}

// channelsConfigPath returns the channel configuration file path.
func channelsConfigPath() string {
	return pkgconfig.GetEnvString("CHANNELS_CONFIG_PATH", "configs/channels.yaml")
}

// setupDispatch wires the repositories, engine and retry coordinator.
func setupDispatch(database *sql.DB, senders []sender.Sender, cfg *config.DispatchConfig) (*dispatch.Engine, *redeliver.Coordinator, error) {
	notificationRepo := pgRepo.NewNotificationRepo(database)
	tenantRepo := pgRepo.NewTenantRepo(database)
	deliveryRepo := pgRepo.NewDeliveryRepo(database)
	recipientRepo := pgRepo.NewRecipientRepo(database)

	engine, err := dispatch.NewEngine(
		notificationRepo,
		tenantRepo,
		deliveryRepo,
		recipientRepo,
		senders,
		cfg.MaxConcurrent,
	)
	if err != nil {
		return nil, nil, err
	}

	coordinator := &redeliver.Coordinator{
		DeliveryRepo:     deliveryRepo,
		NotificationRepo: notificationRepo,
		Engine:           engine,
		MaxAttempts:      cfg.RetryMaxAttempts,
		BatchSize:        cfg.RetryBatchSize,
		MaxConcurrent:    cfg.RetryMaxConcurrent,
		SweepMinAge:      cfg.SweepMinAge,
	}
	return engine, coordinator, nil
}

// startDBMonitor periodically pings the database behind a circuit breaker and
// publishes connection pool statistics. Readiness follows the breaker: a dead
// database flips /health/ready to 503 until the connection recovers.
func startDBMonitor(ctx context.Context, logger *slog.Logger, database *sql.DB, healthServer *workerPkg.HealthServer) {
	dbBreaker := circuitbreaker.NewDBCircuitBreaker(database)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				rows, err := dbBreaker.QueryContext(probeCtx, "SELECT 1")
				if err == nil {
					if cerr := rows.Close(); cerr != nil {
						logger.Warn("db probe rows close failed", slog.Any("error", cerr))
					}
				}
				cancel()

				if err != nil {
					logger.Warn("database probe failed",
						slog.String("error", logging.SanitizeError(err)),
						slog.Bool("breaker_open", dbBreaker.IsOpen()))
				}
				healthServer.SetReady(!dbBreaker.IsOpen())

				stats := database.Stats()
				metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
			}
		}
	}()
}

// startCronWorker starts the cron scheduler with the retry and sweep jobs.
func startCronWorker(logger *slog.Logger, coordinator *redeliver.Coordinator, cfg *workerPkg.WorkerConfig, workerMetrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.RetrySchedule, func() {
		runRetryJob(logger, coordinator, cfg, workerMetrics)
	})
	if err != nil {
		logger.Error("failed to add retry cron job", slog.Any("error", err))
		os.Exit(1)
	}

	_, err = c.AddFunc(cfg.SweepSchedule, func() {
		runSweepJob(logger, coordinator, cfg, workerMetrics)
	})
	if err != nil {
		logger.Error("failed to add sweep cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started",
		slog.String("retry_schedule", cfg.RetrySchedule),
		slog.String("sweep_schedule", cfg.SweepSchedule),
		slog.String("timezone", cfg.Timezone))
	select {}
}

// runRetryJob executes one retry run over the failed delivery records.
func runRetryJob(logger *slog.Logger, coordinator *redeliver.Coordinator, cfg *workerPkg.WorkerConfig, workerMetrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(logging.ContextWithRunID(context.Background(), runID), cfg.JobTimeout)
	defer cancel()

	log := logging.WithRunID(ctx, logger)
	log.Info("retry run started")

	summary, err := coordinator.RetryFailed(ctx)
	if err != nil {
		log.Error("retry run failed", slog.String("error", logging.SanitizeError(err)))
		workerMetrics.RecordJobRun("retry", "failure")
		workerMetrics.RecordJobDuration("retry", time.Since(startTime).Seconds())
		return
	}

	workerMetrics.RecordJobRun("retry", "success")
	workerMetrics.RecordJobDuration("retry", time.Since(startTime).Seconds())
	workerMetrics.RecordRecordsProcessed("retry", summary.Scanned)
	workerMetrics.RecordLastSuccess("retry")

	log.Info("retry run completed",
		slog.Int("scanned", summary.Scanned),
		slog.Int("redelivered", summary.Redelivered),
		slog.Int("errors", summary.Errors),
		slog.Duration("duration", time.Since(startTime)))
}

// runSweepJob dispatches notifications whose initial pass never completed.
func runSweepJob(logger *slog.Logger, coordinator *redeliver.Coordinator, cfg *workerPkg.WorkerConfig, workerMetrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(logging.ContextWithRunID(context.Background(), runID), cfg.JobTimeout)
	defer cancel()

	log := logging.WithRunID(ctx, logger)
	log.Info("sweep run started")

	summary, err := coordinator.SweepUnsent(ctx)
	if err != nil {
		log.Error("sweep run failed", slog.String("error", logging.SanitizeError(err)))
		workerMetrics.RecordJobRun("sweep", "failure")
		workerMetrics.RecordJobDuration("sweep", time.Since(startTime).Seconds())
		return
	}

	workerMetrics.RecordJobRun("sweep", "success")
	workerMetrics.RecordJobDuration("sweep", time.Since(startTime).Seconds())
	workerMetrics.RecordRecordsProcessed("sweep", summary.Scanned)
	workerMetrics.RecordLastSuccess("sweep")

	log.Info("sweep run completed",
		slog.Int("scanned", summary.Scanned),
		slog.Int("dispatched", summary.Dispatched),
		slog.Int("errors", summary.Errors),
		slog.Duration("duration", time.Since(startTime)))
}
