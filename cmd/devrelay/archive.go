package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/devrelay/internal/adapter/repository/redis"
	"github.com/V4T54L/devrelay/internal/pkg/config"
	"github.com/V4T54L/devrelay/internal/pkg/logger"
	"github.com/V4T54L/devrelay/internal/usecase"
)

var archiveFlags struct {
	group    string
	consumer string
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy records from the shared Redis stream into PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			return err
		}
		if cfg.RedisAddr == "" || cfg.PostgresURL == "" {
			err := errors.New("archive requires REDIS_ADDR and POSTGRES_URL")
			slog.Error("invalid configuration", "error", err)
			return err
		}
		return runArchive(cmd.Context(), cfg)
	},
}

func init() {
	archiveCmd.Flags().StringVar(&archiveFlags.group, "group", "devrelay-archivers", "Consumer group name")
	archiveCmd.Flags().StringVar(&archiveFlags.consumer, "consumer", "", "Consumer name (default: instance id)")
}

func runArchive(ctx context.Context, cfg *config.Config) error {
	level, _ := config.ParseLevel(cfg.LogLevel)
	handler, logCloser, err := logger.New(logger.Options{Level: level, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log := slog.New(handler)
	log.Info("starting archive worker")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		return err
	}
	log.Info("connected to redis")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		return err
	}
	log.Info("connected to postgres")

	consumerName := archiveFlags.consumer
	if consumerName == "" {
		consumerName = cfg.InstanceID
	}

	streamRepo := redisrepo.NewLogRepository(redisClient, cfg.RedisStream, cfg.RedisMaxLen, log)
	if err := streamRepo.SetupConsumerGroup(ctx, archiveFlags.group); err != nil {
		log.Error("failed to set up consumer group", "error", err)
		return err
	}
	archiveRepo := postgres.NewLogRepository(db, log)
	if err := archiveRepo.EnsureSchema(ctx); err != nil {
		log.Error("failed to prepare archive table", "error", err)
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewRelayMetrics(reg)
	if cfg.AdminAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	archive := usecase.NewArchiveLogsUseCase(streamRepo, archiveRepo, m, log, archiveFlags.group, consumerName, 0, 0)
	log.Info("archive worker started, processing records...", "group", archiveFlags.group, "consumer", consumerName, "stream", cfg.RedisStream)
	archive.Run(ctx)

	log.Info("archive worker shut down gracefully")
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
