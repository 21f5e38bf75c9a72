package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/V4T54L/devrelay/internal/adapter/api"
	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/adapter/pii"
	redisrepo "github.com/V4T54L/devrelay/internal/adapter/repository/redis"
	"github.com/V4T54L/devrelay/internal/adapter/repository/wal"
	"github.com/V4T54L/devrelay/internal/capture"
	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/config"
	"github.com/V4T54L/devrelay/internal/pkg/logger"
	"github.com/V4T54L/devrelay/internal/render"
	"github.com/V4T54L/devrelay/internal/site"
	"github.com/V4T54L/devrelay/internal/stack"
	"github.com/V4T54L/devrelay/internal/usecase"
)

var serveFlags struct {
	addr      string
	adminAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo dev server with log relaying enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			return err
		}
		if serveFlags.addr != "" {
			cfg.Addr = serveFlags.addr
		}
		if cmd.Flags().Changed("admin-addr") {
			cfg.AdminAddr = serveFlags.adminAddr
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address for pages and the log stream (overrides DEVRELAY_ADDR)")
	serveCmd.Flags().StringVar(&serveFlags.adminAddr, "admin-addr", "", "Listen address for metrics and admin endpoints, empty to disable")
}

func runServe(ctx context.Context, cfg *config.Config) error {
	level, _ := config.ParseLevel(cfg.LogLevel)
	captureLevel, _ := config.ParseLevel(cfg.CaptureLevel)

	sinkHandler, logCloser, err := logger.New(logger.Options{Level: level, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logCloser.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewRelayMetrics(reg)

	// devrelay logs through the sink so its own output is never captured.
	sink := slog.New(sinkHandler)
	relay := usecase.NewLogRelay(
		cfg.InstanceID,
		stack.NewNormalizer(cfg.RootDir),
		pii.NewRedactor(cfg.RedactionFields(), sink),
		m,
		sink,
	)

	session := capture.NewSession(sinkHandler, relay.Capture, capture.WithLevel(captureLevel))
	if err := session.Install(); err != nil {
		sink.Error("failed to install log capture", "error", err)
		return err
	}
	defer session.Uninstall()

	// --- Optional journal ---
	var journal domain.JournalRepository
	if cfg.JournalDir != "" {
		walRepo, err := wal.NewWALRepository(cfg.JournalDir, cfg.WALSegmentSize, cfg.WALMaxDiskSize, sink)
		if err != nil {
			sink.Error("failed to initialize journal", "error", err)
			return err
		}
		defer walRepo.Close()

		journalWriter := usecase.NewJournalWriter(walRepo, sink)
		if _, err := journalWriter.Restore(ctx, relay); err != nil {
			sink.Warn("failed to restore journaled records", "error", err)
		}
		relay.Subscribe(journalWriter.Write)
		journal = walRepo
	}

	// --- Optional shared stream ---
	var streamAdmin domain.StreamAdminRepository
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			sink.Warn("could not connect to redis, records stay local until it is reachable", "error", err)
		}

		remote := redisrepo.NewLogRepository(redisClient, cfg.RedisStream, cfg.RedisMaxLen, sink)
		go remote.StartHealthCheck(ctx, 5*time.Second)

		publisher := usecase.NewRemotePublisher(remote, cfg.InstanceID, 0, m, sink)
		relay.Subscribe(publisher.Enqueue)
		go publisher.Run(ctx)

		if cfg.FollowRemote {
			go func() {
				if err := usecase.FollowRemote(ctx, remote, relay, sink); err != nil && !errors.Is(err, context.Canceled) {
					sink.Error("stopped following shared stream", "error", err)
				}
			}()
		}
		streamAdmin = redisrepo.NewAdminRepository(redisClient, sink)
	}

	// --- Host application ---
	hooks := render.NewHooks()
	zapLogger := zap.New(session.ZapCore(logger.NewZapCore(os.Stdout, level)))
	defer zapLogger.Sync()
	pages := site.New(hooks, zapLogger)
	usecase.NewRenderFlusher(relay, journal, m, sink).Register(hooks)

	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		adminUseCase := usecase.NewAdminUseCase(relay, journal, streamAdmin)
		adminServer = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           api.NewAdminRouter(adminUseCase, reg, sink),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			sink.Info("starting admin & metrics server", "addr", adminServer.Addr)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sink.Error("admin & metrics server failed", "error", err)
			}
		}()
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(cfg, sink, relay, m, pages),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		// Open streams end when the server shuts down.
		BaseContext: func(net.Listener) context.Context { return ctx },
		ErrorLog:    log.New(session.Writer(domain.TypeError, os.Stderr), "http: ", 0),
	}
	go func() {
		sink.Info("starting dev server", "addr", server.Addr, "instance_id", cfg.InstanceID, "root_dir", cfg.RootDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sink.Error("dev server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	sink.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			sink.Error("admin server shutdown failed", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		sink.Error("dev server shutdown failed", "error", err)
	}

	sink.Info("servers shut down gracefully")
	return nil
}
