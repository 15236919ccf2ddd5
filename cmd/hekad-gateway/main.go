package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/hekad-gateway/internal/adapter/api"
	"github.com/V4T54L/hekad-gateway/internal/adapter/gelf"
	"github.com/V4T54L/hekad-gateway/internal/adapter/metrics"
	"github.com/V4T54L/hekad-gateway/internal/adapter/pii"
	"github.com/V4T54L/hekad-gateway/internal/adapter/procscan"
	"github.com/V4T54L/hekad-gateway/internal/adapter/repository/fanout"
	"github.com/V4T54L/hekad-gateway/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/hekad-gateway/internal/adapter/repository/redis"
	"github.com/V4T54L/hekad-gateway/internal/adapter/repository/rollingfile"
	"github.com/V4T54L/hekad-gateway/internal/adapter/statsd"
	"github.com/V4T54L/hekad-gateway/internal/assets"
	"github.com/V4T54L/hekad-gateway/internal/domain"
	"github.com/V4T54L/hekad-gateway/internal/pkg/config"
	"github.com/V4T54L/hekad-gateway/internal/pkg/logger"
	"github.com/V4T54L/hekad-gateway/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	baseHandler := logger.NewHandler(os.Stdout, cfg.LogLevel)
	// Sinks log through base only so their own failures never loop back into GELF.
	base := slog.New(baseHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewGatewayMetrics(prometheus.DefaultRegisterer)

	// --- GELF pipeline ---
	fileSink, err := rollingfile.NewSink(cfg.LogDir, base, rollingfile.WithMaxFiles(cfg.LogRetain))
	if err != nil {
		base.Error("failed to open GELF log directory", "error", err, "dir", cfg.LogDir)
		os.Exit(1)
	}
	sinks := []domain.RecordSink{fileSink}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			base.Warn("could not connect to redis, GELF records go to file only until it recovers", "error", err)
		}
		publisher := redisrepo.NewGelfPublisher(redisClient, cfg.RedisGelfList, cfg.RedisMaxLen, base)
		go publisher.StartHealthCheck(ctx, 5*time.Second)
		sinks = append(sinks, publisher)
	}
	recordSink := fanout.New(sinks...)
	defer func() {
		if err := recordSink.Close(); err != nil {
			base.Error("failed to close GELF sinks", "error", err)
		}
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	minSeverity, err := domain.ParseSeverity(cfg.GelfMinLevel)
	if err != nil {
		base.Error("invalid GELF_MIN_LEVEL", "error", err)
		os.Exit(1)
	}
	host, err := os.Hostname()
	if err != nil {
		base.Warn("could not resolve host name", "error", err)
		host = "localhost"
	}
	formatter := gelf.NewFormatter(host, cfg.Instance, cfg.Deployment)
	log := slog.New(gelf.RegisterSink(baseHandler, formatter, recordSink, minSeverity,
		gelf.WithRedactor(pii.NewRedactor(cfg.RedactionFields(), base)),
		gelf.WithMetrics(m),
	))
	slog.SetDefault(log)

	// --- Crash store ---
	var crashes domain.CrashRepository
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres connection", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := postgres.NewCrashRepository(db, log)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Warn("crash reports will not be persisted", "error", err)
		} else {
			crashes = repo
		}
	}

	// --- Supervisor ---
	creds, err := loadCredentials(cfg)
	if err != nil {
		log.Error("failed to read credentials", "error", err)
		os.Exit(1)
	}

	configurator := statsd.NewConfigurator(log)
	defer configurator.Close()

	stager := usecase.NewStager(assets.Bundle(cfg.BundleDir), usecase.ExecutableName(cfg.ProcessName), log, m)
	supervisor := usecase.NewSupervisor(
		usecase.SupervisorConfig{
			ProcessName:   cfg.ProcessName,
			GracePeriod:   cfg.GracePeriod,
			OutputLogRate: cfg.OutputLogRate,
		},
		stager,
		procscan.NewKiller(log),
		configurator,
		crashes,
		log,
		m,
	)

	// --- Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:         cfg.AdminServerAddr,
		Handler:      api.NewAdminRouter(supervisor, prometheus.DefaultGatherer, cfg.AdminToken, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin & metrics server failed", "error", err)
			stop()
		}
	}()

	err = supervisor.ConfigureAndLaunch(ctx, usecase.LaunchRequest{
		WorkingDir:  cfg.WorkDir,
		LogDir:      cfg.LogDir,
		ServerURL:   cfg.ServerURL,
		Identity:    domain.Identity{Deployment: cfg.Deployment, Instance: cfg.Instance},
		Credentials: creds,
		MetricsSink: domain.MetricsSinkConfig{
			ServerName:       cfg.StatsdHost,
			ServerPort:       cfg.StatsdPort,
			MaxUDPPacketSize: cfg.StatsdMaxPacketSize,
		},
	})
	if err != nil {
		log.Error("failed to launch daemon", "error", err)
	}

	// --- Wait for shutdown signal ---
	// A crashed daemon is not restarted; the gateway keeps serving status
	// until it is told to stop.
	<-ctx.Done()
	log.Info("shutting down...")

	supervisor.Terminate()
	select {
	case <-supervisor.Done():
	case <-time.After(cfg.GracePeriod + 5*time.Second):
		log.Warn("daemon did not stop in time")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	log.Info("gateway shut down gracefully")
}

// loadCredentials reads the TLS material handed to the daemon. Unset paths
// yield empty files.
func loadCredentials(cfg *config.Config) (domain.Credentials, error) {
	read := func(path string) (string, error) {
		if path == "" {
			return "", nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(b), nil
	}

	var creds domain.Credentials
	var err error
	if creds.CertificateAuthority, err = read(cfg.CAFile); err != nil {
		return creds, err
	}
	if creds.Certificate, err = read(cfg.CertFile); err != nil {
		return creds, err
	}
	if creds.PrivateKey, err = read(cfg.KeyFile); err != nil {
		return creds, err
	}
	return creds, nil
}
