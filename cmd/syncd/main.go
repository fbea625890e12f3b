package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tidesync/internal/api"
	"tidesync/internal/config"
	"tidesync/internal/connectivity"
	"tidesync/internal/deadletter"
	"tidesync/internal/engine"
	"tidesync/internal/logging"
	"tidesync/internal/merge"
	"tidesync/internal/metrics"
	"tidesync/internal/oplog"
	"tidesync/internal/remote"
	"tidesync/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStorage(cfg, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	opLog, err := oplog.New(ctx, store, oplog.DefaultKey, cfg.Sync.MaxRetries, logger)
	if err != nil {
		return err
	}
	sink, err := deadletter.New(ctx, store, deadletter.DefaultKey, logger)
	if err != nil {
		return err
	}

	remoteClient := remote.NewClient(cfg.Remote, logger)

	monitor := connectivity.NewMonitor(remoteClient, cfg.Sync.ProbeInterval, logger)
	go monitor.Start(ctx)
	defer monitor.Close()

	local := merge.NewMemoryStore()
	resolver := merge.NewResolver(local, opLog, logger)
	listener := merge.NewListener(remoteClient, resolver, logger)

	eng := engine.New(engine.Config{
		MaxConsecutiveFailures: cfg.Sync.MaxConsecutiveFailures,
		SyncInterval:           cfg.Sync.SyncInterval,
		RemoteTimeout:          cfg.Remote.RequestTimeout,
		Retry: engine.RetryPolicy{
			InitialDelay: cfg.Sync.InitialBackoff,
			MaxDelay:     cfg.Sync.MaxBackoff,
		},
	}, opLog, sink, remoteClient, monitor, logger)
	eng.OnReconnect = listener.ReconcileAll

	if monitor.State().Online() {
		if err := listener.ReconcileAll(ctx); err != nil {
			logger.Error().Err(err).Msg("initial reconciliation failed")
		}
	}
	if err := listener.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("realtime listener failed to start")
	}
	defer listener.Stop()

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, eng, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Storage.Backup.Enabled {
		backupService := storage.NewBackupService(cfg.Storage.Path, cfg.Storage.Backup, logger)
		go backupService.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
			logger.Info().Str("addr", addr).Msg("metrics listening")
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	eng.TriggerSync(ctx)
	eng.Start(ctx)
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "syncd").Logger()

	return cfg, logger, closer, nil
}

func initStorage(cfg *config.Config, logger *zerolog.Logger) (storage.Store, error) {
	local, err := storage.NewSQLiteStore(cfg.Storage.Path, cfg.Storage.MaxQueueBytes)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Redis.Address == "" {
		return local, nil
	}

	client := storage.NewRedisClient(cfg.Storage.Redis)
	redisStore := storage.NewRedisStore(client, cfg.Storage.MaxQueueBytes)
	logger.Info().Str("redis", cfg.Storage.Redis.Address).Msg("using redis storage with sqlite fallback")
	return storage.NewFailoverStore(redisStore, local, logger), nil
}
