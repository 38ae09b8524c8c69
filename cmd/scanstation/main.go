package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scanstation/internal/api"
	"scanstation/internal/checkin"
	"scanstation/internal/config"
	"scanstation/internal/connectivity"
	"scanstation/internal/database"
	"scanstation/internal/history"
	"scanstation/internal/ingest"
	"scanstation/internal/logging"
	"scanstation/internal/metrics"
	"scanstation/internal/models"
	"scanstation/internal/scanner"
	"scanstation/internal/worker"

	"github.com/rs/zerolog"
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
		defer closer.Close()
	}

	metrics.Register()

	db, err := database.NewDB(cfg.Database.Path, cfg.Sync.MaxRetries, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize outbox database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := checkin.NewClient(cfg.Server.BaseURL, cfg.Server.HealthPath, cfg.Server.RequestTimeout(), logger)
	monitor := connectivity.NewMonitor(client, cfg.Sync.ProbeInterval(), logger)
	hist := initHistory(ctx, cfg, logger)

	pipeline := ingest.NewPipeline(db, client, monitor, hist, logger)
	engine := worker.NewEngine(db, client, monitor, cfg.Sync.Interval(), logger)

	// Регулярная синхронизация + синхронизация при восстановлении связи
	monitor.OnOnline(func() {
		if _, err := engine.Sync(ctx); err != nil {
			logger.Error().Err(err).Msg("reconnect sync failed")
		}
	})
	go monitor.Run(ctx)
	go engine.Run(ctx)

	var collector *scanner.Collector
	collector = scanner.NewCollector(cfg.Scanner.Debounce(), func(barcode string) {
		// Release в defer: сканер готов к следующему коду при любом исходе
		defer collector.Release()
		processScan(ctx, pipeline, barcode, logger)
	})
	startScannerStream(ctx, cfg, collector, logger)

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, cfg.Monitoring.PrometheusEnabled, db, engine, pipeline, monitor, hist, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("operator API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := baseLogger.With().Str("component", "scanstation").Logger()

	return cfg, &logger, closer, nil
}

// initHistory подключает ленту сканирований: Redis с фолбэком в память, либо
// только память, если Redis не настроен.
func initHistory(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) history.Store {
	fallback := history.NewMemoryStore(models.HistoryLimit)
	if cfg.Redis.Address == "" {
		return fallback
	}

	redisClient := history.NewRedisClient(cfg.Redis)
	if err := history.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}

	primary := history.NewRedisStore(redisClient, models.HistoryLimit, models.DefaultHistoryTTL)
	return history.NewFailoverStore(primary, fallback, logger)
}

func processScan(ctx context.Context, pipeline *ingest.Pipeline, barcode string, logger *zerolog.Logger) {
	msg, err := pipeline.Process(ctx, barcode)
	if err != nil {
		logger.Error().Err(err).Str("barcode", barcode).Msg("scan processing failed")
		return
	}
	logger.Info().Str("message", msg).Msg("scan processed")
}

func startScannerStream(ctx context.Context, cfg *config.Config, collector *scanner.Collector, logger *zerolog.Logger) {
	var source io.Reader = os.Stdin
	if cfg.Scanner.Device != "" {
		file, err := os.Open(cfg.Scanner.Device)
		if err != nil {
			logger.Error().Err(err).Str("device", cfg.Scanner.Device).Msg("failed to open scanner device")
			return
		}
		source = file
		go func() {
			<-ctx.Done()
			file.Close()
		}()
	}

	go func() {
		if err := scanner.ReadKeys(ctx, source, collector, logger); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("scanner stream error")
		}
	}()
}
