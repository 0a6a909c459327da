package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/powerprices/internal/api"
	"github.com/rewired-gh/powerprices/internal/config"
	"github.com/rewired-gh/powerprices/internal/dashboard"
	"github.com/rewired-gh/powerprices/internal/dataset"
	"github.com/rewired-gh/powerprices/internal/export"
	"github.com/rewired-gh/powerprices/internal/logger"
	"github.com/rewired-gh/powerprices/internal/storage"
	"github.com/rewired-gh/powerprices/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// rotateInterval is how often the export ledger is trimmed to its cap.
const rotateInterval = time.Hour

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Fatal("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
		logger.Info("Sentry error reporting enabled (%s)", cfg.Sentry.Environment)
	}

	records, err := dataset.Load(cfg.Data.Path)
	if err != nil {
		logger.Fatal("Failed to load price data: %v", err)
	}

	store, err := storage.New(cfg.Exports.MaxExports, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher export.Publisher
	if cfg.PublishEnabled() {
		s3, err := export.NewS3Publisher(ctx, export.S3Options{
			Endpoint:      cfg.Exports.Endpoint,
			Region:        cfg.Exports.Region,
			Bucket:        cfg.Exports.Bucket,
			AccessKey:     cfg.Exports.AccessKey,
			SecretKey:     cfg.Exports.SecretKey,
			PublicBaseURL: cfg.Exports.PublicBaseURL,
		})
		if err != nil {
			logger.Fatal("Failed to initialize export publisher: %v", err)
		}
		publisher = s3
		logger.Info("Publishing exports to bucket %s", cfg.Exports.Bucket)
	} else {
		logger.Debug("Export publishing disabled")
	}

	svc := dashboard.NewService(records, store, publisher, dashboard.Options{
		Granularity:      cfg.Pipeline.Granularity,
		Alignment:        cfg.Pipeline.Alignment,
		DefaultCountries: cfg.Pipeline.DefaultCountries,
	})

	server, err := api.NewServer(svc, cfg.Server.CORSOrigins)
	if err != nil {
		logger.Fatal("Failed to initialize HTTP server: %v", err)
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, time.Second, svc.LatestSnapshot)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram bot disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening on %s", cfg.Server.Addr)
		return server.Start(cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, cleaning up...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if telegramClient != nil {
		g.Go(func() error {
			return telegramClient.ListenForCommands(gctx)
		})

		if cfg.Telegram.StartupDigest {
			g.Go(func() error {
				if err := telegramClient.SendDigest(gctx); err != nil {
					logger.Warn("Failed to send startup digest: %v", err)
					return nil
				}
				logger.Info("Startup digest sent")
				return nil
			})
		}
	}

	g.Go(func() error {
		ticker := time.NewTicker(rotateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := store.RotateExports(); err != nil {
					logger.Warn("Failed to rotate exports: %v", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error: %v", err)
		return
	}
	logger.Info("Service stopped")
}
