package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/uroflow/internal/advisor"
	"github.com/rewired-gh/uroflow/internal/api"
	"github.com/rewired-gh/uroflow/internal/config"
	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/mqtt"
	"github.com/rewired-gh/uroflow/internal/service"
	"github.com/rewired-gh/uroflow/internal/storage"
	"github.com/rewired-gh/uroflow/internal/stream"
	"github.com/rewired-gh/uroflow/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.MaxEvents, cfg.Storage.MaxRecords, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	logger.Info("Storage opened at %s", store.Path())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	var deps service.Dependencies

	if cfg.Advisor.Enabled {
		adv := advisor.New(advisor.Config{
			BaseURL:     cfg.Advisor.BaseURL,
			APIKey:      cfg.Advisor.APIKey,
			Model:       cfg.Advisor.Model,
			Timeout:     cfg.Advisor.Timeout,
			MaxTokens:   cfg.Advisor.MaxTokens,
			Temperature: cfg.Advisor.Temperature,
			MaxRetries:  cfg.Advisor.MaxRetries,
		})
		deps.Advisor = adv
		logger.Info("Advisor enabled (model: %s)", adv.Model())
	} else {
		logger.Debug("Advisor disabled")
	}

	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		deps.Notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if cfg.Redis.Enabled {
		publisher, err := stream.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Stream, cfg.Redis.MaxLen)
		if err != nil {
			logger.Fatal("Failed to connect to Redis: %v", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close Redis client: %v", err)
			}
		}()
		deps.Publisher = publisher
		logger.Info("Publishing completed events to Redis stream %s", cfg.Redis.Stream)
	} else {
		logger.Debug("Redis event stream disabled")
	}

	svc := service.New(store, service.Options{
		Segmenter:     cfg.Analysis.SegmenterConfig(),
		Monitor:       cfg.Analysis.MonitorConfig(),
		Volume:        cfg.Analysis.VolumePolicy(),
		Thresholds:    cfg.Analysis.Thresholds(),
		AlertCooldown: cfg.Analysis.AlertCooldown,
		Location:      time.Local,
	}, deps)
	defer svc.Close()

	if cfg.MQTT.Enabled {
		consumer := mqtt.NewConsumer(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		}, svc)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal("Failed to start MQTT consumer: %v", err)
		}
		defer consumer.Stop()
	} else {
		logger.Debug("MQTT ingestion disabled")
	}

	server := api.NewHTTPServer(cfg.Server, svc)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
			cancel()
		}
	}()

	logger.Info("Uroflow service started (event_window: %v, min_event_volume: %.0f ml, sweep_interval: %v)",
		cfg.Analysis.EventWindow, cfg.Analysis.MinEventVolume, cfg.Server.SweepInterval)

	ticker := time.NewTicker(cfg.Server.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown: %v", err)
			}
			shutdownCancel()

			// Close whatever is still open so no partial void is lost.
			closed := svc.FlushIdle(context.Background(), time.Now().Add(cfg.Analysis.EventWindow+time.Second))
			if len(closed) > 0 {
				logger.Info("Closed %d open events on shutdown", len(closed))
			}
			logger.Info("Service stopped")
			return

		case tickTime := <-ticker.C:
			if closed := svc.FlushIdle(ctx, tickTime); len(closed) > 0 {
				logger.Debug("Sweep closed %d idle events", len(closed))
			}

			// Rotate old data
			if err := svc.Rotate(); err != nil {
				logger.Warn("Failed to rotate history: %v", err)
			}
		}
	}
}
