package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xaenox/tutor-bot/internal/api"
	"github.com/xaenox/tutor-bot/internal/bot"
	"github.com/xaenox/tutor-bot/internal/conversation"
	"github.com/xaenox/tutor-bot/internal/corpus"
	"github.com/xaenox/tutor-bot/internal/storage"
	"github.com/xaenox/tutor-bot/pkg/config"
	"github.com/xaenox/tutor-bot/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	// Initialize logger
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File, Production: cfg.Log.Production})
	if err != nil {
		zap.NewExample().Fatal("Failed to create logger", zap.Error(err))
	}
	defer log.Sync()

	if cfg.Telegram.Token == "" && !cfg.HTTP.Enabled {
		log.Fatal("Nothing to run: set TELEGRAM_TOKEN or enable the HTTP API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}
	defer store.Close()

	registry := conversation.NewRegistry(store, conversation.RegistryConfig{
		IdleTTL:         cfg.History.IdleTTL,
		HistoryCapacity: cfg.History.Capacity,
	}, log)

	// Load the corpus before accepting questions; a broken corpus degrades to fallback answers.
	loader := corpus.NewLoader(os.DirFS(cfg.Corpus.Dir), cfg.Corpus.DataFile, cfg.Corpus.SubjectFiles, log)
	c := loader.LoadOrFallback()
	registry.SetCorpus(c)
	log.Info("Corpus loaded",
		zap.Int("pairs", len(c.Pairs())),
		zap.Strings("subjects", c.SubjectNames()),
		zap.Bool("degraded", c.Degraded()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.Autosave(ctx, cfg.History.AutosaveInterval)
	}()

	var server *api.Server
	if cfg.HTTP.Enabled {
		server = api.New(registry, log)
		go func() {
			if err := server.Listen(cfg.HTTP.Addr); err != nil {
				log.Error("HTTP API stopped", zap.Error(err))
				stop()
			}
		}()
	}

	if cfg.Telegram.Token != "" {
		b, err := bot.New(bot.Config{
			Token:   cfg.Telegram.Token,
			Debug:   cfg.Telegram.Debug,
			Timeout: cfg.Telegram.Timeout,
		}, registry, log)
		if err != nil {
			log.Fatal("Failed to create bot", zap.Error(err))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Start(ctx); err != nil {
				log.Error("Bot error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to stop HTTP API", zap.Error(err))
		}
	}
	wg.Wait()
	registry.Close(shutdownCtx)
}

func newStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case "postgres":
		log.Info("Using PostgreSQL storage")
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, log)
	case "redis":
		log.Info("Using Redis storage")
		return storage.NewRedisStorage(ctx, cfg.Redis.URL, cfg.Redis.Prefix, log)
	default:
		return nil, errors.New("unknown storage driver " + cfg.Storage.Driver)
	}
}
