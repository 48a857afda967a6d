package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xaenox/travel-concierge/internal/api"
	"github.com/xaenox/travel-concierge/internal/bot"
	"github.com/xaenox/travel-concierge/internal/chat"
	"github.com/xaenox/travel-concierge/internal/classifier"
	"github.com/xaenox/travel-concierge/internal/completion"
	"github.com/xaenox/travel-concierge/internal/grounding"
	"github.com/xaenox/travel-concierge/internal/prompt"
	"github.com/xaenox/travel-concierge/internal/storage"
	"github.com/xaenox/travel-concierge/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStorage(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	client := completion.NewClient(completion.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		BaseURL:     cfg.OpenRouter.BaseURL,
		Model:       cfg.OpenRouter.Model,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Temperature: cfg.OpenRouter.Temperature,
		Timeout:     cfg.OpenRouter.Timeout,
		Referer:     cfg.OpenRouter.Referer,
		Title:       cfg.OpenRouter.Title,
	}, logger)
	if !client.Configured() {
		logger.Warn("OpenRouter API key is not set, chat requests will fail")
	}

	policy := grounding.Policy{
		CountryLimit:                cfg.Grounding.CountryLimit,
		NewsLimit:                   cfg.Grounding.NewsLimit,
		IncludeUnpublishedCountries: cfg.Grounding.IncludeUnpublishedCountries,
	}

	service := chat.NewService(
		classifier.New(store, logger),
		grounding.NewBuilder(store, policy, logger),
		prompt.NewAssembler(cfg.Grounding.Language),
		client,
		grounding.NewHydrator(store, logger),
		logger,
	)

	server := api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	}, api.NewHandler(service, store, logger), logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	if cfg.Telegram.Enabled {
		b, err := bot.New(cfg.Telegram.Token, service, cfg.Site.BaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		g.Go(func() error {
			return b.Start(gCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Concierge stopped with error", zap.Error(err))
		return
	}
	logger.Info("Concierge stopped")
}

func newStorage(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	if cfg.UseInMemory {
		if cfg.SeedFile == "" {
			logger.Info("Using empty in-memory storage")
			return storage.NewMemoryStorage(nil, nil), nil
		}
		logger.Info("Using in-memory storage", zap.String("seed_file", cfg.SeedFile))
		store, err := storage.LoadMemoryStorage(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	logger.Info("Using PostgreSQL storage",
		zap.String("host", cfg.Host),
		zap.String("dbname", cfg.DBName))
	store, err := storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		DBName:         cfg.DBName,
		SSLMode:        cfg.SSLMode,
		MaxConnections: cfg.MaxConnections,
		MaxIdle:        cfg.MaxIdle,
		Migrate:        cfg.Migrate,
	}, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
