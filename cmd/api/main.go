package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iago/career-agent/internal/ai"
	"github.com/iago/career-agent/internal/cache"
	"github.com/iago/career-agent/internal/config"
	httpserver "github.com/iago/career-agent/internal/http"
	"github.com/iago/career-agent/internal/http/handlers"
	"github.com/iago/career-agent/internal/logging"
	"github.com/iago/career-agent/internal/mail"
	"github.com/iago/career-agent/internal/pipeline"
	"github.com/iago/career-agent/internal/queue"
	"github.com/iago/career-agent/internal/records"
	"github.com/iago/career-agent/internal/router"
	"github.com/iago/career-agent/internal/scheduler"
	"github.com/iago/career-agent/internal/service"
	"github.com/iago/career-agent/internal/state"
	"github.com/iago/career-agent/internal/worker"
)

// signalQueue is what a queue backend must offer to both ends of the transport.
type signalQueue interface {
	queue.Producer
	queue.Consumer
	queue.DeadLetters
}

func main() {
	dotenvErr := config.LoadDotEnv(".env.local", ".env")
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	if dotenvErr != nil {
		logger.Warn("failed loading .env files", "error", dotenvErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	generator := setupGenerator(ctx, cfg, logger)
	classifier := ai.NewClassifier(ai.ClassifierDependencies{
		Router:    setupModelRouter(cfg),
		Generator: generator,
		Cache: cache.NewResponseCache(cache.Config{
			TTL:        cfg.ClassifierCacheTTL(),
			MaxEntries: cfg.ClassifierCacheMaxEntries,
		}),
		Logger: logger.With("component", "classifier"),
	})

	fetcher := setupFetcher(ctx, cfg, logger)
	store, storeCloser := setupStore(ctx, cfg, logger)
	defer storeCloser()

	agentState := state.New()
	p, err := pipeline.New(pipeline.Dependencies{
		Fetcher:     fetcher,
		Classifier:  classifier,
		Store:       store,
		State:       agentState,
		Logger:      logger.With("component", "pipeline"),
		Location:    cfg.Location(),
		SearchLimit: int64(cfg.SearchLimit),
	})
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	signals, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	var processor *worker.Processor
	if cfg.WorkerEnabled {
		processor = worker.NewProcessor(signals, signals, p, logger.With("component", "worker"))
		go processor.Start(ctx)
		logger.Info("worker enabled and started")
	} else {
		logger.Info("worker disabled by configuration")
	}

	var sweeper *scheduler.Sweeper
	if cfg.SweepEnabled {
		sweeper = scheduler.New(scheduler.Config{
			Spec:       cfg.SweepSpec,
			Query:      cfg.SweepQuery,
			MaxResults: int64(cfg.SweepMaxResults),
		}, fetcher, p, agentState, logger.With("component", "sweeper"))
		if err := sweeper.Start(ctx); err != nil {
			logger.Error("inbox sweep disabled", "spec", cfg.SweepSpec, "error", err)
			sweeper = nil
		}
	}

	signalRouter := router.New(router.Config{
		ProfessionalPackages: cfg.ProfessionalPackages,
		EmailPackages:        cfg.EmailPackages,
		MessagingPackages:    cfg.MessagingPackages,
	})
	api := handlers.NewAPI(handlers.Dependencies{
		Signals:   service.NewSignalsService(signalRouter, signals, logger.With("component", "signals")),
		Processor: p,
		State:     agentState,
		Logger:    logger,
	})
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger.With("component", "http"),
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Synchronous /process runs up to four provider calls plus tracker writes.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("api listening", "port", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	if processor != nil {
		processor.Wait()
	}
}

func setupModelRouter(cfg config.Config) *ai.ModelRouter {
	primary, fallback := cfg.AIModelPrimary, cfg.AIModelFallback
	if primary == "" {
		switch cfg.AIProvider {
		case "openrouter":
			primary, fallback = "google/gemini-flash-1.5", "openai/gpt-4.1-nano"
		case "openai":
			primary, fallback = "gpt-4.1-mini", "gpt-4.1-nano"
		default:
			primary, fallback = "gemini-1.5-flash", "gemini-1.5-flash-8b"
		}
	}
	return ai.NewModelRouter(ai.ModelRouterConfig{Primary: primary, Fallback: fallback})
}

// setupGenerator never fails: an unconfigured provider stays unavailable and the
// classifier answers ERROR, which the pipeline treats as "not relevant".
func setupGenerator(ctx context.Context, cfg config.Config, logger *logging.Logger) ai.TextGenerator {
	var generator ai.TextGenerator
	switch cfg.AIProvider {
	case "openrouter":
		generator = ai.NewOpenRouterClient(ai.OpenRouterClientConfig{
			APIKey:     cfg.OpenRouterAPIKey,
			BaseURL:    cfg.OpenRouterBaseURL,
			Timeout:    cfg.AITimeout(),
			MaxRetries: cfg.AIMaxRetries,
			SiteURL:    cfg.OpenRouterSiteURL,
		})
	case "openai":
		generator = ai.NewOpenAIClient(ai.OpenAIClientConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Timeout:    cfg.AITimeout(),
			MaxRetries: cfg.AIMaxRetries,
		})
	default:
		gemini, err := ai.NewGeminiClient(ctx, ai.GeminiClientConfig{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			Timeout:    cfg.AITimeout(),
			MaxRetries: cfg.AIMaxRetries,
		})
		if err != nil {
			logger.Error("gemini client setup failed", "error", err)
			gemini, _ = ai.NewGeminiClient(ctx, ai.GeminiClientConfig{})
		}
		generator = gemini
	}
	if !generator.Available() {
		logger.Warn("AI provider has no API key, every message will be skipped", "provider", cfg.AIProvider)
	}
	return generator
}

func setupFetcher(ctx context.Context, cfg config.Config, logger *logging.Logger) mail.Fetcher {
	if cfg.GmailCredentialsPath == "" {
		logger.Warn("GMAIL_CREDENTIALS_PATH not configured, using empty in-memory mailbox")
		return mail.NewMemoryFetcher()
	}
	fetcher, err := mail.NewGmailFetcher(ctx, mail.GmailConfig{
		CredentialsPath: cfg.GmailCredentialsPath,
		TokenPath:       cfg.GmailTokenPath,
		User:            cfg.GmailUser,
		Timeout:         cfg.ExternalCallTimeout(),
	})
	if err != nil {
		logger.Error("gmail fetcher setup failed, using empty in-memory mailbox", "error", err)
		return mail.NewMemoryFetcher()
	}
	logger.Info("gmail fetcher initialized", "user", cfg.GmailUser)
	return fetcher
}

func setupStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (records.Store, func()) {
	switch cfg.RecordStore {
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Warn("DATABASE_URL not configured, using in-memory tracker")
			return records.NewMemoryStore(), func() {}
		}
		pg, err := records.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.ExternalCallTimeout())
		if err == nil {
			err = pg.Migrate(ctx)
		}
		if err != nil {
			logger.Error("postgres tracker setup failed, fallback to memory", "error", err)
			if pg != nil {
				pg.Close()
			}
			return records.NewMemoryStore(), func() {}
		}
		logger.Info("postgres tracker initialized")
		return pg, pg.Close
	case "memory":
		return records.NewMemoryStore(), func() {}
	default:
		notion, err := records.NewNotionStore(records.NotionConfig{
			Token:      cfg.NotionToken,
			DatabaseID: cfg.NotionDatabaseID,
			StatusKind: records.StatusKind(cfg.NotionStatusKind),
			Timeout:    cfg.ExternalCallTimeout(),
		})
		if err != nil {
			logger.Error("notion tracker setup failed, fallback to memory", "error", err)
			return records.NewMemoryStore(), func() {}
		}
		logger.Info("notion tracker initialized", "status_kind", cfg.NotionStatusKind)
		return notion, func() {}
	}
}

func setupQueue(ctx context.Context, cfg config.Config, logger *logging.Logger) (signalQueue, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not configured, using local queue")
		return queue.NewLocalQueue(cfg.QueueBuffer, logger.With("component", "queue")), func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		Stream:    cfg.RedisStream,
		DLQStream: cfg.RedisDLQ,
		Group:     cfg.RedisGroup,
		Consumer:  cfg.RedisConsumer,
	})
	if err != nil {
		logger.Error("redis streams setup failed, fallback to local queue", "error", err)
		return queue.NewLocalQueue(cfg.QueueBuffer, logger.With("component", "queue")), func() {}
	}
	logger.Info("redis streams queue initialized", "stream", cfg.RedisStream)
	return streams, func() { _ = streams.Close() }
}
