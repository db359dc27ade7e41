package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/uniqa/internal/ai"
	"github.com/seanblong/uniqa/internal/assistant"
	"github.com/seanblong/uniqa/internal/config"
	"github.com/seanblong/uniqa/internal/gateway"
	"github.com/seanblong/uniqa/internal/knowledge"
	"github.com/seanblong/uniqa/internal/prompt"
	"github.com/seanblong/uniqa/internal/retrieval"
	"github.com/seanblong/uniqa/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("uniqa-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kb, err := loadKnowledge(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load knowledge base")
	}

	composer := prompt.NewComposer(retrieval.New(kb))
	factory := ai.NewFactory(&ai.ClientConfig{
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiKey:     cfg.GeminiKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
		Timeout:       cfg.RequestTimeout,
		MockDelay:     cfg.MockDelay,
		SkipTLSVerify: cfg.SkipTLSVerify,
	}, composer, logger)

	model, ok := ai.ParseModel(cfg.Provider)
	if !ok {
		logger.Warn().Str("provider", cfg.Provider).Str("fallback", string(model)).Msg("unknown PROVIDER_TYPE, using default")
	}
	svc := assistant.NewService(assistant.NewModelHolder(model), factory, logger)

	origins := cfg.AllowedOrigins()
	limiter := gateway.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window())
	handler := gateway.NewRouter(svc, limiter, gateway.Options{
		AllowedOrigins: origins,
		RequestTimeout: cfg.RequestTimeout,
		TrustProxy:     cfg.TrustProxy,
	}, logger)

	logger.Info().
		Str("model", string(model)).
		Int("chunks", kb.Len()).
		Strs("cors_origins", origins).
		Int("rate_limit_max", cfg.RateLimit.Max).
		Dur("rate_limit_window", cfg.RateLimit.Window()).
		Msg("starting uniqa api")

	srv := gateway.NewServer(fmt.Sprintf(":%d", cfg.Port), handler, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

// loadKnowledge picks the database, then a knowledge path, then the built-in
// base.
func loadKnowledge(ctx context.Context, cfg config.Specification, logger zerolog.Logger) (*knowledge.Store, error) {
	if cfg.Database != "" {
		st, err := store.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}

		kb, err := knowledge.FromSource(ctx, st)
		if err != nil {
			return nil, err
		}
		logger.Info().Int("chunks", kb.Len()).Msg("knowledge loaded from database")
		return kb, nil
	}

	if cfg.KnowledgePath != "" {
		kb, err := knowledge.Load(cfg.KnowledgePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Int("chunks", kb.Len()).Str("path", cfg.KnowledgePath).Msg("knowledge loaded from path")
		return kb, nil
	}

	kb, err := knowledge.Default()
	if err != nil {
		return nil, err
	}
	logger.Info().Int("chunks", kb.Len()).Msg("built-in knowledge loaded")
	return kb, nil
}
