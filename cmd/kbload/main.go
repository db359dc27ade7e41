package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/uniqa/internal/config"
	"github.com/seanblong/uniqa/internal/indexer"
	"github.com/seanblong/uniqa/internal/knowledge"
	"github.com/seanblong/uniqa/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("uniqa-kbload", pflag.ExitOnError)

	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	if strings.TrimSpace(cfg.Database) == "" {
		log.Fatal().Msg("UNIQA_DB_URL is required (env/file/flag)")
	}

	var kb *knowledge.Store
	if cfg.KnowledgePath != "" {
		kb, err = knowledge.Load(cfg.KnowledgePath)
	} else {
		kb, err = knowledge.Default()
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.KnowledgePath).Msg("failed to load knowledge")
	}
	log.Info().Int("chunks", kb.Len()).Str("path", cfg.KnowledgePath).Msg("knowledge loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	stats, err := indexer.New(st).Run(ctx, kb.Chunks())
	if err != nil {
		log.Error().Err(err).Msg("import incomplete")
		st.Close()
		os.Exit(1)
	}
	log.Info().Int("upserted", stats.Upserted).Int("skipped", stats.Skipped).Msg("import complete")
}
