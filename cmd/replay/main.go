package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/uniqa/internal/replay"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("uniqa-replay", pflag.ExitOnError)
	in := fs.String("in", "", "Input JSON file with questions (required)")
	out := fs.String("out", "results.jsonl", "Output JSONL file (appended)")
	base := fs.String("base", replay.DefaultBaseURL, "Base URL of the API")
	path := fs.String("path", replay.DefaultPath, "Chat endpoint path")
	delay := fs.Duration("delay", replay.DefaultDelay, "Delay between requests")
	timeout := fs.Duration("timeout", replay.DefaultTimeout, "Per-request timeout")
	retries := fs.Int("retries", replay.DefaultRetries, "Retries for 502/503/504 and transport errors")
	_ = fs.Parse(os.Args[1:])

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing --in questions.json")
		fs.PrintDefaults()
		os.Exit(1)
	}

	q, err := replay.ReadQuestions(*in)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read questions")
	}
	items := replay.Flatten(q)
	if len(items) == 0 {
		log.Fatal().Str("in", *in).Msg("no questions found in input")
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}
	f, err := os.OpenFile(*out, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open output")
	}
	defer f.Close()

	client := replay.NewClient(*base, *path)
	client.HTTP = &http.Client{}
	client.Timeout = *timeout
	client.Retries = *retries
	client.Delay = *delay

	log.Info().Str("target", client.URL).Int("questions", len(items)).Str("out", *out).Msg("replaying")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := client.Run(ctx, items, f, func(r replay.Result) {
		ev := log.Info()
		if !r.OK {
			ev = log.Warn().Str("error", r.Error)
		}
		ev.Int("id", r.ID).
			Int("of", len(items)).
			Str("category", r.Category).
			Int("status", r.Status).
			Int64("duration_ms", r.DurationMS).
			Int("attempts", r.Attempts).
			Msg("answered")
	})
	if err != nil {
		log.Error().Err(err).Msg("replay interrupted")
	}
	log.Info().Int("ok", sum.OK).Int("failed", sum.Failed).Str("saved", *out).Msg("done")
}
