package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/cellwire/internal/bench"
	"github.com/danmuck/cellwire/internal/config"
	"github.com/danmuck/cellwire/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("cellbench")
	configPath := flag.String("config", "", "optional config path; defaults apply when empty")
	runs := flag.Int("runs", 0, "runs per encoding (overrides config)")
	output := flag.String("output", "", "CSV output path (overrides config)")
	dim := flag.Uint("dim", 0, "grid dimension (overrides config)")
	full := flag.Bool("full", false, "benchmark a fully alive world instead of a random one")
	encodings := flag.String("encodings", "", "comma separated encodings (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load bench config")
		}
		cfg = loaded
	}
	if *runs > 0 {
		cfg.Bench.Runs = *runs
	}
	if *output != "" {
		cfg.Bench.Output = *output
	}
	if *dim > 0 {
		cfg.Grid.Dimension = uint32(*dim)
	}
	if *encodings != "" {
		cfg.Bench.Encodings = strings.Split(*encodings, ",")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid bench config")
	}

	_, statErr := os.Stat(cfg.Bench.Output)
	f, err := os.OpenFile(cfg.Bench.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Bench.Output).Msg("open output")
	}
	defer f.Close()
	sink, err := bench.NewCSVSink(f, os.IsNotExist(statErr))
	if err != nil {
		log.Fatal().Err(err).Msg("write csv header")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	summaries, err := bench.Run(ctx, bench.Options{
		Runs:      cfg.Bench.Runs,
		Dimension: cfg.Grid.Dimension,
		Density:   cfg.Bench.Density,
		Full:      *full,
		Seed:      cfg.Bench.Seed,
		Encodings: cfg.Bench.Encodings,
	}, sink)
	if flushErr := sink.Flush(); flushErr != nil {
		log.Error().Err(flushErr).Msg("flush csv")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("bench failed")
	}
	for _, s := range summaries {
		log.Info().
			Str("encoding", s.Encoding).
			Str("operation", s.Operation).
			Int("bytes", s.Bytes).
			Dur("min", s.Min).
			Dur("mean", s.Mean).
			Dur("max", s.Max).
			Msg("summary")
	}
	log.Info().Str("path", cfg.Bench.Output).Msg("bench results written")
}
