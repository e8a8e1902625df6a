package main

import (
	"flag"

	"github.com/danmuck/cellwire/internal/config"
	"github.com/danmuck/cellwire/internal/observability"
	"github.com/danmuck/cellwire/internal/protocol/frame"
	"github.com/danmuck/cellwire/internal/relay"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("cellrelay")
	configPath := flag.String("config", "cmd/cellrelay/config.toml", "relay config path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load relay config")
	}
	log.Info().Str("path", *configPath).Msg("loaded relay config")

	codec, err := cfg.Grid.HeaderCodec()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid header layout")
	}
	svc := relay.NewServiceWithConfig(relay.ServiceConfig{
		ListenAddr:     cfg.Relay.Listen,
		HTTPListenAddr: cfg.Relay.HTTPListen,
		CorsOrigins:    cfg.Relay.CorsOrigins,
		ReadTimeout:    cfg.Relay.ReadTimeout,
		WriteTimeout:   cfg.Relay.WriteTimeout,
		Limits:         frame.Limits{MaxPayloadBytes: cfg.Relay.MaxPayloadBytes},
		VerifyChecksum: cfg.Relay.VerifyChecksum,
		Dimension:      cfg.Grid.Dimension,
		Codec:          codec,
	})
	if err := svc.Run(); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
	log.Info().Msg("relay shut down")
}
