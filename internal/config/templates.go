package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func toFile(cfg Config) fileConfig {
	return fileConfig{
		Relay: fileRelay{
			Listen:          cfg.Relay.Listen,
			HTTPListen:      cfg.Relay.HTTPListen,
			CorsOrigins:     cfg.Relay.CorsOrigins,
			ReadTimeout:     cfg.Relay.ReadTimeout.String(),
			WriteTimeout:    cfg.Relay.WriteTimeout.String(),
			MaxPayloadBytes: cfg.Relay.MaxPayloadBytes,
			VerifyChecksum:  cfg.Relay.VerifyChecksum,
		},
		Grid: fileGrid{
			Dimension: cfg.Grid.Dimension,
			Layout:    cfg.Grid.Layout,
		},
		Bench: fileBench{
			Runs:      cfg.Bench.Runs,
			Density:   cfg.Bench.Density,
			Output:    cfg.Bench.Output,
			Seed:      cfg.Bench.Seed,
			Encodings: cfg.Bench.Encodings,
		},
	}
}

// Template renders cfg as a loadable TOML document.
func Template(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return out, nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(Default())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, template, 0o600)
}
