package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Relay fileRelay `toml:"relay"`
	Grid  fileGrid  `toml:"grid"`
	Bench fileBench `toml:"bench"`
}

type fileRelay struct {
	Listen          string   `toml:"listen"`
	HTTPListen      string   `toml:"http_listen"`
	CorsOrigins     []string `toml:"cors_origins"`
	ReadTimeout     string   `toml:"read_timeout"`
	WriteTimeout    string   `toml:"write_timeout"`
	MaxPayloadBytes uint32   `toml:"max_payload_bytes"`
	VerifyChecksum  bool     `toml:"verify_checksum"`
}

type fileGrid struct {
	Dimension uint32 `toml:"dimension"`
	Layout    string `toml:"layout"`
}

type fileBench struct {
	Runs      int      `toml:"runs"`
	Density   float64  `toml:"density"`
	Output    string   `toml:"output"`
	Seed      uint64   `toml:"seed"`
	Encodings []string `toml:"encodings"`
}

// Load reads path and applies every defined key over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("relay", "listen") {
		cfg.Relay.Listen = strings.TrimSpace(raw.Relay.Listen)
	}
	if meta.IsDefined("relay", "http_listen") {
		cfg.Relay.HTTPListen = strings.TrimSpace(raw.Relay.HTTPListen)
	}
	if meta.IsDefined("relay", "cors_origins") {
		cfg.Relay.CorsOrigins = normalizeList(raw.Relay.CorsOrigins)
	}
	if meta.IsDefined("relay", "read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Relay.ReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse relay.read_timeout: %w", err)
		}
		cfg.Relay.ReadTimeout = d
	}
	if meta.IsDefined("relay", "write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Relay.WriteTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse relay.write_timeout: %w", err)
		}
		cfg.Relay.WriteTimeout = d
	}
	if meta.IsDefined("relay", "max_payload_bytes") {
		cfg.Relay.MaxPayloadBytes = raw.Relay.MaxPayloadBytes
	}
	if meta.IsDefined("relay", "verify_checksum") {
		cfg.Relay.VerifyChecksum = raw.Relay.VerifyChecksum
	}

	if meta.IsDefined("grid", "dimension") {
		cfg.Grid.Dimension = raw.Grid.Dimension
	}
	if meta.IsDefined("grid", "layout") {
		cfg.Grid.Layout = strings.TrimSpace(raw.Grid.Layout)
	}

	if meta.IsDefined("bench", "runs") {
		cfg.Bench.Runs = raw.Bench.Runs
	}
	if meta.IsDefined("bench", "density") {
		cfg.Bench.Density = raw.Bench.Density
	}
	if meta.IsDefined("bench", "output") {
		cfg.Bench.Output = strings.TrimSpace(raw.Bench.Output)
	}
	if meta.IsDefined("bench", "seed") {
		cfg.Bench.Seed = raw.Bench.Seed
	}
	if meta.IsDefined("bench", "encodings") {
		cfg.Bench.Encodings = normalizeList(raw.Bench.Encodings)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
