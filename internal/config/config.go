package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/cellwire/internal/protocol/coords"
	"github.com/danmuck/cellwire/internal/protocol/frame"
)

// Config is the full cellwire configuration.
type Config struct {
	Relay RelayConfig
	Grid  GridConfig
	Bench BenchConfig
}

type RelayConfig struct {
	Listen          string
	HTTPListen      string
	CorsOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxPayloadBytes uint32
	VerifyChecksum  bool
}

type GridConfig struct {
	Dimension uint32
	Layout    string
}

type BenchConfig struct {
	Runs      int
	Density   float64
	Output    string
	Seed      uint64
	Encodings []string
}

func Default() Config {
	return Config{
		Relay: RelayConfig{
			Listen:          ":8030",
			HTTPListen:      ":8031",
			CorsOrigins:     []string{"http://localhost:3000"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Second,
			MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
			VerifyChecksum:  true,
		},
		Grid: GridConfig{
			Dimension: 512,
			Layout:    frame.CanonicalLayout.Name,
		},
		Bench: BenchConfig{
			Runs:      2000,
			Density:   0.025,
			Output:    "results.csv",
			Seed:      1,
			Encodings: []string{"bitpacked", "bitpacked+zstd", "json", "u32"},
		},
	}
}

// HeaderCodec returns the codec for the configured layout.
func (g GridConfig) HeaderCodec() (*frame.HeaderCodec, error) {
	layout, err := frame.LayoutByName(g.Layout)
	if err != nil {
		return nil, err
	}
	return frame.NewHeaderCodec(layout)
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Relay.Listen) == "" {
		return fmt.Errorf("relay config missing listen")
	}
	if cfg.Relay.ReadTimeout <= 0 || cfg.Relay.WriteTimeout <= 0 {
		return fmt.Errorf("relay timeouts must be positive")
	}
	if cfg.Relay.MaxPayloadBytes == 0 {
		return fmt.Errorf("relay max_payload_bytes must be positive")
	}
	if _, err := coords.DeriveWidth(cfg.Grid.Dimension); err != nil {
		return fmt.Errorf("grid dimension: %w", err)
	}
	if _, err := cfg.Grid.HeaderCodec(); err != nil {
		return fmt.Errorf("grid layout: %w", err)
	}
	if cfg.Bench.Runs <= 0 {
		return fmt.Errorf("bench runs must be positive")
	}
	if cfg.Bench.Density <= 0 || cfg.Bench.Density > 1 {
		return fmt.Errorf("bench density must be in (0, 1]")
	}
	return nil
}
