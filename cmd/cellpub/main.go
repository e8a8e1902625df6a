// Command cellpub publishes a glider to the relay and asks it for the next
// generations.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/life"
	"github.com/danmuck/cellwire/internal/observability"
	"github.com/danmuck/cellwire/internal/relay"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("cellpub")
	addr := flag.String("addr", "127.0.0.1:8030", "relay address")
	dim := flag.Uint("dim", 64, "grid dimension")
	steps := flag.Int("steps", 4, "generations to request")
	flag.Parse()

	cfg := relay.DefaultClientConfig()
	cfg.Address = *addr
	cfg.Dimension = uint32(*dim)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c, err := relay.Dial(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("dial relay")
	}
	defer c.Close()

	size := uint32(*dim)
	var world grid.Sequence = life.Glider(size, grid.Coord{})
	if _, err := c.Publish(world, size); err != nil {
		log.Fatal().Err(err).Msg("publish")
	}
	for i := 1; i <= *steps; i++ {
		reply, err := c.Step(world, size)
		if err != nil {
			log.Fatal().Err(err).Int("generation", i).Msg("step")
		}
		world = reply.Cells
		log.Info().Int("generation", i).Int("cells", world.Len()).Msg("stepped")
		if _, err := c.Publish(world, size); err != nil {
			log.Fatal().Err(err).Msg("publish")
		}
	}
}
