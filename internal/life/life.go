// Package life advances Game of Life worlds (B3/S23) on a torus.
package life

import (
	"math/rand/v2"

	"github.com/danmuck/cellwire/internal/grid"
)

// Step returns the next generation of world on a torus of side dim.
// Cells are ordered by the first time they are visited: each alive cell in
// world order, then its neighbours.
func Step(world grid.Container, dim uint32) *grid.OrderedSet {
	next := grid.NewOrderedSet(world.Len())
	if dim == 0 {
		return next
	}
	half := grid.HalfWidth(dim)
	seen := make(map[grid.Value]struct{}, world.Len()*9)

	visit := func(c grid.Coord) {
		v := grid.Pack(c, half)
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		n := grid.NeighbourCount(world, c, dim)
		if n == 3 || (n == 2 && world.Contains(v)) {
			next.Add(v)
		}
	}

	for v := range world.All() {
		c := grid.Unpack(v, half)
		visit(c)
		for _, nb := range grid.Neighbours(c, dim) {
			visit(nb)
		}
	}
	return next
}

// Run applies Step n times.
func Run(world grid.Container, dim uint32, n int) grid.Container {
	for i := 0; i < n; i++ {
		world = Step(world, dim)
	}
	return world
}

// Pattern places cells relative to an origin, wrapping on the torus.
func Pattern(dim uint32, origin grid.Coord, cells ...grid.Coord) *grid.OrderedSet {
	half := grid.HalfWidth(dim)
	s := grid.NewOrderedSet(len(cells))
	if dim == 0 {
		return s
	}
	for _, c := range cells {
		s.Add(grid.Pack(grid.Coord{
			X: (origin.X + c.X) % dim,
			Y: (origin.Y + c.Y) % dim,
		}, half))
	}
	return s
}

// Glider is the south-east travelling glider, X being the row.
func Glider(dim uint32, origin grid.Coord) *grid.OrderedSet {
	return Pattern(dim, origin,
		grid.Coord{X: 0, Y: 1},
		grid.Coord{X: 1, Y: 2},
		grid.Coord{X: 2, Y: 0},
		grid.Coord{X: 2, Y: 1},
		grid.Coord{X: 2, Y: 2},
	)
}

// Blinker is a period-2 oscillator in its horizontal phase.
func Blinker(dim uint32, origin grid.Coord) *grid.OrderedSet {
	return Pattern(dim, origin,
		grid.Coord{X: 1, Y: 0},
		grid.Coord{X: 1, Y: 1},
		grid.Coord{X: 1, Y: 2},
	)
}

// Full returns every cell of the grid in row-major order.
func Full(dim uint32) *grid.OrderedSet {
	half := grid.HalfWidth(dim)
	s := grid.NewOrderedSet(int(dim) * int(dim))
	for x := uint32(0); x < dim; x++ {
		for y := uint32(0); y < dim; y++ {
			s.Add(grid.Pack(grid.Coord{X: x, Y: y}, half))
		}
	}
	return s
}

// Random returns a world where each cell is alive with probability density.
func Random(dim uint32, density float64, rng *rand.Rand) *grid.OrderedSet {
	half := grid.HalfWidth(dim)
	s := grid.NewOrderedSet(int(float64(dim) * float64(dim) * density))
	for x := uint32(0); x < dim; x++ {
		for y := uint32(0); y < dim; y++ {
			if rng.Float64() < density {
				s.Add(grid.Pack(grid.Coord{X: x, Y: y}, half))
			}
		}
	}
	return s
}
