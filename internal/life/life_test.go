package life

import (
	"math/rand/v2"
	"testing"

	"github.com/danmuck/cellwire/internal/grid"
)

func sameCells(a, b grid.Container) bool {
	if a.Len() != b.Len() {
		return false
	}
	for v := range a.All() {
		if !b.Contains(v) {
			return false
		}
	}
	return true
}

func TestBlinkerOscillates(t *testing.T) {
	const dim = 16
	start := Blinker(dim, grid.Coord{X: 5, Y: 5})
	vertical := Pattern(dim, grid.Coord{X: 5, Y: 5},
		grid.Coord{X: 0, Y: 1}, grid.Coord{X: 1, Y: 1}, grid.Coord{X: 2, Y: 1})

	gen1 := Step(start, dim)
	if !sameCells(gen1, vertical) {
		t.Fatalf("unexpected generation 1: %v", gen1.Values())
	}
	gen2 := Step(gen1, dim)
	if !sameCells(gen2, start) {
		t.Fatalf("unexpected generation 2: %v", gen2.Values())
	}
}

func TestGliderTranslatesAcrossEdge(t *testing.T) {
	const dim = 8
	start := Glider(dim, grid.Coord{X: 6, Y: 6})
	got := Run(start, dim, 4)
	want := Glider(dim, grid.Coord{X: 7, Y: 7})
	if !sameCells(got, want) {
		t.Fatalf("glider did not wrap: got=%v want=%v", slicesOf(got), want.Values())
	}
}

func slicesOf(c grid.Container) []grid.Value {
	out := make([]grid.Value, 0, c.Len())
	for v := range c.All() {
		out = append(out, v)
	}
	return out
}

func TestBlockIsStill(t *testing.T) {
	const dim = 32
	block := Pattern(dim, grid.Coord{X: 0, Y: 31},
		grid.Coord{X: 0, Y: 0}, grid.Coord{X: 0, Y: 1}, grid.Coord{X: 1, Y: 0}, grid.Coord{X: 1, Y: 1})
	if next := Step(block, dim); !sameCells(next, block) {
		t.Fatalf("block changed: %v", next.Values())
	}
}

func TestStepOnBitmapMatchesOrderedSet(t *testing.T) {
	const dim = 64
	world := Random(dim, 0.3, rand.New(rand.NewPCG(3, 4)))
	bitmap, err := grid.NewBitmapSet(dim)
	if err != nil {
		t.Fatalf("new bitmap: %v", err)
	}
	for v := range world.All() {
		bitmap.Add(v)
	}
	if a, b := Step(world, dim), Step(bitmap, dim); !sameCells(a, b) {
		t.Fatalf("step differs between containers: %d vs %d cells", a.Len(), b.Len())
	}
}

func TestStepIsDeterministic(t *testing.T) {
	const dim = 32
	world := Random(dim, 0.25, rand.New(rand.NewPCG(9, 9)))
	if !Step(world, dim).Equal(Step(world, dim)) {
		t.Fatalf("expected identical order across runs")
	}
}

func TestFullWorldDies(t *testing.T) {
	const dim = 8
	if next := Step(Full(dim), dim); next.Len() != 0 {
		t.Fatalf("expected overcrowded world to die, got %d cells", next.Len())
	}
}
