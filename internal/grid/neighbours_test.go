package grid

import "testing"

func setOf(dim uint32, cells ...Coord) *OrderedSet {
	half := HalfWidth(dim)
	s := NewOrderedSet(len(cells))
	for _, c := range cells {
		s.Add(Pack(c, half))
	}
	return s
}

func TestNeighbourCountWrapsOnTorus(t *testing.T) {
	cases := []struct {
		name  string
		alive []Coord
		at    Coord
		want  int
	}{
		{"adjacent", []Coord{{0, 0}, {1, 0}}, Coord{0, 0}, 1},
		{"diagonal wrap", []Coord{{0, 0}, {2, 2}}, Coord{0, 0}, 1},
		{"self excluded", []Coord{{1, 1}}, Coord{1, 1}, 0},
		{"edge wrap", []Coord{{0, 1}, {2, 1}}, Coord{0, 1}, 1},
	}
	for _, tc := range cases {
		s := setOf(3, tc.alive...)
		if got := NeighbourCount(s, tc.at, 3); got != tc.want {
			t.Fatalf("%s: NeighbourCount=%d want %d", tc.name, got, tc.want)
		}
	}
}

func TestNeighbourCountFullGrid(t *testing.T) {
	const dim = 16
	var all []Coord
	for x := uint32(0); x < dim; x++ {
		for y := uint32(0); y < dim; y++ {
			all = append(all, Coord{x, y})
		}
	}
	s := setOf(dim, all...)
	for _, c := range []Coord{{0, 0}, {15, 15}, {0, 15}, {7, 8}} {
		if got := NeighbourCount(s, c, dim); got != 8 {
			t.Fatalf("NeighbourCount(%+v)=%d want 8", c, got)
		}
	}
}

func TestNeighbourCountSameOnBitmapAndOrderedSet(t *testing.T) {
	const dim = 32
	alive := []Coord{{0, 0}, {31, 31}, {0, 31}, {31, 0}, {1, 1}, {16, 16}, {16, 17}}
	ordered := setOf(dim, alive...)
	bitmap, err := NewBitmapSet(dim)
	if err != nil {
		t.Fatalf("new bitmap: %v", err)
	}
	for v := range ordered.All() {
		bitmap.Add(v)
	}
	for x := uint32(0); x < dim; x++ {
		for y := uint32(0); y < dim; y++ {
			c := Coord{x, y}
			if a, b := NeighbourCount(ordered, c, dim), NeighbourCount(bitmap, c, dim); a != b {
				t.Fatalf("mismatch at %+v: ordered=%d bitmap=%d", c, a, b)
			}
		}
	}
	if got := NeighbourCount(ordered, Coord{0, 0}, dim); got != 4 {
		t.Fatalf("corner count=%d want 4", got)
	}
}

func TestNeighbourCountZeroDimension(t *testing.T) {
	if got := NeighbourCount(NewOrderedSet(0), Coord{}, 0); got != 0 {
		t.Fatalf("unexpected count: %d", got)
	}
}
