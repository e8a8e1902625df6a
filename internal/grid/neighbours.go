package grid

var mooreOffsets = [8][2]int64{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Neighbours returns the eight Moore neighbours of c on a torus of side dim.
// On grids narrower than three cells some entries repeat or equal c.
func Neighbours(c Coord, dim uint32) [8]Coord {
	var out [8]Coord
	if dim == 0 {
		return out
	}
	d := int64(dim)
	x, y := int64(c.X)%d, int64(c.Y)%d
	for i, off := range mooreOffsets {
		out[i] = Coord{
			X: uint32((x + off[0] + d) % d),
			Y: uint32((y + off[1] + d) % d),
		}
	}
	return out
}

// NeighbourCount counts the alive Moore neighbours of c on a torus of
// side dim. The cell itself is never counted.
func NeighbourCount(set Container, c Coord, dim uint32) int {
	if dim == 0 {
		return 0
	}
	half := HalfWidth(dim)
	self := Coord{X: c.X % dim, Y: c.Y % dim}
	n := 0
	for _, nb := range Neighbours(c, dim) {
		if nb == self {
			continue
		}
		if set.Contains(Pack(nb, half)) {
			n++
		}
	}
	return n
}
