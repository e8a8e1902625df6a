// Package coords packs alive-cell sets into dense payloads whose element
// width is derived from the grid dimension.
package coords

import (
	"fmt"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/protocol/bitstream"
)

// ErrInvalidWidth is shared with the bit stream so one errors.Is check
// covers derived and supplied widths.
var ErrInvalidWidth = bitstream.ErrInvalidWidth

// DeriveWidth returns the element width for a grid of side dim: twice the
// per-axis width. Grids needing 0 or more than 24 bits are rejected.
func DeriveWidth(dim uint32) (int, error) {
	bits := 2 * grid.HalfWidth(dim)
	if bits == 0 || bits > bitstream.MaxWidth {
		return 0, fmt.Errorf("%w: dimension %d needs %d bits", ErrInvalidWidth, dim, bits)
	}
	return bits, nil
}

// EncodedLen is the payload size of n elements of the given width.
func EncodedLen(n, bits int) int {
	return (n*bits + 7) / 8
}

// Encode packs set in its iteration order.
func Encode(set grid.Sequence, bits int) ([]byte, error) {
	if bits < 1 || bits > bitstream.MaxWidth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, bits)
	}
	limit := uint64(1) << bits
	w := bitstream.NewWriter(EncodedLen(set.Len(), bits))
	for v := range set.All() {
		if uint64(v) >= limit {
			return nil, fmt.Errorf("%w: value %d does not fit in %d bits", ErrInvalidWidth, v, bits)
		}
		if err := w.Write(uint32(v), bits); err != nil {
			return nil, err
		}
	}
	return w.Flush(), nil
}

// Decode unpacks payload until fewer than bits remain. Repeated values keep
// their first position.
//
// Widths below 8 cannot tell zero padding from value 0: a trailing partial
// byte may decode as extra zero elements.
func Decode(payload []byte, bits int) (*grid.OrderedSet, error) {
	if bits < 1 || bits > bitstream.MaxWidth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, bits)
	}
	r := bitstream.NewReader(payload)
	set := grid.NewOrderedSet(len(payload) * 8 / bits)
	for {
		v, ok := r.Read(bits)
		if !ok {
			break
		}
		set.Add(grid.Value(v))
	}
	return set, r.Err()
}

// DecodeCoords is Decode followed by unpacking each value for a grid of side dim.
func DecodeCoords(payload []byte, dim uint32) ([]grid.Coord, error) {
	bits, err := DeriveWidth(dim)
	if err != nil {
		return nil, err
	}
	set, err := Decode(payload, bits)
	if err != nil {
		return nil, err
	}
	half := bits / 2
	out := make([]grid.Coord, 0, set.Len())
	for v := range set.All() {
		out = append(out, grid.Unpack(v, half))
	}
	return out, nil
}
