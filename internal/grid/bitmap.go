package grid

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"
)

// MaxBitmapDimension bounds the side of a BitmapSet (2 MiB of words).
const MaxBitmapDimension = 1 << 12

var ErrDimensionOutOfRange = errors.New("grid: dimension out of range")

// BitmapSet is a dense alive-cell bitmap, one bit per cell in row-major
// order. It iterates in ascending x, then y.
type BitmapSet struct {
	dim   uint32
	half  int
	words []uint64
	n     int
}

func NewBitmapSet(dim uint32) (*BitmapSet, error) {
	if dim == 0 || dim > MaxBitmapDimension {
		return nil, fmt.Errorf("%w: %d", ErrDimensionOutOfRange, dim)
	}
	cells := uint64(dim) * uint64(dim)
	return &BitmapSet{
		dim:   dim,
		half:  HalfWidth(dim),
		words: make([]uint64, (cells+63)/64),
	}, nil
}

func (b *BitmapSet) Dimension() uint32 {
	return b.dim
}

func (b *BitmapSet) slot(v Value) (uint64, bool) {
	c := Unpack(v, b.half)
	if c.X >= b.dim || c.Y >= b.dim || Pack(c, b.half) != v {
		return 0, false
	}
	return uint64(c.X)*uint64(b.dim) + uint64(c.Y), true
}

// Add marks v alive and reports whether it was dead. Values outside the
// grid are ignored.
func (b *BitmapSet) Add(v Value) bool {
	i, ok := b.slot(v)
	if !ok {
		return false
	}
	word, bit := i/64, uint64(1)<<(i%64)
	if b.words[word]&bit != 0 {
		return false
	}
	b.words[word] |= bit
	b.n++
	return true
}

func (b *BitmapSet) Remove(v Value) bool {
	i, ok := b.slot(v)
	if !ok {
		return false
	}
	word, bit := i/64, uint64(1)<<(i%64)
	if b.words[word]&bit == 0 {
		return false
	}
	b.words[word] &^= bit
	b.n--
	return true
}

func (b *BitmapSet) Contains(v Value) bool {
	i, ok := b.slot(v)
	if !ok {
		return false
	}
	return b.words[i/64]&(uint64(1)<<(i%64)) != 0
}

func (b *BitmapSet) Len() int {
	return b.n
}

func (b *BitmapSet) All() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for w, word := range b.words {
			for word != 0 {
				tz := bits.TrailingZeros64(word)
				word &= word - 1
				i := uint64(w)*64 + uint64(tz)
				c := Coord{X: uint32(i / uint64(b.dim)), Y: uint32(i % uint64(b.dim))}
				if !yield(Pack(c, b.half)) {
					return
				}
			}
		}
	}
}
