// Package grid models the alive cells of a square world and the
// Moore-neighbourhood query over them.
//
// A cell (x, y) is stored as a packed Value, x in the high half and y in
// the low half. The half width is the number of bits needed to address
// 0..dim-1 on one axis.
package grid

import (
	"iter"
	"math/bits"
)

// Value is one packed coordinate.
type Value uint32

// Coord is one cell position.
type Coord struct {
	X uint32
	Y uint32
}

// HalfWidth returns the per-axis bit width for a grid of side dim.
// For powers of two this is the position of the highest set bit.
func HalfWidth(dim uint32) int {
	if dim <= 1 {
		return 0
	}
	return bits.Len32(dim - 1)
}

// Pack returns x<<half | y.
func Pack(c Coord, half int) Value {
	return Value(c.X<<half | c.Y&(1<<half-1))
}

// Unpack splits v using half as the per-axis width.
func Unpack(v Value, half int) Coord {
	mask := uint32(1)<<half - 1
	return Coord{X: uint32(v) >> half & mask, Y: uint32(v) & mask}
}

// Sequence iterates values in the container's own order.
type Sequence interface {
	All() iter.Seq[Value]
	Len() int
}

// Container is the capability neighbour queries need from a set of alive cells.
type Container interface {
	Sequence
	Contains(v Value) bool
}

var (
	_ Container = (*OrderedSet)(nil)
	_ Container = (*BitmapSet)(nil)
)

// OrderedSet keeps unique values in first-insertion order.
type OrderedSet struct {
	index map[Value]struct{}
	order []Value
}

func NewOrderedSet(capacity int) *OrderedSet {
	if capacity < 0 {
		capacity = 0
	}
	return &OrderedSet{
		index: make(map[Value]struct{}, capacity),
		order: make([]Value, 0, capacity),
	}
}

// OrderedSetOf builds a set from values, dropping repeats.
func OrderedSetOf(values ...Value) *OrderedSet {
	s := NewOrderedSet(len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was absent.
func (s *OrderedSet) Add(v Value) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *OrderedSet) Contains(v Value) bool {
	_, ok := s.index[v]
	return ok
}

func (s *OrderedSet) Len() int {
	return len(s.order)
}

func (s *OrderedSet) All() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, v := range s.order {
			if !yield(v) {
				return
			}
		}
	}
}

// Values returns a copy of the values in insertion order.
func (s *OrderedSet) Values() []Value {
	out := make([]Value, len(s.order))
	copy(out, s.order)
	return out
}

// Equal reports whether both sets hold the same values in the same order.
func (s *OrderedSet) Equal(other *OrderedSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, v := range s.order {
		if other.order[i] != v {
			return false
		}
	}
	return true
}
