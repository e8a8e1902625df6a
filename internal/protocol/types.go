package protocol

import (
	"fmt"

	"github.com/danmuck/cellwire/internal/grid"
)

// Version is written into every header this module encodes.
const Version uint8 = 1

// Operation is the header op-code.
type Operation uint8

const (
	OpPublish  Operation = 1
	OpStep     Operation = 2
	OpSnapshot Operation = 3
	OpError    Operation = 0xFF
)

func (o Operation) Valid() bool {
	switch o {
	case OpPublish, OpStep, OpSnapshot, OpError:
		return true
	default:
		return false
	}
}

func (o Operation) String() string {
	switch o {
	case OpPublish:
		return "publish"
	case OpStep:
		return "step"
	case OpSnapshot:
		return "snapshot"
	case OpError:
		return "error"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Message is one decoded cell message. Error messages carry Text instead
// of Cells.
type Message struct {
	Version   uint8
	Operation Operation
	MessageID uint16
	Dimension uint32
	Cells     grid.Sequence
	Text      string
}

// Set returns Cells as an OrderedSet, copying when Cells has another type.
func (m Message) Set() *grid.OrderedSet {
	if s, ok := m.Cells.(*grid.OrderedSet); ok {
		return s
	}
	if m.Cells == nil {
		return grid.NewOrderedSet(0)
	}
	s := grid.NewOrderedSet(m.Cells.Len())
	for v := range m.Cells.All() {
		s.Add(v)
	}
	return s
}

// DecodeOptions tune message decoding.
type DecodeOptions struct {
	// VerifyChecksum rejects payloads whose checksum differs from the header.
	VerifyChecksum bool
	// DefaultDimension is used when the layout carries no grid dimension.
	DefaultDimension uint32
}
