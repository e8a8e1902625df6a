package frame

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidLayout = errors.New("frame: invalid header layout")

// Field places one header field. Width is in bytes; 0 means the field is
// not carried by the layout and decodes as zero.
type Field struct {
	Offset int
	Width  int
}

func (f Field) present() bool {
	return f.Width > 0
}

// HeaderLayout maps every header field to its byte range.
type HeaderLayout struct {
	Name          string
	Size          int
	Version       Field
	Operation     Field
	MessageID     Field
	GridDimension Field
	PayloadLength Field
	Checksum      Field
}

// CanonicalLayout is the 12-byte header written by this module.
var CanonicalLayout = HeaderLayout{
	Name:          "canonical",
	Size:          12,
	Version:       Field{Offset: 0, Width: 1},
	Operation:     Field{Offset: 1, Width: 1},
	MessageID:     Field{Offset: 2, Width: 2},
	GridDimension: Field{Offset: 4, Width: 2},
	PayloadLength: Field{Offset: 6, Width: 4},
	Checksum:      Field{Offset: 10, Width: 2},
}

// LegacyLayout is the first 8-byte revision. It has no grid dimension and a
// 16-bit payload length.
var LegacyLayout = HeaderLayout{
	Name:          "legacy",
	Size:          8,
	Version:       Field{Offset: 0, Width: 1},
	Operation:     Field{Offset: 1, Width: 1},
	MessageID:     Field{Offset: 2, Width: 2},
	PayloadLength: Field{Offset: 4, Width: 2},
	Checksum:      Field{Offset: 6, Width: 2},
}

// LayoutByName resolves a configured layout name.
func LayoutByName(name string) (HeaderLayout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "canonical":
		return CanonicalLayout, nil
	case "legacy":
		return LegacyLayout, nil
	default:
		return HeaderLayout{}, fmt.Errorf("%w: unknown layout %q", ErrInvalidLayout, name)
	}
}

func (l HeaderLayout) fields() []namedField {
	return []namedField{
		{"version", l.Version},
		{"operation", l.Operation},
		{"message_id", l.MessageID},
		{"grid_dimension", l.GridDimension},
		{"payload_length", l.PayloadLength},
		{"checksum", l.Checksum},
	}
}

type namedField struct {
	name string
	Field
}

// Validate checks that every field fits inside Size, no two fields
// overlap, and payload_length is carried.
func (l HeaderLayout) Validate() error {
	if l.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidLayout, l.Size)
	}
	if !l.PayloadLength.present() {
		return fmt.Errorf("%w: payload_length is required", ErrInvalidLayout)
	}
	var placed []namedField
	for _, f := range l.fields() {
		switch f.Width {
		case 0:
			continue
		case 1, 2, 4:
		default:
			return fmt.Errorf("%w: %s width %d", ErrInvalidLayout, f.name, f.Width)
		}
		if f.Offset < 0 || f.Offset+f.Width > l.Size {
			return fmt.Errorf("%w: %s [%d,%d) outside %d-byte header", ErrInvalidLayout, f.name, f.Offset, f.Offset+f.Width, l.Size)
		}
		placed = append(placed, f)
	}
	sort.Slice(placed, func(i, j int) bool { return placed[i].Offset < placed[j].Offset })
	for i := 1; i < len(placed); i++ {
		prev, cur := placed[i-1], placed[i]
		if prev.Offset+prev.Width > cur.Offset {
			return fmt.Errorf("%w: %s overlaps %s", ErrInvalidLayout, cur.name, prev.name)
		}
	}
	return nil
}
