// Package bench compares cell-set encodings by size and encode/decode time.
package bench

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/protocol/coords"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrUnknownEncoding = errors.New("bench: unknown encoding")
	ErrMalformed       = errors.New("bench: malformed encoded world")
)

const (
	EncodingBitPacked = "bitpacked"
	EncodingZstd      = "bitpacked+zstd"
	EncodingJSON      = "json"
	EncodingU32       = "u32"
)

// Encoding turns a cell set into bytes and back for a grid of side dim.
type Encoding interface {
	Name() string
	Encode(world grid.Sequence, dim uint32) ([]byte, error)
	Decode(b []byte, dim uint32) (*grid.OrderedSet, error)
}

func Names() []string {
	return []string{EncodingBitPacked, EncodingZstd, EncodingJSON, EncodingU32}
}

// NewEncoding returns the encoding registered under name. Encodings that
// hold resources implement io.Closer.
func NewEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingBitPacked:
		return bitPacked{}, nil
	case EncodingZstd:
		return newZstdPacked()
	case EncodingJSON:
		return jsonCells{}, nil
	case EncodingU32:
		return u32Cells{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

type bitPacked struct{}

func (bitPacked) Name() string { return EncodingBitPacked }

func (bitPacked) Encode(world grid.Sequence, dim uint32) ([]byte, error) {
	bits, err := coords.DeriveWidth(dim)
	if err != nil {
		return nil, err
	}
	return coords.Encode(world, bits)
}

func (bitPacked) Decode(b []byte, dim uint32) (*grid.OrderedSet, error) {
	bits, err := coords.DeriveWidth(dim)
	if err != nil {
		return nil, err
	}
	return coords.Decode(b, bits)
}

type zstdPacked struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdPacked() (*zstdPacked, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdPacked{enc: enc, dec: dec}, nil
}

func (z *zstdPacked) Name() string { return EncodingZstd }

func (z *zstdPacked) Encode(world grid.Sequence, dim uint32) ([]byte, error) {
	raw, err := bitPacked{}.Encode(world, dim)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(raw, nil), nil
}

func (z *zstdPacked) Decode(b []byte, dim uint32) (*grid.OrderedSet, error) {
	raw, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return bitPacked{}.Decode(raw, dim)
}

func (z *zstdPacked) Close() error {
	z.dec.Close()
	return z.enc.Close()
}

type jsonCell struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

type jsonWorld struct {
	Dimension uint32     `json:"dimension"`
	Cells     []jsonCell `json:"cells"`
}

type jsonCells struct{}

func (jsonCells) Name() string { return EncodingJSON }

func (jsonCells) Encode(world grid.Sequence, dim uint32) ([]byte, error) {
	half := grid.HalfWidth(dim)
	doc := jsonWorld{Dimension: dim, Cells: make([]jsonCell, 0, world.Len())}
	for v := range world.All() {
		c := grid.Unpack(v, half)
		doc.Cells = append(doc.Cells, jsonCell{X: c.X, Y: c.Y})
	}
	return json.Marshal(doc)
}

func (jsonCells) Decode(b []byte, dim uint32) (*grid.OrderedSet, error) {
	var doc jsonWorld
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	half := grid.HalfWidth(dim)
	set := grid.NewOrderedSet(len(doc.Cells))
	for _, c := range doc.Cells {
		if c.X >= dim || c.Y >= dim {
			return nil, fmt.Errorf("%w: cell (%d,%d) outside %d", ErrMalformed, c.X, c.Y, dim)
		}
		set.Add(grid.Pack(grid.Coord{X: c.X, Y: c.Y}, half))
	}
	return set, nil
}

// u32Cells writes each cell as big-endian 16-bit x then y.
type u32Cells struct{}

func (u32Cells) Name() string { return EncodingU32 }

func (u32Cells) Encode(world grid.Sequence, dim uint32) ([]byte, error) {
	if dim > math.MaxUint16+1 {
		return nil, fmt.Errorf("%w: dimension %d exceeds 16-bit axes", coords.ErrInvalidWidth, dim)
	}
	half := grid.HalfWidth(dim)
	out := make([]byte, 0, 4*world.Len())
	for v := range world.All() {
		c := grid.Unpack(v, half)
		out = binary.BigEndian.AppendUint16(out, uint16(c.X))
		out = binary.BigEndian.AppendUint16(out, uint16(c.Y))
	}
	return out, nil
}

func (u32Cells) Decode(b []byte, dim uint32) (*grid.OrderedSet, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrMalformed, len(b))
	}
	half := grid.HalfWidth(dim)
	set := grid.NewOrderedSet(len(b) / 4)
	for i := 0; i < len(b); i += 4 {
		c := grid.Coord{
			X: uint32(binary.BigEndian.Uint16(b[i:])),
			Y: uint32(binary.BigEndian.Uint16(b[i+2:])),
		}
		set.Add(grid.Pack(c, half))
	}
	return set, nil
}
