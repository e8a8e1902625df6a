package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

var (
	ErrShortRead       = errors.New("frame: short read")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrTransport       = errors.New("frame: transport failure")
)

// Header is the fixed wire header. Checksum is stored, never verified here.
type Header struct {
	Version       uint8
	Operation     uint8
	MessageID     uint16
	GridDimension uint16
	PayloadLength uint32
	Checksum      uint16
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// HeaderCodec encodes and decodes headers for one validated layout.
type HeaderCodec struct {
	layout HeaderLayout
}

func NewHeaderCodec(layout HeaderLayout) (*HeaderCodec, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &HeaderCodec{layout: layout}, nil
}

var canonical = &HeaderCodec{layout: CanonicalLayout}

// Canonical returns the codec for CanonicalLayout.
func Canonical() *HeaderCodec {
	return canonical
}

// HeaderSize is the canonical header length in bytes.
func HeaderSize() int {
	return CanonicalLayout.Size
}

func EncodeHeader(h Header) []byte {
	return canonical.Encode(h)
}

func DecodeHeader(b []byte) (Header, error) {
	return canonical.Decode(b)
}

func (c *HeaderCodec) Layout() HeaderLayout {
	return c.layout
}

func (c *HeaderCodec) Size() int {
	return c.layout.Size
}

// MaxPayloadLength is the largest payload length this layout can carry.
func (c *HeaderCodec) MaxPayloadLength() uint32 {
	if c.layout.PayloadLength.Width >= 4 {
		return ^uint32(0)
	}
	return uint32(1)<<(8*c.layout.PayloadLength.Width) - 1
}

// Encode writes h big-endian into a buffer of exactly Size bytes. Values
// wider than their field keep only their low bytes.
func (c *HeaderCodec) Encode(h Header) []byte {
	buf := make([]byte, c.layout.Size)
	l := c.layout
	putField(buf, l.Version, uint32(h.Version))
	putField(buf, l.Operation, uint32(h.Operation))
	putField(buf, l.MessageID, uint32(h.MessageID))
	putField(buf, l.GridDimension, uint32(h.GridDimension))
	putField(buf, l.PayloadLength, h.PayloadLength)
	putField(buf, l.Checksum, uint32(h.Checksum))
	return buf
}

// Decode reads a header from the first Size bytes of b.
func (c *HeaderCodec) Decode(b []byte) (Header, error) {
	if len(b) < c.layout.Size {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortRead, c.layout.Size, len(b))
	}
	b = b[:c.layout.Size]
	l := c.layout
	return Header{
		Version:       uint8(getField(b, l.Version)),
		Operation:     uint8(getField(b, l.Operation)),
		MessageID:     uint16(getField(b, l.MessageID)),
		GridDimension: uint16(getField(b, l.GridDimension)),
		PayloadLength: getField(b, l.PayloadLength),
		Checksum:      uint16(getField(b, l.Checksum)),
	}, nil
}

func putField(buf []byte, f Field, v uint32) {
	dst := buf[f.Offset : f.Offset+f.Width]
	switch f.Width {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(dst, v)
	}
}

func getField(buf []byte, f Field) uint32 {
	src := buf[f.Offset : f.Offset+f.Width]
	switch f.Width {
	case 1:
		return uint32(src[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(src))
	case 4:
		return binary.BigEndian.Uint32(src)
	default:
		return 0
	}
}

// Checksum folds the CRC-32 (IEEE) of payload into 16 bits.
func Checksum(payload []byte) uint16 {
	sum := crc32.ChecksumIEEE(payload)
	return uint16(sum>>16) ^ uint16(sum)
}

// ReadFrame reads exactly one header and then exactly PayloadLength bytes.
// A stream that ends before any header byte returns io.EOF.
func ReadFrame(r io.Reader, codec *HeaderCodec, limits Limits) (Frame, error) {
	fixed := make([]byte, codec.Size())
	if n, err := io.ReadFull(r, fixed); err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: header has %d of %d bytes", ErrShortRead, n, len(fixed))
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	h, err := codec.Decode(fixed)
	if err != nil {
		return Frame{}, err
	}
	if h.PayloadLength > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.PayloadLength, limits.MaxPayloadBytes)
	}

	payload := make([]byte, h.PayloadLength)
	if h.PayloadLength > 0 {
		if n, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("%w: payload has %d of %d bytes", ErrShortRead, n, h.PayloadLength)
			}
			return Frame{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame sets PayloadLength from the payload and writes header then payload.
func WriteFrame(w io.Writer, codec *HeaderCodec, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) || uint64(len(f.Payload)) > uint64(codec.MaxPayloadLength()) {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}

	h := f.Header
	h.PayloadLength = uint32(len(f.Payload))

	buf := make([]byte, 0, codec.Size()+len(f.Payload))
	buf = append(buf, codec.Encode(h)...)
	buf = append(buf, f.Payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
