package protocol

import (
	"fmt"
	"io"
	"math"

	"github.com/danmuck/cellwire/internal/protocol/coords"
	"github.com/danmuck/cellwire/internal/protocol/frame"
)

// BuildFrame packs msg into a frame with payload length and checksum set.
func BuildFrame(msg Message) (frame.Frame, error) {
	if !msg.Operation.Valid() {
		return frame.Frame{}, fmt.Errorf("%w: %d", ErrUnknownOperation, uint8(msg.Operation))
	}
	if msg.Dimension > math.MaxUint16 {
		return frame.Frame{}, fmt.Errorf("%w: %d", ErrDimensionTooLarge, msg.Dimension)
	}

	var payload []byte
	if msg.Operation == OpError {
		payload = []byte(msg.Text)
	} else {
		if msg.Cells == nil {
			return frame.Frame{}, ErrNilCells
		}
		bits, err := coords.DeriveWidth(msg.Dimension)
		if err != nil {
			return frame.Frame{}, err
		}
		payload, err = coords.Encode(msg.Cells, bits)
		if err != nil {
			return frame.Frame{}, err
		}
	}

	version := msg.Version
	if version == 0 {
		version = Version
	}
	return frame.Frame{
		Header: frame.Header{
			Version:       version,
			Operation:     uint8(msg.Operation),
			MessageID:     msg.MessageID,
			GridDimension: uint16(msg.Dimension),
			PayloadLength: uint32(len(payload)),
			Checksum:      frame.Checksum(payload),
		},
		Payload: payload,
	}, nil
}

// EncodeMessage returns the header and payload bytes of msg.
func EncodeMessage(codec *frame.HeaderCodec, msg Message) ([]byte, error) {
	f, err := BuildFrame(msg)
	if err != nil {
		return nil, err
	}
	if uint64(len(f.Payload)) > uint64(codec.MaxPayloadLength()) {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	out := make([]byte, 0, codec.Size()+len(f.Payload))
	out = append(out, codec.Encode(f.Header)...)
	return append(out, f.Payload...), nil
}

// WriteMessage encodes msg and writes it as one frame.
func WriteMessage(w io.Writer, codec *frame.HeaderCodec, msg Message, limits frame.Limits) error {
	f, err := BuildFrame(msg)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, codec, f, limits)
}
