package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/cellwire/internal/protocol/coords"
	"github.com/danmuck/cellwire/internal/protocol/frame"
)

// ParseFrame decodes the payload of f according to its header.
func ParseFrame(f frame.Frame, opts DecodeOptions) (Message, error) {
	h := f.Header
	op := Operation(h.Operation)
	if !op.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownOperation, h.Operation)
	}
	if uint32(len(f.Payload)) < h.PayloadLength {
		return Message{}, fmt.Errorf("%w: payload has %d of %d bytes", ErrShortRead, len(f.Payload), h.PayloadLength)
	}
	payload := f.Payload[:h.PayloadLength]
	if opts.VerifyChecksum {
		if sum := frame.Checksum(payload); sum != h.Checksum {
			return Message{}, fmt.Errorf("%w: header=%#04x payload=%#04x", ErrChecksumMismatch, h.Checksum, sum)
		}
	}

	msg := Message{
		Version:   h.Version,
		Operation: op,
		MessageID: h.MessageID,
		Dimension: uint32(h.GridDimension),
	}
	if msg.Dimension == 0 {
		msg.Dimension = opts.DefaultDimension
	}
	if op == OpError {
		msg.Text = string(payload)
		return msg, nil
	}

	bits, err := coords.DeriveWidth(msg.Dimension)
	if err != nil {
		return Message{}, err
	}
	cells, err := coords.Decode(payload, bits)
	if err != nil {
		return Message{}, err
	}
	msg.Cells = cells
	return msg, nil
}

// DecodeMessage decodes one message from the front of b.
func DecodeMessage(codec *frame.HeaderCodec, b []byte, opts DecodeOptions) (Message, error) {
	h, err := codec.Decode(b)
	if err != nil {
		return Message{}, err
	}
	rest := b[codec.Size():]
	if uint32(len(rest)) < h.PayloadLength {
		return Message{}, fmt.Errorf("%w: payload has %d of %d bytes", ErrShortRead, len(rest), h.PayloadLength)
	}
	return ParseFrame(frame.Frame{Header: h, Payload: rest[:h.PayloadLength]}, opts)
}

// ReadMessage reads one frame from r and decodes it.
func ReadMessage(r io.Reader, codec *frame.HeaderCodec, limits frame.Limits, opts DecodeOptions) (Message, error) {
	f, err := frame.ReadFrame(r, codec, limits)
	if err != nil {
		return Message{}, err
	}
	return ParseFrame(f, opts)
}
