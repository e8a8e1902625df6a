package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/protocol/frame"
)

func glider(dim uint32) *grid.OrderedSet {
	half := grid.HalfWidth(dim)
	s := grid.NewOrderedSet(5)
	for _, c := range []grid.Coord{{X: 1, Y: 0}, {X: 2, Y: 1}, {X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}} {
		s.Add(grid.Pack(c, half))
	}
	return s
}

func TestRoundTripEncodeDecode(t *testing.T) {
	msg := Message{Operation: OpPublish, MessageID: 42, Dimension: 512, Cells: glider(512)}

	b, err := EncodeMessage(frame.Canonical(), msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != frame.HeaderSize()+coords18(5) {
		t.Fatalf("unexpected encoded length: %d", len(b))
	}

	decoded, err := DecodeMessage(frame.Canonical(), b, DecodeOptions{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Version != Version || decoded.Operation != OpPublish || decoded.MessageID != 42 || decoded.Dimension != 512 {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if !decoded.Set().Equal(glider(512)) {
		t.Fatalf("cells mismatch: %v", decoded.Set().Values())
	}

	again, err := EncodeMessage(frame.Canonical(), decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(b, again) {
		t.Fatalf("round-trip mismatch")
	}
}

func coords18(n int) int {
	return (n*18 + 7) / 8
}

func TestDecodeChecksumMismatch(t *testing.T) {
	b, err := EncodeMessage(frame.Canonical(), Message{Operation: OpPublish, Dimension: 64, Cells: glider(64)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b[len(b)-1] ^= 0x01
	if _, err := DecodeMessage(frame.Canonical(), b, DecodeOptions{VerifyChecksum: true}); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := DecodeMessage(frame.Canonical(), b, DecodeOptions{}); err != nil {
		t.Fatalf("decode without verification: %v", err)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	b, err := EncodeMessage(frame.Canonical(), Message{Operation: OpPublish, Dimension: 512, Cells: glider(512)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, n := range []int{0, 5, frame.HeaderSize() - 1, len(b) - 1} {
		if _, err := DecodeMessage(frame.Canonical(), b[:n], DecodeOptions{}); !errors.Is(err, ErrShortRead) {
			t.Fatalf("len=%d: expected ErrShortRead, got %v", n, err)
		}
	}
}

func TestEncodeRejectsInvalidMessages(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want error
	}{
		{"unknown op", Message{Operation: 9, Dimension: 16, Cells: glider(16)}, ErrUnknownOperation},
		{"no cells", Message{Operation: OpPublish, Dimension: 16}, ErrNilCells},
		{"grid too wide", Message{Operation: OpPublish, Dimension: 1 << 13, Cells: glider(16)}, ErrInvalidWidth},
		{"dimension overflow", Message{Operation: OpPublish, Dimension: 1 << 16, Cells: glider(16)}, ErrDimensionTooLarge},
		{"single cell grid", Message{Operation: OpPublish, Dimension: 1, Cells: grid.NewOrderedSet(0)}, ErrInvalidWidth},
	}
	for _, tc := range cases {
		if _, err := EncodeMessage(frame.Canonical(), tc.msg); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestErrorMessageCarriesText(t *testing.T) {
	var buf bytes.Buffer
	msg := Message{Operation: OpError, MessageID: 3, Text: "grid too wide"}
	if err := WriteMessage(&buf, frame.Canonical(), msg, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadMessage(&buf, frame.Canonical(), frame.DefaultLimits(), DecodeOptions{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Operation != OpError || got.Text != "grid too wide" || got.Cells != nil {
		t.Fatalf("unexpected error message: %+v", got)
	}
}

func TestLegacyLayoutUsesDefaultDimension(t *testing.T) {
	legacy, err := frame.NewHeaderCodec(frame.LegacyLayout)
	if err != nil {
		t.Fatalf("legacy codec: %v", err)
	}
	b, err := EncodeMessage(legacy, Message{Operation: OpSnapshot, MessageID: 1, Dimension: 512, Cells: glider(512)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != 8+coords18(5) {
		t.Fatalf("unexpected legacy length: %d", len(b))
	}
	got, err := DecodeMessage(legacy, b, DecodeOptions{DefaultDimension: 512})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Dimension != 512 || !got.Set().Equal(glider(512)) {
		t.Fatalf("unexpected legacy message: dim=%d cells=%v", got.Dimension, got.Set().Values())
	}
	if _, err := DecodeMessage(legacy, b, DecodeOptions{}); !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("expected ErrInvalidWidth without a dimension, got %v", err)
	}
}

func TestOperationString(t *testing.T) {
	if OpStep.String() != "step" || Operation(7).String() != "op(7)" {
		t.Fatalf("unexpected operation names")
	}
}
