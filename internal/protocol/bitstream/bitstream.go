// Package bitstream packs and unpacks fixed-width unsigned integers
// MSB-first into a byte buffer, with no padding between elements.
package bitstream

import (
	"errors"
	"fmt"
)

// MaxWidth is the widest element accepted by Writer and Reader.
// The accumulator is 32 bits and holds at most 7 pending bits between
// calls, so one element may add up to 24 more.
const MaxWidth = 24

var (
	ErrInvalidWidth = errors.New("bitstream: invalid width")
	ErrFlushed      = errors.New("bitstream: write after flush")
)

func checkWidth(width int) error {
	if width < 1 || width > MaxWidth {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidWidth, width, MaxWidth)
	}
	return nil
}

// Writer accumulates bits and emits every completed byte.
type Writer struct {
	acc     uint32
	nbits   int // pending bits in acc; always < 8 between calls
	out     []byte
	flushed bool
}

// NewWriter returns a Writer whose output buffer is preallocated for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{out: make([]byte, 0, sizeHint)}
}

// Write appends the low width bits of value.
func (w *Writer) Write(value uint32, width int) error {
	if err := checkWidth(width); err != nil {
		return err
	}
	if w.flushed {
		return ErrFlushed
	}
	w.acc = w.acc<<width | value&(1<<width-1)
	w.nbits += width
	for w.nbits >= 8 {
		w.nbits -= 8
		w.out = append(w.out, byte(w.acc>>w.nbits))
	}
	w.acc &= 1<<w.nbits - 1
	return nil
}

// Flush zero-pads any trailing partial byte and returns the packed output.
// Further calls return the same bytes.
func (w *Writer) Flush() []byte {
	if !w.flushed && w.nbits > 0 {
		w.out = append(w.out, byte(w.acc<<(8-w.nbits)))
		w.acc = 0
		w.nbits = 0
	}
	w.flushed = true
	return w.out
}

// Len reports the number of bytes emitted so far.
func (w *Writer) Len() int {
	return len(w.out)
}

// Reader consumes fixed-width elements from a packed buffer.
type Reader struct {
	buf   []byte
	pos   int
	acc   uint32
	nbits int
	err   error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Read returns the next width bits. It reports false once fewer than
// width bits remain, which is the normal end of a stream.
func (r *Reader) Read(width int) (uint32, bool) {
	if err := checkWidth(width); err != nil {
		r.err = err
		return 0, false
	}
	if r.Remaining() < width {
		return 0, false
	}
	for r.nbits < width {
		r.acc = r.acc<<8 | uint32(r.buf[r.pos])
		r.pos++
		r.nbits += 8
	}
	r.nbits -= width
	v := r.acc >> r.nbits & (1<<width - 1)
	r.acc &= 1<<r.nbits - 1
	return v, true
}

// Remaining reports the number of unread bits.
func (r *Reader) Remaining() int {
	return r.nbits + 8*(len(r.buf)-r.pos)
}

// Err returns the width error recorded by the last failed Read, if any.
func (r *Reader) Err() error {
	return r.err
}
