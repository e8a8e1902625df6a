package protocol

import (
	"errors"

	"github.com/danmuck/cellwire/internal/protocol/coords"
	"github.com/danmuck/cellwire/internal/protocol/frame"
)

var (
	ErrShortRead       = frame.ErrShortRead
	ErrInvalidWidth    = coords.ErrInvalidWidth
	ErrTransport       = frame.ErrTransport
	ErrPayloadTooLarge = frame.ErrPayloadTooLarge

	ErrChecksumMismatch  = errors.New("protocol: checksum mismatch")
	ErrUnknownOperation  = errors.New("protocol: unknown operation")
	ErrNilCells          = errors.New("protocol: message has no cell set")
	ErrDimensionTooLarge = errors.New("protocol: grid dimension does not fit header")
)
