package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/protocol"
	"github.com/danmuck/cellwire/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired = errors.New("relay: address required")
	ErrRejected        = errors.New("relay: request rejected")
)

type ClientConfig struct {
	Address            string
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
	Limits             frame.Limits
	VerifyChecksum     bool
	// Dimension is assumed for layouts that carry no grid dimension.
	Dimension uint32
	Codec     *frame.HeaderCodec
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxConnectAttempts: 5,
		Backoff:            DefaultBackoff(),
		Limits:             frame.DefaultLimits(),
		VerifyChecksum:     true,
		Dimension:          512,
		Codec:              frame.Canonical(),
	}
}

// Client is one relay connection. Send and Receive may be used from
// different goroutines; Step must not run concurrently with Receive.
type Client struct {
	cfg  ClientConfig
	conn net.Conn

	writeMu sync.Mutex
	nextID  uint16
	pending []protocol.Message
}

// Dial connects to the relay, retrying with backoff.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	def := DefaultClientConfig()
	if cfg.Codec == nil {
		cfg.Codec = def.Codec
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = def.Limits
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	var attempt int
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
		if err == nil {
			return &Client{cfg: cfg, conn: conn}, nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", cfg.Address).Msg("relay dial")
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("relay dial %s: %w", cfg.Address, err)
		}
		timer := time.NewTimer(NextBackoffDelay(cfg.Backoff, attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send writes msg, assigning the next message id when msg has none.
func (c *Client) Send(msg protocol.Message) (uint16, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if msg.MessageID == 0 {
		c.nextID++
		if c.nextID == 0 {
			c.nextID = 1
		}
		msg.MessageID = c.nextID
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := protocol.WriteMessage(c.conn, c.cfg.Codec, msg, c.cfg.Limits); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// Publish broadcasts cells to every other relay client.
func (c *Client) Publish(cells grid.Sequence, dim uint32) (uint16, error) {
	return c.Send(protocol.Message{Operation: protocol.OpPublish, Dimension: dim, Cells: cells})
}

// Receive returns the next message, including ones buffered by Step.
func (c *Client) Receive() (protocol.Message, error) {
	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]
		return msg, nil
	}
	return c.read()
}

func (c *Client) read() (protocol.Message, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	return protocol.ReadMessage(c.conn, c.cfg.Codec, c.cfg.Limits, protocol.DecodeOptions{
		VerifyChecksum:   c.cfg.VerifyChecksum,
		DefaultDimension: c.cfg.Dimension,
	})
}

// Step asks the relay for the generation after cells. Broadcasts that
// arrive first are kept for Receive.
func (c *Client) Step(cells grid.Sequence, dim uint32) (protocol.Message, error) {
	id, err := c.Send(protocol.Message{Operation: protocol.OpStep, Dimension: dim, Cells: cells})
	if err != nil {
		return protocol.Message{}, err
	}
	for {
		msg, err := c.read()
		if err != nil {
			return protocol.Message{}, err
		}
		if msg.MessageID != id || (msg.Operation != protocol.OpSnapshot && msg.Operation != protocol.OpError) {
			c.pending = append(c.pending, msg)
			continue
		}
		if msg.Operation == protocol.OpError {
			return protocol.Message{}, fmt.Errorf("%w: %s", ErrRejected, msg.Text)
		}
		return msg, nil
	}
}
