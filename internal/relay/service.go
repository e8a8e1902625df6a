package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/cellwire/internal/life"
	"github.com/danmuck/cellwire/internal/observability"
	"github.com/danmuck/cellwire/internal/protocol"
	"github.com/danmuck/cellwire/internal/protocol/frame"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ServiceConfig configures the relay endpoints.
type ServiceConfig struct {
	ListenAddr     string
	HTTPListenAddr string
	CorsOrigins    []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Limits         frame.Limits
	VerifyChecksum bool
	// Dimension is assumed for layouts that carry no grid dimension.
	Dimension uint32
	Codec     *frame.HeaderCodec
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:     ":8030",
		HTTPListenAddr: ":8031",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Second,
		Limits:         frame.DefaultLimits(),
		VerifyChecksum: true,
		Dimension:      512,
		Codec:          frame.Canonical(),
	}
}

// Stats is a point-in-time view of relay activity.
type Stats struct {
	Clients       int    `json:"clients"`
	Published     uint64 `json:"published"`
	Stepped       uint64 `json:"stepped"`
	Rejected      uint64 `json:"rejected"`
	LastDimension uint32 `json:"last_dimension"`
	LastCells     int    `json:"last_cells"`
}

type client struct {
	id      uint64
	conn    net.Conn
	writeMu sync.Mutex
}

// Service accepts framed cell messages, broadcasts published snapshots to
// every other client and answers step requests with the next generation.
type Service struct {
	cfg ServiceConfig

	connsMu sync.Mutex
	conns   map[*client]struct{}
	nextID  atomic.Uint64

	published atomic.Uint64
	stepped   atomic.Uint64
	rejected  atomic.Uint64
	lastMu    sync.Mutex
	lastDim   uint32
	lastCells int

	router  *gin.Engine
	started time.Time
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = def.Limits
	}
	if cfg.Codec == nil {
		cfg.Codec = def.Codec
	}
	s := &Service{
		cfg:     cfg,
		conns:   make(map[*client]struct{}),
		started: time.Now(),
	}
	s.router = s.newRouter()
	return s
}

// Run listens on the configured addresses and blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("relay listen %s: %w", s.cfg.ListenAddr, err)
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("layout", s.cfg.Codec.Layout().Name).
		Msg("relay listening")

	httpErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.HTTPListenAddr); addr != "" {
		srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		go func() {
			log.Info().Str("addr", addr).Msg("relay http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-httpErr:
		stop()
		<-serveErr
		return fmt.Errorf("relay http: %w", err)
	}
}

// Serve runs the accept loop on ln until ctx is done.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		c := &client{id: s.nextID.Add(1), conn: conn}
		s.trackConn(c)
		go s.handleConn(c)
	}
}

func (s *Service) trackConn(c *client) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	n := len(s.conns)
	s.connsMu.Unlock()
	observability.SetRelayClients(n)
}

func (s *Service) untrackConn(c *client) {
	s.connsMu.Lock()
	delete(s.conns, c)
	n := len(s.conns)
	s.connsMu.Unlock()
	observability.SetRelayClients(n)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		_ = c.conn.Close()
	}
}

func (s *Service) peers(except *client) []*client {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	out := make([]*client, 0, len(s.conns))
	for c := range s.conns {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) decodeOptions() protocol.DecodeOptions {
	return protocol.DecodeOptions{
		VerifyChecksum:   s.cfg.VerifyChecksum,
		DefaultDimension: s.cfg.Dimension,
	}
}

func (s *Service) handleConn(c *client) {
	defer c.conn.Close()
	defer s.untrackConn(c)
	remote := c.conn.RemoteAddr().String()
	logger := log.With().Uint64("client", c.id).Str("remote", remote).Logger()
	logger.Info().Msg("relay client connected")
	defer func() {
		logger.Info().Msg("relay client disconnected")
	}()

	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		f, err := frame.ReadFrame(c.conn, s.cfg.Codec, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn().Err(err).Msg("relay read frame")
			}
			if errors.Is(err, frame.ErrPayloadTooLarge) {
				s.reject(c, f.Header.MessageID, err)
			}
			return
		}

		start := time.Now()
		msg, err := protocol.ParseFrame(f, s.decodeOptions())
		observability.RecordCodec("decode", time.Since(start))
		if err != nil {
			observability.RecordFrame("in", protocol.Operation(f.Header.Operation).String(), len(f.Payload), false)
			logger.Warn().Err(err).Uint16("message_id", f.Header.MessageID).Msg("relay decode frame")
			s.reject(c, f.Header.MessageID, err)
			continue
		}
		observability.RecordFrame("in", msg.Operation.String(), len(f.Payload), true)

		switch msg.Operation {
		case protocol.OpPublish:
			s.published.Add(1)
			s.observe(msg)
			n := s.broadcast(c, f)
			logger.Debug().
				Uint16("message_id", msg.MessageID).
				Int("cells", msg.Cells.Len()).
				Int("peers", n).
				Msg("relay publish")
		case protocol.OpStep:
			s.stepped.Add(1)
			stepStart := time.Now()
			next := life.Step(msg.Set(), msg.Dimension)
			observability.RecordCodec("step", time.Since(stepStart))
			reply := protocol.Message{
				Operation: protocol.OpSnapshot,
				MessageID: msg.MessageID,
				Dimension: msg.Dimension,
				Cells:     next,
			}
			if err := s.send(c, reply); err != nil {
				logger.Warn().Err(err).Msg("relay write snapshot")
				return
			}
		default:
			logger.Warn().Str("operation", msg.Operation.String()).Msg("relay unexpected operation")
			s.reject(c, msg.MessageID, fmt.Errorf("%w: %s not accepted by relay", protocol.ErrUnknownOperation, msg.Operation))
		}
	}
}

func (s *Service) observe(msg protocol.Message) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastDim = msg.Dimension
	s.lastCells = msg.Cells.Len()
}

// broadcast forwards f unchanged to every client except from and returns
// the number of successful deliveries.
func (s *Service) broadcast(from *client, f frame.Frame) int {
	delivered := 0
	for _, peer := range s.peers(from) {
		if err := s.writeFrame(peer, f); err != nil {
			log.Warn().Err(err).Uint64("client", peer.id).Msg("relay broadcast failed; dropping client")
			_ = peer.conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

func (s *Service) send(c *client, msg protocol.Message) error {
	f, err := protocol.BuildFrame(msg)
	if err != nil {
		return err
	}
	return s.writeFrame(c, f)
}

func (s *Service) writeFrame(c *client, f frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	err := frame.WriteFrame(c.conn, s.cfg.Codec, f, s.cfg.Limits)
	observability.RecordFrame("out", protocol.Operation(f.Header.Operation).String(), len(f.Payload), err == nil)
	return err
}

func (s *Service) reject(c *client, messageID uint16, cause error) {
	s.rejected.Add(1)
	reply := protocol.Message{Operation: protocol.OpError, MessageID: messageID, Text: cause.Error()}
	if err := s.send(c, reply); err != nil {
		log.Debug().Err(err).Uint64("client", c.id).Msg("relay write error reply")
	}
}

func (s *Service) Stats() Stats {
	s.connsMu.Lock()
	clients := len(s.conns)
	s.connsMu.Unlock()
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return Stats{
		Clients:       clients,
		Published:     s.published.Load(),
		Stepped:       s.stepped.Load(),
		Rejected:      s.rejected.Load(),
		LastDimension: s.lastDim,
		LastCells:     s.lastCells,
	}
}
