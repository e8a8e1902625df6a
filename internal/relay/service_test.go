package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/life"
	"github.com/danmuck/cellwire/internal/protocol"
	"github.com/danmuck/cellwire/internal/protocol/frame"
	"github.com/danmuck/cellwire/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

const testDim = 64

func startRelay(t *testing.T) (*Service, string) {
	t.Helper()
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	cfg := DefaultServiceConfig()
	cfg.HTTPListenAddr = ""
	cfg.ReadTimeout = 5 * time.Second
	svc := NewServiceWithConfig(cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("relay did not stop")
		}
	})
	return svc, ln.Addr().String()
}

func dialRelay(t *testing.T, addr string) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Address = addr
	cfg.ReadTimeout = 2 * time.Second
	c, err := Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitClients(t *testing.T, svc *Service, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.Stats().Clients != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, svc.Stats().Clients)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesPeersButNotSender(t *testing.T) {
	svc, addr := startRelay(t)
	sender := dialRelay(t, addr)
	peer := dialRelay(t, addr)
	waitClients(t, svc, 2)

	glider := life.Glider(testDim, grid.Coord{X: 10, Y: 10})
	id, err := sender.Publish(glider, testDim)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := peer.Receive()
	if err != nil {
		t.Fatalf("peer receive: %v", err)
	}
	if msg.Operation != protocol.OpPublish || msg.MessageID != id || msg.Dimension != testDim {
		t.Fatalf("unexpected broadcast header: %+v", msg)
	}
	if !msg.Set().Equal(glider) {
		t.Fatalf("broadcast cells differ: %v", msg.Set().Values())
	}

	sender.cfg.ReadTimeout = 100 * time.Millisecond
	if _, err := sender.Receive(); err == nil {
		t.Fatalf("sender received its own publish")
	} else {
		var ne net.Error
		if !errors.As(err, &ne) || !ne.Timeout() {
			t.Fatalf("expected read timeout, got %v", err)
		}
	}

	if st := svc.Stats(); st.Published != 1 || st.LastCells != glider.Len() || st.LastDimension != testDim {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestStepRepliesWithNextGeneration(t *testing.T) {
	svc, addr := startRelay(t)
	c := dialRelay(t, addr)

	world := life.Blinker(testDim, grid.Coord{X: 20, Y: 20})
	reply, err := c.Step(world, testDim)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if reply.Operation != protocol.OpSnapshot {
		t.Fatalf("expected snapshot, got %s", reply.Operation)
	}
	if want := life.Step(world, testDim); !reply.Set().Equal(want) {
		t.Fatalf("step result %v want %v", reply.Set().Values(), want.Values())
	}
	if svc.Stats().Stepped != 1 {
		t.Fatalf("expected one step, stats=%+v", svc.Stats())
	}
}

func TestStepKeepsInterleavedBroadcasts(t *testing.T) {
	svc, addr := startRelay(t)
	publisher := dialRelay(t, addr)
	stepper := dialRelay(t, addr)
	waitClients(t, svc, 2)

	block := grid.OrderedSetOf(grid.Pack(grid.Coord{X: 1, Y: 1}, grid.HalfWidth(testDim)))
	if _, err := publisher.Publish(block, testDim); err != nil {
		t.Fatalf("publish: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for svc.Stats().Published != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("publish never reached relay")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := stepper.Step(life.Blinker(testDim, grid.Coord{}), testDim); err != nil {
		t.Fatalf("step: %v", err)
	}
	msg, err := stepper.Receive()
	if err != nil {
		t.Fatalf("receive buffered: %v", err)
	}
	if msg.Operation != protocol.OpPublish || !msg.Set().Equal(block) {
		t.Fatalf("unexpected buffered message: %+v", msg)
	}
}

func TestChecksumMismatchGetsErrorReply(t *testing.T) {
	svc, addr := startRelay(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	codec := frame.Canonical()
	f, err := protocol.BuildFrame(protocol.Message{
		Operation: protocol.OpPublish,
		MessageID: 77,
		Dimension: testDim,
		Cells:     life.Glider(testDim, grid.Coord{}),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f.Header.Checksum ^= 0xFFFF
	if err := frame.WriteFrame(conn, codec, f, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := protocol.ReadMessage(conn, codec, frame.DefaultLimits(), protocol.DecodeOptions{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Operation != protocol.OpError || reply.MessageID != 77 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if !strings.Contains(reply.Text, "checksum") {
		t.Fatalf("unexpected error text: %q", reply.Text)
	}
	if svc.Stats().Rejected != 1 || svc.Stats().Published != 0 {
		t.Fatalf("unexpected stats: %+v", svc.Stats())
	}
}

func TestSnapshotFromClientIsRejected(t *testing.T) {
	_, addr := startRelay(t)
	c := dialRelay(t, addr)

	id, err := c.Send(protocol.Message{
		Operation: protocol.OpSnapshot,
		Dimension: testDim,
		Cells:     grid.NewOrderedSet(0),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	reply, err := c.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if reply.Operation != protocol.OpError || reply.MessageID != id {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultClientConfig()
	cfg.Address = addr
	cfg.MaxConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	if _, err := Dial(context.Background(), cfg); err == nil {
		t.Fatalf("expected dial failure")
	}
	if _, err := Dial(context.Background(), ClientConfig{}); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}

func TestHTTPRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	svc := NewService()
	r := svc.HTTPRouter()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"layout":"canonical"`) {
		t.Fatalf("ready: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var st Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("stats body: %v", err)
	}
	if st.Clients != 0 || st.Published != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "cellwire_") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestNormalizeOrigins(t *testing.T) {
	got := normalizeOrigins([]string{" ", "http://a.test ", ""})
	if len(got) != 1 || got[0] != "http://a.test" {
		t.Fatalf("unexpected origins: %v", got)
	}
	if got := normalizeOrigins(nil); len(got) != 1 {
		t.Fatalf("expected default origin, got %v", got)
	}
}
