package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/likithgowdabh/eventstack/internal/app"
	"github.com/likithgowdabh/eventstack/internal/domain"
)

const testDelay = 3 * time.Second

// voteServer is a scriptable vote channel endpoint
type voteServer struct {
	*httptest.Server
	reject atomic.Bool
	hits   atomic.Int32
	hitCh  chan string
	conns  chan *websocket.Conn
}

func newVoteServer(t *testing.T) *voteServer {
	t.Helper()

	s := &voteServer{
		hitCh: make(chan string, 32),
		conns: make(chan *websocket.Conn, 32),
	}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/vote/{eventId}", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.hitCh <- r.PathValue("eventId")

		if s.reject.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *voteServer) waitHit(t *testing.T) string {
	t.Helper()
	select {
	case id := <-s.hitCh:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection attempt")
		return ""
	}
}

func (s *voteServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an upgraded connection")
		return nil
	}
}

func (s *voteServer) expectNoHit(t *testing.T) {
	t.Helper()
	select {
	case <-s.hitCh:
		t.Fatal("unexpected connection attempt")
	case <-time.After(150 * time.Millisecond):
	}
}

type statusRecorder struct {
	ch chan domain.Status
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{ch: make(chan domain.Status, 64)}
}

func (r *statusRecorder) listener(s domain.Status) {
	r.ch <- s
}

// waitFor skips statuses until want is seen
func (r *statusRecorder) waitFor(t *testing.T, want domain.Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testHarness struct {
	server   *voteServer
	clock    *clockwork.FakeClock
	statuses *statusRecorder
	board    *app.Board
	updates  chan domain.View
	client   *Client
}

func newHarness(t *testing.T, slots ...domain.SlotID) *testHarness {
	t.Helper()

	h := &testHarness{
		server:   newVoteServer(t),
		clock:    clockwork.NewFakeClock(),
		statuses: newStatusRecorder(),
		updates:  make(chan domain.View, 16),
	}

	h.board = app.NewBoard(slots, domain.NewUser("alice"), testLogger())
	h.board.OnChange(func(v domain.View) { h.updates <- v })

	cfg := DefaultClientConfig(h.server.URL)
	cfg.ReconnectDelay = testDelay
	cfg.Clock = h.clock
	cfg.OnStatus = h.statuses.listener

	h.client = NewClient(cfg, h.board, testLogger())
	t.Cleanup(func() { h.client.Disconnect() })
	return h
}

func (h *testHarness) waitUpdate(t *testing.T) domain.View {
	t.Helper()
	select {
	case v := <-h.updates:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a board update")
		return nil
	}
}

// advanceRetry waits for the reconnect timer to be armed and fires it
func (h *testHarness) advanceRetry(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("reconnect timer was not scheduled: %v", err)
	}
	h.clock.Advance(testDelay)
}

func TestClientAppliesVoteUpdates(t *testing.T) {
	h := newHarness(t, "slotA", "slotB")

	if err := h.client.Connect(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if id := h.server.waitHit(t); id != "evt-1" {
		t.Errorf("connected to event %q, want evt-1", id)
	}
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	if h.client.State() != domain.StateOpen {
		t.Errorf("State() = %s, want OPEN", h.client.State())
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update","votes_by_slot":{"slotA":[{"username":"alice","avatar_url":"/a.png"}]}}`))

	view := h.waitUpdate(t)

	a := view["slotA"]
	if a.CountLabel != "1 vote" || len(a.Badges) != 1 || a.Badges[0].Username != "alice" || a.Button != domain.ButtonVoted {
		t.Errorf("slotA = %+v, want 1 vote by alice, voted", a)
	}
	b := view["slotB"]
	if b.CountLabel != "0 votes" || len(b.Badges) != 0 || b.Button != domain.ButtonAvailable {
		t.Errorf("slotB = %+v, want 0 votes, available", b)
	}
}

func TestClientIgnoresUnknownAndMalformedMessages(t *testing.T) {
	h := newHarness(t, "s1")

	if err := h.client.Connect(context.Background(), "evt"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update","votes_by_slot":{"s1":[]}}`))

	// Only the vote update reaches the board
	view := h.waitUpdate(t)
	if view["s1"].Count != 0 {
		t.Errorf("s1 count = %d, want 0", view["s1"].Count)
	}
	select {
	case v := <-h.updates:
		t.Fatalf("unexpected extra board update: %v", v)
	case <-time.After(100 * time.Millisecond):
	}

	if h.client.State() != domain.StateOpen {
		t.Errorf("State() = %s, want OPEN after malformed message", h.client.State())
	}
	select {
	case s := <-h.statuses.ch:
		t.Errorf("unexpected status %q after malformed message", s)
	default:
	}
}

func TestClientKeepsBoardOnEmptyVoteUpdate(t *testing.T) {
	h := newHarness(t, "s1", "s2")

	if err := h.client.Connect(context.Background(), "evt"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update","votes_by_slot":{"s1":[{"username":"alice","avatar_url":"/a.png"}]}}`))
	before := h.waitUpdate(t)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update"}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update","votes_by_slot":null}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update","votes_by_slot":{"s2":[{"username":"bob","avatar_url":"/b.png"}]}}`))

	// Frames arrive in order, so the next update is the one with a snapshot
	after := h.waitUpdate(t)
	if after["s2"].Count != 1 || after["s1"].Count != 0 {
		t.Errorf("view after payload-less frames = %+v, want the s2 snapshot", after)
	}
	if before["s1"].Count != 1 || before["s1"].Button != domain.ButtonVoted {
		t.Errorf("initial s1 = %+v, want 1 vote, voted", before["s1"])
	}

	if h.client.State() != domain.StateOpen {
		t.Errorf("State() = %s, want OPEN", h.client.State())
	}
}

func TestClientEmptyVoteUpdateLeavesBoardUntouched(t *testing.T) {
	h := newHarness(t, "s1")

	h.client.Connect(context.Background(), "evt")
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update","votes_by_slot":{"s1":[{"username":"alice","avatar_url":"/a.png"}]}}`))
	want := h.waitUpdate(t)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote_update"}`))
	select {
	case v := <-h.updates:
		t.Fatalf("payload-less vote_update changed the board: %v", v)
	case <-time.After(200 * time.Millisecond):
	}
	if got := h.board.View(); !got.Equal(want) {
		t.Errorf("board view = %+v, want %+v", got, want)
	}
}

func TestClientRetryBound(t *testing.T) {
	h := newHarness(t, "s1")
	h.server.reject.Store(true)

	if err := h.client.Connect(context.Background(), "evt"); err == nil {
		t.Fatal("Connect() expected dial error")
	}
	h.server.waitHit(t)
	h.statuses.waitFor(t, domain.StatusError)
	h.statuses.waitFor(t, domain.StatusDisconnected)

	for attempt := 1; attempt <= DefaultMaxReconnectAttempts; attempt++ {
		h.advanceRetry(t)
		h.server.waitHit(t)
		h.statuses.waitFor(t, domain.StatusDisconnected)
	}

	h.statuses.waitFor(t, domain.StatusFailed)

	if got := h.server.hits.Load(); got != 1+DefaultMaxReconnectAttempts {
		t.Errorf("connection attempts = %d, want %d", got, 1+DefaultMaxReconnectAttempts)
	}
	if h.client.Attempts() != DefaultMaxReconnectAttempts {
		t.Errorf("Attempts() = %d, want %d", h.client.Attempts(), DefaultMaxReconnectAttempts)
	}

	// No timer remains after giving up
	h.clock.Advance(10 * testDelay)
	h.server.expectNoHit(t)
}

func TestClientRetryResetsOnOpen(t *testing.T) {
	h := newHarness(t, "s1")
	h.server.reject.Store(true)

	h.client.Connect(context.Background(), "evt")
	h.server.waitHit(t)

	// Burn a few attempts
	for i := 0; i < 3; i++ {
		h.advanceRetry(t)
		h.server.waitHit(t)
		h.statuses.waitFor(t, domain.StatusDisconnected)
	}
	if h.client.Attempts() != 3 {
		t.Fatalf("Attempts() = %d, want 3", h.client.Attempts())
	}

	h.server.reject.Store(false)
	h.advanceRetry(t)
	h.server.waitHit(t)
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	if h.client.Attempts() != 0 {
		t.Fatalf("Attempts() = %d after open, want 0", h.client.Attempts())
	}

	// A fresh disconnect sequence gets the full budget again
	h.server.reject.Store(true)
	conn.Close()
	h.statuses.waitFor(t, domain.StatusDisconnected)

	for attempt := 1; attempt <= DefaultMaxReconnectAttempts; attempt++ {
		h.advanceRetry(t)
		h.server.waitHit(t)
		h.statuses.waitFor(t, domain.StatusDisconnected)
	}
	h.statuses.waitFor(t, domain.StatusFailed)
}

func TestClientConnectClosesPrevious(t *testing.T) {
	h := newHarness(t, "s1")

	h.client.Connect(context.Background(), "evt")
	first := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	h.client.Connect(context.Background(), "evt")
	h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("expected the first connection to be closed")
	} else if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		t.Fatal("first connection is still open")
	}

	// Closing the superseded connection must not schedule a retry
	select {
	case s := <-h.statuses.ch:
		t.Errorf("unexpected status %q from superseded connection", s)
	case <-time.After(100 * time.Millisecond):
	}
	if h.client.State() != domain.StateOpen {
		t.Errorf("State() = %s, want OPEN", h.client.State())
	}
}

func TestClientReconnectCancelsPendingRetry(t *testing.T) {
	h := newHarness(t, "s1")
	h.server.reject.Store(true)

	h.client.Connect(context.Background(), "evt")
	h.server.waitHit(t)
	h.statuses.waitFor(t, domain.StatusDisconnected)

	h.server.reject.Store(false)
	if err := h.client.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() error: %v", err)
	}
	h.server.waitHit(t)
	h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	// The automatic retry armed before Reconnect must not fire
	h.clock.Advance(testDelay)
	h.server.expectNoHit(t)
	if h.client.State() != domain.StateOpen {
		t.Errorf("State() = %s, want OPEN", h.client.State())
	}
}

func TestClientCancelledRetryIsNotCounted(t *testing.T) {
	h := newHarness(t, "s1")
	h.server.reject.Store(true)

	h.client.Connect(context.Background(), "evt")
	h.server.waitHit(t)
	h.statuses.waitFor(t, domain.StatusDisconnected)

	// Each manual reconnect replaces the pending retry before it fires
	for i := 0; i < 2*DefaultMaxReconnectAttempts; i++ {
		h.client.Reconnect(context.Background())
		h.server.waitHit(t)
		h.statuses.waitFor(t, domain.StatusDisconnected)
	}
	if h.client.Attempts() != 0 {
		t.Errorf("Attempts() = %d after manual reconnects, want 0", h.client.Attempts())
	}

	h.advanceRetry(t)
	h.server.waitHit(t)
	h.statuses.waitFor(t, domain.StatusDisconnected)
	if h.client.Attempts() != 1 {
		t.Errorf("Attempts() = %d after one fired retry, want 1", h.client.Attempts())
	}
}

func TestClientRetryAfterDisconnectDoesNotDial(t *testing.T) {
	h := newHarness(t, "s1")

	if err := h.client.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}

	// A retry that passed its ownership check just before Disconnect
	if err := h.client.dial(context.Background(), "evt"); !errors.Is(err, domain.ErrClientClosed) {
		t.Errorf("dial() after Disconnect error = %v, want ErrClientClosed", err)
	}
	if h.client.State() != domain.StateClosed {
		t.Errorf("State() = %s, want CLOSED", h.client.State())
	}
	h.server.expectNoHit(t)
}

func TestClientDisconnectAbortsHandshake(t *testing.T) {
	// Accepts TCP connections but never answers the upgrade request
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	cfg := DefaultClientConfig("http://" + ln.Addr().String())
	cfg.Clock = clockwork.NewFakeClock()
	client := NewClient(cfg, app.NewBoard(nil, nil, testLogger()), testLogger())

	done := make(chan error, 1)
	go func() { done <- client.Connect(context.Background(), "evt") }()

	select {
	case conn := <-accepted:
		defer conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("client never dialed")
	}

	client.Disconnect()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Connect() returned nil for an aborted handshake")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect() still blocked after Disconnect")
	}
	if client.State() != domain.StateClosed {
		t.Errorf("State() = %s, want CLOSED", client.State())
	}
}

func TestClientDisconnectStopsRetries(t *testing.T) {
	h := newHarness(t, "s1")
	h.server.reject.Store(true)

	h.client.Connect(context.Background(), "evt")
	h.server.waitHit(t)
	h.statuses.waitFor(t, domain.StatusDisconnected)

	if err := h.client.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}

	h.clock.Advance(testDelay)
	h.server.expectNoHit(t)

	if h.client.State() != domain.StateClosed {
		t.Errorf("State() = %s, want CLOSED", h.client.State())
	}
	if err := h.client.Connect(context.Background(), "evt"); !errors.Is(err, domain.ErrClientClosed) {
		t.Errorf("Connect() after Disconnect error = %v, want ErrClientClosed", err)
	}
	if err := h.client.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error = %v", err)
	}
}

func TestClientDisconnectClosesConnection(t *testing.T) {
	h := newHarness(t, "s1")

	h.client.Connect(context.Background(), "evt")
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	h.client.Disconnect()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("server read error = %v, want normal closure", err)
	}

	select {
	case s := <-h.statuses.ch:
		t.Errorf("unexpected status %q after Disconnect", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientResync(t *testing.T) {
	h := newHarness(t, "s1")

	// Nothing to resync before the first connect
	if ok, err := h.client.Resync(context.Background(), "http://example.com/event/evt"); ok || err != nil {
		t.Fatalf("Resync() before connect = %v, %v; want false, nil", ok, err)
	}

	h.client.Connect(context.Background(), "evt")
	h.server.waitHit(t)
	conn := h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	// Open connection: no-op
	if ok, _ := h.client.Resync(context.Background(), "http://example.com/event/evt"); ok {
		t.Fatal("Resync() reconnected an open channel")
	}

	conn.Close()
	h.statuses.waitFor(t, domain.StatusDisconnected)

	ok, err := h.client.Resync(context.Background(), "http://example.com/event/evt-2")
	if err != nil || !ok {
		t.Fatalf("Resync() = %v, %v; want true, nil", ok, err)
	}
	if id := h.server.waitHit(t); id != "evt-2" {
		t.Errorf("resynced to event %q, want evt-2", id)
	}
	h.server.waitConn(t)
	h.statuses.waitFor(t, domain.StatusConnected)

	// The retry armed by the drop was cancelled by the resync
	h.clock.Advance(testDelay)
	h.server.expectNoHit(t)
}

func TestClientInvalidOrigin(t *testing.T) {
	statuses := newStatusRecorder()
	cfg := DefaultClientConfig("not a url")
	cfg.OnStatus = statuses.listener

	client := NewClient(cfg, app.NewBoard(nil, nil, testLogger()), testLogger())
	defer client.Disconnect()

	err := client.Connect(context.Background(), "evt")
	if !errors.Is(err, domain.ErrInvalidOrigin) {
		t.Fatalf("Connect() error = %v, want ErrInvalidOrigin", err)
	}
	statuses.waitFor(t, domain.StatusFailed)

	if err := client.Connect(context.Background(), ""); !errors.Is(err, domain.ErrEmptyEventID) {
		t.Errorf("Connect(\"\") error = %v, want ErrEmptyEventID", err)
	}
}

func TestClientServerURLScheme(t *testing.T) {
	// httptest URLs are http://, the client must dial ws://
	h := newHarness(t)
	if !strings.HasPrefix(h.server.URL, "http://") {
		t.Skip("unexpected test server scheme")
	}
	if err := h.client.Connect(context.Background(), "evt"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	h.server.waitConn(t)
}
