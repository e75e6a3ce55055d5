package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/likithgowdabh/eventstack/internal/domain"
	"github.com/likithgowdabh/eventstack/internal/metrics"
)

const (
	// DefaultMaxReconnectAttempts bounds automatic reconnects between two successful opens
	DefaultMaxReconnectAttempts = 5

	// DefaultReconnectDelay is the fixed wait before each automatic reconnect
	DefaultReconnectDelay = 3 * time.Second

	// Time allowed for the opening handshake
	handshakeTimeout = 10 * time.Second

	// Maximum message size accepted from the server
	maxSnapshotSize = 1 << 20
)

// MessageHandler consumes decoded vote updates
type MessageHandler interface {
	HandleVoteUpdate(votes domain.VotesBySlot)
}

// StatusListener is notified of every connectivity status change
type StatusListener func(status domain.Status)

// ClientConfig holds configuration for the vote channel client
type ClientConfig struct {
	Origin               string // page origin, e.g. https://vote.example.com
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	Dialer               *websocket.Dialer
	Clock                clockwork.Clock
	OnStatus             StatusListener
}

// DefaultClientConfig returns the default client configuration for origin
func DefaultClientConfig(origin string) ClientConfig {
	return ClientConfig{
		Origin:               origin,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		Clock: clockwork.NewRealClock(),
	}
}

// Client keeps one live vote channel to the server for an event.
//
// At most one connection is held at a time: every connect closes the
// previous connection and cancels a pending automatic reconnect first.
// Events from a superseded connection are ignored.
type Client struct {
	config  ClientConfig
	handler MessageHandler
	logger  *slog.Logger

	// Lifetime of the client, cancelled by Disconnect
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conn       *websocket.Conn
	connID     string
	generation uint64
	eventID    string
	state      domain.ConnectionState
	attempts   int
	retry      clockwork.Timer
	retryStop  chan struct{}
	closed     bool
}

// NewClient creates a new vote channel client; it does not connect
func NewClient(cfg ClientConfig, handler MessageHandler, logger *slog.Logger) *Client {
	defaults := DefaultClientConfig(cfg.Origin)
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = defaults.Dialer
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  cfg,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		state:   domain.StateClosed,
	}
}

// State returns the state of the current connection
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of automatic reconnects fired since the last open
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// EventID returns the event the client is, or was last, connected to
func (c *Client) EventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventID
}

// Connect opens the vote channel of an event, replacing any previous one.
//
// A failed handshake goes through the same close path as a dropped
// connection, so it is retried; the dial error is still returned.
func (c *Client) Connect(ctx context.Context, eventID string) error {
	if eventID == "" {
		return domain.ErrEmptyEventID
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClientClosed
	}
	c.cancelRetryLocked()
	c.closeConnLocked()
	c.eventID = eventID
	c.mu.Unlock()

	return c.dial(ctx, eventID)
}

// Reconnect explicitly reconnects to the last event, cancelling any
// pending automatic reconnect
func (c *Client) Reconnect(ctx context.Context) error {
	eventID := c.EventID()
	if eventID == "" {
		return domain.ErrEmptyEventID
	}
	return c.Connect(ctx, eventID)
}

// Resync reconnects when a view regains the foreground and the held
// connection is fully closed. The event ID is recovered from the page
// URL's path. It reports whether a reconnect was started.
func (c *Client) Resync(ctx context.Context, pageURL string) (bool, error) {
	c.mu.Lock()
	closed := c.closed
	idle := c.eventID == "" || !c.state.IsClosed()
	c.mu.Unlock()

	if closed {
		return false, domain.ErrClientClosed
	}
	if idle {
		return false, nil
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return false, fmt.Errorf("parse page url: %w", err)
	}
	eventID := EventIDFromPath(u.Path)
	if eventID == "" {
		return false, nil
	}

	c.logger.Info("resyncing vote channel", "eventID", eventID)
	return true, c.Connect(ctx, eventID)
}

// Disconnect closes the connection and stops all reconnects.
// The client cannot be reused afterwards.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelRetryLocked()
	conn := c.conn
	c.conn = nil
	c.generation++
	c.setStateLocked(domain.StateClosed)
	c.mu.Unlock()

	c.cancel()

	if conn == nil {
		return nil
	}

	c.logger.Info("vote channel disconnected", "eventID", c.EventID())
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// dial performs one connection attempt
func (c *Client) dial(ctx context.Context, eventID string) error {
	wsURL, err := BuildURL(c.config.Origin, eventID)
	if err != nil {
		// The channel cannot even be created, nothing to retry
		c.logger.Error("failed to create vote channel", "eventID", eventID, "error", err)
		c.emit(domain.StatusFailed)
		return err
	}

	c.mu.Lock()
	if c.closed {
		// Disconnected while a retry was on its way here
		c.mu.Unlock()
		return domain.ErrClientClosed
	}
	c.generation++
	gen := c.generation
	connID := uuid.New().String()
	c.connID = connID
	c.setStateLocked(domain.StateConnecting)
	c.mu.Unlock()

	c.logger.Debug("dialing vote channel", "url", wsURL, "connID", connID)

	// Disconnect aborts an in-flight handshake whichever context started it
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dialer, abort := c.abortableDialer()
	stop := context.AfterFunc(c.ctx, func() {
		cancel()
		abort()
	})
	defer stop()

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.handleError(gen, err)
		c.handleClose(gen)
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		// Superseded while the handshake was in flight
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.attempts = 0
	c.setStateLocked(domain.StateOpen)
	c.mu.Unlock()

	c.logger.Info("vote channel connected", "eventID", eventID, "connID", connID)
	c.emit(domain.StatusConnected)

	go c.readLoop(gen, conn)
	return nil
}

// abortableDialer copies the configured dialer so that the raw connection
// of a handshake can be closed from outside
func (c *Client) abortableDialer() (*websocket.Dialer, func()) {
	var (
		mu      sync.Mutex
		netConn net.Conn
		aborted bool
	)

	d := *c.config.Dialer
	netDial := d.NetDialContext
	if netDial == nil {
		netDial = (&net.Dialer{}).DialContext
	}
	d.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := netDial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		defer mu.Unlock()
		if aborted {
			conn.Close()
			return nil, net.ErrClosed
		}
		netConn = conn
		return conn, nil
	}

	abort := func() {
		mu.Lock()
		defer mu.Unlock()
		aborted = true
		if netConn != nil {
			netConn.Close()
		}
	}
	return &d, abort
}

// readLoop processes messages of one connection in delivery order
func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	conn.SetReadLimit(maxSnapshotSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Only a clean close skips the error signal
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.handleError(gen, err)
			}
			c.handleClose(gen)
			return
		}

		if !c.isCurrent(gen) {
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage decodes a frame and dispatches vote updates
func (c *Client) handleMessage(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		metrics.ClientDecodeFailures.Inc()
		c.logger.Warn("error parsing vote channel message", "error", err)
		return
	}

	switch m := msg.(type) {
	case *domain.VoteUpdateMessage:
		c.handler.HandleVoteUpdate(m.VotesBySlot)
	default:
		c.logger.Debug("ignoring vote channel message")
	}
}

// handleError surfaces a transport error. Reconnection is left to the
// close that follows.
func (c *Client) handleError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(domain.StateErrored)
	connID := c.connID
	c.mu.Unlock()

	c.logger.Error("vote channel error", "connID", connID, "error", err)
	c.emit(domain.StatusError)
}

// handleClose surfaces a disconnect and schedules the next attempt
func (c *Client) handleClose(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(domain.StateClosed)

	attempts := c.attempts
	exhausted := attempts >= c.config.MaxReconnectAttempts
	if !exhausted {
		c.scheduleRetryLocked(c.eventID)
	}
	c.mu.Unlock()

	c.emit(domain.StatusDisconnected)

	if exhausted {
		c.logger.Warn("giving up on vote channel", "attempts", attempts)
		c.emit(domain.StatusFailed)
		return
	}

	c.logger.Info("reconnection scheduled",
		"attempt", attempts+1,
		"delay", c.config.ReconnectDelay,
	)
}

// scheduleRetryLocked arms the single reconnect timer; caller must hold c.mu.
// The attempt is counted when the timer fires, so a cancelled retry is free.
func (c *Client) scheduleRetryLocked(eventID string) {
	timer := c.config.Clock.NewTimer(c.config.ReconnectDelay)
	stop := make(chan struct{})
	c.retry = timer
	c.retryStop = stop

	go func() {
		select {
		case <-timer.Chan():
			c.mu.Lock()
			if c.retry != timer || c.closed {
				c.mu.Unlock()
				return
			}
			c.retry = nil
			c.retryStop = nil
			c.attempts++
			attempt := c.attempts
			c.mu.Unlock()

			metrics.ClientReconnects.Inc()
			c.logger.Info("reconnection attempt", "attempt", attempt, "eventID", eventID)
			err := c.dial(c.ctx, eventID)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, domain.ErrClientClosed) {
				c.logger.Debug("reconnection attempt failed", "attempt", attempt, "error", err)
			}
		case <-stop:
			stopAndDrainTimer(timer)
		}
	}()
}

// cancelRetryLocked cancels a pending reconnect; caller must hold c.mu
func (c *Client) cancelRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
	}
	if c.retryStop != nil {
		close(c.retryStop)
	}
	c.retry = nil
	c.retryStop = nil
}

// closeConnLocked closes the held connection and invalidates its events;
// caller must hold c.mu
func (c *Client) closeConnLocked() {
	c.generation++
	if c.conn != nil {
		c.logger.Debug("closing previous vote channel", "connID", c.connID)
		c.conn.Close()
		c.conn = nil
		c.setStateLocked(domain.StateClosed)
	}
}

// setStateLocked records a state change; caller must hold c.mu
func (c *Client) setStateLocked(state domain.ConnectionState) {
	if c.state == state {
		return
	}
	if !c.state.CanTransitionTo(state) {
		c.logger.Debug("unexpected state transition", "from", c.state, "to", state)
	}
	c.state = state
}

func (c *Client) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation && !c.closed
}

// emit signals a status to the listener
func (c *Client) emit(status domain.Status) {
	metrics.ClientStatus.WithLabelValues(string(status)).Inc()
	if c.config.OnStatus != nil {
		c.config.OnStatus(status)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
