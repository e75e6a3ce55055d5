package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/likithgowdabh/eventstack/internal/app"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 64
)

// Peer is the server side of one viewer's vote channel
type Peer struct {
	id      string
	eventID string
	conn    *websocket.Conn
	hub     *app.EventHub
	send    chan []byte
	done    chan struct{}
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
}

// NewPeer creates a new peer for an upgraded connection
func NewPeer(id, eventID string, conn *websocket.Conn, hub *app.EventHub, logger *slog.Logger) *Peer {
	return &Peer{
		id:      id,
		eventID: eventID,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// GetID implements app.Subscriber
func (p *Peer) GetID() string {
	return p.id
}

// Send implements app.Subscriber
func (p *Peer) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	select {
	case p.send <- data:
		return nil
	default:
		// Buffer full; the next snapshot supersedes this one anyway
		p.logger.Warn("send buffer full, message dropped", "subscriberID", p.id)
		return nil
	}
}

// Close implements app.Subscriber
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.done)
	return p.conn.Close()
}

// Run starts the peer's read and write pumps
func (p *Peer) Run() {
	go p.writePump()
	p.readPump()
}

// readPump only services pongs and the close handshake. The vote channel
// is one-way, so frames sent by a viewer are read and discarded.
func (p *Peer) readPump() {
	defer func() {
		p.hub.Unsubscribe(p.eventID, p.id)
		p.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the send channel to the connection.
// Each snapshot goes out as its own frame.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.done:
			return
		case message := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
