package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/likithgowdabh/eventstack/internal/app"
	"github.com/likithgowdabh/eventstack/internal/domain"
)

// Handler serves the vote channel of each event
type Handler struct {
	hub      *app.EventHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new vote channel handler
func NewHandler(hub *app.EventHub, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Viewers may be served from another origin in development
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws/vote/{eventId}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	if eventID == "" {
		http.Error(w, "eventId is required", http.StatusBadRequest)
		return
	}

	// Check the event before upgrading so unknown events get a 404
	if _, err := h.hub.VoteUpdate(eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	peer := NewPeer(uuid.New().String(), eventID, conn, h.hub, h.logger)

	// New viewers start from the current snapshot
	if err := h.hub.Subscribe(eventID, peer); err != nil {
		h.logger.Warn("subscribe failed", "eventID", eventID, "error", err)
		peer.Close()
		return
	}

	h.logger.Info("websocket connected",
		"eventID", eventID,
		"subscriberID", peer.GetID(),
	)

	peer.Run()
}
