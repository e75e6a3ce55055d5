package app

import (
	"log/slog"
	"sync"

	"github.com/likithgowdabh/eventstack/internal/domain"
	"github.com/likithgowdabh/eventstack/internal/metrics"
)

// Subscriber represents a connected viewer of an event's votes
type Subscriber interface {
	Send(message interface{}) error
	GetID() string
	Close() error
}

// EventHub fans vote snapshots out to the subscribers of each event
type EventHub struct {
	store       *VoteStore
	subscribers map[string]map[string]Subscriber // eventID -> subscriberID -> subscriber
	mu          sync.RWMutex
	logger      *slog.Logger

	// Event IDs whose votes changed, drained by eventLoop
	updates chan string
	done    chan struct{}
	once    sync.Once
}

// NewEventHub creates a new event hub backed by store
func NewEventHub(store *VoteStore, logger *slog.Logger) *EventHub {
	hub := &EventHub{
		store:       store,
		subscribers: make(map[string]map[string]Subscriber),
		logger:      logger,
		updates:     make(chan string, 100),
		done:        make(chan struct{}),
	}

	// Start update broadcaster
	go hub.eventLoop()

	return hub
}

// Store returns the vote store behind the hub
func (h *EventHub) Store() *VoteStore {
	return h.store
}

// Subscribe registers a subscriber for an event and sends it the
// current snapshot. Unknown events are rejected.
func (h *EventHub) Subscribe(eventID string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Snapshots are taken and sent under h.mu so a subscriber never sees
	// an older snapshot after a newer one
	msg, err := h.VoteUpdate(eventID)
	if err != nil {
		return err
	}

	subs, ok := h.subscribers[eventID]
	if !ok {
		subs = make(map[string]Subscriber)
		h.subscribers[eventID] = subs
	}
	if _, exists := subs[sub.GetID()]; !exists {
		metrics.SubscribersActive.Inc()
	}
	subs[sub.GetID()] = sub

	h.logger.Info("subscriber joined", "eventID", eventID, "subscriberID", sub.GetID())

	if err := sub.Send(msg); err != nil {
		h.logger.Debug("failed to send initial snapshot", "subscriberID", sub.GetID(), "error", err)
	}
	return nil
}

// Unsubscribe removes a subscriber from an event
func (h *EventHub) Unsubscribe(eventID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(eventID, subscriberID)
}

// SubscriberCount returns the number of subscribers of an event
func (h *EventHub) SubscriberCount(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[eventID])
}

// TotalSubscribers returns the number of subscribers across all events
func (h *EventHub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}

// VoteUpdate builds the vote_update message for an event's current votes
func (h *EventHub) VoteUpdate(eventID string) (*domain.VoteUpdateMessage, error) {
	snapshot, err := h.store.Snapshot(eventID)
	if err != nil {
		return nil, err
	}
	return domain.NewVoteUpdate(snapshot), nil
}

// NotifyVotesChanged queues a vote_update broadcast for an event
func (h *EventHub) NotifyVotesChanged(eventID string) {
	select {
	case h.updates <- eventID:
	case <-h.done:
	}
}

// BroadcastVoteUpdate sends the current snapshot to every subscriber of
// an event. Subscribers whose send fails are dropped.
func (h *EventHub) BroadcastVoteUpdate(eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg, err := h.VoteUpdate(eventID)
	if err != nil {
		h.logger.Warn("vote update skipped", "eventID", eventID, "error", err)
		return
	}

	for id, sub := range h.subscribers[eventID] {
		if err := sub.Send(msg); err != nil {
			h.logger.Debug("failed to send to subscriber", "subscriberID", id, "error", err)
			metrics.BroadcastsTotal.WithLabelValues("dropped").Inc()
			h.removeLocked(eventID, id)
			sub.Close()
			continue
		}
		metrics.BroadcastsTotal.WithLabelValues("sent").Inc()
	}
}

// Close shuts down the hub and all subscribers
func (h *EventHub) Close() {
	h.once.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	for eventID, subs := range h.subscribers {
		for id, sub := range subs {
			sub.Close()
			h.removeLocked(eventID, id)
		}
	}
}

// removeLocked deletes a subscriber; caller must hold h.mu
func (h *EventHub) removeLocked(eventID, subscriberID string) {
	subs, ok := h.subscribers[eventID]
	if !ok {
		return
	}
	if _, ok := subs[subscriberID]; !ok {
		return
	}

	delete(subs, subscriberID)
	metrics.SubscribersActive.Dec()
	if len(subs) == 0 {
		delete(h.subscribers, eventID)
	}
	h.logger.Info("subscriber left", "eventID", eventID, "subscriberID", subscriberID)
}

// eventLoop broadcasts queued vote changes
func (h *EventHub) eventLoop() {
	for {
		select {
		case <-h.done:
			return
		case eventID := <-h.updates:
			h.BroadcastVoteUpdate(eventID)
		}
	}
}
