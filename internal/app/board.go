package app

import (
	"log/slog"
	"sync"

	"github.com/likithgowdabh/eventstack/internal/domain"
)

// Board holds the rendered vote state of one event page.
//
// The set of slots is fixed at construction; every snapshot applied is a
// full replace of the view over that registry.
type Board struct {
	slots  []domain.SlotID
	user   *domain.User
	view   domain.View
	mu     sync.RWMutex
	logger *slog.Logger

	onChange func(domain.View)
}

// NewBoard creates a board for the given slot registry and viewer.
// Duplicate slot ids are collapsed, keeping first-appearance order.
func NewBoard(slots []domain.SlotID, user *domain.User, logger *slog.Logger) *Board {
	seen := make(map[domain.SlotID]bool, len(slots))
	registry := make([]domain.SlotID, 0, len(slots))
	for _, id := range slots {
		if seen[id] {
			continue
		}
		seen[id] = true
		registry = append(registry, id)
	}

	return &Board{
		slots:  registry,
		user:   user,
		view:   domain.Reconcile(nil, registry, user),
		logger: logger,
	}
}

// OnChange registers a callback invoked with the new view after each update
func (b *Board) OnChange(fn func(domain.View)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// ApplyVotes synchronizes the board with a complete votes snapshot
func (b *Board) ApplyVotes(votes domain.VotesBySlot) domain.View {
	view := domain.Reconcile(votes, b.slots, b.user)

	b.mu.Lock()
	b.view = view
	onChange := b.onChange
	b.mu.Unlock()

	b.logger.Debug("board updated", "slots", len(view), "payloadSlots", len(votes))

	if onChange != nil {
		onChange(view)
	}
	return view
}

// HandleVoteUpdate implements ws.MessageHandler
func (b *Board) HandleVoteUpdate(votes domain.VotesBySlot) {
	b.ApplyVotes(votes)
}

// View returns the current rendered view
func (b *Board) View() domain.View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

// Slot returns the rendered state of a single slot
func (b *Board) Slot(id domain.SlotID) (domain.RenderedSlot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	slot, ok := b.view[id]
	return slot, ok
}

// Slots returns the slot registry in render order
func (b *Board) Slots() []domain.SlotID {
	out := make([]domain.SlotID, len(b.slots))
	copy(out, b.slots)
	return out
}

// User returns the viewer, nil when anonymous
func (b *Board) User() *domain.User {
	return b.user
}
