package app

import (
	"fmt"
	"sync"

	"github.com/likithgowdabh/eventstack/internal/domain"
)

// eventVotes holds the slots and votes of one event
type eventVotes struct {
	slots []domain.SlotID
	votes map[domain.SlotID][]domain.VoteRecord // cast order
}

// VoteStore keeps the votes of every event in memory
type VoteStore struct {
	events map[string]*eventVotes
	mu     sync.RWMutex
}

// NewVoteStore creates an empty vote store
func NewVoteStore() *VoteStore {
	return &VoteStore{
		events: make(map[string]*eventVotes),
	}
}

// CreateEvent registers an event with its proposed time slots.
// Registering an existing event adds any new slots to it.
func (s *VoteStore) CreateEvent(eventID string, slots ...domain.SlotID) error {
	if eventID == "" {
		return domain.ErrEmptyEventID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		ev = &eventVotes{votes: make(map[domain.SlotID][]domain.VoteRecord)}
		s.events[eventID] = ev
	}
	for _, slot := range slots {
		ev.addSlot(slot)
	}
	return nil
}

// AddSlot adds a proposed time slot to an existing event
func (s *VoteStore) AddSlot(eventID string, slot domain.SlotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	ev.addSlot(slot)
	return nil
}

// Slots returns the time slots of an event
func (s *VoteStore) Slots(eventID string) ([]domain.SlotID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	out := make([]domain.SlotID, len(ev.slots))
	copy(out, ev.slots)
	return out, nil
}

// Vote records a vote of record.Username for slot
func (s *VoteStore) Vote(eventID string, slot domain.SlotID, record domain.VoteRecord) error {
	if record.Username == "" {
		return domain.ErrEmptyUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.slotOf(eventID, slot)
	if err != nil {
		return err
	}
	for _, v := range ev.votes[slot] {
		if v.Username == record.Username {
			return domain.ErrAlreadyVoted
		}
	}

	ev.votes[slot] = append(ev.votes[slot], record)
	return nil
}

// Unvote removes the vote of username for slot
func (s *VoteStore) Unvote(eventID string, slot domain.SlotID, username string) error {
	if username == "" {
		return domain.ErrEmptyUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.slotOf(eventID, slot)
	if err != nil {
		return err
	}

	votes := ev.votes[slot]
	for i, v := range votes {
		if v.Username == username {
			ev.votes[slot] = append(votes[:i:i], votes[i+1:]...)
			if len(ev.votes[slot]) == 0 {
				delete(ev.votes, slot)
			}
			return nil
		}
	}
	return domain.ErrNotVoted
}

// Snapshot returns the complete votes of an event in cast order.
// Slots without votes are absent from the snapshot.
func (s *VoteStore) Snapshot(eventID string) (domain.VotesBySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	snapshot := make(domain.VotesBySlot, len(ev.votes))
	for slot, votes := range ev.votes {
		records := make([]domain.VoteRecord, len(votes))
		copy(records, votes)
		snapshot[slot] = records
	}
	return snapshot, nil
}

// slotOf returns the event owning slot; caller must hold the lock
func (s *VoteStore) slotOf(eventID string, slot domain.SlotID) (*eventVotes, error) {
	ev, ok := s.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	if !ev.hasSlot(slot) {
		return nil, fmt.Errorf("slot %q: %w", slot, domain.ErrSlotNotFound)
	}
	return ev, nil
}

func (e *eventVotes) addSlot(slot domain.SlotID) {
	if !e.hasSlot(slot) {
		e.slots = append(e.slots, slot)
	}
}

func (e *eventVotes) hasSlot(slot domain.SlotID) bool {
	for _, s := range e.slots {
		if s == slot {
			return true
		}
	}
	return false
}
