package domain

// MessageType represents the type of a real-time channel message
type MessageType string

// Server → client message types
const (
	MsgVoteUpdate MessageType = "vote_update"
)

// Envelope is the part every message carries
type Envelope struct {
	Type MessageType `json:"type"`
}

// VoteUpdateMessage carries the complete votes snapshot of an event
type VoteUpdateMessage struct {
	Type        MessageType `json:"type"`
	VotesBySlot VotesBySlot `json:"votes_by_slot"`
}

// NewVoteUpdate creates a vote_update message for a snapshot
func NewVoteUpdate(votes VotesBySlot) *VoteUpdateMessage {
	if votes == nil {
		votes = VotesBySlot{}
	}
	return &VoteUpdateMessage{
		Type:        MsgVoteUpdate,
		VotesBySlot: votes,
	}
}
