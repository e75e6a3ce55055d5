package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/likithgowdabh/eventstack/internal/domain"
)

var errMissingVotes = errors.New("missing votes_by_slot")

// voteUpdateFrame keeps the payload raw so an absent snapshot can be told
// apart from an empty one
type voteUpdateFrame struct {
	Type        domain.MessageType `json:"type"`
	VotesBySlot json.RawMessage    `json:"votes_by_slot"`
}

// DecodeMessage decodes an inbound text frame.
//
// It returns *domain.VoteUpdateMessage for vote_update and nil for any
// other message type, so new server message kinds are dropped silently.
// A vote_update without a snapshot is an error, not an empty board.
func DecodeMessage(data []byte) (interface{}, error) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case domain.MsgVoteUpdate:
		var frame voteUpdateFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if len(frame.VotesBySlot) == 0 || bytes.Equal(frame.VotesBySlot, []byte("null")) {
			return nil, fmt.Errorf("decode %s: %w", env.Type, errMissingVotes)
		}
		votes := domain.VotesBySlot{}
		if err := json.Unmarshal(frame.VotesBySlot, &votes); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return domain.NewVoteUpdate(votes), nil
	default:
		return nil, nil
	}
}
