package domain

import "strconv"

// ButtonState is the state of the viewer's vote control for a slot
type ButtonState string

const (
	ButtonUntouched ButtonState = ""          // Anonymous viewer, control is never updated
	ButtonAvailable ButtonState = "available" // Viewer can vote for the slot
	ButtonVoted     ButtonState = "voted"     // Viewer already voted for the slot
)

// Label returns the text shown on the vote control
func (b ButtonState) Label() string {
	switch b {
	case ButtonAvailable:
		return "Vote"
	case ButtonVoted:
		return "Voted"
	default:
		return ""
	}
}

// Badge is a rendered voter: avatar image labelled with the username
type Badge struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// RenderedSlot is the derived view of one slot. It is recomputed from
// every snapshot and holds no state of its own.
type RenderedSlot struct {
	ID         SlotID      `json:"id"`
	Count      int         `json:"count"`
	CountLabel string      `json:"countLabel"`
	Badges     []Badge     `json:"badges"`
	Button     ButtonState `json:"button,omitempty"`
}

// HasVoted returns true if the viewer's control shows the voted state
func (s RenderedSlot) HasVoted() bool {
	return s.Button == ButtonVoted
}

// View is the rendered state of every slot known to the board
type View map[SlotID]RenderedSlot

// CountLabel renders a vote count, singular only for exactly one vote
func CountLabel(n int) string {
	if n == 1 {
		return "1 vote"
	}
	return strconv.Itoa(n) + " votes"
}

// Reconcile computes the view of slots from a complete votes snapshot.
//
// Slots present in votes take the payload's records in order; slots absent
// from it are reset to zero votes. The vote control is only set when user
// is non-nil. Payload entries for slots outside the registry are ignored.
func Reconcile(votes VotesBySlot, slots []SlotID, user *User) View {
	view := make(View, len(slots))

	for _, id := range slots {
		records := votes[id]

		slot := RenderedSlot{
			ID:         id,
			Count:      len(records),
			CountLabel: CountLabel(len(records)),
			Badges:     make([]Badge, 0, len(records)),
		}
		for _, r := range records {
			slot.Badges = append(slot.Badges, Badge{Username: r.Username, AvatarURL: r.AvatarURL})
		}

		if user != nil {
			slot.Button = ButtonAvailable
			if Contains(records, user.Username) {
				slot.Button = ButtonVoted
			}
		}

		view[id] = slot
	}

	return view
}

// Equal reports whether two views render identically
func (v View) Equal(other View) bool {
	if len(v) != len(other) {
		return false
	}
	for id, a := range v {
		b, ok := other[id]
		if !ok || !a.equal(b) {
			return false
		}
	}
	return true
}

func (s RenderedSlot) equal(other RenderedSlot) bool {
	if s.ID != other.ID || s.Count != other.Count || s.CountLabel != other.CountLabel || s.Button != other.Button {
		return false
	}
	if len(s.Badges) != len(other.Badges) {
		return false
	}
	for i := range s.Badges {
		if s.Badges[i] != other.Badges[i] {
			return false
		}
	}
	return true
}
