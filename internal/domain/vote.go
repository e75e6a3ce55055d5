package domain

// SlotID identifies a proposed time slot of an event
type SlotID string

// VoteRecord is a single voter's entry for a slot
type VoteRecord struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// VotesBySlot is a complete snapshot of the votes of an event.
// Records are kept in the order the server cast them.
type VotesBySlot map[SlotID][]VoteRecord

// Contains reports whether username appears among the records
func Contains(records []VoteRecord, username string) bool {
	for _, r := range records {
		if r.Username == username {
			return true
		}
	}
	return false
}
