package domain

import "errors"

// Domain errors
var (
	ErrEmptyEventID  = errors.New("event id is required")
	ErrInvalidOrigin = errors.New("origin must be an http(s) or ws(s) URL with a host")
	ErrClientClosed  = errors.New("client is closed")
	ErrEventNotFound = errors.New("event not found")
	ErrSlotNotFound  = errors.New("time slot not found")
	ErrAlreadyVoted  = errors.New("already voted for this slot")
	ErrNotVoted      = errors.New("no vote to remove for this slot")
	ErrEmptyUsername = errors.New("username is required")
	ErrUnknownAction = errors.New("action must be vote or unvote")
)
