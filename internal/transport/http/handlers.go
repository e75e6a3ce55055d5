package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/likithgowdabh/eventstack/internal/domain"
	"github.com/likithgowdabh/eventstack/internal/metrics"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateEventRequest is the body of POST /api/events
type CreateEventRequest struct {
	EventID string          `json:"event_id,omitempty"`
	Slots   []domain.SlotID `json:"slots"`
}

// CreateEventResponse is the response for event creation
type CreateEventResponse struct {
	EventID string          `json:"eventId"`
	Slots   []domain.SlotID `json:"slots"`
}

// AddSlotRequest is the body of POST /api/events/{eventId}/slots
type AddSlotRequest struct {
	SlotID domain.SlotID `json:"slot_id"`
}

// VoteRequest is the body of POST /api/events/{eventId}/votes
type VoteRequest struct {
	SlotID    domain.SlotID `json:"slot_id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url"`
	Action    string        `json:"action"` // vote or unvote, defaults to vote
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	Subscribers int `json:"subscribers"`
}

// handleCreateEvent handles POST /api/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.EventID == "" {
		req.EventID = uuid.New().String()
	}

	store := s.hub.Store()
	if err := store.CreateEvent(req.EventID, req.Slots...); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}
	slots, _ := store.Slots(req.EventID)

	s.logger.Info("event created", "eventID", req.EventID, "slots", len(slots))

	s.sendJSON(w, http.StatusCreated, &CreateEventResponse{
		EventID: req.EventID,
		Slots:   slots,
	})
}

// handleAddSlot handles POST /api/events/{eventId}/slots
func (s *Server) handleAddSlot(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")

	var req AddSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SlotID == "" {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	store := s.hub.Store()
	if err := store.AddSlot(eventID, req.SlotID); err != nil {
		s.sendDomainError(w, err)
		return
	}
	slots, _ := store.Slots(eventID)

	s.logger.Info("slot added", "eventID", eventID, "slotID", req.SlotID)

	s.sendJSON(w, http.StatusCreated, &CreateEventResponse{
		EventID: eventID,
		Slots:   slots,
	})
}

// handleGetVotes handles GET /api/events/{eventId}/votes
func (s *Server) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	msg, err := s.hub.VoteUpdate(r.PathValue("eventId"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, msg)
}

// handleVote handles POST /api/events/{eventId}/votes
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	store := s.hub.Store()
	var err error
	switch req.Action {
	case "", "vote":
		req.Action = "vote"
		err = store.Vote(eventID, req.SlotID, domain.VoteRecord{Username: req.Username, AvatarURL: req.AvatarURL})
	case "unvote":
		err = store.Unvote(eventID, req.SlotID, req.Username)
	default:
		err = domain.ErrUnknownAction
	}
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	metrics.VotesTotal.WithLabelValues(req.Action).Inc()
	s.hub.NotifyVotesChanged(eventID)

	s.sendSuccess(w, nil)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		Subscribers: s.hub.TotalSubscribers(),
	})
}

// sendDomainError maps domain errors to HTTP errors
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		s.sendError(w, http.StatusNotFound, "EVENT_NOT_FOUND", "Event not found")
	case errors.Is(err, domain.ErrSlotNotFound):
		s.sendError(w, http.StatusNotFound, "SLOT_NOT_FOUND", "Time slot not found")
	case errors.Is(err, domain.ErrAlreadyVoted):
		s.sendError(w, http.StatusConflict, "ALREADY_VOTED", "Already voted for this slot")
	case errors.Is(err, domain.ErrNotVoted):
		s.sendError(w, http.StatusConflict, "NOT_VOTED", "No vote to remove")
	case errors.Is(err, domain.ErrEmptyUsername), errors.Is(err, domain.ErrUnknownAction):
		s.sendError(w, http.StatusBadRequest, "INVALID_VOTE", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendJSON(w, http.StatusOK, data)
}

// sendJSON sends a successful JSON response with status
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
