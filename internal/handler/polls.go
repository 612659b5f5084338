package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"engage-rewards-service/internal/service"
)

// PollsHandler serves community polls.
type PollsHandler struct {
	polls *service.PollService
}

// NewPollsHandler creates a new PollsHandler instance.
func NewPollsHandler(polls *service.PollService) *PollsHandler {
	return &PollsHandler{polls: polls}
}

// HandleListActive handles GET /polls. The list is scoped to global
// polls plus the viewer's country.
func (h *PollsHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	polls, err := h.polls.ListActive(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"polls": polls})
}

// HandleResults handles GET /polls/{id}: the poll, its tallies, and
// whether the viewer already voted.
func (h *PollsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/polls/")
	pollID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Valid poll id is required")
		return
	}

	results, err := h.polls.Results(r.Context(), userID, pollID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleVote handles POST /polls/vote.
func (h *PollsHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		PollID      uuid.UUID `json:"poll_id"`
		OptionIndex int       `json:"option_index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PollID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	if err := h.polls.Vote(r.Context(), userID, req.PollID, req.OptionIndex); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"voted": true})
}

// HandleCreatePoll handles POST /admin/polls/create. Moderators and
// admins only.
func (h *PollsHandler) HandleCreatePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Question string     `json:"question"`
		Options  []string   `json:"options"`
		Country  *string    `json:"country"`
		ClosesAt *time.Time `json:"closes_at"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	poll, err := h.polls.Create(r.Context(), actorID, req.Question, req.Options, req.Country, req.ClosesAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

// HandleClosePoll handles POST /admin/polls/close.
func (h *PollsHandler) HandleClosePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		PollID uuid.UUID `json:"poll_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PollID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	if err := h.polls.Close(r.Context(), actorID, req.PollID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}
