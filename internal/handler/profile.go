package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/service"
)

// ProfileHandler serves registration, the signed-in member's own
// profile and ledger, the winners board, and the admin account levers.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler instance.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// HandleRegister handles POST /register. Registration is the one
// endpoint without an actor header; the created id becomes the
// caller's identity.
func (h *ProfileHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Username   string     `json:"username"`
		Country    *string    `json:"country"`
		ReferrerID *uuid.UUID `json:"referrer_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.profiles.Register(r.Context(), req.Username, req.Country, req.ReferrerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// HandleMe handles GET /me.
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateCountry handles POST /me/country.
func (h *ProfileHandler) HandleUpdateCountry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Country *string `json:"country"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.profiles.UpdateCountry(r.Context(), userID, req.Country); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"country": req.Country})
}

// HandleLedger handles GET /me/ledger.
func (h *ProfileHandler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r, 50, 200)
	entries, err := h.profiles.Ledger(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// HandleTopEarners handles GET /boards/top-earners. The window is
// given in hours, defaulting to the last day.
func (h *ProfileHandler) HandleTopEarners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	hours := queryInt(r, "hours", 24)
	if hours < 1 || hours > 24*7 {
		hours = 24
	}
	limit := queryInt(r, "limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	earners, err := h.profiles.TopEarners(r.Context(), time.Duration(hours)*time.Hour, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"top_earners": earners})
}

// HandleAdjustPoints handles POST /admin/profiles/adjust-points.
func (h *ProfileHandler) HandleAdjustPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Amount int64     `json:"amount"`
		Note   *string   `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	balance, err := h.profiles.AdjustPoints(r.Context(), actorID, req.UserID, req.Amount, req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// HandleSetSuspended handles POST /admin/profiles/set-suspended.
func (h *ProfileHandler) HandleSetSuspended(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID    uuid.UUID `json:"user_id"`
		Suspended bool      `json:"suspended"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.profiles.SetSuspended(r.Context(), actorID, req.UserID, req.Suspended); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"suspended": req.Suspended})
}

// HandleSetRole handles POST /admin/profiles/set-role.
func (h *ProfileHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.profiles.SetRole(r.Context(), actorID, req.UserID, model.Role(req.Role)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": req.Role})
}

// HandleListProfiles handles GET /admin/profiles.
func (h *ProfileHandler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r, 50, 200)
	profiles, err := h.profiles.ListProfiles(r.Context(), actorID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}
