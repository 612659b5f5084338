package handler

import (
	"net/http"

	"engage-rewards-service/internal/service"
)

// RewardsHandler serves the daily reward cycle endpoints.
type RewardsHandler struct {
	rewards *service.RewardService
}

// NewRewardsHandler creates a new RewardsHandler instance.
func NewRewardsHandler(rewards *service.RewardService) *RewardsHandler {
	return &RewardsHandler{rewards: rewards}
}

// HandleStatus handles GET /rewards/status.
func (h *RewardsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	status, err := h.rewards.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleSpin handles POST /rewards/spin.
func (h *RewardsHandler) HandleSpin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	result, err := h.rewards.Spin(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleWatchAd handles POST /rewards/watch-ad.
func (h *RewardsHandler) HandleWatchAd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	result, err := h.rewards.WatchAd(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleAdClient handles GET /rewards/ad-client. The client id comes
// from remote settings with a config fallback; an empty id means the
// ad slot should not render.
func (h *RewardsHandler) HandleAdClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	clientID := h.rewards.AdClientID(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ad_client_id": clientID,
		"configured":   clientID != "",
	})
}
