package handler

import (
	"net/http"

	"github.com/google/uuid"

	"engage-rewards-service/internal/service"
)

// AmbassadorHandler serves the ambassador program: the member-facing
// dashboard and leaderboard plus the admin enrollment, tier, and
// commission endpoints.
type AmbassadorHandler struct {
	ambassadors *service.AmbassadorService
	dashboard   *service.DashboardService
}

// NewAmbassadorHandler creates a new AmbassadorHandler instance.
func NewAmbassadorHandler(ambassadors *service.AmbassadorService, dashboard *service.DashboardService) *AmbassadorHandler {
	return &AmbassadorHandler{ambassadors: ambassadors, dashboard: dashboard}
}

// HandleDashboard handles GET /ambassador/dashboard.
func (h *AmbassadorHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	dashboard, err := h.dashboard.Dashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// HandleLeaderboard handles GET /ambassador/leaderboard. Country
// filtering is optional; rows are ranked by total earnings.
func (h *AmbassadorHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var country *string
	if c := r.URL.Query().Get("country"); c != "" {
		country = &c
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rows, err := h.dashboard.Leaderboard(r.Context(), country, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": rows})
}

// HandleEnroll handles POST /admin/ambassadors/enroll.
func (h *AmbassadorHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
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
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ambassador, err := h.ambassadors.Enroll(r.Context(), actorID, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ambassador)
}

// HandleSetAmbassadorActive handles POST /admin/ambassadors/set-active.
func (h *AmbassadorHandler) HandleSetAmbassadorActive(w http.ResponseWriter, r *http.Request) {
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
		Active bool      `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.ambassadors.SetActive(r.Context(), actorID, req.UserID, req.Active); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// HandleCreditCommission handles POST /admin/ambassadors/credit-commission.
func (h *AmbassadorHandler) HandleCreditCommission(w http.ResponseWriter, r *http.Request) {
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
		Amount float64   `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ambassador, err := h.ambassadors.CreditCommission(r.Context(), actorID, req.UserID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ambassador)
}

// HandleListTiers handles GET /admin/tiers. Pass active=true to hide
// retired tiers.
func (h *AmbassadorHandler) HandleListTiers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	tiers, err := h.ambassadors.ListTiers(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": tiers})
}

// HandleCreateTier handles POST /admin/tiers/create.
func (h *AmbassadorHandler) HandleCreateTier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		MinReferrals int                `json:"min_referrals"`
		GlobalRate   float64            `json:"global_rate"`
		CountryRates map[string]float64 `json:"country_rates"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tier, err := h.ambassadors.CreateTier(r.Context(), actorID, req.MinReferrals, req.GlobalRate, req.CountryRates)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tier)
}

// HandleUpdateTier handles POST /admin/tiers/update.
func (h *AmbassadorHandler) HandleUpdateTier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		TierID       uuid.UUID          `json:"tier_id"`
		MinReferrals int                `json:"min_referrals"`
		GlobalRate   float64            `json:"global_rate"`
		CountryRates map[string]float64 `json:"country_rates"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TierID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "tier_id is required")
		return
	}

	tier, err := h.ambassadors.UpdateTier(r.Context(), actorID, req.TierID, req.MinReferrals, req.GlobalRate, req.CountryRates)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tier)
}

// HandleSetTierActive handles POST /admin/tiers/set-active.
func (h *AmbassadorHandler) HandleSetTierActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		TierID uuid.UUID `json:"tier_id"`
		Active bool      `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TierID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "tier_id is required")
		return
	}

	if err := h.ambassadors.SetTierActive(r.Context(), actorID, req.TierID, req.Active); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// HandleDeleteTier handles POST /admin/tiers/delete.
func (h *AmbassadorHandler) HandleDeleteTier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		TierID uuid.UUID `json:"tier_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TierID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "tier_id is required")
		return
	}

	if err := h.ambassadors.DeleteTier(r.Context(), actorID, req.TierID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
