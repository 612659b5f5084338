package handler

import (
	"net/http"

	"github.com/google/uuid"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/service"
)

// StoreHandler serves the redemption store: the public catalog and
// redeem flow plus the admin catalog and fulfilment endpoints.
type StoreHandler struct {
	store *service.StoreService
}

// NewStoreHandler creates a new StoreHandler instance.
func NewStoreHandler(store *service.StoreService) *StoreHandler {
	return &StoreHandler{store: store}
}

// HandleListItems handles GET /store/items. An optional currency
// parameter converts displayed cash values.
func (h *StoreHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := pageParams(r, 50, 200)
	items, err := h.store.ListItems(r.Context(), r.URL.Query().Get("currency"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// HandleRedeem handles POST /store/redeem. The client echoes the cost
// it displayed; a mismatch against the current price rejects the
// redemption instead of charging a surprise amount.
func (h *StoreHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		ItemID       uuid.UUID `json:"item_id"`
		ExpectedCost int64     `json:"expected_cost"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	result, err := h.store.Redeem(r.Context(), userID, req.ItemID, req.ExpectedCost)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRedemptionHistory handles GET /me/redemptions.
func (h *StoreHandler) HandleRedemptionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r, 50, 200)
	redemptions, err := h.store.RedemptionHistory(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"redemptions": redemptions})
}

// HandleCreateItem handles POST /admin/items/create.
func (h *StoreHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Name       string `json:"name"`
		ItemType   string `json:"item_type"`
		PointsCost int64  `json:"points_cost"`
		Currency   string `json:"currency"`
		Stock      *int   `json:"stock"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.store.CreateItem(r.Context(), actorID, req.Name, model.ItemType(req.ItemType), req.PointsCost, req.Currency, req.Stock)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdateItem handles POST /admin/items/update.
func (h *StoreHandler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		ItemID     uuid.UUID `json:"item_id"`
		Name       string    `json:"name"`
		PointsCost int64     `json:"points_cost"`
		Currency   string    `json:"currency"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	item, err := h.store.UpdateItem(r.Context(), actorID, req.ItemID, req.Name, req.PointsCost, req.Currency)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleSetItemActive handles POST /admin/items/set-active.
func (h *StoreHandler) HandleSetItemActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		ItemID uuid.UUID `json:"item_id"`
		Active bool      `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	if err := h.store.SetItemActive(r.Context(), actorID, req.ItemID, req.Active); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// HandleRestock handles POST /admin/items/restock. A null stock makes
// the item unlimited.
func (h *StoreHandler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		ItemID uuid.UUID `json:"item_id"`
		Stock  *int      `json:"stock"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	if err := h.store.Restock(r.Context(), actorID, req.ItemID, req.Stock); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stock": req.Stock})
}

// HandlePendingRedemptions handles GET /admin/redemptions/pending.
func (h *StoreHandler) HandlePendingRedemptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r, 50, 200)
	redemptions, err := h.store.PendingRedemptions(r.Context(), actorID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"redemptions": redemptions})
}

// HandleFulfill handles POST /admin/redemptions/fulfill.
func (h *StoreHandler) HandleFulfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		RedemptionID uuid.UUID `json:"redemption_id"`
		Details      *string   `json:"details"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RedemptionID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "redemption_id is required")
		return
	}

	if err := h.store.Fulfill(r.Context(), actorID, req.RedemptionID, req.Details); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.RedemptionFulfilled)})
}

// HandleCancelRedemption handles POST /admin/redemptions/cancel. The
// charged points come back to the user and tracked stock is restored.
func (h *StoreHandler) HandleCancelRedemption(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		RedemptionID uuid.UUID `json:"redemption_id"`
		Reason       *string   `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RedemptionID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "redemption_id is required")
		return
	}

	if err := h.store.Cancel(r.Context(), actorID, req.RedemptionID, req.Reason); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.RedemptionCancelled)})
}
