package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/service"
)

// maxWebhookBody caps how much of a gateway callback is read. Real
// events are a few KB.
const maxWebhookBody = 1 << 20

// PaymentsHandler serves wallet top-up checkouts.
type PaymentsHandler struct {
	payments *service.PaymentService
}

// NewPaymentsHandler creates a new PaymentsHandler instance.
func NewPaymentsHandler(payments *service.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{payments: payments}
}

// HandleInitiate handles POST /payments/initiate. The response carries
// the hosted checkout URL to redirect the user to.
func (h *PaymentsHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Gateway     string `json:"gateway"`
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
		Email       string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	txn, err := h.payments.InitiateTopUp(r.Context(), userID, model.PaymentGateway(req.Gateway), req.AmountCents, req.Currency, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// HandleHistory handles GET /payments.
func (h *PaymentsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r, 50, 200)
	payments, err := h.payments.History(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// HandleGet handles GET /payments/{id}. Only the transaction's owner
// can read it.
func (h *PaymentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/payments/")
	paymentID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Valid payment id is required")
		return
	}

	txn, err := h.payments.Get(r.Context(), userID, paymentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// HandleWebhook handles POST /payments/webhook/{gateway}. The gateway
// authenticates itself by signing the raw body, so the route skips the
// actor header. Events that carry no settlement decision and replays
// of already-settled references are acknowledged with a 200 so the
// gateway stops retrying.
func (h *PaymentsHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	gateway := model.PaymentGateway(strings.TrimPrefix(r.URL.Path, "/payments/webhook/"))

	var signature string
	switch gateway {
	case model.GatewayPaystack:
		signature = r.Header.Get("x-paystack-signature")
	case model.GatewayStripe:
		signature = r.Header.Get("Stripe-Signature")
	default:
		writeError(w, http.StatusNotFound, "Unknown gateway")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.payments.VerifyWebhook(gateway, signature, body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid webhook signature")
		return
	}

	reference, succeeded, settle := parseWebhookEvent(gateway, body)
	if !settle {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if reference == "" {
		writeError(w, http.StatusBadRequest, "Webhook event carries no reference")
		return
	}

	if _, err := h.payments.Settle(r.Context(), reference, succeeded); err != nil {
		if errors.Is(err, service.ErrNotSettleable) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already settled"})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// parseWebhookEvent pulls the checkout reference and outcome out of a
// verified event payload. settle is false when the event type does not
// decide a checkout.
func parseWebhookEvent(gateway model.PaymentGateway, body []byte) (reference string, succeeded, settle bool) {
	switch gateway {
	case model.GatewayPaystack:
		var event struct {
			Event string `json:"event"`
			Data  struct {
				Reference string `json:"reference"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &event); err != nil {
			return "", false, false
		}
		switch event.Event {
		case "charge.success":
			return event.Data.Reference, true, true
		case "charge.failed":
			return event.Data.Reference, false, true
		}
	case model.GatewayStripe:
		var event struct {
			Type string `json:"type"`
			Data struct {
				Object struct {
					ClientReferenceID string `json:"client_reference_id"`
				} `json:"object"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &event); err != nil {
			return "", false, false
		}
		switch event.Type {
		case "checkout.session.completed":
			return event.Data.Object.ClientReferenceID, true, true
		case "checkout.session.expired":
			return event.Data.Object.ClientReferenceID, false, true
		}
	}
	return "", false, false
}
