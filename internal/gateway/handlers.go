package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/payhub/internal/common"
)

// Handler exposes the HTTP endpoints backed by the gateway service.
type Handler struct {
	Svc *Service
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.ValidationError("invalid body", nil))
		return
	}
	data, err := h.Svc.Checkout(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONOK(w, http.StatusOK, "checkout session created", data)
}

// Receipt handles GET /api/receipt/{sessionId}.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	data, err := h.Svc.Receipt(r.Context(), sessionID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONOK(w, http.StatusOK, "", data)
}

// Subscribe handles POST /api/subscription.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.ValidationError("invalid body", nil))
		return
	}
	data, err := h.Svc.Subscribe(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONOK(w, http.StatusOK, "subscription created", data)
}

// CancelSubscription handles DELETE /api/subscription/{subscriptionId}.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	subscriptionID := strings.TrimSpace(chi.URLParam(r, "subscriptionId"))
	if err := h.Svc.CancelSubscription(r.Context(), subscriptionID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONOK(w, http.StatusOK, "", map[string]string{
		"status":         "cancelled",
		"subscriptionId": subscriptionID,
	})
}
