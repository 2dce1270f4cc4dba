package handler

import (
	"net/http"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// SubscriptionHandler serves checkout and access status.
type SubscriptionHandler struct {
	flow *service.SettlementService
	subs *service.SubscriptionService
}

func NewSubscriptionHandler(flow *service.SettlementService, subs *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{flow: flow, subs: subs}
}

// Subscribe handles POST /api/subscribe. The request stays open while the
// payer approves the charge on their phone.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := identity(w, r)
	if !ok {
		return
	}

	var req domain.SubscribeRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	res, err := h.flow.Subscribe(r.Context(), userID, email, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, res)
}

// Status handles GET /api/subscription.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	status, err := h.subs.Status(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, status)
}

// Settlement handles GET /api/settlements/{ref}.
func (h *SubscriptionHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := identity(w, r)
	if !ok {
		return
	}

	view, err := h.flow.Get(r.Context(), userID, email, chi.URLParam(r, "ref"))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, view)
}
