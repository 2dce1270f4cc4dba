package handler

import (
	"net/http"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/go-chi/chi/v5"
)

// PlansHandler serves the fixed pass catalog shown on the checkout page.
type PlansHandler struct{}

func NewPlansHandler() *PlansHandler {
	return &PlansHandler{}
}

// List handles GET /api/plans.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, domain.AvailablePlans())
}

// Get handles GET /api/plans/{id}.
func (h *PlansHandler) Get(w http.ResponseWriter, r *http.Request) {
	plan, ok := domain.FindPlan(chi.URLParam(r, "id"))
	if !ok {
		Error(w, domain.ErrNotFound("plan not found"))
		return
	}
	JSON(w, http.StatusOK, plan)
}
