package handler

import (
	"net/http"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// AdminHandler serves the operator dashboard: stats, users, wallet and
// settlement reconciliation.
type AdminHandler struct {
	catalog    *service.CatalogService
	users      *service.UserService
	wallet     *service.WalletService
	flow       *service.SettlementService
	reconciler *service.Reconciler
}

func NewAdminHandler(
	catalog *service.CatalogService,
	users *service.UserService,
	wallet *service.WalletService,
	flow *service.SettlementService,
	reconciler *service.Reconciler,
) *AdminHandler {
	return &AdminHandler{catalog: catalog, users: users, wallet: wallet, flow: flow, reconciler: reconciler}
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListWithSubscriptions(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, users)
}

// SetRole handles PUT /api/admin/users/{id}/role.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateRoleRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	if err := h.users.SetRole(r.Context(), chi.URLParam(r, "id"), &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Wallet handles GET /api/admin/wallet.
func (h *AdminHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	summary, err := h.wallet.Summary(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}

// Withdraw handles POST /api/admin/wallet/withdraw.
func (h *AdminHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req domain.WithdrawRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	res, err := h.wallet.Withdraw(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Settlements handles GET /api/admin/settlements?status=.
func (h *AdminHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	list, err := h.flow.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, list)
}

// Reconcile handles POST /api/admin/settlements/reconcile.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		Error(w, domain.ErrInternal("reconcile failed", err))
		return
	}
	JSON(w, http.StatusOK, report)
}
