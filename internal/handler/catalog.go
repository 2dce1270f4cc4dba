package handler

import (
	"net/http"
	"strconv"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// CatalogHandler serves the storefront catalog and playback links.
type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List handles GET /api/catalog/{kind}?category=.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context(), chi.URLParam(r, "kind"), r.URL.Query().Get("category"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// Get handles GET /api/catalog/{kind}/{id}.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Get(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, item)
}

// Categories handles GET /api/categories.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, append([]string{domain.CategoryTrending, domain.CategoryAll}, domain.Categories...))
}

// Carousel handles GET /api/carousel.
func (h *CatalogHandler) Carousel(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.Carousel(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// Search handles GET /api/search?q=.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	hits, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, hits)
}

// Watch handles GET /api/watch/{kind}/{id}?episode=. Access is checked
// by the subscription guard.
func (h *CatalogHandler) Watch(w http.ResponseWriter, r *http.Request) {
	episode := 0
	if v := r.URL.Query().Get("episode"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			Error(w, domain.ErrBadRequest("episode must be a positive number"))
			return
		}
		episode = n
	}

	pb, err := h.catalog.Stream(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id"), episode)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, pb)
}
