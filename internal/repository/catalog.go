package repository

import (
	"context"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/pkg/errors"
)

// CatalogRepository reads the movies, series, originals and carousel
// sections. Those sections are maintained by content tooling.
type CatalogRepository struct {
	store store.Store
}

func NewCatalogRepository(s store.Store) *CatalogRepository {
	return &CatalogRepository{store: s}
}

// ListContent returns every item of one section with ID and Kind filled in.
func (r *CatalogRepository) ListContent(ctx context.Context, kind string) ([]domain.Content, error) {
	children, err := r.store.Children(ctx, kind)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot list %s", kind)
	}
	decoded, err := store.DecodeChildren[domain.Content](children)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot decode %s", kind)
	}

	items := make([]domain.Content, 0, len(decoded))
	for id, c := range unescapeKeys(decoded) {
		c.ID = id
		c.Kind = kind
		items = append(items, c)
	}
	return items, nil
}

// GetContent returns one item, or nil.
func (r *CatalogRepository) GetContent(ctx context.Context, kind, id string) (*domain.Content, error) {
	var c domain.Content
	found, err := r.store.Get(ctx, nodePath(kind, id), &c)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot read %s/%s", kind, id)
	}
	if !found {
		return nil, nil
	}
	c.ID = id
	c.Kind = kind
	return &c, nil
}

// ListCarousel returns the featured slides.
func (r *CatalogRepository) ListCarousel(ctx context.Context) ([]domain.CarouselItem, error) {
	children, err := r.store.Children(ctx, pathCarousel)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot list carousel")
	}
	decoded, err := store.DecodeChildren[domain.CarouselItem](children)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot decode carousel")
	}

	items := make([]domain.CarouselItem, 0, len(decoded))
	for id, item := range unescapeKeys(decoded) {
		item.ID = id
		items = append(items, item)
	}
	return items, nil
}

// Count returns the number of direct children under a root path.
func (r *CatalogRepository) Count(ctx context.Context, root string) (int, error) {
	children, err := r.store.Children(ctx, root)
	if err != nil {
		return 0, errors.Wrapf(err, "Cannot count %s", root)
	}
	return len(children), nil
}
