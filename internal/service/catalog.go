package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"go.uber.org/zap"
)

const (
	minSearchRunes = 2
	maxSearchHits  = 8
)

// CatalogService serves the read side of the storefront catalog.
type CatalogService struct {
	catalog     *repository.CatalogRepository
	subs        *repository.SubscriptionRepository
	settlements *repository.SettlementRepository
	logger      *zap.Logger
}

func NewCatalogService(
	catalog *repository.CatalogRepository,
	subs *repository.SubscriptionRepository,
	settlements *repository.SettlementRepository,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		catalog:     catalog,
		subs:        subs,
		settlements: settlements,
		logger:      logger.Named("catalog"),
	}
}

// List returns one section newest first. Category "Trending" keeps
// trending items, "All" or empty keeps everything, anything else
// matches the item's category exactly.
func (s *CatalogService) List(ctx context.Context, kind, category string) ([]domain.Content, error) {
	if !domain.ValidKind(kind) {
		return nil, domain.ErrNotFound("unknown catalog section")
	}
	items, err := s.catalog.ListContent(ctx, kind)
	if err != nil {
		return nil, domain.ErrInternal("failed to load catalog", err)
	}

	filtered := items[:0]
	for _, c := range items {
		switch category {
		case "", domain.CategoryAll:
		case domain.CategoryTrending:
			if !c.IsTrending {
				continue
			}
		default:
			if c.Category != category {
				continue
			}
		}
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].ID > filtered[j].ID
	})
	return filtered, nil
}

// Get returns one item.
func (s *CatalogService) Get(ctx context.Context, kind, id string) (*domain.Content, error) {
	if !domain.ValidKind(kind) {
		return nil, domain.ErrNotFound("unknown catalog section")
	}
	c, err := s.catalog.GetContent(ctx, kind, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load content", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound("content not found")
	}
	return c, nil
}

// Carousel returns the featured slides newest first.
func (s *CatalogService) Carousel(ctx context.Context) ([]domain.CarouselItem, error) {
	items, err := s.catalog.ListCarousel(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to load carousel", err)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

// Search matches titles case-insensitively across all sections.
// Queries shorter than two characters return nothing.
func (s *CatalogService) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	results := []domain.SearchResult{}
	if utf8.RuneCountInString(q) < minSearchRunes {
		return results, nil
	}

	for _, kind := range []string{domain.KindMovies, domain.KindSeries, domain.KindOriginals} {
		items, err := s.List(ctx, kind, "")
		if err != nil {
			return nil, err
		}
		for _, c := range items {
			if !strings.Contains(strings.ToLower(c.Title), q) {
				continue
			}
			results = append(results, domain.SearchResult{
				ID:       c.ID,
				Kind:     kind,
				Title:    c.Title,
				Image:    c.Image,
				Year:     c.Year,
				Category: c.Category,
			})
			if len(results) == maxSearchHits {
				return results, nil
			}
		}
	}
	return results, nil
}

// Stream resolves playback links for an item. Series play the requested
// episode, or the first one when episode is 0.
func (s *CatalogService) Stream(ctx context.Context, kind, id string, episode int) (*domain.Playback, error) {
	c, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	pb := &domain.Playback{ContentID: c.ID, Kind: c.Kind, Title: c.Title}
	link := c.StreamLink
	if len(c.Episodes) > 0 {
		ep, ok := pickEpisode(c.Episodes, episode)
		if !ok {
			return nil, domain.ErrNotFound("episode not found")
		}
		pb.Episode = &ep
		pb.EpisodeCount = len(c.Episodes)
		link = ep.StreamLink
	} else if episode > 0 {
		return nil, domain.ErrNotFound("episode not found")
	}
	if link == "" {
		return nil, domain.ErrNotFound("no stream available")
	}

	name := c.Title
	if pb.Episode != nil && pb.Episode.Title != "" {
		name = c.Title + " " + pb.Episode.Title
	}
	pb.EmbedURL = domain.EmbedURL(link)
	pb.DownloadURL = domain.DownloadURL(link)
	pb.DownloadName = domain.DownloadName(name)
	return pb, nil
}

func pickEpisode(eps []domain.Episode, number int) (domain.Episode, bool) {
	if number <= 0 {
		return eps[0], true
	}
	for _, ep := range eps {
		if ep.EpisodeNumber == number {
			return ep, true
		}
	}
	return domain.Episode{}, false
}

// Stats counts users, catalog sections and subscription state for the
// admin dashboard.
func (s *CatalogService) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	stats := &domain.CatalogStats{}
	counts := []struct {
		root string
		dst  *int
	}{
		{"users", &stats.Users},
		{domain.KindMovies, &stats.Movies},
		{domain.KindSeries, &stats.Series},
		{domain.KindOriginals, &stats.Originals},
		{"carousel", &stats.Carousel},
	}
	for _, c := range counts {
		n, err := s.catalog.Count(ctx, c.root)
		if err != nil {
			return nil, domain.ErrInternal("failed to load stats", err)
		}
		*c.dst = n
	}

	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to load stats", err)
	}
	now := time.Now()
	for _, sub := range subs {
		if sub.Active && sub.IsActiveAt(now) {
			stats.ActiveSubscriptions++
		}
	}

	pending, err := s.settlements.List(ctx, domain.SettlementPending)
	if err != nil {
		return nil, domain.ErrInternal("failed to load stats", err)
	}
	stats.PendingSettlements = len(pending)
	return stats, nil
}
