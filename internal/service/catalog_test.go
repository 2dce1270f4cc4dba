package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedCatalog(t *testing.T, env *testEnv) *CatalogService {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := map[string]interface{}{
		"movies/m1": domain.Content{Title: "Lion Heart", Category: "Action", IsTrending: true,
			StreamLink: "https://drive.google.com/file/d/abc123/view?usp=sharing", CreatedAt: base},
		"movies/m2": domain.Content{Title: "Heartbreak Hotel", Category: "Romance",
			StreamLink: "https://cdn.example.com/m2.mp4", CreatedAt: base.Add(time.Hour)},
		"movies/m3": domain.Content{Title: "Kampala Nights", Category: "Action", CreatedAt: base.Add(2 * time.Hour)},
		"series/s1": domain.Content{Title: "Heart of Gold", Category: "Drama", CreatedAt: base, Episodes: []domain.Episode{
			{EpisodeNumber: 1, Title: "Pilot", StreamLink: "https://drive.google.com/open?id=ep1"},
			{EpisodeNumber: 2, Title: "Return", StreamLink: "https://drive.google.com/open?id=ep2"},
		}},
		"originals/o1": domain.Content{Title: "Hearts Unknown", CreatedAt: base},
		"carousel/c1":  domain.CarouselItem{Title: "Old slide", CreatedAt: base},
		"carousel/c2":  domain.CarouselItem{Title: "New slide", CreatedAt: base.Add(time.Hour)},
	}
	for path, doc := range docs {
		require.NoError(t, env.store.Set(ctx, path, doc))
	}
	return NewCatalogService(repository.NewCatalogRepository(env.store), env.subs, env.settlements, zap.NewNop())
}

func TestCatalogListFilters(t *testing.T) {
	ctx := context.Background()
	svc := seedCatalog(t, newTestEnv(t))

	all, err := svc.List(ctx, domain.KindMovies, domain.CategoryAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"m3", "m2", "m1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, domain.KindMovies, all[0].Kind)

	trending, err := svc.List(ctx, domain.KindMovies, domain.CategoryTrending)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	assert.Equal(t, "m1", trending[0].ID)

	action, err := svc.List(ctx, domain.KindMovies, "Action")
	require.NoError(t, err)
	assert.Len(t, action, 2)

	_, err = svc.List(ctx, "podcasts", "")
	requireAppError(t, err, http.StatusNotFound, "unknown catalog section")
}

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()
	svc := seedCatalog(t, newTestEnv(t))

	hits, err := svc.Search(ctx, "  HEART ")
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, domain.KindMovies, hits[0].Kind)
	assert.Equal(t, domain.KindOriginals, hits[3].Kind)

	short, err := svc.Search(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, short)
}

func TestCatalogStream(t *testing.T) {
	ctx := context.Background()
	svc := seedCatalog(t, newTestEnv(t))

	movie, err := svc.Stream(ctx, domain.KindMovies, "m1", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/abc123/preview", movie.EmbedURL)
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=abc123", movie.DownloadURL)
	assert.Equal(t, "Lion_Heart.mp4", movie.DownloadName)

	external, err := svc.Stream(ctx, domain.KindMovies, "m2", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/m2.mp4", external.EmbedURL)

	first, err := svc.Stream(ctx, domain.KindSeries, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Episode.EpisodeNumber)
	assert.Equal(t, 2, first.EpisodeCount)

	second, err := svc.Stream(ctx, domain.KindSeries, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/ep2/preview", second.EmbedURL)
	assert.Equal(t, "Heart_of_Gold_Return.mp4", second.DownloadName)

	_, err = svc.Stream(ctx, domain.KindSeries, "s1", 9)
	requireAppError(t, err, http.StatusNotFound, "episode not found")

	_, err = svc.Stream(ctx, domain.KindMovies, "m3", 0)
	requireAppError(t, err, http.StatusNotFound, "no stream available")

	_, err = svc.Stream(ctx, domain.KindMovies, "missing", 0)
	requireAppError(t, err, http.StatusNotFound, "content not found")
}

func TestCatalogCarouselAndStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := seedCatalog(t, env)
	env.seedSubscription(t, "paid", time.Now().Add(time.Hour))
	env.seedSubscription(t, "lapsed", time.Now().Add(-time.Hour))
	env.seedSettlement(t, "waiting", domain.SettlementPending, time.Minute)
	require.NoError(t, env.users.Create(ctx, &domain.User{ID: "u1", Email: "u1@example.com"}))

	slides, err := svc.Carousel(ctx)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "New slide", slides[0].Title)
	assert.Equal(t, "c2", slides[0].ID)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.CatalogStats{
		Users:               1,
		Movies:              3,
		Series:              1,
		Originals:           1,
		Carousel:            2,
		ActiveSubscriptions: 1,
		PendingSettlements:  1,
	}, stats)
}

func TestFormatValidationErrorsPassesThroughOtherErrors(t *testing.T) {
	assert.Equal(t, "boom", formatValidationErrors(errors.New("boom")))
}
