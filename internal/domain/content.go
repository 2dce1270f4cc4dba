package domain

import "time"

// Catalog sections stored under their own root path.
const (
	KindMovies    = "movies"
	KindSeries    = "series"
	KindOriginals = "originals"
)

// Category filters with special meaning.
const (
	CategoryAll      = "All"
	CategoryTrending = "Trending"
)

// Categories is the genre list offered by the storefront.
var Categories = []string{
	"Action", "Romance", "Animation", "Horror", "Special",
	"Drabor", "Comedy", "Drama", "Nigerian",
}

// ValidKind reports whether kind names a catalog section.
func ValidKind(kind string) bool {
	switch kind {
	case KindMovies, KindSeries, KindOriginals:
		return true
	}
	return false
}

// Episode is one playable part of a series.
type Episode struct {
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	StreamLink    string `json:"streamlink"`
}

// Content is a movie, series or original. Series carry episodes instead
// of a single stream link.
type Content struct {
	ID         string    `json:"id"`
	Kind       string    `json:"type"`
	Title      string    `json:"title"`
	Image      string    `json:"image"`
	Rating     float64   `json:"rating"`
	Year       int       `json:"year"`
	Category   string    `json:"category"`
	StreamLink string    `json:"streamlink,omitempty"`
	IsTrending bool      `json:"isTrending"`
	Episodes   []Episode `json:"episodes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CarouselItem is a featured slide on the home page.
type CarouselItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Image       string    `json:"image"`
	ContentType string    `json:"contentType,omitempty"`
	ContentID   string    `json:"contentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SearchResult is a compact hit across catalog sections.
type SearchResult struct {
	ID       string `json:"id"`
	Kind     string `json:"type"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Year     int    `json:"year"`
	Category string `json:"category,omitempty"`
}

// Playback holds resolved URLs for one playable item.
type Playback struct {
	ContentID    string   `json:"contentId"`
	Kind         string   `json:"type"`
	Title        string   `json:"title"`
	Episode      *Episode `json:"episode,omitempty"`
	EmbedURL     string   `json:"embedUrl"`
	DownloadURL  string   `json:"downloadUrl"`
	DownloadName string   `json:"downloadName"`
	EpisodeCount int      `json:"episodeCount,omitempty"`
}

// CatalogStats feeds the admin dashboard.
type CatalogStats struct {
	Users               int `json:"users"`
	Movies              int `json:"movies"`
	Series              int `json:"series"`
	Originals           int `json:"originals"`
	Carousel            int `json:"carousel"`
	ActiveSubscriptions int `json:"activeSubscriptions"`
	PendingSettlements  int `json:"pendingSettlements"`
}
