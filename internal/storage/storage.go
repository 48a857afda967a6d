package storage

import (
	"context"

	"github.com/xaenox/travel-concierge/internal/models"
)

type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	CountryStorage
	NewsStorage
}

type CountryStorage interface {
	// ListCountries returns up to limit countries ordered by name.
	// Unpublished rows are included only when includeUnpublished is set.
	ListCountries(ctx context.Context, limit int, includeUnpublished bool) ([]models.Country, error)
	// SearchCountries matches term case-insensitively against name and slug.
	SearchCountries(ctx context.Context, term string, limit int) ([]models.Country, error)
	CountriesByIDs(ctx context.Context, ids []string) ([]models.Country, error)
}

type NewsStorage interface {
	// ListNews returns up to limit published news articles, newest first.
	ListNews(ctx context.Context, limit int) ([]models.NewsItem, error)
	NewsByIDs(ctx context.Context, ids []int64) ([]models.NewsItem, error)
}

const (
	statusPublished = "published"
	articleTypeNews = "news"
)
