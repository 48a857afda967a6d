package grounding

import (
	"context"

	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

type Lookup interface {
	CountriesByIDs(ctx context.Context, ids []string) ([]models.Country, error)
	NewsByIDs(ctx context.Context, ids []int64) ([]models.NewsItem, error)
}

// Hydrator re-fetches full records for resolved identifiers.
type Hydrator struct {
	lookup Lookup
	logger *zap.Logger
}

func NewHydrator(lookup Lookup, logger *zap.Logger) *Hydrator {
	return &Hydrator{
		lookup: lookup,
		logger: logger,
	}
}

// Countries returns nil when nothing could be hydrated.
func (h *Hydrator) Countries(ctx context.Context, ids []string) *models.Suggestions {
	if len(ids) == 0 {
		return nil
	}
	countries, err := h.lookup.CountriesByIDs(ctx, ids)
	if err != nil {
		h.logger.Error("Failed to hydrate countries", zap.Error(err), zap.Strings("ids", ids))
		return nil
	}
	countries = inOrder(countries, ids)
	if len(countries) == 0 {
		return nil
	}
	return &models.Suggestions{Type: models.KindCountries, Items: countries}
}

// News returns nil when nothing could be hydrated.
func (h *Hydrator) News(ctx context.Context, ids []int64) *models.Suggestions {
	if len(ids) == 0 {
		return nil
	}
	news, err := h.lookup.NewsByIDs(ctx, ids)
	if err != nil {
		h.logger.Error("Failed to hydrate news", zap.Error(err), zap.Int64s("ids", ids))
		return nil
	}
	news = inOrder(news, ids)
	if len(news) == 0 {
		return nil
	}
	return &models.Suggestions{Type: models.KindNews, Items: news}
}

type identified[ID comparable] interface {
	EntityID() ID
}

// inOrder arranges items in the order of ids and drops anything not asked for.
func inOrder[ID comparable, E identified[ID]](items []E, ids []ID) []E {
	byID := make(map[ID]E, len(items))
	for _, item := range items {
		byID[item.EntityID()] = item
	}
	ordered := make([]E, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
			delete(byID, id)
		}
	}
	return ordered
}
