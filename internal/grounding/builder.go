// Package grounding fetches the bounded candidate lists the model is allowed
// to recommend from, and hydrates the entities it ended up recommending.
package grounding

import (
	"context"

	"github.com/xaenox/travel-concierge/internal/classifier"
	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultCountryLimit = 30
	DefaultNewsLimit    = 5
)

type Policy struct {
	CountryLimit int
	NewsLimit    int
	// IncludeUnpublishedCountries keeps draft countries eligible for
	// grounding. News is always restricted to published articles.
	IncludeUnpublishedCountries bool
}

func DefaultPolicy() Policy {
	return Policy{
		CountryLimit:                DefaultCountryLimit,
		NewsLimit:                   DefaultNewsLimit,
		IncludeUnpublishedCountries: true,
	}
}

type Source interface {
	ListCountries(ctx context.Context, limit int, includeUnpublished bool) ([]models.Country, error)
	ListNews(ctx context.Context, limit int) ([]models.NewsItem, error)
}

// Set is the candidate list of one request. At most one of Countries and News
// is populated; positions in the slice are the ordinals shown to the model.
type Set struct {
	Kind      models.SuggestionKind
	Countries []models.Country
	News      []models.NewsItem
}

func (s Set) Len() int {
	return len(s.Countries) + len(s.News)
}

func (s Set) Empty() bool {
	return s.Len() == 0
}

type Builder struct {
	source Source
	policy Policy
	logger *zap.Logger
}

func NewBuilder(source Source, policy Policy, logger *zap.Logger) *Builder {
	if policy.CountryLimit <= 0 {
		policy.CountryLimit = DefaultCountryLimit
	}
	if policy.NewsLimit <= 0 {
		policy.NewsLimit = DefaultNewsLimit
	}
	return &Builder{
		source: source,
		policy: policy,
		logger: logger,
	}
}

// Build fetches the candidates for intent. Store failures are logged and
// produce an empty set so the request can still be answered without grounding.
func (b *Builder) Build(ctx context.Context, intent classifier.Intent) Set {
	switch intent {
	case classifier.IntentCountry:
		countries, err := b.source.ListCountries(ctx, b.policy.CountryLimit, b.policy.IncludeUnpublishedCountries)
		if err != nil {
			b.logger.Error("Failed to fetch countries for grounding", zap.Error(err))
			countries = nil
		}
		return Set{Kind: models.KindCountries, Countries: countries}

	case classifier.IntentNews:
		news, err := b.source.ListNews(ctx, b.policy.NewsLimit)
		if err != nil {
			b.logger.Error("Failed to fetch news for grounding", zap.Error(err))
			news = nil
		}
		return Set{Kind: models.KindNews, News: news}
	}

	return Set{}
}
