package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xaenox/travel-concierge/internal/models"
)

type MemoryStorage struct {
	mu        sync.RWMutex
	countries []models.Country
	news      []models.NewsItem
}

func NewMemoryStorage(countries []models.Country, news []models.NewsItem) *MemoryStorage {
	s := &MemoryStorage{}
	for _, c := range countries {
		s.AddCountry(c)
	}
	for _, n := range news {
		s.AddNews(n)
	}
	return s
}

// The json tags on the models hide status fields, so the seed carries them
// separately.
type seedCountry struct {
	models.Country
	Status string `json:"status"`
}

type seedNews struct {
	models.NewsItem
	Status      string `json:"status"`
	Type        string `json:"type"`
	PublishedAt string `json:"published_at"`
}

// LoadMemoryStorage builds a MemoryStorage from a JSON seed file.
func LoadMemoryStorage(path string) (*MemoryStorage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading seed file: %w", err)
	}

	var raw struct {
		Countries []seedCountry `json:"countries"`
		News      []seedNews    `json:"news"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing seed file: %w", err)
	}

	s := &MemoryStorage{}
	for _, c := range raw.Countries {
		c.Country.Status = c.Status
		s.AddCountry(c.Country)
	}
	for _, n := range raw.News {
		n.NewsItem.Status = n.Status
		n.NewsItem.Type = n.Type
		if n.PublishedAt != "" {
			if err := n.NewsItem.PublishedAt.UnmarshalText([]byte(n.PublishedAt)); err != nil {
				return nil, fmt.Errorf("error parsing published_at for news %d: %w", n.ID, err)
			}
		}
		s.AddNews(n.NewsItem)
	}
	return s, nil
}

func (s *MemoryStorage) AddCountry(c models.Country) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.countries = append(s.countries, c)
}

func (s *MemoryStorage) AddNews(n models.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == 0 {
		n.ID = int64(len(s.news) + 1)
	}
	s.news = append(s.news, n)
}

func (s *MemoryStorage) ListCountries(ctx context.Context, limit int, includeUnpublished bool) ([]models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Country, 0, len(s.countries))
	for _, c := range s.countries {
		if !includeUnpublished && c.Status != statusPublished {
			continue
		}
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return capped(result, limit), nil
}

func (s *MemoryStorage) SearchCountries(ctx context.Context, term string, limit int) ([]models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term = strings.ToLower(term)
	var result []models.Country
	for _, c := range s.countries {
		if strings.Contains(strings.ToLower(c.Name), term) || strings.Contains(strings.ToLower(c.Slug), term) {
			result = append(result, c)
		}
	}
	return capped(result, limit), nil
}

func (s *MemoryStorage) CountriesByIDs(ctx context.Context, ids []string) ([]models.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var result []models.Country
	for _, c := range s.countries {
		if _, ok := wanted[c.ID]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *MemoryStorage) ListNews(ctx context.Context, limit int) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.NewsItem
	for _, n := range s.news {
		if n.Type == articleTypeNews && n.Status == statusPublished {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].PublishedAt.After(result[j].PublishedAt) })
	return capped(result, limit), nil
}

func (s *MemoryStorage) NewsByIDs(ctx context.Context, ids []int64) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var result []models.NewsItem
	for _, n := range s.news {
		if _, ok := wanted[n.ID]; ok {
			result = append(result, n)
		}
	}
	return result, nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
