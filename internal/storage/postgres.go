package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConnections int
	MaxIdle        int
	Migrate        bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if config.MaxConnections > 0 {
		db.SetMaxOpenConns(config.MaxConnections)
	}
	if config.MaxIdle > 0 {
		db.SetMaxIdleConns(config.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := NewPostgresStorageFromDB(db, logger)

	if config.Migrate {
		if err := storage.initializeSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("error initializing database schema: %w", err)
		}
		logger.Info("Database schema initialized")
	}

	return storage, nil
}

// NewPostgresStorageFromDB wraps an already opened connection pool.
func NewPostgresStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

const countryColumns = `id, name, slug,
	COALESCE(flag_icon, ''), COALESCE(featured_image, ''), COALESCE(best_time_to_visit, '')`

func (s *PostgresStorage) ListCountries(ctx context.Context, limit int, includeUnpublished bool) ([]models.Country, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if includeUnpublished {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+countryColumns+`
			FROM countries
			ORDER BY name ASC
			LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+countryColumns+`
			FROM countries
			WHERE status = $1
			ORDER BY name ASC
			LIMIT $2`, statusPublished, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying countries: %w", err)
	}
	return scanCountries(rows)
}

func (s *PostgresStorage) SearchCountries(ctx context.Context, term string, limit int) ([]models.Country, error) {
	pattern := "%" + escapeLike(term) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+countryColumns+`
		FROM countries
		WHERE name ILIKE $1 OR slug ILIKE $1
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching countries: %w", err)
	}
	return scanCountries(rows)
}

func (s *PostgresStorage) CountriesByIDs(ctx context.Context, ids []string) ([]models.Country, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+countryColumns+`
		FROM countries
		WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying countries by id: %w", err)
	}
	return scanCountries(rows)
}

func scanCountries(rows *sql.Rows) ([]models.Country, error) {
	defer rows.Close()

	var countries []models.Country
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.FlagIcon, &c.FeaturedImage, &c.BestTimeToVisit); err != nil {
			return nil, fmt.Errorf("error scanning country: %w", err)
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating countries: %w", err)
	}
	return countries, nil
}

const newsColumns = `id, title, slug, COALESCE(excerpt, ''), category_id`

func (s *PostgresStorage) ListNews(ctx context.Context, limit int) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+newsColumns+`
		FROM articles
		WHERE type = $1 AND status = $2
		ORDER BY published_at DESC
		LIMIT $3`, articleTypeNews, statusPublished, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying news: %w", err)
	}
	return scanNews(rows)
}

func (s *PostgresStorage) NewsByIDs(ctx context.Context, ids []int64) ([]models.NewsItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+newsColumns+`
		FROM articles
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying news by id: %w", err)
	}
	return scanNews(rows)
}

func scanNews(rows *sql.Rows) ([]models.NewsItem, error) {
	defer rows.Close()

	var items []models.NewsItem
	for rows.Next() {
		var (
			n          models.NewsItem
			categoryID sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Slug, &n.Excerpt, &categoryID); err != nil {
			return nil, fmt.Errorf("error scanning news: %w", err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			n.CategoryID = &id
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news: %w", err)
	}
	return items, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
