package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Grounding  GroundingConfig  `mapstructure:"grounding"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Site       SiteConfig       `mapstructure:"site"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// RateLimit is chat requests per second per client IP; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	Migrate        bool   `mapstructure:"migrate"`
	UseInMemory    bool   `mapstructure:"use_in_memory"`
	// SeedFile is a JSON document loaded into the in-memory store.
	SeedFile string `mapstructure:"seed_file"`
}

type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
}

type GroundingConfig struct {
	CountryLimit                int    `mapstructure:"country_limit"`
	NewsLimit                   int    `mapstructure:"news_limit"`
	IncludeUnpublishedCountries bool   `mapstructure:"include_unpublished_countries"`
	Language                    string `mapstructure:"language"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type SiteConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.write_timeout", "75s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.rate_burst", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "travel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.migrate", false)
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("database.seed_file", "")

	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.max_tokens", 1000)
	v.SetDefault("openrouter.temperature", 0.7)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.referer", "")
	v.SetDefault("openrouter.title", "Travel Concierge")

	v.SetDefault("grounding.country_limit", 30)
	v.SetDefault("grounding.news_limit", 5)
	v.SetDefault("grounding.include_unpublished_countries", true)
	v.SetDefault("grounding.language", "Turkish")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")

	v.SetDefault("site.base_url", "")
}

// LoadConfig reads the YAML file at path, if it exists, and applies
// environment overrides. Every key can be set from the environment with
// dots replaced by underscores, e.g. OPENROUTER_API_KEY or GROUNDING_NEWS_LIMIT.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// DATABASE_URL takes precedence over the individual connection keys
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		if err := applyDatabaseURL(&config.Database, dbURL); err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDatabaseURL(db *DatabaseConfig, dbURL string) error {
	u, err := url.Parse(dbURL)
	if err != nil {
		return err
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing host in %q", u.Redacted())
	}

	port := 5432
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("invalid port %q: %w", p, err)
		}
	}

	password, _ := u.User.Password()
	db.Host = u.Hostname()
	db.Port = port
	db.User = u.User.Username()
	db.Password = password
	db.DBName = strings.TrimPrefix(u.Path, "/")
	db.SSLMode = "disable"
	if mode := u.Query().Get("sslmode"); mode != "" {
		db.SSLMode = mode
	}
	return nil
}

func (c *Config) validate() error {
	if c.Grounding.CountryLimit <= 0 {
		return errors.New("grounding.country_limit must be positive")
	}
	if c.Grounding.NewsLimit <= 0 {
		return errors.New("grounding.news_limit must be positive")
	}
	if c.OpenRouter.Timeout <= 0 {
		return errors.New("openrouter.timeout must be positive")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return errors.New("telegram.token is required when telegram is enabled")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
