package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"NW_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NW_DB_MAX_CONNS" default:"8"`

	NewscatcherAPIKey  string `envconfig:"NEWSCATCHER_API_KEY" required:"true"`
	NewscatcherBaseURL string `envconfig:"NEWSCATCHER_BASE_URL" default:"https://v3-api.newscatcherapi.com/api/search"`
	NewsdataAPIKey     string `envconfig:"NEWSDATA_API_KEY" default:""`
	NewsdataBaseURL    string `envconfig:"NEWSDATA_BASE_URL" default:"https://newsdata.io/api/1/news"`
	GoogleNewsBaseURL  string `envconfig:"GOOGLE_NEWS_BASE_URL" default:"https://news.google.com/rss/search"`

	Country   string `envconfig:"NW_COUNTRY" default:"IN"`
	Languages string `envconfig:"NW_LANGUAGES" default:"en,hi"`

	WatchlistPath  string `envconfig:"NW_WATCHLIST_PATH" default:"config/watchlist.json"`
	CategoriesPath string `envconfig:"NW_CATEGORIES_PATH" default:""`

	EmbedEndpoint       string        `envconfig:"NW_EMBED_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbedModelName      string        `envconfig:"NW_EMBED_MODEL" default:"all-MiniLM-L6-v2"`
	EmbedTimeout        time.Duration `envconfig:"NW_EMBED_TIMEOUT" default:"45s"`
	FeedClusterSimilMin float64       `envconfig:"NW_FEED_CLUSTER_THRESHOLD" default:"0.4"`

	OutputFolder string `envconfig:"OUTPUT_FOLDER" default:"output"`
	DaysToKeep   int    `envconfig:"DAYS_TO_KEEP" default:"90"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.NewscatcherAPIKey) == "" {
		return fmt.Errorf("NEWSCATCHER_API_KEY is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NW_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NW_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NW_DB_MIN_CONNS (%d) cannot exceed NW_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DaysToKeep < 1 {
		return fmt.Errorf("DAYS_TO_KEEP must be >= 1")
	}
	if c.FeedClusterSimilMin <= 0 || c.FeedClusterSimilMin >= 1 {
		return fmt.Errorf("NW_FEED_CLUSTER_THRESHOLD must be in (0,1)")
	}
	if len(c.LanguageList()) == 0 {
		return fmt.Errorf("NW_LANGUAGES must name at least one language")
	}
	return nil
}

// LanguageList splits NW_LANGUAGES into a deduplicated, trimmed list.
func (c *Config) LanguageList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.Languages, ",")
	languages := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		language := strings.ToLower(strings.TrimSpace(part))
		if language == "" {
			continue
		}
		if _, exists := seen[language]; exists {
			continue
		}
		seen[language] = struct{}{}
		languages = append(languages, language)
	}
	return languages
}
