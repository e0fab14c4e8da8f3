package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source is one allowlisted feed endpoint.
type Source struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // crypto_media | regulator
	RSS  string `yaml:"rss"`
}

// SourcesFile is the YAML layout of the allowlist file.
type SourcesFile struct {
	Sources  []Source `yaml:"sources"`
	Rotation []string `yaml:"rotation"`
}

type Config struct {
	// Postgres settings
	DSN string

	// Gemini settings
	GeminiAPIKey string
	GeminiModel  string
	Temperature  float32

	// Sources and fallback rotation
	SourcesPath string
	Sources     []Source
	Rotation    []string

	// Selection policy settings
	FreshWindow     time.Duration // max item age to count as fresh
	VarietyLookback int           // recent assets excluded from fallback
	FeedItemLimit   int           // max items consumed per feed
	MinArticleChars int           // below this the extraction is unusable

	// Network settings
	FetchTimeout time.Duration

	// App settings
	DisplayTimezone string // logging only, bucket math stays UTC
	Debug           bool
}

// Load builds configuration from environment variables, then reads the
// sources allowlist file. Missing connection or API credentials are fatal
// here, before any network activity happens.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiModel:     "gemini-1.5-flash",
		Temperature:     0.4,
		SourcesPath:     "configs/sources.yaml",
		FreshWindow:     75 * time.Minute,
		VarietyLookback: 3,
		FeedItemLimit:   20,
		MinArticleChars: 400,
		FetchTimeout:    20 * time.Second,
		DisplayTimezone: "America/Phoenix",
	}

	cfg.DSN = postgresDSN()
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("GEMINI_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f >= 0 {
			cfg.Temperature = float32(f)
		}
	}

	cfg.SourcesPath = getEnvOrDefault("SOURCES_CONFIG_PATH", cfg.SourcesPath)
	cfg.DisplayTimezone = getEnvOrDefault("DISPLAY_TIMEZONE", cfg.DisplayTimezone)

	if v := os.Getenv("FRESH_WINDOW_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m > 0 {
			cfg.FreshWindow = time.Duration(m) * time.Minute
		}
	}
	cfg.VarietyLookback = getEnvIntOrDefault("VARIETY_LOOKBACK", cfg.VarietyLookback)
	cfg.FeedItemLimit = getEnvIntOrDefault("FEED_ITEM_LIMIT", cfg.FeedItemLimit)
	cfg.MinArticleChars = getEnvIntOrDefault("MIN_ARTICLE_CHARS", cfg.MinArticleChars)

	if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			cfg.FetchTimeout = time.Duration(s) * time.Second
		}
	}

	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}

	if err := cfg.loadSources(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// postgresDSN prefers PG_DSN, otherwise assembles a libpq keyword string
// from the discrete PGHOST/PGPORT/... variables.
func postgresDSN() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}

	host := os.Getenv("PGHOST")
	port := os.Getenv("PGPORT")
	db := os.Getenv("PGDATABASE")
	user := os.Getenv("PGUSER")
	pw := os.Getenv("PGPASSWORD")
	ssl := getEnvOrDefault("PGSSLMODE", "require")

	if host == "" || port == "" || db == "" || user == "" || pw == "" {
		return ""
	}

	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		host, port, db, user, pw, ssl)
}

func (c *Config) loadSources() error {
	f, err := os.Open(c.SourcesPath)
	if err != nil {
		return fmt.Errorf("open sources config %s: %w", c.SourcesPath, err)
	}
	defer f.Close()

	var file SourcesFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return fmt.Errorf("parse sources config %s: %w", c.SourcesPath, err)
	}

	c.Sources = file.Sources
	c.Rotation = file.Rotation
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("no Postgres connection info: set PG_DSN or PGHOST/PGPORT/PGDATABASE/PGUSER/PGPASSWORD (and PGSSLMODE)")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources config %s lists no feeds", c.SourcesPath)
	}
	if len(c.Rotation) == 0 {
		return fmt.Errorf("sources config %s lists no rotation assets", c.SourcesPath)
	}
	for _, s := range c.Sources {
		if s.Name == "" || !strings.HasPrefix(s.RSS, "http") {
			return fmt.Errorf("source %q has no name or an invalid rss url", s.Name)
		}
	}
	return nil
}
