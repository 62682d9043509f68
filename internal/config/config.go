package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Store       StoreConfig
	Scraper     ScraperConfig
	Browser     BrowserConfig
	Collections CollectionsConfig
	Status      StatusConfig
	Redis       RedisConfig
	Logging     LoggingConfig
}

// StoreConfig holds the persistence backend connection settings. Both
// fields are required; the pipeline aborts before any network activity
// when either is missing.
type StoreConfig struct {
	URL         string
	ServiceKey  string
	MaxConns    int
	MinConns    int
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type ScraperConfig struct {
	SitemapURL                string
	MaxProducts               int
	BatchSize                 int
	RotatePageEvery           int
	MaxRetriesPerProduct      int
	DelayMin                  time.Duration
	DelayMax                  time.Duration
	RecreateContextAfterFails int
	RescrapeAfter             time.Duration
	CategoryStrategy          string
}

type BrowserConfig struct {
	Headless       bool
	NavTimeout     time.Duration
	DefaultTimeout time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

type CollectionsConfig struct {
	Dir string
}

// StatusConfig controls the optional status HTTP server. An empty
// address disables it.
type StatusConfig struct {
	Addr string
}

// RedisConfig controls the optional recently-scraped skip set. An empty
// address disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			URL:         os.Getenv("STORE_URL"),
			ServiceKey:  os.Getenv("STORE_SERVICE_KEY"),
			MaxConns:    getIntOrDefault("STORE_MAX_CONNS", 4),
			MinConns:    getIntOrDefault("STORE_MIN_CONNS", 1),
			MaxConnLife: getDurationOrDefault("STORE_MAX_CONN_LIFE", time.Hour),
			MaxConnIdle: getDurationOrDefault("STORE_MAX_CONN_IDLE", 30*time.Minute),
		},
		Scraper: ScraperConfig{
			SitemapURL:                getEnvOrDefault("SITEMAP_URL", "https://consciousitems.com/sitemap.xml"),
			MaxProducts:               getIntOrDefault("MAX_PRODUCTS", 250),
			BatchSize:                 getIntOrDefault("BATCH_SIZE", 10),
			RotatePageEvery:           getIntOrDefault("ROTATE_PAGE_EVERY", 20),
			MaxRetriesPerProduct:      getIntOrDefault("MAX_RETRIES_PER_PRODUCT", 3),
			DelayMin:                  getDurationOrDefault("DELAY_MIN_MS", 500*time.Millisecond),
			DelayMax:                  getDurationOrDefault("DELAY_MAX_MS", 1200*time.Millisecond),
			RecreateContextAfterFails: getIntOrDefault("RECREATE_CONTEXT_AFTER_FAILS", 5),
			RescrapeAfter:             getDurationOrDefault("RESCRAPE_AFTER", 24*time.Hour),
			CategoryStrategy:          getEnvOrDefault("CATEGORY_STRATEGY", "fixed"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			NavTimeout:     getDurationOrDefault("BROWSER_NAV_TIMEOUT", 60*time.Second),
			DefaultTimeout: getDurationOrDefault("BROWSER_TIMEOUT", 25*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 768),
		},
		Collections: CollectionsConfig{
			Dir: getEnvOrDefault("COLLECTIONS_DIR", "data/collections"),
		},
		Status: StatusConfig{
			Addr: os.Getenv("STATUS_ADDR"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Store.URL == "" || c.Store.ServiceKey == "" {
		return fmt.Errorf("STORE_URL and STORE_SERVICE_KEY environment variables are required")
	}

	if c.Scraper.MaxProducts < 1 {
		return fmt.Errorf("MAX_PRODUCTS must be at least 1")
	}

	if c.Scraper.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}

	if c.Scraper.MaxRetriesPerProduct < 1 {
		return fmt.Errorf("MAX_RETRIES_PER_PRODUCT must be at least 1")
	}

	if c.Scraper.DelayMin > c.Scraper.DelayMax {
		return fmt.Errorf("DELAY_MIN_MS cannot be greater than DELAY_MAX_MS")
	}

	if c.Scraper.RecreateContextAfterFails < 1 {
		return fmt.Errorf("RECREATE_CONTEXT_AFTER_FAILS must be at least 1")
	}

	switch c.Scraper.CategoryStrategy {
	case "fixed", "keywords":
	default:
		return fmt.Errorf("CATEGORY_STRATEGY must be 'fixed' or 'keywords', got %q", c.Scraper.CategoryStrategy)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationOrDefault accepts either a Go duration string ("750ms") or,
// for the *_MS knobs, a bare integer interpreted as milliseconds.
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if strings.HasSuffix(key, "_MS") {
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Millisecond
		}
	}
	return defaultValue
}
