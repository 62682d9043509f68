package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/quietstone/shopify-catalog-scraper/internal/api"
	"github.com/quietstone/shopify-catalog-scraper/internal/browser"
	"github.com/quietstone/shopify-catalog-scraper/internal/cache"
	"github.com/quietstone/shopify-catalog-scraper/internal/collections"
	"github.com/quietstone/shopify-catalog-scraper/internal/config"
	"github.com/quietstone/shopify-catalog-scraper/internal/database"
	"github.com/quietstone/shopify-catalog-scraper/internal/locale"
	"github.com/quietstone/shopify-catalog-scraper/internal/metrics"
	"github.com/quietstone/shopify-catalog-scraper/internal/models"
	"github.com/quietstone/shopify-catalog-scraper/internal/normalizer"
	"github.com/quietstone/shopify-catalog-scraper/internal/pipeline"
	"github.com/quietstone/shopify-catalog-scraper/internal/ratelimit"
	"github.com/quietstone/shopify-catalog-scraper/internal/scraper"
	"github.com/quietstone/shopify-catalog-scraper/internal/sitemap"
	"github.com/quietstone/shopify-catalog-scraper/pkg/logger"
)

var localeArgPattern = regexp.MustCompile(`^[a-z]{2,3}$`)

func main() {
	headless := flag.Bool("headless", true, "Run browser in headless mode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.Browser.Headless = cfg.Browser.Headless && *headless

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := database.New(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.New()

	if cfg.Status.Addr != "" {
		statusServer := api.NewServer(cfg.Status.Addr, m.Registry(), func(ctx context.Context) (any, error) {
			return db.CountProductsByLocale(ctx)
		})
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		defer statusServer.Shutdown(context.Background())
	}

	// The positional argument is either a locale code or a path to a
	// previously scraped JSON file to upsert without touching the site.
	arg := flag.Arg(0)
	if arg == "" {
		arg = locale.Default
	}

	if !localeArgPattern.MatchString(arg) {
		if err := upsertFromFile(ctx, cfg, db, arg); err != nil {
			logger.Error("file upsert failed", "file", arg, "error", err)
			os.Exit(1)
		}
		return
	}

	if !locale.Supported(arg) {
		logger.Error("unsupported locale", "locale", arg, "supported", locale.SupportedLocales())
		os.Exit(1)
	}

	if err := runCatalog(ctx, cfg, db, m, arg); err != nil {
		logger.Error("catalog run failed", "locale", arg, "error", err)
		os.Exit(1)
	}
}

func runCatalog(ctx context.Context, cfg *config.Config, db *database.DB, m *metrics.Metrics, loc string) error {
	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.UserAgent = cfg.Browser.UserAgent
	browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
	browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
	browserOpts.NavTimeout = cfg.Browser.NavTimeout
	browserOpts.DefaultTimeout = cfg.Browser.DefaultTimeout

	b, err := browser.New(browserOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer b.Close()

	visited, err := cache.NewVisitedSet(cfg.Scraper.MaxProducts * 2)
	if err != nil {
		return err
	}

	skip, err := cache.NewSkipSet(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Scraper.RescrapeAfter, loc)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer skip.Close()

	p := pipeline.New(pipeline.Options{
		Config:     cfg.Scraper,
		Pages:      b,
		Scraper:    scraper.NewProductScraper(),
		Sitemaps:   sitemap.NewReader(nil),
		Members:    collections.NewResolver(cfg.Collections.Dir),
		Stale:      db,
		Normalizer: normalizer.New(normalizer.StrategyFor(cfg.Scraper.CategoryStrategy)),
		Store:      db,
		Limiter:    ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.DelayMin, cfg.Scraper.DelayMax),
		Visited:    visited,
		Skip:       skip,
		Metrics:    m,
	})

	summary, err := p.Run(ctx, loc)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished: %d succeeded, %d failed, %d skipped in %s\n",
		summary.RunID, summary.Succeeded, summary.Failed, summary.Skipped, summary.Duration.Round(0))
	return nil
}

// upsertFromFile normalizes and persists raw products from a JSON dump,
// the offline half of a scrape that was saved to disk.
func upsertFromFile(ctx context.Context, cfg *config.Config, db *database.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	var raws []models.RawProduct
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}
	if len(raws) == 0 {
		return fmt.Errorf("input file contains no products")
	}

	norm := normalizer.New(normalizer.StrategyFor(cfg.Scraper.CategoryStrategy))
	resolver := collections.NewResolver(cfg.Collections.Dir)

	indexes := make(map[string]map[string][]string)
	rows := make([]models.NormalizedProduct, 0, len(raws))
	for _, raw := range raws {
		loc := raw.Locale
		if loc == "" || !locale.Supported(loc) {
			loc = locale.Default
		}
		if indexes[loc] == nil {
			indexes[loc] = resolver.BuildIndex(loc)
		}
		rows = append(rows, norm.Normalize(raw, loc, indexes[loc]))
	}

	for start := 0; start < len(rows); start += cfg.Scraper.BatchSize {
		end := start + cfg.Scraper.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := db.UpsertProducts(ctx, rows[start:end]); err != nil {
			return err
		}
	}

	fmt.Printf("Upserted %d products from %s\n", len(rows), path)
	return nil
}
