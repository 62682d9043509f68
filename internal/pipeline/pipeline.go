// Package pipeline orchestrates a catalog run: sitemap discovery,
// per-page scraping with retries, normalization and batched persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/quietstone/shopify-catalog-scraper/internal/cache"
	"github.com/quietstone/shopify-catalog-scraper/internal/config"
	"github.com/quietstone/shopify-catalog-scraper/internal/locale"
	"github.com/quietstone/shopify-catalog-scraper/internal/metrics"
	"github.com/quietstone/shopify-catalog-scraper/internal/models"
	"github.com/quietstone/shopify-catalog-scraper/internal/normalizer"
	"github.com/quietstone/shopify-catalog-scraper/internal/ratelimit"
	"github.com/quietstone/shopify-catalog-scraper/internal/sitemap"
)

// PageFactory hands out browser pages and can rebuild the browsing
// context after repeated failures. Pages from before a rebuild are
// unusable afterwards.
type PageFactory interface {
	NewPage() (playwright.Page, error)
	RecreateContext() error
}

// PageScraper extracts a raw product from a single page visit.
type PageScraper interface {
	Scrape(page playwright.Page, url, loc string, sitemapImages []models.Image) (*models.RawProduct, error)
}

// SitemapSource lists leaf sitemaps and their URL entries.
type SitemapSource interface {
	FetchIndex(ctx context.Context, indexURL string) ([]string, error)
	FetchURLSet(ctx context.Context, leafURL string) ([]models.SitemapEntry, error)
}

// MembershipIndexer resolves slug to collection names for a locale.
type MembershipIndexer interface {
	BuildIndex(loc string) map[string][]string
}

// StaleLister reports slugs whose stored rows predate a cutoff.
type StaleLister interface {
	LastScrapedBefore(ctx context.Context, locale string, cutoff time.Time) ([]string, error)
}

type Pipeline struct {
	cfg        config.ScraperConfig
	pages      PageFactory
	scraper    PageScraper
	sitemaps   SitemapSource
	members    MembershipIndexer
	stale      StaleLister
	normalizer *normalizer.Normalizer
	buffer     *Buffer
	limiter    ratelimit.RateLimiter
	visited    *cache.VisitedSet
	skip       *cache.SkipSet
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Options struct {
	Config     config.ScraperConfig
	Pages      PageFactory
	Scraper    PageScraper
	Sitemaps   SitemapSource
	Members    MembershipIndexer
	Stale      StaleLister
	Normalizer *normalizer.Normalizer
	Store      ProductStore
	Limiter    ratelimit.RateLimiter
	Visited    *cache.VisitedSet
	Skip       *cache.SkipSet
	Metrics    *metrics.Metrics
}

func New(opts Options) *Pipeline {
	norm := opts.Normalizer
	if norm == nil {
		norm = normalizer.New(nil)
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewSimpleRateLimiter(opts.Config.DelayMin, opts.Config.DelayMax)
	}

	return &Pipeline{
		cfg:        opts.Config,
		pages:      opts.Pages,
		scraper:    opts.Scraper,
		sitemaps:   opts.Sitemaps,
		members:    opts.Members,
		stale:      opts.Stale,
		normalizer: norm,
		buffer:     NewBuffer(opts.Store, opts.Config.BatchSize, opts.Metrics),
		limiter:    limiter,
		visited:    opts.Visited,
		skip:       opts.Skip,
		metrics:    opts.Metrics,
		logger:     slog.Default().With("component", "pipeline"),
	}
}

// Summary reports what a run did.
type Summary struct {
	RunID     string
	Locale    string
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Run scrapes the full product catalog for one locale.
func (p *Pipeline) Run(ctx context.Context, loc string) (*Summary, error) {
	if !locale.Supported(loc) {
		return nil, fmt.Errorf("unsupported locale %q", loc)
	}

	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), Locale: loc}
	logger := p.logger.With("run_id", summary.RunID, "locale", loc)

	entries, err := p.discoverProducts(ctx, loc, logger)
	if err != nil {
		return nil, err
	}
	entries = p.prioritizeStale(ctx, loc, entries, logger)
	if len(entries) > p.cfg.MaxProducts {
		logger.Info("capping product list", "discovered", len(entries), "cap", p.cfg.MaxProducts)
		entries = entries[:p.cfg.MaxProducts]
	}

	var collectionIndex map[string][]string
	if p.members != nil {
		collectionIndex = p.members.BuildIndex(loc)
	}

	page, err := p.pages.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open initial page: %w", err)
	}
	defer func() {
		if page != nil {
			page.Close()
		}
	}()

	logger.Info("starting catalog run", "products", len(entries))

	consecutiveFailures := 0
	visitsOnPage := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			break
		}

		slug := normalizer.SlugFromURL(entry.URL)
		if p.visited != nil && p.visited.MarkVisited(entry.URL) {
			summary.Skipped++
			p.countSkip(loc)
			continue
		}
		if p.skip.ShouldSkip(ctx, slug) {
			logger.Debug("recently scraped, skipping", "slug", slug)
			summary.Skipped++
			p.countSkip(loc)
			continue
		}

		// Long-lived pages accumulate state; rotate periodically.
		if p.cfg.RotatePageEvery > 0 && visitsOnPage >= p.cfg.RotatePageEvery {
			if page != nil {
				page.Close()
			}
			if page, err = p.pages.NewPage(); err != nil {
				return nil, fmt.Errorf("failed to rotate page: %w", err)
			}
			visitsOnPage = 0
		}

		summary.Processed++
		visitsOnPage++
		if p.metrics != nil {
			p.metrics.ProductsProcessed.WithLabelValues(loc).Inc()
		}

		visitStart := time.Now()
		var raw *models.RawProduct
		err = Retry(ctx, p.cfg.MaxRetriesPerProduct, func(attempt int) error {
			if attempt > 1 && p.metrics != nil {
				p.metrics.RetriesTotal.WithLabelValues(loc).Inc()
			}
			scraped, scrapeErr := p.scraper.Scrape(page, entry.URL, loc, entry.Images)
			if scrapeErr != nil {
				return scrapeErr
			}
			raw = scraped
			return nil
		})

		if err != nil {
			logger.Warn("giving up on product", "url", entry.URL, "error", err)
			summary.Failed++
			consecutiveFailures++
			p.limiter.RecordError()
			if p.metrics != nil {
				p.metrics.ProductsFailed.WithLabelValues(loc).Inc()
			}

			if consecutiveFailures >= p.cfg.RecreateContextAfterFails {
				logger.Warn("failure streak hit threshold, recreating context", "failures", consecutiveFailures)
				if p.metrics != nil {
					p.metrics.ContextRecreations.Inc()
				}
				if err := p.pages.RecreateContext(); err != nil {
					return nil, fmt.Errorf("failed to recreate context: %w", err)
				}
				if page, err = p.pages.NewPage(); err != nil {
					return nil, fmt.Errorf("failed to open page after context recreation: %w", err)
				}
				visitsOnPage = 0
				consecutiveFailures = 0
			}
			continue
		}
		consecutiveFailures = 0
		p.limiter.RecordSuccess()

		row := p.normalizer.Normalize(*raw, loc, collectionIndex)
		if err := p.buffer.Add(ctx, row); err != nil {
			logger.Error("persist failed", "slug", row.Slug, "error", err)
		}
		p.skip.MarkScraped(ctx, slug)

		summary.Succeeded++
		if p.metrics != nil {
			p.metrics.ProductsSucceeded.WithLabelValues(loc).Inc()
			p.metrics.ScrapeDuration.WithLabelValues(loc).Observe(time.Since(visitStart).Seconds())
		}

		if err := p.limiter.Wait(ctx); err != nil {
			break
		}
	}

	if err := p.buffer.Flush(ctx); err != nil {
		logger.Error("final flush failed", "error", err)
	}

	summary.Duration = time.Since(start)
	logger.Info("catalog run finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration.Round(time.Millisecond))

	return summary, nil
}

// discoverProducts walks the sitemap index and returns the product page
// entries for the target locale, in sitemap order.
func (p *Pipeline) discoverProducts(ctx context.Context, loc string, logger *slog.Logger) ([]models.SitemapEntry, error) {
	leaves, err := p.sitemaps.FetchIndex(ctx, p.cfg.SitemapURL)
	if err != nil {
		return nil, fmt.Errorf("sitemap discovery failed: %w", err)
	}

	var entries []models.SitemapEntry
	for _, leaf := range leaves {
		if !strings.Contains(leaf, sitemap.ProductLeafToken) {
			continue
		}
		leafLocale, ok := locale.Classify(leaf)
		if !ok || leafLocale != loc {
			continue
		}

		urlset, err := p.sitemaps.FetchURLSet(ctx, leaf)
		if err != nil {
			logger.Warn("skipping unreadable leaf sitemap", "url", leaf, "error", err)
			continue
		}
		for _, entry := range urlset {
			if strings.Contains(entry.URL, "/products/") {
				entries = append(entries, entry)
			}
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no product pages found for locale %q", loc)
	}

	logger.Info("discovered product pages", "count", len(entries))
	return entries, nil
}

// prioritizeStale moves entries whose stored rows predate the rescrape
// window to the front, so they make the cut when the list is capped.
// Relative order within each group is preserved.
func (p *Pipeline) prioritizeStale(ctx context.Context, loc string, entries []models.SitemapEntry, logger *slog.Logger) []models.SitemapEntry {
	if p.stale == nil || p.cfg.RescrapeAfter <= 0 {
		return entries
	}

	slugs, err := p.stale.LastScrapedBefore(ctx, loc, time.Now().Add(-p.cfg.RescrapeAfter))
	if err != nil {
		logger.Warn("stale lookup failed, keeping sitemap order", "error", err)
		return entries
	}
	if len(slugs) == 0 {
		return entries
	}

	staleSet := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		staleSet[slug] = true
	}

	ordered := make([]models.SitemapEntry, 0, len(entries))
	var rest []models.SitemapEntry
	for _, entry := range entries {
		if staleSet[normalizer.SlugFromURL(entry.URL)] {
			ordered = append(ordered, entry)
		} else {
			rest = append(rest, entry)
		}
	}

	logger.Info("prioritized stale products", "stale", len(ordered))
	return append(ordered, rest...)
}

func (p *Pipeline) countSkip(loc string) {
	if p.metrics != nil {
		p.metrics.ProductsSkipped.WithLabelValues(loc).Inc()
	}
}
