package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietstone/shopify-catalog-scraper/internal/cache"
	"github.com/quietstone/shopify-catalog-scraper/internal/config"
	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

type fakeStore struct {
	batches [][]models.NormalizedProduct
	err     error
}

func (s *fakeStore) UpsertProducts(ctx context.Context, products []models.NormalizedProduct) error {
	batch := make([]models.NormalizedProduct, len(products))
	copy(batch, products)
	s.batches = append(s.batches, batch)
	return s.err
}

func (s *fakeStore) total() int {
	n := 0
	for _, batch := range s.batches {
		n += len(batch)
	}
	return n
}

type fakePages struct {
	newPageCalls  int
	recreateCalls int
}

func (p *fakePages) NewPage() (playwright.Page, error) {
	p.newPageCalls++
	return nil, nil
}

func (p *fakePages) RecreateContext() error {
	p.recreateCalls++
	return nil
}

// fakeScraper fails each URL the configured number of times before
// succeeding.
type fakeScraper struct {
	failuresPerURL map[string]int
	attempts       map[string]int
}

func (s *fakeScraper) Scrape(page playwright.Page, url, loc string, images []models.Image) (*models.RawProduct, error) {
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[url]++
	if s.attempts[url] <= s.failuresPerURL[url] {
		return nil, errors.New("timeout waiting for selector")
	}
	return &models.RawProduct{
		ID:        slugOf(url),
		URL:       url,
		Locale:    loc,
		Title:     "Product " + slugOf(url),
		PriceText: "$24.95",
		Images:    images,
	}, nil
}

func slugOf(url string) string {
	return url[len("https://consciousitems.com/products/"):]
}

type fakeSitemaps struct {
	leaves  []string
	entries map[string][]models.SitemapEntry
}

func (s *fakeSitemaps) FetchIndex(ctx context.Context, indexURL string) ([]string, error) {
	return s.leaves, nil
}

func (s *fakeSitemaps) FetchURLSet(ctx context.Context, leafURL string) ([]models.SitemapEntry, error) {
	entries, ok := s.entries[leafURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return entries, nil
}

type fakeLimiter struct {
	successes int
	errors    int
}

func (l *fakeLimiter) Wait(ctx context.Context) error  { return nil }
func (l *fakeLimiter) SetDelay(min, max time.Duration) {}
func (l *fakeLimiter) RecordSuccess()                  { l.successes++ }
func (l *fakeLimiter) RecordError()                    { l.errors++ }

type fakeStale struct {
	slugs []string
	err   error
}

func (s *fakeStale) LastScrapedBefore(ctx context.Context, locale string, cutoff time.Time) ([]string, error) {
	return s.slugs, s.err
}

func productEntries(n int) []models.SitemapEntry {
	entries := make([]models.SitemapEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, models.SitemapEntry{
			URL: fmt.Sprintf("https://consciousitems.com/products/item-%02d", i),
		})
	}
	return entries
}

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		SitemapURL:                "https://consciousitems.com/sitemap.xml",
		MaxProducts:               250,
		BatchSize:                 10,
		RotatePageEvery:           20,
		MaxRetriesPerProduct:      3,
		DelayMin:                  time.Millisecond,
		DelayMax:                  2 * time.Millisecond,
		RecreateContextAfterFails: 5,
	}
}

func newTestPipeline(cfg config.ScraperConfig, store ProductStore, pages PageFactory, scraper PageScraper, sitemaps SitemapSource) *Pipeline {
	return New(Options{
		Config:   cfg,
		Pages:    pages,
		Scraper:  scraper,
		Sitemaps: sitemaps,
		Store:    store,
	})
}

func singleLeafSitemaps(entries []models.SitemapEntry) *fakeSitemaps {
	leaf := "https://consciousitems.com/sitemap_products_1.xml"
	return &fakeSitemaps{
		leaves:  []string{leaf, "https://consciousitems.com/sitemap_pages_1.xml"},
		entries: map[string][]models.SitemapEntry{leaf: entries},
	}
}

func TestRunScrapesWholeCatalog(t *testing.T) {
	store := &fakeStore{}
	scraper := &fakeScraper{}
	p := newTestPipeline(testConfig(), store, &fakePages{}, scraper, singleLeafSitemaps(productEntries(12)))

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Processed)
	assert.Equal(t, 12, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 12, store.total())
	// 10 at capacity plus the final flush of 2.
	assert.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 10)
	assert.Len(t, store.batches[1], 2)
}

func TestRunRetriesBeforeSucceeding(t *testing.T) {
	entries := productEntries(3)
	scraper := &fakeScraper{failuresPerURL: map[string]int{
		entries[1].URL: 2,
	}}
	store := &fakeStore{}
	p := newTestPipeline(testConfig(), store, &fakePages{}, scraper, singleLeafSitemaps(entries))

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 3, scraper.attempts[entries[1].URL])
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	entries := productEntries(2)
	scraper := &fakeScraper{failuresPerURL: map[string]int{
		entries[0].URL: 99,
	}}
	store := &fakeStore{}
	p := newTestPipeline(testConfig(), store, &fakePages{}, scraper, singleLeafSitemaps(entries))

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, scraper.attempts[entries[0].URL])
	assert.Equal(t, 1, store.total())
}

func TestRunRecreatesContextAfterFailureStreak(t *testing.T) {
	entries := productEntries(12)
	failures := make(map[string]int)
	// First five products fail outright, the rest succeed.
	for i := 0; i < 5; i++ {
		failures[entries[i].URL] = 99
	}
	scraper := &fakeScraper{failuresPerURL: failures}
	pages := &fakePages{}
	cfg := testConfig()
	cfg.MaxRetriesPerProduct = 1
	p := newTestPipeline(cfg, &fakeStore{}, pages, scraper, singleLeafSitemaps(entries))

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Failed)
	assert.Equal(t, 7, summary.Succeeded)
	assert.Equal(t, 1, pages.recreateCalls)
	// Initial page plus the post-recreation page.
	assert.Equal(t, 2, pages.newPageCalls)
}

func TestRunResetsFailureStreakOnSuccess(t *testing.T) {
	entries := productEntries(10)
	failures := make(map[string]int)
	// Alternating failures never reach the streak threshold.
	for i := 0; i < 10; i += 2 {
		failures[entries[i].URL] = 99
	}
	scraper := &fakeScraper{failuresPerURL: failures}
	pages := &fakePages{}
	cfg := testConfig()
	cfg.MaxRetriesPerProduct = 1
	cfg.RecreateContextAfterFails = 3
	p := newTestPipeline(cfg, &fakeStore{}, pages, scraper, singleLeafSitemaps(entries))

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Failed)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Zero(t, pages.recreateCalls)
}

func TestRunRotatesPages(t *testing.T) {
	pages := &fakePages{}
	cfg := testConfig()
	cfg.RotatePageEvery = 5
	p := newTestPipeline(cfg, &fakeStore{}, pages, &fakeScraper{}, singleLeafSitemaps(productEntries(12)))

	_, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	// Initial page plus rotations after products 5 and 10.
	assert.Equal(t, 3, pages.newPageCalls)
}

func TestRunCapsProductCount(t *testing.T) {
	cfg := testConfig()
	cfg.MaxProducts = 4
	store := &fakeStore{}
	p := newTestPipeline(cfg, store, &fakePages{}, &fakeScraper{}, singleLeafSitemaps(productEntries(9)))

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 4, store.total())
}

func TestRunSkipsVisitedDuplicates(t *testing.T) {
	entries := productEntries(3)
	entries = append(entries, entries[0])
	visited, err := cache.NewVisitedSet(16)
	require.NoError(t, err)

	store := &fakeStore{}
	p := New(Options{
		Config:   testConfig(),
		Pages:    &fakePages{},
		Scraper:  &fakeScraper{},
		Sitemaps: singleLeafSitemaps(entries),
		Store:    store,
		Visited:  visited,
	})

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunFiltersLeavesByLocale(t *testing.T) {
	enLeaf := "https://consciousitems.com/sitemap_products_1.xml"
	deLeaf := "https://consciousitems.com/de/sitemap_products_1.xml"
	sitemaps := &fakeSitemaps{
		leaves: []string{enLeaf, deLeaf},
		entries: map[string][]models.SitemapEntry{
			enLeaf: productEntries(2),
			deLeaf: {{URL: "https://consciousitems.com/products/nur-deutsch"}},
		},
	}

	store := &fakeStore{}
	p := newTestPipeline(testConfig(), store, &fakePages{}, &fakeScraper{}, sitemaps)

	summary, err := p.Run(context.Background(), "de")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, store.total())
	assert.Equal(t, "de", store.batches[0][0].Locale)
}

func TestRunReportsOutcomesToLimiter(t *testing.T) {
	entries := productEntries(5)
	scraper := &fakeScraper{failuresPerURL: map[string]int{
		entries[1].URL: 99,
		entries[3].URL: 99,
	}}
	limiter := &fakeLimiter{}
	cfg := testConfig()
	cfg.MaxRetriesPerProduct = 1
	p := New(Options{
		Config:   cfg,
		Pages:    &fakePages{},
		Scraper:  scraper,
		Sitemaps: singleLeafSitemaps(entries),
		Store:    &fakeStore{},
		Limiter:  limiter,
	})

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, summary.Succeeded, limiter.successes)
	assert.Equal(t, summary.Failed, limiter.errors)
	assert.Equal(t, 3, limiter.successes)
	assert.Equal(t, 2, limiter.errors)
}

func TestRunPrioritizesStaleProducts(t *testing.T) {
	entries := productEntries(6)
	stale := &fakeStale{slugs: []string{slugOf(entries[4].URL), slugOf(entries[5].URL)}}
	store := &fakeStore{}
	cfg := testConfig()
	cfg.MaxProducts = 3
	cfg.RescrapeAfter = 24 * time.Hour
	p := New(Options{
		Config:   cfg,
		Pages:    &fakePages{},
		Scraper:  &fakeScraper{},
		Sitemaps: singleLeafSitemaps(entries),
		Store:    store,
		Stale:    stale,
	})

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Succeeded)

	// Stale rows jump ahead of the cap; sitemap order fills the rest.
	require.Equal(t, 3, store.total())
	var slugs []string
	for _, batch := range store.batches {
		for _, row := range batch {
			slugs = append(slugs, row.Slug)
		}
	}
	assert.Equal(t, []string{"item-04", "item-05", "item-00"}, slugs)
}

func TestRunKeepsOrderWhenStaleLookupFails(t *testing.T) {
	entries := productEntries(3)
	stale := &fakeStale{err: errors.New("connection refused")}
	store := &fakeStore{}
	cfg := testConfig()
	cfg.RescrapeAfter = 24 * time.Hour
	p := New(Options{
		Config:   cfg,
		Pages:    &fakePages{},
		Scraper:  &fakeScraper{},
		Sitemaps: singleLeafSitemaps(entries),
		Store:    store,
		Stale:    stale,
	})

	summary, err := p.Run(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 3, store.total())
	assert.Equal(t, "item-00", store.batches[0][0].Slug)
}

func TestRunRejectsUnsupportedLocale(t *testing.T) {
	p := newTestPipeline(testConfig(), &fakeStore{}, &fakePages{}, &fakeScraper{}, singleLeafSitemaps(productEntries(1)))

	_, err := p.Run(context.Background(), "xx")
	assert.Error(t, err)
}

func TestRunFailsWhenNoProductsDiscovered(t *testing.T) {
	sitemaps := &fakeSitemaps{leaves: []string{"https://consciousitems.com/sitemap_pages_1.xml"}}
	p := newTestPipeline(testConfig(), &fakeStore{}, &fakePages{}, &fakeScraper{}, sitemaps)

	_, err := p.Run(context.Background(), "en")
	assert.Error(t, err)
}
