package collections

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/quietstone/shopify-catalog-scraper/internal/locale"
	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

// Whitelist is the fixed set of catalog collections worth crawling.
// Everything else on the storefront is a price tier, sale bucket or
// seasonal campaign.
var Whitelist = []string{
	"https://consciousitems.com/collections/anklets",
	"https://consciousitems.com/collections/bracelet",
	"https://consciousitems.com/collections/demi-fine-silver-jewelry",
	"https://consciousitems.com/collections/earrings",
	"https://consciousitems.com/collections/healing-necklace",
	"https://consciousitems.com/collections/rings",
	"https://consciousitems.com/collections/carvings-pyramids",
	"https://consciousitems.com/collections/crystals",
	"https://consciousitems.com/collections/crystals-for-car-protection",
	"https://consciousitems.com/collections/healing-crystal-lamps",
	"https://consciousitems.com/collections/crystal-cleansing",
}

const (
	maxLoadMoreClicks   = 10
	maxScrollAttempts   = 50
	maxNoChangeScrolls  = 10
	interCollectionWait = 5 * time.Second
)

var advertisedCountPattern = regexp.MustCompile(`(?i)(\d+)\s+products?`)

// PageSource hands out fresh browser pages.
type PageSource interface {
	NewPage() (playwright.Page, error)
}

// Crawler walks collection pages and writes one membership file per
// collection. Collection grids load lazily, so each page is scrolled
// and load-more buttons clicked until the product count stops growing.
type Crawler struct {
	pages    PageSource
	resolver *Resolver
	logger   *slog.Logger
}

func NewCrawler(pages PageSource, resolver *Resolver) *Crawler {
	return &Crawler{
		pages:    pages,
		resolver: resolver,
		logger:   slog.Default().With("component", "collection-crawler"),
	}
}

// Crawl visits every whitelisted collection URL and persists its
// membership file. Per-collection failures are logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, urls []string) error {
	page, err := c.pages.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	seen := make(map[string]bool)
	crawled := 0
	for _, rawURL := range urls {
		collectionURL := strings.TrimSpace(rawURL)
		if collectionURL == "" || seen[collectionURL] {
			continue
		}
		seen[collectionURL] = true

		if err := ctx.Err(); err != nil {
			return err
		}

		loc, ok := locale.Classify(collectionURL)
		if !ok {
			loc = locale.Default
		}

		if err := c.crawlCollection(ctx, page, collectionURL, loc); err != nil {
			c.logger.Error("collection crawl failed", "url", collectionURL, "error", err)
			continue
		}
		crawled++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interCollectionWait):
		}
	}

	if crawled == 0 {
		return fmt.Errorf("no collections crawled")
	}
	c.logger.Info("collection crawl finished", "crawled", crawled)
	return nil
}

func (c *Crawler) crawlCollection(ctx context.Context, page playwright.Page, collectionURL, loc string) error {
	c.logger.Info("crawling collection", "url", collectionURL, "locale", loc)

	if _, err := page.Goto(collectionURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(60000),
	}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	page.WaitForTimeout(2000)

	advertised := c.advertisedCount(page)
	if c.hasLoadMore(page) {
		c.clickLoadMore(page)
	}
	c.scrollUntilStable(page)

	productURLs := c.extractProductURLs(page)

	// The grid sometimes lags the advertised count; keep scrolling a
	// bounded number of extra rounds until it catches up.
	for attempt := 0; advertised > 0 && len(productURLs) < advertised && attempt < 10; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		previous := len(productURLs)
		c.scrollUntilStable(page)
		productURLs = c.extractProductURLs(page)
		if len(productURLs) == previous {
			page.WaitForTimeout(5000)
		}
	}

	if len(productURLs) == 0 {
		return fmt.Errorf("no products extracted (advertised %d)", advertised)
	}
	if advertised > 0 && len(productURLs) != advertised {
		c.logger.Warn("extracted count differs from advertised",
			"url", collectionURL, "extracted", len(productURLs), "advertised", advertised)
	}

	slug := collectionSlug(collectionURL)
	title := c.collectionTitle(page)

	entries := make([]models.MembershipEntry, 0, len(productURLs))
	for _, productURL := range productURLs {
		entries = append(entries, models.MembershipEntry{
			URL:             productURL,
			Collection:      collectionURL,
			Language:        loc,
			CollectionTitle: title,
			Slug:            slug,
		})
	}

	return c.resolver.WriteMembershipFile(loc, slug, entries)
}

// advertisedCount reads the product count the collection header shows.
func (c *Crawler) advertisedCount(page playwright.Page) int {
	element, err := page.QuerySelector("#ProductCount.product-count__text")
	if err != nil || element == nil {
		return 0
	}
	text, err := element.TextContent()
	if err != nil {
		return 0
	}
	match := advertisedCountPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return 0
	}
	count, _ := strconv.Atoi(match[1])
	return count
}

func (c *Crawler) hasLoadMore(page playwright.Page) bool {
	result, err := page.Evaluate(`() => {
		if (document.querySelector('button[data-load-more], .load-more, .show-more')) return true;
		const buttons = Array.from(document.querySelectorAll('button, a'));
		return buttons.some(btn => {
			const text = btn.textContent.toLowerCase();
			return text.includes('show more') || text.includes('load more') || text.includes('view more');
		});
	}`)
	if err != nil {
		return false
	}
	found, _ := result.(bool)
	return found
}

func (c *Crawler) clickLoadMore(page playwright.Page) {
	for attempt := 0; attempt < maxLoadMoreClicks; attempt++ {
		result, err := page.Evaluate(`() => {
			const buttons = Array.from(document.querySelectorAll('button, a'));
			const btn = buttons.find(b => {
				const text = b.textContent.toLowerCase();
				return text.includes('show more') || text.includes('load more') || text.includes('view more');
			});
			if (!btn) return false;
			btn.click();
			return true;
		}`)
		if err != nil {
			return
		}
		if clicked, _ := result.(bool); !clicked {
			return
		}
		page.WaitForTimeout(1500)
	}
}

// scrollUntilStable scrolls the page in small steps to trigger lazy
// loading, stopping once the grid's card count stays flat.
func (c *Crawler) scrollUntilStable(page playwright.Page) {
	previousCount := 0
	noChangeCount := 0

	for attempt := 0; attempt < maxScrollAttempts; attempt++ {
		if _, err := page.Evaluate(`() => new Promise(resolve => {
			const step = 300;
			const interval = setInterval(() => {
				window.scrollBy(0, step);
				if (window.scrollY >= document.body.scrollHeight - window.innerHeight) {
					clearInterval(interval);
					resolve();
				}
			}, 100);
		})`); err != nil {
			return
		}
		page.WaitForTimeout(3000)

		count := c.gridCardCount(page)
		if count == previousCount {
			noChangeCount++
			if noChangeCount >= 3 {
				// Lazy loaders sometimes need an overshoot past the
				// current bottom before they fetch the next chunk.
				page.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight + 1000)`)
				page.WaitForTimeout(2000)
				if refreshed := c.gridCardCount(page); refreshed > count {
					count = refreshed
					noChangeCount = 0
				}
			}
		} else {
			noChangeCount = 0
		}
		if noChangeCount >= maxNoChangeScrolls {
			break
		}
		previousCount = count
	}

	page.Evaluate(`() => window.scrollTo(0, 0)`)
}

func (c *Crawler) gridCardCount(page playwright.Page) int {
	result, err := page.Evaluate(`() => {
		const grid = document.querySelector('#ProductGridContainer');
		if (!grid) return 0;
		return grid.querySelectorAll('.card-wrapper, .product-item, .grid__item').length;
	}`)
	if err != nil {
		return 0
	}
	switch v := result.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// extractProductURLs pulls product links out of the collection grid,
// de-duplicated in document order, falling back to a page-wide link
// scan when the grid is missing.
func (c *Crawler) extractProductURLs(page playwright.Page) []string {
	elements, err := page.QuerySelectorAll(`#ProductGridContainer a[href*="/products/"]`)
	if err != nil || len(elements) == 0 {
		elements, err = page.QuerySelectorAll(`a[href*="/products/"]`)
		if err != nil {
			return nil
		}
	}

	seen := make(map[string]bool)
	var urls []string
	for _, element := range elements {
		href, _ := element.GetAttribute("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.Contains(href, "#") {
			continue
		}
		if strings.HasPrefix(href, "/") {
			href = "https://" + locale.DomainToken + href
		}
		if !strings.Contains(href, "/products/") || seen[href] {
			continue
		}
		seen[href] = true
		urls = append(urls, href)
	}
	return urls
}

func (c *Crawler) collectionTitle(page playwright.Page) string {
	selectors := []string{
		".collection-hero__title",
		".collection__title",
		"h1",
	}
	for _, selector := range selectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		if text, err := element.TextContent(); err == nil {
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func collectionSlug(collectionURL string) string {
	parts := strings.Split(strings.TrimRight(collectionURL, "/"), "/")
	if len(parts) == 0 {
		return "unknown"
	}
	slug := parts[len(parts)-1]
	if slug == "" {
		return "unknown"
	}
	return slug
}
