package scraper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
	"github.com/quietstone/shopify-catalog-scraper/internal/normalizer"
)

// ProductScraper turns a rendered product page into a RawProduct.
type ProductScraper struct {
	extractor *Extractor
	logger    *slog.Logger
}

func NewProductScraper() *ProductScraper {
	return &ProductScraper{
		extractor: NewExtractor(),
		logger:    slog.Default().With("component", "scraper"),
	}
}

// Scrape navigates to the product page and runs the full extraction
// pass. Navigation and the initial selector wait are the only fatal
// failures; individual field extractors degrade to empty defaults.
func (s *ProductScraper) Scrape(page playwright.Page, productURL, loc string, sitemapImages []models.Image) (*models.RawProduct, error) {
	s.logger.Debug("visiting product page", "url", productURL)

	if _, err := page.Goto(productURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(60000),
	}); err != nil {
		return nil, fmt.Errorf("navigation failed for %s: %w", productURL, err)
	}

	if _, err := page.WaitForSelector("h1, .product__title, .product-title", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(30000),
	}); err != nil {
		return nil, fmt.Errorf("product page never rendered for %s: %w", productURL, err)
	}

	// Give deferred scripts (variant JSON, review widget) a moment.
	page.WaitForTimeout(2000)

	raw := &models.RawProduct{
		ID:        normalizer.SlugFromURL(productURL),
		URL:       productURL,
		Locale:    loc,
		ScrapedAt: time.Now().UTC(),
	}

	raw.Title = s.extractor.Title(page)
	raw.PriceText, raw.OriginalPriceText = s.extractor.PriceInfo(page)
	raw.FeaturesHTML = s.extractor.Features(page)
	raw.DescriptionHTML = s.extractor.Description(page)
	raw.DimensionsHTML, raw.MaterialsHTML = s.extractor.Specifications(page)
	raw.Variants = s.extractor.Variants(page)
	raw.Images = s.extractor.Images(page, sitemapImages)
	raw.SKU = s.extractor.SKU(page)
	raw.Category = s.extractor.Category(page)
	raw.Rating, raw.ReviewCount = s.extractor.RatingInfo(page)

	// Variant-derived availability wins; the page signal is only
	// consulted when the product has no variants.
	if len(raw.Variants) == 0 {
		raw.Availability = s.extractor.Availability(page)
	}

	s.logger.Info("scraped product",
		"slug", raw.ID,
		"title", raw.Title,
		"variants", len(raw.Variants),
		"images", len(raw.Images))

	return raw, nil
}
