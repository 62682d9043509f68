// Package normalizer maps raw extracted product data into the
// persisted row shape: variant resolution, price-to-cents, HTML
// stripping, image URL normalization and collection lookup.
package normalizer

import (
	"log/slog"
	"strings"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

// Currency is fixed for the storefront.
const Currency = "USD"

type Normalizer struct {
	category CategoryStrategy
	logger   *slog.Logger
}

func New(category CategoryStrategy) *Normalizer {
	if category == nil {
		category = DefaultFixedCategory()
	}
	return &Normalizer{
		category: category,
		logger:   slog.Default().With("component", "normalizer"),
	}
}

// Normalize transforms a raw product into its persisted row.
// collections maps slug to the collection names it belongs to for the
// target locale; a missing slug yields an empty set.
func (n *Normalizer) Normalize(raw models.RawProduct, loc string, collections map[string][]string) models.NormalizedProduct {
	Sanitize(&raw)

	priceCents, available := ResolveVariants(raw.Variants, raw.PriceText, raw.Availability)

	cleanDescription := CleanHTML(raw.DescriptionHTML)
	category, subCategory := n.category.Categorize(raw.Title, cleanDescription)

	memberOf := collections[raw.ID]
	if memberOf == nil {
		memberOf = []string{}
	}

	var reviewCount *int
	if raw.ReviewCount > 0 {
		rc := raw.ReviewCount
		reviewCount = &rc
	}

	row := models.NormalizedProduct{
		Slug:             raw.ID,
		Name:             raw.Title,
		Description:      cleanDescription,
		Category:         category,
		SubCategory:      subCategory,
		PriceCents:       priceCents,
		Currency:         Currency,
		ImageURL:         firstImageURL(raw.Images),
		AffiliateURL:     raw.URL,
		Locale:           loc,
		Features:         raw.FeaturesHTML,
		Dimensions:       raw.DimensionsHTML,
		Rating:           raw.Rating,
		ReviewCount:      reviewCount,
		Availability:     available,
		Collections:      memberOf,
		CleanDescription: cleanDescription,
		CleanFeatures:    CleanHTML(raw.FeaturesHTML),
	}

	n.logger.Debug("normalized product",
		"slug", row.Slug,
		"locale", row.Locale,
		"price_cents", row.PriceCents,
		"available", row.Availability,
		"collections", len(row.Collections))

	return row
}

// firstImageURL returns the first image's URL, prefixing scheme-relative
// URLs with https:.
func firstImageURL(images []models.Image) string {
	if len(images) == 0 {
		return ""
	}
	u := images[0].URL
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
