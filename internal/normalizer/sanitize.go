package normalizer

import (
	"strings"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

// Sanitize cleans a raw product in place before normalization: control
// characters are stripped from string fields, the rating is dropped
// when outside [0, 5] and negative review counts are zeroed.
func Sanitize(raw *models.RawProduct) {
	raw.ID = stripControl(raw.ID, false)
	raw.Title = stripControl(raw.Title, false)
	raw.PriceText = stripControl(raw.PriceText, false)
	raw.OriginalPriceText = stripControl(raw.OriginalPriceText, false)
	raw.SKU = stripControl(raw.SKU, false)
	raw.Category = stripControl(raw.Category, false)

	// HTML fields keep their line breaks.
	raw.DescriptionHTML = stripControl(raw.DescriptionHTML, true)
	raw.FeaturesHTML = stripControl(raw.FeaturesHTML, true)
	raw.DimensionsHTML = stripControl(raw.DimensionsHTML, true)
	raw.MaterialsHTML = stripControl(raw.MaterialsHTML, true)

	if raw.Rating != nil && (*raw.Rating < 0 || *raw.Rating > 5) {
		raw.Rating = nil
	}
	if raw.ReviewCount < 0 {
		raw.ReviewCount = 0
	}

	if raw.Images == nil {
		raw.Images = []models.Image{}
	}
	if raw.Variants == nil {
		raw.Variants = []models.Variant{}
	}
}

func stripControl(s string, keepNewlines bool) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if keepNewlines && (r == '\n' || r == '\r') {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F) || r == '�' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
