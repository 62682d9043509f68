package normalizer

import "github.com/quietstone/shopify-catalog-scraper/internal/models"

// ResolveVariants derives canonical price and availability for a
// product. Variant-derived signals always win over page-level signals
// when variants are present: the page's add-to-cart affordance reflects
// only the default variant, not the full option space.
//
// Price: the first available variant's price, else the first variant's
// (variant prices are already minor units). Availability: true if any
// variant is available. Without variants, the display price is parsed
// and the page-level signal is used; no signal at all defaults to true.
func ResolveVariants(variants []models.Variant, pagePriceText string, pageAvailability *bool) (priceCents int, available bool) {
	if len(variants) > 0 {
		preferred := variants[0]
		for _, v := range variants {
			if v.Available {
				preferred = v
				break
			}
		}

		priceCents = preferred.PriceCents
		if priceCents == 0 {
			priceCents = PriceCents(pagePriceText)
		}

		for _, v := range variants {
			if v.Available {
				available = true
				break
			}
		}
		return priceCents, available
	}

	priceCents = PriceCents(pagePriceText)
	if pageAvailability != nil {
		return priceCents, *pageAvailability
	}
	// Ambiguous pages are assumed in stock.
	return priceCents, true
}
