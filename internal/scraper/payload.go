package scraper

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

// variantPayload mirrors the storefront's embedded variant JSON.
// Fields are loosely typed because the payloads mix numbers and
// strings across themes.
type variantPayload struct {
	ID                any     `json:"id"`
	Title             string  `json:"title"`
	Option1           string  `json:"option1"`
	Price             any     `json:"price"`
	Available         bool    `json:"available"`
	SKU               string  `json:"sku"`
	InventoryQuantity float64 `json:"inventory_quantity"`
}

// isVariantArray is the shape predicate: an array whose first object
// carries id, title and a numeric price.
func isVariantArray(payload []variantPayload) bool {
	if len(payload) == 0 {
		return false
	}
	first := payload[0]
	if first.ID == nil || first.Title == "" {
		return false
	}
	_, ok := first.Price.(json.Number)
	return ok
}

// decodeVariantArray attempts to decode data as the structured variant
// payload. ok is false when the JSON does not match the variant shape.
func decodeVariantArray(data []byte) ([]models.Variant, bool) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload []variantPayload
	if err := decoder.Decode(&payload); err != nil {
		return nil, false
	}
	if !isVariantArray(payload) {
		return nil, false
	}

	variants := make([]models.Variant, 0, len(payload))
	for _, item := range payload {
		value := item.Title
		if value == "" {
			value = item.Option1
		}
		variants = append(variants, models.Variant{
			ID:                anyToString(item.ID),
			Value:             value,
			PriceCents:        numberToCents(item.Price),
			Available:         item.Available,
			SKU:               item.SKU,
			InventoryQuantity: int(item.InventoryQuantity),
		})
	}
	return variants, true
}

// backfillVariants fills price and availability of DOM-scraped variants
// by positional index from a JSON array. Returns true when data decoded
// as an array and at least one field was applied.
func backfillVariants(data []byte, variants []models.Variant) bool {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload []struct {
		Price     any   `json:"price"`
		Available *bool `json:"available"`
	}
	if err := decoder.Decode(&payload); err != nil {
		return false
	}

	applied := false
	for i := 0; i < len(variants) && i < len(payload); i++ {
		if cents := numberToCents(payload[i].Price); cents > 0 {
			variants[i].PriceCents = cents
			applied = true
		}
		if payload[i].Available != nil {
			variants[i].Available = *payload[i].Available
			applied = true
		}
	}
	return applied
}

// decodeRatingPayload reads the review widget's metafield JSON, whose
// averageRating and reviewCount may be numbers or strings.
func decodeRatingPayload(data []byte) (*float64, int, bool) {
	var payload struct {
		AverageRating any `json:"averageRating"`
		ReviewCount   any `json:"reviewCount"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, 0, false
	}

	rating := anyToFloat(payload.AverageRating)
	count := 0
	if f := anyToFloat(payload.ReviewCount); f != nil {
		count = int(*f)
	}

	if rating == nil && count == 0 {
		return nil, 0, false
	}
	return rating, count, true
}

func anyToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func anyToFloat(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func numberToCents(value any) int {
	if f := anyToFloat(value); f != nil {
		return int(*f)
	}
	return 0
}
