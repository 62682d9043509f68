// Package scraper extracts product data from rendered storefront
// pages. Every field extractor tries an ordered list of selector
// strategies and falls back to a safe default; extraction failures are
// never fatal to the pipeline, only to that one field.
package scraper

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

var (
	dollarPricePattern = regexp.MustCompile(`\$(\d+\.?\d*)`)
	decimalPattern     = regexp.MustCompile(`(\d+\.?\d*)`)
	integerPattern     = regexp.MustCompile(`(\d+)`)
)

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor() *Extractor {
	return &Extractor{
		logger: slog.Default().With("component", "extractor"),
	}
}

// Title returns the first non-empty text among the title selectors.
func (e *Extractor) Title(page playwright.Page) string {
	selectors := []string{
		"h1",
		".product-title",
		"[data-product-title]",
		"title",
		".product__title",
	}
	return e.firstText(page, selectors)
}

// PriceInfo extracts the current and compare-at display prices. Only
// text containing a $-prefixed decimal counts; the numeric capture is
// re-rendered as "$<amount>".
func (e *Extractor) PriceInfo(page playwright.Page) (price, originalPrice string) {
	priceSelectors := []string{
		".price__sale .price__current",
		".price__regular .price__current",
		".price__current",
		".price",
		"[data-price]",
		".product-price",
	}
	price = e.firstDollarPrice(page, priceSelectors)

	originalSelectors := []string{
		".price__compare",
		".price__regular .price__compare",
		".price__sale .price__compare",
	}
	originalPrice = e.firstDollarPrice(page, originalSelectors)

	return price, originalPrice
}

// Description returns the inner HTML of the first matching container,
// preserving markup for downstream stripping.
func (e *Extractor) Description(page playwright.Page) string {
	selectors := []string{
		".accordion__content.rte",
		".product-description",
		".description",
		".product__description",
		"[data-description]",
	}
	return e.firstInnerHTML(page, selectors)
}

func (e *Extractor) Features(page playwright.Page) string {
	selectors := []string{
		".product__text",
		".product-features",
		".features",
		"[data-features]",
	}
	return e.firstInnerHTML(page, selectors)
}

// Specifications finds the accordion section carrying both the
// DIMENSIONS and MATERIALS markers; the same HTML feeds both fields.
func (e *Extractor) Specifications(page playwright.Page) (dimensions, materials string) {
	selectors := []string{
		".accordion__content",
		".product-specifications",
		".specifications",
	}

	for _, selector := range selectors {
		elements, err := page.QuerySelectorAll(selector)
		if err != nil {
			continue
		}
		for _, element := range elements {
			html, err := element.InnerHTML()
			if err != nil {
				continue
			}
			if strings.Contains(html, "DIMENSIONS") && strings.Contains(html, "MATERIALS") {
				return html, html
			}
		}
	}

	return "", ""
}

// Variants prefers the structured JSON payload embedded in the page
// over DOM radio inputs. A payload qualifies when it decodes as an
// array whose first object carries id, title and a numeric price. When
// only DOM elements are found, price and availability are backfilled
// positionally from any JSON array present.
func (e *Extractor) Variants(page playwright.Page) []models.Variant {
	if variants := e.variantsFromJSON(page); len(variants) > 0 {
		return variants
	}

	variants := e.variantsFromDOM(page)
	if len(variants) > 0 {
		e.backfillFromJSON(page, variants)
	}
	return variants
}

func (e *Extractor) variantsFromJSON(page playwright.Page) []models.Variant {
	scripts, err := page.QuerySelectorAll(`script[type="application/json"]`)
	if err != nil {
		return nil
	}

	for _, script := range scripts {
		text, err := script.TextContent()
		if err != nil || text == "" {
			continue
		}
		if variants, ok := decodeVariantArray([]byte(text)); ok {
			e.logger.Debug("extracted variants from json payload", "count", len(variants))
			return variants
		}
	}
	return nil
}

func (e *Extractor) variantsFromDOM(page playwright.Page) []models.Variant {
	selectors := []string{
		`variant-radios input[type="radio"]`,
		".variant-input-wrapper input",
		"[data-option-value]",
	}

	for _, selector := range selectors {
		elements, err := page.QuerySelectorAll(selector)
		if err != nil || len(elements) == 0 {
			continue
		}

		var variants []models.Variant
		for _, element := range elements {
			value, _ := element.GetAttribute("value")
			if value == "" {
				continue
			}
			id, _ := element.GetAttribute("id")
			disabled, _ := element.GetAttribute("disabled")
			variants = append(variants, models.Variant{
				ID:        id,
				Value:     value,
				Available: disabled != "disabled",
			})
		}
		if len(variants) > 0 {
			e.logger.Debug("extracted variants from dom", "count", len(variants))
			return variants
		}
	}
	return nil
}

func (e *Extractor) backfillFromJSON(page playwright.Page, variants []models.Variant) {
	scripts, err := page.QuerySelectorAll(`script[type="application/json"]`)
	if err != nil {
		return
	}

	for _, script := range scripts {
		text, err := script.TextContent()
		if err != nil || text == "" {
			continue
		}
		if backfillVariants([]byte(text), variants) {
			return
		}
	}
}

// Images merges sitemap-sourced images (which take precedence) with
// page images, de-duplicated by URL.
func (e *Extractor) Images(page playwright.Page, sitemapImages []models.Image) []models.Image {
	images := make([]models.Image, 0, len(sitemapImages))
	images = append(images, sitemapImages...)

	selectors := []string{
		".product__media img",
		".product-gallery img",
		".product-images img",
		"img[data-product-image]",
	}

	for _, selector := range selectors {
		elements, err := page.QuerySelectorAll(selector)
		if err != nil {
			continue
		}
		for _, element := range elements {
			src, _ := element.GetAttribute("src")
			if src == "" || containsImageURL(images, src) {
				continue
			}
			alt, _ := element.GetAttribute("alt")
			title, _ := element.GetAttribute("title")
			if title == "" {
				title = alt
			}
			images = append(images, models.Image{URL: src, Title: title, Caption: alt})
		}
	}

	return images
}

func (e *Extractor) SKU(page playwright.Page) string {
	selectors := []string{
		".product-sku",
		"[data-sku]",
		".variant-sku",
		".sku",
	}
	return e.firstText(page, selectors)
}

func (e *Extractor) Category(page playwright.Page) string {
	selectors := []string{
		".breadcrumb",
		".product-category",
		"[data-category]",
		".category",
	}
	return e.firstText(page, selectors)
}

// RatingInfo tries the review widget's JSON payload first, then its
// rendered DOM summary, then generic selectors, stopping at the first
// source that yields anything.
func (e *Extractor) RatingInfo(page playwright.Page) (rating *float64, reviewCount int) {
	if rating, reviewCount, ok := e.ratingFromWidgetJSON(page); ok {
		return rating, reviewCount
	}
	if rating, reviewCount, ok := e.ratingFromWidgetDOM(page); ok {
		return rating, reviewCount
	}
	return e.ratingFromGenericSelectors(page)
}

func (e *Extractor) ratingFromWidgetJSON(page playwright.Page) (*float64, int, bool) {
	scripts, err := page.QuerySelectorAll(`script[type="application/json"][data-oke-metafield-data]`)
	if err != nil {
		return nil, 0, false
	}

	for _, script := range scripts {
		text, err := script.TextContent()
		if err != nil || text == "" {
			continue
		}
		rating, count, ok := decodeRatingPayload([]byte(text))
		if ok {
			e.logger.Debug("extracted rating from widget json", "rating", rating, "reviews", count)
			return rating, count, true
		}
	}
	return nil, 0, false
}

func (e *Extractor) ratingFromWidgetDOM(page playwright.Page) (*float64, int, bool) {
	var rating *float64
	var count int

	if element, err := page.QuerySelector(".oke-sr-rating"); err == nil && element != nil {
		if text, err := element.TextContent(); err == nil {
			rating = parseDecimal(text)
		}
	}
	if element, err := page.QuerySelector(".oke-sr-count-number"); err == nil && element != nil {
		if text, err := element.TextContent(); err == nil {
			count = parseInteger(text)
		}
	}

	if rating != nil || count > 0 {
		return rating, count, true
	}
	return nil, 0, false
}

func (e *Extractor) ratingFromGenericSelectors(page playwright.Page) (*float64, int) {
	var rating *float64
	ratingSelectors := []string{
		".rating",
		"[data-rating]",
		".product-rating",
		".star-rating",
		".review-rating",
	}
	for _, selector := range ratingSelectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		if text, err := element.TextContent(); err == nil {
			if parsed := parseDecimal(text); parsed != nil {
				rating = parsed
				break
			}
		}
	}

	var count int
	reviewSelectors := []string{
		".review-count",
		"[data-review-count]",
		".product-reviews",
		".reviews-count",
		".review-number",
	}
	for _, selector := range reviewSelectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		if text, err := element.TextContent(); err == nil {
			if parsed := parseInteger(text); parsed > 0 {
				count = parsed
				break
			}
		}
	}

	return rating, count
}

// Availability detects page-level stock signals: a "notify when
// available" affordance means out of stock, an enabled add-to-cart
// means in stock, then generic stock-status text. With no signal at all
// the page is assumed in stock.
func (e *Extractor) Availability(page playwright.Page) *bool {
	out := false
	in := true

	notifySelectors := []string{
		".klaviyo-bis-trigger",
		`a[href="#"].klaviyo-bis-trigger`,
		"a.klaviyo-bis-trigger",
		".product-form__submit[disabled]",
		"button[disabled]",
	}
	for _, selector := range notifySelectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		if text, err := element.TextContent(); err == nil && strings.Contains(strings.ToLower(text), "notify") {
			return &out
		}
	}

	if form, err := page.QuerySelector(".product-form__buttons"); err == nil && form != nil {
		if html, err := form.InnerHTML(); err == nil {
			if strings.Contains(html, "klaviyo-bis-trigger") && strings.Contains(html, "Notify") {
				return &out
			}
		}
	}

	addToCartSelectors := []string{
		`button[name="add"]:not([disabled])`,
		".product-form__submit:not([disabled])",
		`button[type="submit"]:not([disabled])`,
		".add-to-cart:not([disabled])",
	}
	for _, selector := range addToCartSelectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		return &in
	}

	stockSelectors := []string{
		".product-availability",
		"[data-availability]",
		".availability",
		".stock-status",
		".inventory-status",
	}
	for _, selector := range stockSelectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		text, err := element.TextContent()
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(text))
		if strings.Contains(lower, "out of stock") || strings.Contains(lower, "unavailable") || strings.Contains(lower, "sold out") {
			return &out
		}
		if strings.Contains(lower, "in stock") || strings.Contains(lower, "available") {
			return &in
		}
	}

	return &in
}

func (e *Extractor) firstText(page playwright.Page, selectors []string) string {
	for _, selector := range selectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		text, err := element.TextContent()
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (e *Extractor) firstInnerHTML(page playwright.Page, selectors []string) string {
	for _, selector := range selectors {
		element, err := page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		html, err := element.InnerHTML()
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(html); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (e *Extractor) firstDollarPrice(page playwright.Page, selectors []string) string {
	for _, selector := range selectors {
		elements, err := page.QuerySelectorAll(selector)
		if err != nil {
			continue
		}
		for _, element := range elements {
			text, err := element.TextContent()
			if err != nil {
				continue
			}
			if price := matchDollarPrice(text); price != "" {
				return price
			}
		}
	}
	return ""
}

// matchDollarPrice extracts the first $-prefixed decimal from text and
// re-renders it as "$<amount>".
func matchDollarPrice(text string) string {
	if !strings.Contains(text, "$") {
		return ""
	}
	match := dollarPricePattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return "$" + match[1]
}

func parseDecimal(text string) *float64 {
	match := decimalPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseInteger(text string) int {
	match := integerPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return 0
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return value
}

func containsImageURL(images []models.Image, url string) bool {
	for _, img := range images {
		if img.URL == url {
			return true
		}
	}
	return false
}
