package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips tags and decodes entities", "<p>Hi &amp; bye</p>", "Hi & bye"},
		{"idempotent on clean text", "Hi & bye", "Hi & bye"},
		{"collapses whitespace", "<div>a\n\n  b&nbsp;&nbsp;c</div>", "a b c"},
		{"quotes and apostrophes", "&quot;rose&quot; &#39;quartz&#39;", `"rose" 'quartz'`},
		{"empty input", "", ""},
		{"nested markup", "<ul><li>One</li><li>Two</li></ul>", "OneTwo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanHTML(tt.input))
		})
	}
}

func TestCleanHTMLIdempotent(t *testing.T) {
	once := CleanHTML("<p>Amethyst &amp; <b>obsidian</b></p>")
	assert.Equal(t, once, CleanHTML(once))
}

func TestPriceCents(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"$49.00", 4900},
		{"$49", 4900},
		{"$1,299.50", 129950},
		{"$0.99", 99},
		{"", 0},
		{"free", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, PriceCents(tt.input), tt.input)
	}
}

func TestSlugFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://consciousitems.com/products/lava-stone-bracelet", "lava-stone-bracelet"},
		{"https://consciousitems.com/de/products/lava-stone-bracelet?variant=1", "lava-stone-bracelet"},
		{"https://consciousitems.com/pages/about-us", "about-us"},
		{"https://consciousitems.com/", "unknown"},
		{"://bad", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SlugFromURL(tt.url), tt.url)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestResolveVariants(t *testing.T) {
	t.Run("first available variant wins", func(t *testing.T) {
		variants := []models.Variant{
			{Value: "Bundle", PriceCents: 4900, Available: true},
			{Value: "Single", PriceCents: 2900, Available: false},
		}
		price, available := ResolveVariants(variants, "$10.00", boolPtr(false))
		assert.Equal(t, 4900, price)
		assert.True(t, available)
	})

	t.Run("all variants unavailable falls back to first", func(t *testing.T) {
		variants := []models.Variant{
			{Value: "Bundle", PriceCents: 4900},
			{Value: "Single", PriceCents: 2900},
		}
		price, available := ResolveVariants(variants, "", nil)
		assert.Equal(t, 4900, price)
		assert.False(t, available)
	})

	t.Run("later available variant preferred over earlier unavailable", func(t *testing.T) {
		variants := []models.Variant{
			{Value: "Single", PriceCents: 2900, Available: false},
			{Value: "Bundle", PriceCents: 4900, Available: true},
		}
		price, available := ResolveVariants(variants, "", nil)
		assert.Equal(t, 4900, price)
		assert.True(t, available)
	})

	t.Run("no variants uses page signals", func(t *testing.T) {
		price, available := ResolveVariants(nil, "$49.00", boolPtr(false))
		assert.Equal(t, 4900, price)
		assert.False(t, available)
	})

	t.Run("no signal defaults to in stock", func(t *testing.T) {
		price, available := ResolveVariants(nil, "$49.00", nil)
		assert.Equal(t, 4900, price)
		assert.True(t, available)
	})

	t.Run("zero variant price backfilled from page price", func(t *testing.T) {
		variants := []models.Variant{{Value: "Default", Available: true}}
		price, available := ResolveVariants(variants, "$15.00", nil)
		assert.Equal(t, 1500, price)
		assert.True(t, available)
	})
}

func TestCategoryStrategies(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		category, sub := DefaultFixedCategory().Categorize("Moonstone Ring", "a ring")
		assert.Equal(t, "Jewelry", category)
		assert.Empty(t, sub)
	})

	t.Run("keywords first match wins", func(t *testing.T) {
		category, sub := NewKeywordCategory().Categorize("Lava Stone Bracelet", "grounding crystal bracelet")
		assert.Equal(t, "Jewelry", category)
		assert.Equal(t, "Bracelets", sub)
	})

	t.Run("keywords default", func(t *testing.T) {
		category, sub := NewKeywordCategory().Categorize("Gift Card", "store credit")
		assert.Equal(t, "Jewelry", category)
		assert.Equal(t, "Accessories", sub)
	})

	t.Run("strategy lookup", func(t *testing.T) {
		assert.IsType(t, &KeywordCategory{}, StrategyFor("keywords"))
		assert.IsType(t, FixedCategory{}, StrategyFor("fixed"))
		assert.IsType(t, FixedCategory{}, StrategyFor("bogus"))
	})
}

func TestSanitize(t *testing.T) {
	bad := 7.5
	raw := models.RawProduct{
		Title:           "Lava\x00 Bracelet\x1f",
		DescriptionHTML: "line one\nline\x02 two",
		Rating:          &bad,
		ReviewCount:     -3,
	}

	Sanitize(&raw)

	assert.Equal(t, "Lava Bracelet", raw.Title)
	assert.Equal(t, "line one\nline two", raw.DescriptionHTML)
	assert.Nil(t, raw.Rating)
	assert.Zero(t, raw.ReviewCount)
	assert.NotNil(t, raw.Images)
	assert.NotNil(t, raw.Variants)
}

func TestNormalize(t *testing.T) {
	rating := 4.8
	raw := models.RawProduct{
		ID:              "lava-stone-bracelet",
		URL:             "https://consciousitems.com/products/lava-stone-bracelet",
		Title:           "Lava Stone Bracelet",
		PriceText:       "$49.00",
		DescriptionHTML: "<p>Grounding &amp; protection</p>",
		FeaturesHTML:    "<ul><li>Volcanic rock</li></ul>",
		Images: []models.Image{
			{URL: "//cdn.shop.example/lava.jpg", Title: "Lava Stone Bracelet"},
		},
		Variants: []models.Variant{
			{Value: "Single", PriceCents: 2900, Available: true},
			{Value: "Bundle", PriceCents: 4900, Available: false},
		},
		Rating:      &rating,
		ReviewCount: 120,
	}

	collections := map[string][]string{
		"lava-stone-bracelet": {"bracelet", "crystals"},
	}

	row := New(DefaultFixedCategory()).Normalize(raw, "en", collections)

	assert.Equal(t, "lava-stone-bracelet", row.Slug)
	assert.Equal(t, "Lava Stone Bracelet", row.Name)
	assert.Equal(t, 2900, row.PriceCents)
	assert.True(t, row.Availability)
	assert.Equal(t, "USD", row.Currency)
	assert.Equal(t, "https://cdn.shop.example/lava.jpg", row.ImageURL)
	assert.Equal(t, raw.URL, row.AffiliateURL)
	assert.Equal(t, "en", row.Locale)
	assert.Equal(t, "Grounding & protection", row.Description)
	assert.Equal(t, row.Description, row.CleanDescription)
	assert.Equal(t, "Volcanic rock", row.CleanFeatures)
	assert.Equal(t, "Jewelry", row.Category)
	assert.Equal(t, []string{"bracelet", "crystals"}, row.Collections)
	require.NotNil(t, row.ReviewCount)
	assert.Equal(t, 120, *row.ReviewCount)
	require.NotNil(t, row.Rating)
	assert.InDelta(t, 4.8, *row.Rating, 0.001)
}

func TestNormalizeNoCollections(t *testing.T) {
	raw := models.RawProduct{
		ID:        "orphan",
		URL:       "https://consciousitems.com/products/orphan",
		Title:     "Orphan",
		PriceText: "$5.00",
	}

	row := New(nil).Normalize(raw, "en", nil)

	assert.NotNil(t, row.Collections)
	assert.Empty(t, row.Collections)
	assert.Nil(t, row.ReviewCount)
	assert.True(t, row.Availability)
	assert.Equal(t, 500, row.PriceCents)
	assert.Empty(t, row.ImageURL)
}
