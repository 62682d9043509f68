package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		ok       bool
	}{
		{
			name:     "bare default sitemap is english",
			url:      "https://consciousitems.com/sitemap_products_1.xml?from=1&to=100",
			expected: "en",
			ok:       true,
		},
		{
			name:     "german locale segment",
			url:      "https://consciousitems.com/de/sitemap_products_1.xml",
			expected: "de",
			ok:       true,
		},
		{
			name:     "french product page",
			url:      "https://consciousitems.com/fr/products/lava-stone-bracelet",
			expected: "fr",
			ok:       true,
		},
		{
			name: "compound locale is unsupported",
			url:  "https://consciousitems.com/en-gb/sitemap_products_1.xml",
			ok:   false,
		},
		{
			name: "unsupported simple segment",
			url:  "https://consciousitems.com/it/sitemap_products_1.xml",
			ok:   false,
		},
		{
			name: "foreign domain",
			url:  "https://example.com/de/sitemap_products_1.xml",
			ok:   false,
		},
		{
			name: "domain with nothing after it",
			url:  "https://consciousitems.com",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := Classify(tt.url)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, code)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for _, code := range SupportedLocales() {
		assert.True(t, Supported(code), code)
	}
	assert.False(t, Supported("it"))
	assert.False(t, Supported("en-GB"))
	assert.False(t, Supported(""))
}
