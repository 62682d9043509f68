package normalizer

import (
	"net/url"
	"regexp"
	"strings"
)

var productSlugPattern = regexp.MustCompile(`/products/([^/?]+)`)

// SlugFromURL derives the product slug from the path segment following
// /products/. Without that segment it falls back to the last path
// segment, then to "unknown".
func SlugFromURL(rawURL string) string {
	if match := productSlugPattern.FindStringSubmatch(rawURL); match != nil {
		return match[1]
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	parts := strings.Split(parsed.Path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return "unknown"
}
