// Package locale maps storefront URLs to the locale they serve.
//
// The storefront publishes one sitemap tree per language, with the
// language code as the first path segment after the domain. The bare
// default tree (no segment) is English.
package locale

import "strings"

// DomainToken is the host token that precedes the locale path segment.
const DomainToken = "consciousitems.com"

// Default is the locale assumed for the bare sitemap tree.
const Default = "en"

var supported = map[string]bool{
	"en": true,
	"de": true,
	"fr": true,
	"es": true,
	"pt": true,
}

// Supported reports whether code is a locale this pipeline processes.
func Supported(code string) bool {
	return supported[code]
}

// SupportedLocales returns the supported locale codes in stable order.
func SupportedLocales() []string {
	return []string{"en", "de", "fr", "es", "pt"}
}

// Classify maps a sitemap or page URL to its locale code. It returns
// ok=false for compound locales (segments containing a hyphen, e.g.
// en-GB, which are intentionally excluded rather than normalized) and
// for any segment outside the supported set.
func Classify(rawURL string) (string, bool) {
	// The bare default tree carries no locale segment.
	if strings.Contains(rawURL, "https://"+DomainToken+"/sitemap_products_1.xml") {
		return Default, true
	}

	parts := strings.Split(rawURL, "/")
	domainIdx := -1
	for i, part := range parts {
		if part == DomainToken {
			domainIdx = i
			break
		}
	}
	if domainIdx == -1 || domainIdx+1 >= len(parts) {
		return "", false
	}

	segment := parts[domainIdx+1]
	if strings.Contains(segment, "-") {
		return "", false
	}
	if !supported[segment] {
		return "", false
	}
	return segment, true
}
