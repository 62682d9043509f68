// Package collections handles collection membership: reading the
// per-locale membership files into a slug index for the product
// pipeline, and writing them from collection crawl results.
package collections

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
	"github.com/quietstone/shopify-catalog-scraper/internal/normalizer"
)

const fileSuffix = "-urls.json"

// Membership files matching these patterns are price-tier, sale, promo,
// gift, seasonal-campaign or test buckets, not real catalog
// collections, and are never read.
var excludedFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`0-25-urls\.json$`),
	regexp.MustCompile(`25-35-urls\.json$`),
	regexp.MustCompile(`35-50-urls\.json$`),
	regexp.MustCompile(`50-75-urls\.json$`),
	regexp.MustCompile(`70-off-sale-urls\.json$`),
	regexp.MustCompile(`75-off-urls\.json$`),
	regexp.MustCompile(`under-25-urls\.json$`),
	regexp.MustCompile(`under-15-urls\.json$`),
	regexp.MustCompile(`under-35-urls\.json$`),
	regexp.MustCompile(`sale\d+-urls\.json$`),
	regexp.MustCompile(`mom\d+-urls\.json$`),
	regexp.MustCompile(`venta-urls\.json$`),
	regexp.MustCompile(`promotion-urls\.json$`),
	regexp.MustCompile(`promocion-urls\.json$`),
	regexp.MustCompile(`bundle-sale-urls\.json$`),
	regexp.MustCompile(`last-chance-urls\.json$`),
	regexp.MustCompile(`back-soon-urls\.json$`),
	regexp.MustCompile(`back-aug.*-urls\.json$`),
	regexp.MustCompile(`almost-out-of-stock-urls\.json$`),
	regexp.MustCompile(`favorites-under-.*-urls\.json$`),
	regexp.MustCompile(`shop-favorites-under-.*-urls\.json$`),
	regexp.MustCompile(`black-friday-collection-urls\.json$`),
	regexp.MustCompile(`coleccion-del-viernes-negro-urls\.json$`),
	regexp.MustCompile(`regalos-.*-urls\.json$`),
	regexp.MustCompile(`gifts-.*-urls\.json$`),
	regexp.MustCompile(`giveaway-gifts-urls\.json$`),
	regexp.MustCompile(`free-items-urls\.json$`),
	regexp.MustCompile(`regalo-.*-urls\.json$`),
	regexp.MustCompile(`test-urls\.json$`),
	regexp.MustCompile(`prueba-urls\.json$`),
}

// ExcludedFile reports whether a membership filename belongs to a
// non-catalog bucket.
func ExcludedFile(filename string) bool {
	for _, pattern := range excludedFilePatterns {
		if pattern.MatchString(filename) {
			return true
		}
	}
	return false
}

// CollectionName derives the collection name from a membership
// filename by stripping the fixed suffix.
func CollectionName(filename string) string {
	return strings.TrimSuffix(filename, fileSuffix)
}

// Resolver builds slug → collection-name indexes from the membership
// file tree (one directory per locale under Dir).
type Resolver struct {
	dir    string
	logger *slog.Logger
}

func NewResolver(dir string) *Resolver {
	return &Resolver{
		dir:    dir,
		logger: slog.Default().With("component", "collections"),
	}
}

// BuildIndex scans the locale's membership files and returns the union
// of collection names per slug. Entries whose embedded language differs
// from the target locale are skipped, as are excluded and malformed
// files. A missing locale directory yields an empty index.
func (r *Resolver) BuildIndex(loc string) map[string][]string {
	index := make(map[string][]string)
	localeDir := filepath.Join(r.dir, loc)

	files, err := os.ReadDir(localeDir)
	if err != nil {
		r.logger.Debug("no membership files for locale", "locale", loc, "dir", localeDir)
		return index
	}

	seen := make(map[string]map[string]bool)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, fileSuffix) || ExcludedFile(name) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(localeDir, name))
		if err != nil {
			continue
		}

		var entries []models.MembershipEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			// Malformed files are skipped, not fatal.
			r.logger.Warn("skipping malformed membership file", "file", name, "error", err)
			continue
		}

		collection := CollectionName(name)
		for _, entry := range entries {
			// Only product URLs carry a usable slug; membership files
			// occasionally pick up stray page links.
			if !strings.Contains(entry.URL, "/products/") {
				continue
			}
			slug := normalizer.SlugFromURL(entry.URL)
			if slug == "" || slug == "unknown" {
				continue
			}
			language := entry.Language
			if language == "" {
				language = loc
			}
			if language != loc {
				continue
			}
			if seen[slug] == nil {
				seen[slug] = make(map[string]bool)
			}
			if !seen[slug][collection] {
				seen[slug][collection] = true
				index[slug] = append(index[slug], collection)
			}
		}
	}

	for slug := range index {
		sort.Strings(index[slug])
	}

	r.logger.Info("built collections index", "locale", loc, "products", len(index))
	return index
}

// WriteMembershipFile persists one collection's product URLs under
// dir/locale/<slug>-urls.json. The write goes through a temp file and
// rename so readers never observe a partial file.
func (r *Resolver) WriteMembershipFile(loc, collectionSlug string, entries []models.MembershipEntry) error {
	localeDir := filepath.Join(r.dir, loc)
	if err := os.MkdirAll(localeDir, 0o755); err != nil {
		return fmt.Errorf("failed to create collections dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal membership entries: %w", err)
	}

	target := filepath.Join(localeDir, collectionSlug+fileSuffix)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write membership file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to rename membership file: %w", err)
	}

	r.logger.Info("saved membership file", "locale", loc, "collection", collectionSlug, "entries", len(entries))
	return nil
}
