// Package sitemap fetches and parses the storefront's sitemap index and
// leaf sitemaps, including the image extension metadata attached to
// product entries.
package sitemap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

// ProductLeafToken identifies product leaf sitemaps within the index.
const ProductLeafToken = "sitemap_products_1.xml"

type Reader struct {
	client *http.Client
	logger *slog.Logger
}

func NewReader(client *http.Client) *Reader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reader{
		client: client,
		logger: slog.Default().With("component", "sitemap"),
	}
}

// FetchIndex fetches a sitemap-of-sitemaps and returns the leaf sitemap
// URLs in document order.
func (r *Reader) FetchIndex(ctx context.Context, indexURL string) ([]string, error) {
	doc, err := r.fetch(ctx, indexURL)
	if err != nil {
		return nil, err
	}

	nodes := xmlquery.Find(doc, "//sitemapindex/sitemap/loc")
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no sitemap entries in index %s", indexURL)
	}

	urls := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			urls = append(urls, loc)
		}
	}

	r.logger.Debug("fetched sitemap index", "url", indexURL, "sitemaps", len(urls))
	return urls, nil
}

// FetchURLSet fetches a leaf sitemap and returns its URL entries with
// any embedded image metadata.
func (r *Reader) FetchURLSet(ctx context.Context, leafURL string) ([]models.SitemapEntry, error) {
	doc, err := r.fetch(ctx, leafURL)
	if err != nil {
		return nil, err
	}

	nodes := xmlquery.Find(doc, "//urlset/url")
	entries := make([]models.SitemapEntry, 0, len(nodes))
	for _, node := range nodes {
		entry := parseEntry(node)
		if entry.URL == "" {
			continue
		}
		entries = append(entries, entry)
	}

	r.logger.Debug("fetched leaf sitemap", "url", leafURL, "entries", len(entries))
	return entries, nil
}

func (r *Reader) fetch(ctx context.Context, url string) (*xmlquery.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching sitemap %s", resp.StatusCode, url)
	}

	doc, err := xmlquery.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", url, err)
	}

	return doc, nil
}

func parseEntry(node *xmlquery.Node) models.SitemapEntry {
	var entry models.SitemapEntry

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		switch {
		case child.Prefix == "" && child.Data == "loc":
			entry.URL = strings.TrimSpace(child.InnerText())
		case child.Prefix == "" && child.Data == "lastmod":
			if ts := parseLastmod(strings.TrimSpace(child.InnerText())); ts != nil {
				entry.LastModified = ts
			}
		case child.Prefix == "image" && child.Data == "image":
			if img, ok := parseImage(child); ok {
				entry.Images = append(entry.Images, img)
			}
		}
	}

	return entry
}

// parseImage requires both image:loc and image:title, matching the
// shape the storefront emits for product images.
func parseImage(node *xmlquery.Node) (models.Image, bool) {
	var img models.Image

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode || child.Prefix != "image" {
			continue
		}
		switch child.Data {
		case "loc":
			img.URL = strings.TrimSpace(child.InnerText())
		case "title":
			img.Title = strings.TrimSpace(child.InnerText())
		case "caption":
			img.Caption = strings.TrimSpace(child.InnerText())
		}
	}

	if img.URL == "" || img.Title == "" {
		return models.Image{}, false
	}
	return img, true
}

func parseLastmod(value string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
