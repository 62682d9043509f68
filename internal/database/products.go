package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

const upsertProductQuery = `
	INSERT INTO products (
		slug, name, description, category, sub_category, price, currency,
		image_url, affiliate_url, locale, features, dimensions, rating,
		review_count, availability, collections, clean_description,
		clean_features, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, CURRENT_TIMESTAMP)
	ON CONFLICT (slug, locale) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		category = EXCLUDED.category,
		sub_category = EXCLUDED.sub_category,
		price = EXCLUDED.price,
		currency = EXCLUDED.currency,
		image_url = EXCLUDED.image_url,
		affiliate_url = EXCLUDED.affiliate_url,
		features = EXCLUDED.features,
		dimensions = EXCLUDED.dimensions,
		rating = EXCLUDED.rating,
		review_count = EXCLUDED.review_count,
		availability = EXCLUDED.availability,
		collections = EXCLUDED.collections,
		clean_description = EXCLUDED.clean_description,
		clean_features = EXCLUDED.clean_features,
		updated_at = CURRENT_TIMESTAMP`

// UpsertProducts writes a batch in a single transaction keyed on
// (slug, locale). Conflicting rows are fully replaced.
func (db *DB) UpsertProducts(ctx context.Context, products []models.NormalizedProduct) error {
	if len(products) == 0 {
		return nil
	}

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(upsertProductQuery,
				p.Slug, p.Name, p.Description, p.Category, p.SubCategory,
				p.PriceCents, p.Currency, p.ImageURL, p.AffiliateURL,
				p.Locale, p.Features, p.Dimensions, p.Rating, p.ReviewCount,
				p.Availability, p.Collections, p.CleanDescription,
				p.CleanFeatures,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for _, p := range products {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to upsert product %s/%s: %w", p.Slug, p.Locale, err)
			}
		}
		return nil
	})
}

// GetProduct retrieves a single product row, nil when absent.
func (db *DB) GetProduct(ctx context.Context, slug, locale string) (*models.NormalizedProduct, error) {
	query := `
		SELECT slug, name, description, category, sub_category, price,
			   currency, image_url, affiliate_url, locale, features,
			   dimensions, rating, review_count, availability, collections,
			   clean_description, clean_features
		FROM products
		WHERE slug = $1 AND locale = $2`

	p := &models.NormalizedProduct{}
	err := db.pool.QueryRow(ctx, query, slug, locale).Scan(
		&p.Slug, &p.Name, &p.Description, &p.Category, &p.SubCategory,
		&p.PriceCents, &p.Currency, &p.ImageURL, &p.AffiliateURL,
		&p.Locale, &p.Features, &p.Dimensions, &p.Rating, &p.ReviewCount,
		&p.Availability, &p.Collections, &p.CleanDescription,
		&p.CleanFeatures,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// LastScrapedBefore reports slugs in the given locale whose last update
// predates cutoff, used to prioritize stale rows on re-runs.
func (db *DB) LastScrapedBefore(ctx context.Context, locale string, cutoff time.Time) ([]string, error) {
	query := `
		SELECT slug
		FROM products
		WHERE locale = $1 AND updated_at < $2
		ORDER BY updated_at ASC`

	rows, err := db.pool.Query(ctx, query, locale, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale products: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan slug: %w", err)
		}
		slugs = append(slugs, slug)
	}

	return slugs, rows.Err()
}

// CountProductsByLocale returns row counts grouped by locale.
func (db *DB) CountProductsByLocale(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `SELECT locale, COUNT(*) FROM products GROUP BY locale`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var locale string
		var count int
		if err := rows.Scan(&locale, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[locale] = count
	}

	return counts, rows.Err()
}
