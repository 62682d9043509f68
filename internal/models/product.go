package models

import "time"

// Image is a product image with optional sitemap-sourced metadata.
type Image struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// SitemapEntry is one <url> element of a leaf sitemap, including any
// embedded image extension data.
type SitemapEntry struct {
	URL          string     `json:"url"`
	LastModified *time.Time `json:"lastmod,omitempty"`
	Images       []Image    `json:"images,omitempty"`
}

// Variant is a purchasable option of a product. Price is in integer
// minor units (cents) as exposed by the storefront's variant JSON.
type Variant struct {
	ID                string `json:"id"`
	Value             string `json:"value"`
	PriceCents        int    `json:"price"`
	Available         bool   `json:"available"`
	SKU               string `json:"sku,omitempty"`
	InventoryQuantity int    `json:"inventory_quantity,omitempty"`
}

// RawProduct is the extraction-time aggregate for a single product page.
// HTML fields keep their markup; stripping happens at normalization.
type RawProduct struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Locale            string    `json:"language"`
	Title             string    `json:"title"`
	PriceText         string    `json:"price"`
	OriginalPriceText string    `json:"originalPrice"`
	DescriptionHTML   string    `json:"description"`
	FeaturesHTML      string    `json:"features"`
	DimensionsHTML    string    `json:"dimensions"`
	MaterialsHTML     string    `json:"materials"`
	Images            []Image   `json:"images"`
	Variants          []Variant `json:"variants"`
	SKU               string    `json:"sku"`
	Category          string    `json:"category"`
	Rating            *float64  `json:"rating"`
	ReviewCount       int       `json:"reviewCount"`
	// Availability is tri-state: nil means no page-level signal was found.
	Availability *bool     `json:"availability"`
	ScrapedAt    time.Time `json:"scrapedAt"`
}

// NormalizedProduct is the persisted row shape. (Slug, Locale) is the
// unique key; re-processing the same product replaces all columns.
type NormalizedProduct struct {
	Slug             string   `json:"slug"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	SubCategory      string   `json:"sub_category,omitempty"`
	PriceCents       int      `json:"price"`
	Currency         string   `json:"currency"`
	ImageURL         string   `json:"image_url"`
	AffiliateURL     string   `json:"affiliate_url"`
	Locale           string   `json:"locale"`
	Features         string   `json:"features"`
	Dimensions       string   `json:"dimensions"`
	Rating           *float64 `json:"rating"`
	ReviewCount      *int     `json:"review_count"`
	Availability     bool     `json:"availability"`
	Collections      []string `json:"collections"`
	CleanDescription string   `json:"clean_description"`
	CleanFeatures    string   `json:"clean_features"`
}

// MembershipEntry is one element of a collection membership file.
type MembershipEntry struct {
	URL             string `json:"url"`
	Collection      string `json:"collection"`
	Language        string `json:"language"`
	CollectionTitle string `json:"collectionTitle"`
	Slug            string `json:"slug"`
}
