// Package cache tracks which product URLs a run has already visited and,
// optionally, which slugs were scraped recently enough to skip.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// VisitedSet is an in-run de-duplication set over product URLs.
type VisitedSet struct {
	cache *lru.Cache[string, struct{}]
}

func NewVisitedSet(size int) (*VisitedSet, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create visited set: %w", err)
	}
	return &VisitedSet{cache: cache}, nil
}

// MarkVisited records url and reports whether it was already present.
func (v *VisitedSet) MarkVisited(url string) bool {
	if v.cache.Contains(url) {
		return true
	}
	v.cache.Add(url, struct{}{})
	return false
}

func (v *VisitedSet) Len() int {
	return v.cache.Len()
}

// SkipSet marks slugs as recently scraped across runs. A nil SkipSet is
// valid and never skips, so the pipeline works without Redis.
type SkipSet struct {
	client *redis.Client
	ttl    time.Duration
	locale string
	logger *slog.Logger
}

// NewSkipSet connects to Redis at addr. Returns nil when addr is empty.
func NewSkipSet(ctx context.Context, addr, password string, db int, ttl time.Duration, locale string) (*SkipSet, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &SkipSet{
		client: client,
		ttl:    ttl,
		locale: locale,
		logger: slog.Default().With("component", "cache"),
	}, nil
}

func (s *SkipSet) key(slug string) string {
	return fmt.Sprintf("scraped:%s:%s", s.locale, slug)
}

// ShouldSkip reports whether slug was scraped within the TTL window.
// Redis errors are logged and treated as "do not skip".
func (s *SkipSet) ShouldSkip(ctx context.Context, slug string) bool {
	if s == nil {
		return false
	}

	exists, err := s.client.Exists(ctx, s.key(slug)).Result()
	if err != nil {
		s.logger.Warn("skip-set lookup failed", "slug", slug, "error", err)
		return false
	}
	return exists > 0
}

// MarkScraped records slug with the configured TTL.
func (s *SkipSet) MarkScraped(ctx context.Context, slug string) {
	if s == nil {
		return
	}

	if err := s.client.Set(ctx, s.key(slug), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		s.logger.Warn("skip-set write failed", "slug", slug, "error", err)
	}
}

func (s *SkipSet) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
