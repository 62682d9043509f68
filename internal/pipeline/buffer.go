package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quietstone/shopify-catalog-scraper/internal/metrics"
	"github.com/quietstone/shopify-catalog-scraper/internal/models"
)

// ProductStore persists normalized product batches.
type ProductStore interface {
	UpsertProducts(ctx context.Context, products []models.NormalizedProduct) error
}

// Buffer accumulates normalized products and flushes them to the store
// when the batch size is reached. The buffer is cleared on every flush,
// including failed ones: a failed batch is logged and dropped rather
// than retried, so one bad row never wedges the run.
type Buffer struct {
	store    ProductStore
	capacity int
	items    []models.NormalizedProduct
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewBuffer(store ProductStore, capacity int, m *metrics.Metrics) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		store:    store,
		capacity: capacity,
		items:    make([]models.NormalizedProduct, 0, capacity),
		metrics:  m,
		logger:   slog.Default().With("component", "buffer"),
	}
}

// Add appends a row and flushes when the buffer reaches capacity.
func (b *Buffer) Add(ctx context.Context, product models.NormalizedProduct) error {
	b.items = append(b.items, product)
	if len(b.items) >= b.capacity {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered rows. A no-op on an empty buffer.
func (b *Buffer) Flush(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}

	count := len(b.items)
	err := b.store.UpsertProducts(ctx, b.items)
	b.items = b.items[:0]

	if b.metrics != nil {
		b.metrics.BatchFlushes.Inc()
	}

	if err != nil {
		if b.metrics != nil {
			b.metrics.BatchFlushFailures.Inc()
		}
		b.logger.Error("batch flush failed, dropping rows", "count", count, "error", err)
		return fmt.Errorf("failed to flush %d products: %w", count, err)
	}

	b.logger.Info("flushed batch", "count", count)
	return nil
}

func (b *Buffer) Len() int {
	return len(b.items)
}
