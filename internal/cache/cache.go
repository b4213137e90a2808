package cache

import (
	"context"
	"sync"

	"ezshop/terminal/internal/domain"
)

// ProductCache maps barcodes to the last product details fetched for them.
// Entries are display-only: totals always use the price stored on the line.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*domain.Product, bool, error)
	Set(ctx context.Context, barcode string, product domain.Product) error
}

// MemoryProductCache lives as long as the terminal session and is never
// invalidated.
type MemoryProductCache struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewMemoryProductCache() *MemoryProductCache {
	return &MemoryProductCache{products: make(map[string]domain.Product)}
}

func (c *MemoryProductCache) Get(_ context.Context, barcode string) (*domain.Product, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	product, ok := c.products[barcode]
	if !ok {
		return nil, false, nil
	}
	return &product, true, nil
}

func (c *MemoryProductCache) Set(_ context.Context, barcode string, product domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[barcode] = product
	return nil
}

func (c *MemoryProductCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}
