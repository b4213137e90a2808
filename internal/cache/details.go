package cache

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ezshop/terminal/internal/domain"
)

const prefetchConcurrency = 4

// ProductFetcher loads one product by barcode.
type ProductFetcher interface {
	GetByBarcode(ctx context.Context, barcode string) (domain.Product, error)
}

// ProductDetails fills a ProductCache lazily from the backend.
type ProductDetails struct {
	cache   ProductCache
	fetcher ProductFetcher
	logger  *zap.Logger
	group   singleflight.Group
}

func NewProductDetails(cache ProductCache, fetcher ProductFetcher, logger *zap.Logger) *ProductDetails {
	if cache == nil {
		cache = NewMemoryProductCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductDetails{cache: cache, fetcher: fetcher, logger: logger}
}

// Prefetch fetches every barcode not yet cached. Failures are logged and
// skipped so a missing product never interrupts the sale.
func (d *ProductDetails) Prefetch(ctx context.Context, barcodes []string) {
	seen := make(map[string]struct{}, len(barcodes))
	missing := make([]string, 0, len(barcodes))
	for _, barcode := range barcodes {
		if barcode == "" {
			continue
		}
		if _, dup := seen[barcode]; dup {
			continue
		}
		seen[barcode] = struct{}{}
		if _, ok := d.Lookup(ctx, barcode); ok {
			continue
		}
		missing = append(missing, barcode)
	}
	if len(missing) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(prefetchConcurrency)
	for _, barcode := range missing {
		g.Go(func() error {
			if _, err := d.fetch(ctx, barcode); err != nil {
				d.logger.Warn("failed to fetch product details", zap.String("barcode", barcode), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *ProductDetails) fetch(ctx context.Context, barcode string) (domain.Product, error) {
	v, err, _ := d.group.Do(barcode, func() (any, error) {
		product, err := d.fetcher.GetByBarcode(ctx, barcode)
		if err != nil {
			return domain.Product{}, err
		}
		if err := d.cache.Set(ctx, barcode, product); err != nil {
			d.logger.Warn("failed to cache product details", zap.String("barcode", barcode), zap.Error(err))
		}
		return product, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

// Lookup returns cached details without touching the backend.
func (d *ProductDetails) Lookup(ctx context.Context, barcode string) (domain.Product, bool) {
	product, ok, err := d.cache.Get(ctx, barcode)
	if err != nil {
		d.logger.Warn("product cache read failed", zap.String("barcode", barcode), zap.Error(err))
		return domain.Product{}, false
	}
	if !ok || product == nil {
		return domain.Product{}, false
	}
	return *product, true
}

// Describe returns the cached description, or the barcode when unknown.
func (d *ProductDetails) Describe(ctx context.Context, barcode string) string {
	if product, ok := d.Lookup(ctx, barcode); ok && product.Description != "" {
		return product.Description
	}
	return barcode
}
