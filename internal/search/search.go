// Package search implements the product lookup behind the POS search box.
package search

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"ezshop/terminal/internal/domain"
)

var barcodePattern = regexp.MustCompile(`^\d{8,}$`)

type Searcher interface {
	GetByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	Search(ctx context.Context, query string) ([]domain.Product, error)
}

// LooksLikeBarcode reports whether query is eight or more digits.
func LooksLikeBarcode(query string) bool {
	return barcodePattern.MatchString(query)
}

// Lookup tries an exact barcode match for barcode-shaped queries and falls
// back to the backend's fuzzy search on a miss.
func Lookup(ctx context.Context, searcher Searcher, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if LooksLikeBarcode(query) {
		product, err := searcher.GetByBarcode(ctx, query)
		if err == nil {
			return []domain.Product{product}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return searcher.Search(ctx, query)
}
