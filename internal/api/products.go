package api

import (
	"context"
	"net/http"
	"net/url"

	"ezshop/terminal/internal/domain"
)

type ProductsService struct {
	client *Client
}

func (s *ProductsService) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := s.client.do(ctx, http.MethodGet, "/products/", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *ProductsService) Get(ctx context.Context, id int) (domain.Product, error) {
	var product domain.Product
	err := s.client.do(ctx, http.MethodGet, "/products/"+itoa(id), nil, nil, &product)
	return product, err
}

func (s *ProductsService) GetByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	var product domain.Product
	err := s.client.do(ctx, http.MethodGet, "/products/barcode/"+url.PathEscape(barcode), nil, nil, &product)
	return product, err
}

// Search matches the query against descriptions and barcodes on the backend.
func (s *ProductsService) Search(ctx context.Context, query string) ([]domain.Product, error) {
	var products []domain.Product
	err := s.client.do(ctx, http.MethodGet, "/products/search", url.Values{"query": {query}}, nil, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *ProductsService) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	var created domain.Product
	product.ID = 0
	err := s.client.do(ctx, http.MethodPost, "/products/", nil, product, &created)
	return created, err
}

func (s *ProductsService) Update(ctx context.Context, id int, req domain.ProductUpdateRequest) (domain.Product, error) {
	var updated domain.Product
	err := s.client.do(ctx, http.MethodPut, "/products/"+itoa(id), nil, req, &updated)
	return updated, err
}

func (s *ProductsService) Delete(ctx context.Context, id int) error {
	return s.client.do(ctx, http.MethodDelete, "/products/"+itoa(id), nil, nil, nil)
}

func (s *ProductsService) SetPosition(ctx context.Context, id int, position string) error {
	query := url.Values{"position": {position}}
	return s.client.do(ctx, http.MethodPatch, "/products/"+itoa(id)+"/position", query, nil, nil)
}
