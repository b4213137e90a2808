package api

import (
	"context"
	"net/http"
	"net/url"

	"ezshop/terminal/internal/domain"
)

type ReturnsService struct {
	client *Client
}

func (s *ReturnsService) List(ctx context.Context) ([]domain.Return, error) {
	var returns []domain.Return
	if err := s.client.do(ctx, http.MethodGet, "/returns/", nil, nil, &returns); err != nil {
		return nil, err
	}
	return returns, nil
}

func (s *ReturnsService) Get(ctx context.Context, id int) (domain.Return, error) {
	var ret domain.Return
	err := s.client.do(ctx, http.MethodGet, "/returns/"+itoa(id), nil, nil, &ret)
	return ret, err
}

// Create opens a return against a paid sale.
func (s *ReturnsService) Create(ctx context.Context, saleID int) (domain.Return, error) {
	var ret domain.Return
	query := url.Values{"sale_id": {itoa(saleID)}}
	err := s.client.do(ctx, http.MethodPost, "/returns/", query, nil, &ret)
	return ret, err
}

func (s *ReturnsService) AddItem(ctx context.Context, returnID int, barcode string, amount int) error {
	return s.client.do(ctx, http.MethodPost, "/returns/"+itoa(returnID)+"/items", itemQuery(barcode, amount), nil, nil)
}

func (s *ReturnsService) RemoveItem(ctx context.Context, returnID int, barcode string, amount int) error {
	return s.client.do(ctx, http.MethodDelete, "/returns/"+itoa(returnID)+"/items", itemQuery(barcode, amount), nil, nil)
}

func (s *ReturnsService) Close(ctx context.Context, returnID int) error {
	return s.client.do(ctx, http.MethodPatch, "/returns/"+itoa(returnID)+"/close", nil, nil, nil)
}

func (s *ReturnsService) Reimburse(ctx context.Context, returnID int) error {
	return s.client.do(ctx, http.MethodPatch, "/returns/"+itoa(returnID)+"/reimburse", nil, nil, nil)
}
