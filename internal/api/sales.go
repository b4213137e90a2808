package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

type SalesService struct {
	client *Client
}

func (s *SalesService) List(ctx context.Context) ([]domain.Sale, error) {
	var sales []domain.Sale
	if err := s.client.do(ctx, http.MethodGet, "/sales/", nil, nil, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *SalesService) Get(ctx context.Context, id int) (domain.Sale, error) {
	var sale domain.Sale
	err := s.client.do(ctx, http.MethodGet, "/sales/"+itoa(id), nil, nil, &sale)
	return sale, err
}

// Create opens an empty sale.
func (s *SalesService) Create(ctx context.Context) (domain.Sale, error) {
	var sale domain.Sale
	err := s.client.do(ctx, http.MethodPost, "/sales/", nil, nil, &sale)
	return sale, err
}

func (s *SalesService) AddItem(ctx context.Context, saleID int, barcode string, amount int) error {
	return s.client.do(ctx, http.MethodPost, "/sales/"+itoa(saleID)+"/items", itemQuery(barcode, amount), nil, nil)
}

func (s *SalesService) RemoveItem(ctx context.Context, saleID int, barcode string, amount int) error {
	return s.client.do(ctx, http.MethodDelete, "/sales/"+itoa(saleID)+"/items", itemQuery(barcode, amount), nil, nil)
}

func (s *SalesService) SetDiscount(ctx context.Context, saleID int, rate decimal.Decimal) error {
	query := url.Values{"discount_rate": {rate.String()}}
	return s.client.do(ctx, http.MethodPatch, "/sales/"+itoa(saleID)+"/discount", query, nil, nil)
}

func (s *SalesService) SetLineDiscount(ctx context.Context, saleID int, barcode string, rate decimal.Decimal) error {
	query := url.Values{"discount_rate": {rate.String()}}
	path := "/sales/" + itoa(saleID) + "/items/" + url.PathEscape(barcode) + "/discount"
	return s.client.do(ctx, http.MethodPatch, path, query, nil, nil)
}

// Close moves an OPEN sale to PENDING.
func (s *SalesService) Close(ctx context.Context, saleID int) error {
	return s.client.do(ctx, http.MethodPatch, "/sales/"+itoa(saleID)+"/close", nil, nil, nil)
}

// Pay settles a PENDING sale with the given cash amount.
func (s *SalesService) Pay(ctx context.Context, saleID int, cash decimal.Decimal) error {
	query := url.Values{"cash_amount": {cash.String()}}
	return s.client.do(ctx, http.MethodPatch, "/sales/"+itoa(saleID)+"/pay", query, nil, nil)
}

func itemQuery(barcode string, amount int) url.Values {
	return url.Values{
		"barcode": {barcode},
		"amount":  {strconv.Itoa(amount)},
	}
}
