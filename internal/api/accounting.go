package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

type AccountingService struct {
	client *Client
}

func (s *AccountingService) Balance(ctx context.Context) (decimal.Decimal, error) {
	var resp domain.BalanceResponse
	if err := s.client.do(ctx, http.MethodGet, "/accounting/", nil, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

func (s *AccountingService) SetBalance(ctx context.Context, amount decimal.Decimal) error {
	var resp domain.SuccessResponse
	if err := s.client.do(ctx, http.MethodPost, "/accounting/set/", nil, domain.BalanceSetRequest{Amount: amount}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrNotAcked
	}
	return nil
}

func (s *AccountingService) ResetBalance(ctx context.Context) error {
	return s.client.do(ctx, http.MethodPost, "/accounting/reset/", nil, nil, nil)
}

type DashboardService struct {
	client *Client
}

func (s *DashboardService) Stats(ctx context.Context) (domain.Dashboard, error) {
	var stats domain.Dashboard
	err := s.client.do(ctx, http.MethodGet, "/dashboard/stats", nil, nil, &stats)
	return stats, err
}
