package api

import (
	"context"
	"encoding/json"
	"net/http"

	"ezshop/terminal/internal/domain"
)

type OrdersService struct {
	client *Client
}

// OrderResult is the answer to pay and arrival calls. Depending on the
// backend version those return either the updated order or a bare
// {"success": bool}; Order is nil in the second case.
type OrderResult struct {
	Order *domain.Order
	Acked bool
}

func (r *OrderResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["success"]; ok {
		if _, hasID := fields["id"]; !hasID {
			return json.Unmarshal(raw, &r.Acked)
		}
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return err
	}
	r.Order = &order
	r.Acked = true
	return nil
}

func (s *OrdersService) List(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := s.client.do(ctx, http.MethodGet, "/orders/", nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrdersService) Get(ctx context.Context, id int) (domain.Order, error) {
	var order domain.Order
	err := s.client.do(ctx, http.MethodGet, "/orders/"+itoa(id), nil, nil, &order)
	return order, err
}

func (s *OrdersService) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	var created domain.Order
	order.ID = 0
	err := s.client.do(ctx, http.MethodPost, "/orders/", nil, order, &created)
	return created, err
}

func (s *OrdersService) Pay(ctx context.Context, id int) (OrderResult, error) {
	return s.transition(ctx, "/orders/"+itoa(id)+"/pay")
}

func (s *OrdersService) RecordArrival(ctx context.Context, id int) (OrderResult, error) {
	return s.transition(ctx, "/orders/"+itoa(id)+"/arrival")
}

func (s *OrdersService) transition(ctx context.Context, path string) (OrderResult, error) {
	// An empty 2xx body counts as acknowledged.
	result := OrderResult{Acked: true}
	if err := s.client.do(ctx, http.MethodPatch, path, nil, nil, &result); err != nil {
		return OrderResult{}, err
	}
	if !result.Acked {
		return result, ErrNotAcked
	}
	return result, nil
}
