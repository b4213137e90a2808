package api

import (
	"context"
	"net/http"
	"net/url"

	"ezshop/terminal/internal/domain"
)

type CustomersService struct {
	client *Client
}

type customerNameRequest struct {
	Name string `json:"name"`
}

func (s *CustomersService) List(ctx context.Context) ([]domain.Customer, error) {
	var customers []domain.Customer
	if err := s.client.do(ctx, http.MethodGet, "/customers/", nil, nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *CustomersService) Create(ctx context.Context, name string) (domain.Customer, error) {
	var created domain.Customer
	err := s.client.do(ctx, http.MethodPost, "/customers/", nil, customerNameRequest{Name: name}, &created)
	return created, err
}

func (s *CustomersService) Update(ctx context.Context, id int, name string) (domain.Customer, error) {
	var updated domain.Customer
	err := s.client.do(ctx, http.MethodPut, "/customers/"+itoa(id), nil, customerNameRequest{Name: name}, &updated)
	return updated, err
}

func (s *CustomersService) Delete(ctx context.Context, id int) error {
	return s.client.do(ctx, http.MethodDelete, "/customers/"+itoa(id), nil, nil, nil)
}

// CreateCard issues a new, unattached loyalty card.
func (s *CustomersService) CreateCard(ctx context.Context) (string, error) {
	var card domain.CardResponse
	if err := s.client.do(ctx, http.MethodPost, "/customers/cards", nil, nil, &card); err != nil {
		return "", err
	}
	return card.CardID, nil
}

func (s *CustomersService) AttachCard(ctx context.Context, customerID int, cardID string) error {
	path := "/customers/" + itoa(customerID) + "/attach-card/" + url.PathEscape(cardID)
	return s.client.do(ctx, http.MethodPatch, path, nil, nil, nil)
}
