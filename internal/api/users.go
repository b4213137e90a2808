package api

import (
	"context"
	"net/http"

	"ezshop/terminal/internal/domain"
)

type UsersService struct {
	client *Client
}

func (s *UsersService) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := s.client.do(ctx, http.MethodGet, "/users/", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UsersService) Create(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	var created domain.User
	err := s.client.do(ctx, http.MethodPost, "/users/", nil, req, &created)
	return created, err
}

func (s *UsersService) Update(ctx context.Context, id int, req domain.UserUpdateRequest) (domain.User, error) {
	var updated domain.User
	err := s.client.do(ctx, http.MethodPut, "/users/"+itoa(id), nil, req, &updated)
	return updated, err
}

func (s *UsersService) Delete(ctx context.Context, id int) error {
	return s.client.do(ctx, http.MethodDelete, "/users/"+itoa(id), nil, nil, nil)
}
