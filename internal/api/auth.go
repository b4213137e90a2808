package api

import (
	"context"
	"net/http"

	"ezshop/terminal/internal/domain"
)

type AuthService struct {
	client *Client
}

// Login exchanges credentials for a bearer token. A 401 here is a wrong
// password, not an expired session, so the unauthorized handler is skipped.
func (s *AuthService) Login(ctx context.Context, username string, password string) (string, error) {
	var resp domain.TokenResponse
	req := domain.LoginRequest{Username: username, Password: password}
	if err := s.client.do(ctx, http.MethodPost, authPath, nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}
