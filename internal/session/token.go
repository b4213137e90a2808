package session

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"ezshop/terminal/internal/domain"
)

var ErrInvalidToken = errors.New("invalid session token")

type shopClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

// Claims is what the terminal learns about the operator from the token.
type Claims struct {
	User      domain.User
	ExpiresAt time.Time
}

// DecodeToken reads sub, role and exp without checking the signature: the
// terminal never holds the signing secret, the backend verifies every call.
func DecodeToken(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := &shopClaims{}
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		User: domain.User{Username: sub, Type: domain.UserType(claims.Role)},
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
