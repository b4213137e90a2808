package shoptest

import (
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ezshop/terminal/internal/domain"
)

var errInvalidCredentials = &apiError{status: 401, message: "Invalid username or password"}

var errInvalidToken = &apiError{status: 401, message: "Could not validate credentials"}

type credential struct {
	id       int
	password string
	role     domain.UserType
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

type actor struct {
	Username string
	Role     domain.UserType
}

type authManager struct {
	mu       sync.RWMutex
	secret   []byte
	tokenTTL time.Duration
	users    map[string]credential
}

func newAuthManager(secret string, tokenTTL time.Duration) *authManager {
	return &authManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    make(map[string]credential),
	}
}

func (a *authManager) register(id int, username string, password string, role domain.UserType) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[username] = credential{id: id, password: hash, role: role}
	return nil
}

func (a *authManager) forget(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, username)
}

func (a *authManager) login(username string, password string) (string, error) {
	username = strings.TrimSpace(username)
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, password) {
		return "", errInvalidCredentials
	}
	return a.sign(username, cred.role, time.Now().UTC().Add(a.tokenTTL))
}

func (a *authManager) sign(username string, role domain.UserType, expiresAt time.Time) (string, error) {
	a.mu.RLock()
	secret := a.secret
	a.mu.RUnlock()

	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: string(role),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
}

func (a *authManager) parse(tokenStr string) (actor, error) {
	a.mu.RLock()
	secret := a.secret
	a.mu.RUnlock()

	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return actor{}, errInvalidToken
	}
	return actor{Username: sub, Role: domain.UserType(claims.Role)}, nil
}

// rotate invalidates every token issued so far.
func (a *authManager) rotate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secret = append([]byte("rotated-"), a.secret...)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
