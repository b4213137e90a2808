// Package session holds the logged-in operator for one terminal process.
//
// A Session is created once at boot, initialised from its Store, and handed
// to everything that needs the token or the operator's role.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ezshop/terminal/internal/clock"
	"ezshop/terminal/internal/domain"
)

// Authenticator performs the login call.
type Authenticator interface {
	Login(ctx context.Context, username string, password string) (string, error)
}

type Session struct {
	mu          sync.RWMutex
	store       Store
	clock       clock.Clock
	logger      *zap.Logger
	token       string
	user        domain.User
	expiresAt   time.Time
	initialized bool
	onExpired   []func()
}

func New(store Store, clk clock.Clock, logger *zap.Logger) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, clock: clk, logger: logger}
}

// Init restores a persisted login. Unreadable, malformed or expired records
// leave the session logged out; only context errors are returned.
func (s *Session) Init(ctx context.Context) error {
	record, err := s.store.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !errors.Is(err, ErrNoSession) {
			s.logger.Warn("stored session unreadable, starting logged out", zap.Error(err))
		}
		return nil
	}

	claims, err := DecodeToken(record.Token)
	if err != nil || claims.Expired(s.clock.Now()) {
		s.logger.Info("stored session discarded", zap.Bool("expired", err == nil))
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.logger.Warn("failed to clear stored session", zap.Error(clearErr))
		}
		return nil
	}

	s.token = record.Token
	s.user = claims.User
	s.user.ID = record.User.ID
	s.expiresAt = claims.ExpiresAt
	return nil
}

func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Login authenticates, derives the operator from the token and persists it.
func (s *Session) Login(ctx context.Context, auth Authenticator, username string, password string) (domain.User, error) {
	token, err := auth.Login(ctx, username, password)
	if err != nil {
		return domain.User{}, err
	}
	claims, err := DecodeToken(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}

	record := Record{Token: token, User: claims.User, SavedAt: s.clock.Now().UTC()}
	if err := s.store.Save(ctx, record); err != nil {
		return domain.User{}, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = claims.User
	s.expiresAt = claims.ExpiresAt
	s.initialized = true
	s.mu.Unlock()

	s.logger.Info("operator logged in", zap.String("username", claims.User.Username), zap.String("role", string(claims.User.Type)))
	return claims.User, nil
}

func (s *Session) Logout(ctx context.Context) error {
	s.reset()
	return s.store.Clear(ctx)
}

// HandleUnauthorized drops the session after the backend rejected the token
// and notifies OnExpired listeners.
func (s *Session) HandleUnauthorized() {
	s.mu.RLock()
	hadToken := s.token != ""
	s.mu.RUnlock()

	s.reset()
	if err := s.store.Clear(context.Background()); err != nil {
		s.logger.Warn("failed to clear stored session", zap.Error(err))
	}
	if !hadToken {
		return
	}

	s.mu.RLock()
	listeners := append([]func(){}, s.onExpired...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// OnExpired registers fn to run when the backend invalidates the session.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = append(s.onExpired, fn)
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = domain.User{}
	s.expiresAt = time.Time{}
}

// Token implements api.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.token != ""
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && (s.expiresAt.IsZero() || s.clock.Now().Before(s.expiresAt))
}

func (s *Session) HasRole(roles ...domain.UserType) bool {
	user, ok := s.User()
	if !ok {
		return false
	}
	for _, role := range roles {
		if user.Type == role {
			return true
		}
	}
	return false
}

// Key identifies this login without exposing the token. It scopes caches
// that must not outlive the session.
func (s *Session) Key() string {
	token := s.Token()
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
