package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"ezshop/terminal/internal/api"
	"ezshop/terminal/internal/cache"
	"ezshop/terminal/internal/clock"
	"ezshop/terminal/internal/config"
	"ezshop/terminal/internal/domain"
	"ezshop/terminal/internal/logging"
	"ezshop/terminal/internal/session"
	pgsession "ezshop/terminal/internal/session/postgres"
	"ezshop/terminal/internal/txsync"
)

var (
	errNotLoggedIn = errors.New("not logged in, run `ezshop login` first")
	errForbidden   = errors.New("your role cannot use this command")
)

var backOffice = []domain.UserType{domain.UserTypeAdministrator, domain.UserTypeShopManager}

// app holds everything a command needs. It is built once per invocation in
// the cli Before hook.
type app struct {
	cfg    config.Config
	in     *bufio.Reader
	out    *lockedWriter
	errOut *lockedWriter

	logger  *zap.Logger
	session *session.Session
	client  *api.Client
	details *cache.ProductDetails
	clock   clock.Clock
	closers []func() error
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (a *app) setup(ctx context.Context) error {
	logger, err := logging.New(logging.Config{Level: a.cfg.Logger.Level, Encoding: a.cfg.Logger.Encoding})
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	store, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	a.session = session.New(store, a.clock, logger)
	if err := a.session.Init(ctx); err != nil {
		return err
	}
	a.session.OnExpired(func() {
		fmt.Fprintln(a.errOut, "Session expired. Please log in again.")
	})

	var metrics *api.Metrics
	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = api.NewMetrics(reg)
		a.serveMetrics(reg)
	}

	client, err := api.New(a.cfg.API.BaseURL,
		api.WithTimeout(a.cfg.RequestTimeout()),
		api.WithTokenSource(a.session),
		api.WithUnauthorizedHandler(a.session.HandleUnauthorized),
		api.WithLogger(logger),
		api.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	a.client = client
	a.details = cache.NewProductDetails(a.productCache(ctx), client.Products, logger)
	return nil
}

// sessionStore refuses to fall back to the file store when DATABASE_URL is
// set but unreachable.
func (a *app) sessionStore(ctx context.Context) (session.Store, error) {
	if a.cfg.Session.DatabaseURL == "" {
		a.logger.Debug("session store: file", zap.String("path", a.cfg.Session.File))
		return session.NewFileStore(a.cfg.Session.File), nil
	}
	pg, err := pgsession.New(ctx, a.cfg.Session.DatabaseURL, a.cfg.Session.TerminalID)
	if err != nil {
		return nil, fmt.Errorf("postgres session store unavailable and DATABASE_URL is set: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	a.logger.Debug("session store: postgres", zap.String("terminal_id", a.cfg.Session.TerminalID))
	return pg, nil
}

func (a *app) productCache(ctx context.Context) cache.ProductCache {
	if a.cfg.Redis.Addr == "" {
		return cache.NewMemoryProductCache()
	}
	scope := a.session.Key()
	if scope == "" {
		scope = a.cfg.Session.TerminalID
	}
	ttl := cache.SessionTTL(a.session.ExpiresAt(), a.clock.Now(), a.cfg.ProductCacheTTL())
	rc := cache.NewRedisProductCache(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, scope, ttl)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		a.logger.Warn("redis unavailable, using in-memory product cache", zap.Error(err))
		_ = rc.Close()
		return cache.NewMemoryProductCache()
	}
	a.closers = append(a.closers, rc.Close)
	return rc
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})
}

// close runs closers in reverse order of registration.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) requireUser() (domain.User, error) {
	user, ok := a.session.User()
	if !ok || !a.session.Authenticated() {
		return domain.User{}, errNotLoggedIn
	}
	return user, nil
}

func (a *app) requireRole(roles ...domain.UserType) error {
	if _, err := a.requireUser(); err != nil {
		return err
	}
	if !a.session.HasRole(roles...) {
		return errForbidden
	}
	return nil
}

func (a *app) syncOptions() []txsync.Option {
	return []txsync.Option{
		txsync.WithClock(a.clock),
		txsync.WithLogger(a.logger),
		txsync.WithErrorWindow(a.cfg.ErrorWindow()),
	}
}

// readLine prompts on errOut and reads one line from in.
func (a *app) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.errOut, prompt)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func argInt(c *cli.Context, i int, name string) (int, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", name, raw)
	}
	return n, nil
}

func argString(c *cli.Context, i int, name string) (string, error) {
	raw := strings.TrimSpace(c.Args().Get(i))
	if raw == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return raw, nil
}

// viewError prefers the message the view is showing over the raw error.
func viewError[T any](err error, snap txsync.Snapshot[T]) error {
	if err == nil {
		return nil
	}
	if snap.State == txsync.Error && snap.Message != "" {
		return errors.New(snap.Message)
	}
	return apiError(err)
}

// apiError replaces a backend error with the message the backend sent.
func apiError(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return err
}
