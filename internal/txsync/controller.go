// Package txsync keeps a sale or return view in step with the backend.
//
// Every mutation is followed by a refetch and the held snapshot is replaced
// wholesale; nothing is patched locally.
package txsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"ezshop/terminal/internal/api"
	"ezshop/terminal/internal/clock"
)

const DefaultErrorWindow = 3 * time.Second

var (
	ErrBusy         = errors.New("a request is already in flight")
	ErrClosed       = errors.New("view is closed")
	ErrNotEditable  = errors.New("transaction is no longer open")
	ErrNotPayable   = errors.New("transaction cannot be settled in its current status")
	ErrNotClosable  = errors.New("transaction cannot be closed in its current status")
	ErrEmpty        = errors.New("transaction has no lines")
	ErrInsufficient = errors.New("cash amount is below the total")
)

type State int

const (
	Idle State = iota
	Loading
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Error:
		return "error"
	}
	return "unknown"
}

// Snapshot is what a view renders. Message is set only in the Error state.
type Snapshot[T any] struct {
	State   State
	Value   T
	Message string
}

type Option func(*options)

type options struct {
	clock       clock.Clock
	logger      *zap.Logger
	errorWindow time.Duration
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorWindow sets how long an error message stays before the view
// returns to Idle on its own.
func WithErrorWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.errorWindow = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.Real{}, logger: zap.NewNop(), errorWindow: DefaultErrorWindow}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Controller runs the Idle/Loading/Error state machine for one view.
type Controller[T any] struct {
	opts options

	mu        sync.Mutex
	state     State
	value     T
	message   string
	errTimer  clock.Timer
	errGen    uint64
	closed    bool
	listeners []func(Snapshot[T])
}

func NewController[T any](initial T, opts ...Option) *Controller[T] {
	return &Controller[T]{opts: buildOptions(opts), value: initial}
}

func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{State: c.state, Value: c.value, Message: c.message}
}

func (c *Controller[T]) Value() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers fn to receive every new snapshot.
func (c *Controller[T]) OnChange(fn func(Snapshot[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Run performs mutate (if any) and then fetch, replacing the held value
// with whatever fetch returns. A failure in either step moves to Error with
// the backend's message, or fallback when there is none.
func (c *Controller[T]) Run(ctx context.Context, fallback string, mutate func(context.Context) error, fetch func(context.Context) (T, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.stopErrorTimerLocked()
	c.state = Loading
	c.message = ""
	c.publishLocked()

	if mutate != nil {
		if err := mutate(ctx); err != nil {
			c.fail(err, fallback)
			return err
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		c.fail(err, fallback)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.opts.logger.Debug("discarding refetch for closed view")
		return ErrClosed
	}
	c.value = value
	c.state = Idle
	c.publishLocked()
	return nil
}

// Refresh replaces the held value without touching the state. Failures are
// logged and swallowed.
func (c *Controller[T]) Refresh(ctx context.Context, fetch func(context.Context) (T, error)) {
	value, err := fetch(ctx)
	if err != nil {
		c.opts.logger.Warn("background refresh failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed || c.state == Loading {
		c.mu.Unlock()
		return
	}
	c.value = value
	c.publishLocked()
}

func (c *Controller[T]) fail(err error, fallback string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.opts.logger.Debug("discarding failure for closed view", zap.Error(err))
		return
	}
	c.state = Error
	c.message = api.MessageOf(err, fallback)
	c.errGen++
	gen := c.errGen
	c.errTimer = c.opts.clock.AfterFunc(c.opts.errorWindow, func() { c.clearError(gen) })
	c.publishLocked()
}

func (c *Controller[T]) clearError(gen uint64) {
	c.mu.Lock()
	if c.closed || c.state != Error || gen != c.errGen {
		c.mu.Unlock()
		return
	}
	c.errTimer = nil
	c.state = Idle
	c.message = ""
	c.publishLocked()
}

func (c *Controller[T]) stopErrorTimerLocked() {
	if c.errTimer != nil {
		c.errTimer.Stop()
		c.errTimer = nil
	}
}

// publishLocked releases c.mu and notifies listeners with the current
// snapshot.
func (c *Controller[T]) publishLocked() {
	snap := c.snapshotLocked()
	listeners := append([]func(Snapshot[T]){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Close detaches the view. Requests still in flight finish, but their
// results are dropped.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopErrorTimerLocked()
	c.listeners = nil
}

func (c *Controller[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
