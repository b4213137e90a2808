package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"ezshop/terminal/internal/clock"
	"ezshop/terminal/internal/domain"
)

const (
	DefaultDelay    = 500 * time.Millisecond
	DefaultMinChars = 2
)

// Result is delivered for every state change of the search box. Searching is
// set while a lookup is in flight; an empty Products with no Err and no
// Searching means the results were cleared.
type Result struct {
	Query     string
	Products  []domain.Product
	Searching bool
	Err       error
}

type Option func(*Debouncer)

func WithDelay(delay time.Duration) Option {
	return func(d *Debouncer) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

// WithMinChars raises the query length that triggers a search. Values
// below DefaultMinChars are ignored.
func WithMinChars(n int) Option {
	return func(d *Debouncer) {
		if n > DefaultMinChars {
			d.minChars = n
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(d *Debouncer) {
		if clk != nil {
			d.clock = clk
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Debouncer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Debouncer waits for typing to pause before searching. Only the result of
// the latest query is delivered.
type Debouncer struct {
	searcher Searcher
	onResult func(Result)
	clock    clock.Clock
	logger   *zap.Logger
	delay    time.Duration
	minChars int

	ctx    context.Context
	cancel context.CancelFunc

	// deliverMu serializes onResult calls; it is taken before mu.
	deliverMu sync.Mutex

	mu     sync.Mutex
	timer  clock.Timer
	seq    uint64
	closed bool
}

func NewDebouncer(searcher Searcher, onResult func(Result), opts ...Option) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		searcher: searcher,
		onResult: onResult,
		clock:    clock.Real{},
		logger:   zap.NewNop(),
		delay:    DefaultDelay,
		minChars: DefaultMinChars,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Type records a keystroke. The pending search, if any, is cancelled.
func (d *Debouncer) Type(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	seq := d.seq

	if utf8.RuneCountInString(query) < d.minChars {
		d.mu.Unlock()
		d.deliver(seq, Result{Query: query})
		return
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq, query) })
	d.mu.Unlock()
}

func (d *Debouncer) fire(seq uint64, query string) {
	d.mu.Lock()
	if d.closed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.deliver(seq, Result{Query: query, Searching: true})
	go func() {
		products, err := Lookup(d.ctx, d.searcher, query)
		if err != nil {
			d.logger.Warn("product search failed", zap.String("query", query), zap.Error(err))
			d.deliver(seq, Result{Query: query, Err: err})
			return
		}
		d.deliver(seq, Result{Query: query, Products: products})
	}()
}

func (d *Debouncer) deliver(seq uint64, res Result) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	stale := d.closed || seq != d.seq
	d.mu.Unlock()
	if stale {
		d.logger.Debug("discarding stale search result", zap.String("query", res.Query))
		return
	}
	if d.onResult != nil {
		d.onResult(res)
	}
}

// Close stops the pending timer and drops any in-flight result.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.cancel()
}
