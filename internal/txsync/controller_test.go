package txsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"ezshop/terminal/internal/api"
	"ezshop/terminal/internal/clock"
)

func fetchValue(v int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return v, nil }
}

func TestRunReplacesValue(t *testing.T) {
	c := NewController(1)
	var states []State
	c.OnChange(func(s Snapshot[int]) { states = append(states, s.State) })

	if err := c.Run(context.Background(), "failed", nil, fetchValue(42)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := c.Value(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if len(states) != 2 || states[0] != Loading || states[1] != Idle {
		t.Fatalf("expected loading then idle, got %v", states)
	}
}

func TestRunFailureKeepsValueAndClearsAfterWindow(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := NewController(7, WithClock(clk))

	mutateErr := &api.Error{StatusCode: 400, Message: "Insufficient stock"}
	err := c.Run(context.Background(), "Failed to add item", func(context.Context) error { return mutateErr }, fetchValue(99))
	if !errors.Is(err, mutateErr) {
		t.Fatalf("expected mutate error, got %v", err)
	}

	snap := c.Snapshot()
	if snap.State != Error || snap.Message != "Insufficient stock" || snap.Value != 7 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	clk.Advance(DefaultErrorWindow - time.Millisecond)
	if c.State() != Error {
		t.Fatalf("expected error to persist inside the window")
	}
	clk.Advance(time.Millisecond)
	snap = c.Snapshot()
	if snap.State != Idle || snap.Message != "" {
		t.Fatalf("expected error to clear, got %+v", snap)
	}
}

func TestRunFailureUsesFallbackMessage(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := NewController(0, WithClock(clk), WithErrorWindow(time.Second))

	_ = c.Run(context.Background(), "Failed to load sale", nil, func(context.Context) (int, error) {
		return 0, errors.New("dial tcp: connection refused")
	})
	if snap := c.Snapshot(); snap.Message != "Failed to load sale" {
		t.Fatalf("expected fallback message, got %q", snap.Message)
	}
	clk.Advance(time.Second)
	if c.State() != Idle {
		t.Fatalf("expected idle after custom window")
	}
}

func TestNewRunCancelsPendingErrorClear(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := NewController(0, WithClock(clk))

	_ = c.Run(context.Background(), "first", nil, func(context.Context) (int, error) { return 0, errors.New("boom") })
	clk.Advance(2 * time.Second)
	_ = c.Run(context.Background(), "second", nil, func(context.Context) (int, error) { return 0, errors.New("boom") })

	// the first window would end here; the second error must survive it
	clk.Advance(time.Second)
	if snap := c.Snapshot(); snap.State != Error || snap.Message != "second" {
		t.Fatalf("expected second error to persist, got %+v", snap)
	}
	clk.Advance(2 * time.Second)
	if c.State() != Idle {
		t.Fatalf("expected second error to clear")
	}
}

func TestRunRefusedWhileLoading(t *testing.T) {
	c := NewController(0)
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.Run(context.Background(), "slow", nil, func(context.Context) (int, error) {
			close(entered)
			<-release
			return 5, nil
		})
	}()
	<-entered

	if err := c.Run(context.Background(), "second", nil, fetchValue(6)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := c.Value(); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestCloseDiscardsLateResult(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := NewController(1, WithClock(clk))
	notified := 0
	c.OnChange(func(Snapshot[int]) { notified++ })

	err := c.Run(context.Background(), "late", nil, func(context.Context) (int, error) {
		c.Close()
		return 2, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := c.Value(); got != 1 {
		t.Fatalf("expected value to stay 1, got %d", got)
	}
	if notified != 1 {
		t.Fatalf("expected only the loading notification, got %d", notified)
	}

	if err := c.Run(context.Background(), "after", nil, fetchValue(3)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no timers after close")
	}
}

func TestCloseDuringFailureLeavesNoTimer(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := NewController(1, WithClock(clk))

	_ = c.Run(context.Background(), "x", nil, func(context.Context) (int, error) {
		c.Close()
		return 0, errors.New("boom")
	})
	if clk.Pending() != 0 {
		t.Fatalf("expected no error timer for a closed view, got %d", clk.Pending())
	}
}
