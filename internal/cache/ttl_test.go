package cache

import (
	"testing"
	"time"
)

func TestSessionTTLFollowsTokenExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fallback := 5 * time.Minute

	if got := SessionTTL(now.Add(8*time.Hour), now, fallback); got != 8*time.Hour {
		t.Fatalf("expected entries to live as long as the session, got %s", got)
	}
	if got := SessionTTL(time.Time{}, now, fallback); got != fallback {
		t.Fatalf("expected fallback without expiry, got %s", got)
	}
	if got := SessionTTL(now.Add(-time.Second), now, fallback); got != fallback {
		t.Fatalf("expected fallback for expired token, got %s", got)
	}
}
