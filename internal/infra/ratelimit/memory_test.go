package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_WindowedCounting(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(context.Background(), "client-a", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if decision.Remaining != 3-(i+1) {
			t.Fatalf("unexpected remaining after request %d: %d", i, decision.Remaining)
		}
	}

	decision, err := limiter.Allow(context.Background(), "client-a", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if decision.Allowed {
		t.Fatal("fourth request in window should be denied")
	}

	// A different key has its own window.
	decision, err = limiter.Allow(context.Background(), "client-b", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow other key: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("other key should be allowed")
	}
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})

	if _, err := limiter.Allow(context.Background(), "client-a", 1, time.Minute); err != nil {
		t.Fatalf("allow: %v", err)
	}
	decision, err := limiter.Allow(context.Background(), "client-a", 1, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatal("second request should be denied")
	}

	now = now.Add(2 * time.Minute)
	decision, err = limiter.Allow(context.Background(), "client-a", 1, time.Minute)
	if err != nil {
		t.Fatalf("allow after reset: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("request after window reset should be allowed")
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	decision, err := limiter.Allow(context.Background(), "client-a", 0, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("zero limit disables limiting")
	}
}
