package bokun_test

import (
	"testing"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/bokun"
)

func TestWindowLimiter_CeilingWithinOneWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := bokun.NewWindowLimiter(400, time.Minute, func() time.Time { return now })

	for i := 0; i < 400; i++ {
		if _, ok := l.Reserve(); !ok {
			t.Fatalf("reservation %d rejected within budget", i+1)
		}
	}

	wait, ok := l.Reserve()
	if ok {
		t.Fatalf("401st reservation allowed")
	}
	if wait <= 0 || wait > time.Minute {
		t.Fatalf("wait = %s, want 0 < wait <= 60s", wait)
	}
}

func TestWindowLimiter_WindowRollover(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := bokun.NewWindowLimiter(2, time.Minute, func() time.Time { return now })

	l.Reserve()
	l.Reserve()
	if _, ok := l.Reserve(); ok {
		t.Fatalf("expected rejection at ceiling")
	}

	now = now.Add(61 * time.Second)
	if _, ok := l.Reserve(); !ok {
		t.Fatalf("expected fresh budget after window rollover")
	}
}

func TestWindowLimiter_WaitShrinksAsWindowAges(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := bokun.NewWindowLimiter(1, time.Minute, func() time.Time { return now })

	l.Reserve()
	now = now.Add(45 * time.Second)
	wait, ok := l.Reserve()
	if ok {
		t.Fatalf("expected rejection")
	}
	if wait != 15*time.Second {
		t.Fatalf("wait = %s, want 15s", wait)
	}
}
