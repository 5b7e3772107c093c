package bokun

import (
	"sync"
	"time"
)

// WindowLimiter tracks calls against a fixed rolling window (Bokun allows
// 400 requests per minute per vendor). It is owned by a single client
// instance; the real ceiling is enforced server-side via 429.
type WindowLimiter struct {
	mu          sync.Mutex
	ceiling     int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

func NewWindowLimiter(ceiling int, window time.Duration, now func() time.Time) *WindowLimiter {
	if ceiling <= 0 {
		ceiling = 400
	}
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &WindowLimiter{ceiling: ceiling, window: window, now: now}
}

// Reserve consumes one slot from the current window. When the budget is
// exhausted it returns ok=false and the estimated wait until the window
// rolls over; nothing is consumed in that case.
func (l *WindowLimiter) Reserve() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now()
	if l.windowStart.IsZero() || t.Sub(l.windowStart) >= l.window {
		l.windowStart = t
		l.count = 0
	}
	if l.count >= l.ceiling {
		return l.window - t.Sub(l.windowStart), false
	}
	l.count++
	return 0, true
}
