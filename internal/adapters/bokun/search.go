package bokun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/observability"
)

// caller is the slice of Client the strategy needs; tests stub it.
type caller interface {
	Do(ctx context.Context, method, path string, body any) ([]byte, error)
}

// SearchStrategy probes the booking search endpoints with a fixed sequence
// of request shapes. Bokun's accepted shape differs between accounts and
// API revisions and is not reliably documented, so we stop at the first
// variant that yields an array-shaped response instead of failing on the
// first mismatch.
type SearchStrategy struct {
	c caller

	// One strategy is shared between the periodic runner and the manual
	// trigger; overlapping runs both record the winner.
	mu          sync.Mutex
	lastVariant string
}

func NewSearchStrategy(c caller) *SearchStrategy { return &SearchStrategy{c: c} }

type variant struct {
	name   string
	method string
	path   func(from, to time.Time) string
	body   func(from, to time.Time) any
}

var searchVariants = []variant{
	{
		name:   "booking-search-iso",
		method: http.MethodPost,
		path:   func(time.Time, time.Time) string { return "/booking.json/booking-search" },
		body: func(from, to time.Time) any {
			return map[string]any{
				"bookingStatuses": []string{"CONFIRMED", "CANCELLED"},
				"startDateRange": map[string]string{
					"from": from.UTC().Format(time.RFC3339),
					"to":   to.UTC().Format(time.RFC3339),
				},
			}
		},
	},
	{
		name:   "booking-search-epoch",
		method: http.MethodPost,
		path:   func(time.Time, time.Time) string { return "/booking.json/booking-search" },
		body: func(from, to time.Time) any {
			return map[string]any{
				"bookingStatuses": []string{"CONFIRMED", "CANCELLED"},
				"startDateRange": map[string]int64{
					"from": from.UTC().UnixMilli(),
					"to":   to.UTC().UnixMilli(),
				},
			}
		},
	},
	{
		name:   "product-booking-list",
		method: http.MethodGet,
		path: func(from, to time.Time) string {
			q := url.Values{}
			q.Set("start", from.UTC().Format("2006-01-02"))
			q.Set("end", to.UTC().Format("2006-01-02"))
			return "/booking.json/product-booking-search?" + q.Encode()
		},
		body: func(time.Time, time.Time) any { return nil },
	},
	{
		name:   "legacy-search",
		method: http.MethodPost,
		path:   func(time.Time, time.Time) string { return "/booking.json/search" },
		body: func(from, to time.Time) any {
			return map[string]string{
				"startDate": from.UTC().Format("2006-01-02"),
				"endDate":   to.UTC().Format("2006-01-02"),
			}
		},
	},
}

// Search returns the raw bookings for the window plus the name of the
// variant that produced them. Every variant failing re-raises the last
// error encountered.
func (s *SearchStrategy) Search(ctx context.Context, from, to time.Time) ([]map[string]any, string, error) {
	var lastErr error
	for _, v := range searchVariants {
		b, err := s.c.Do(ctx, v.method, v.path(from, to), v.body(from, to))
		if err != nil {
			log.Debug().Str("variant", v.name).Err(err).Msg("booking search variant failed")
			lastErr = err
			continue
		}
		items, ok := bookingArray(b)
		if !ok {
			log.Debug().Str("variant", v.name).Msg("booking search variant returned unusable shape")
			lastErr = fmt.Errorf("variant %s: response is not array-shaped", v.name)
			continue
		}
		s.mu.Lock()
		s.lastVariant = v.name
		s.mu.Unlock()
		observability.ObserveSearchVariant(v.name)
		log.Info().Str("variant", v.name).Int("bookings", len(items)).Msg("booking search succeeded")
		return items, v.name, nil
	}
	return nil, "", lastErr
}

// LastVariant names the request shape that last succeeded. Diagnostics only.
func (s *SearchStrategy) LastVariant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVariant
}

// bookingArray accepts a top-level JSON array or an object with an "items"
// array and coerces the elements to maps.
func bookingArray(b []byte) ([]map[string]any, bool) {
	var root any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, false
	}
	var raw []any
	switch v := root.(type) {
	case []any:
		raw = v
	case map[string]any:
		items, ok := v["items"].([]any)
		if !ok {
			return nil, false
		}
		raw = items
	default:
		return nil, false
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}
