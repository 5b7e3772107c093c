// internal/adapters/bokun/client.go
package bokun

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/observability"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

const (
	dateFormat     = "2006-01-02 15:04:05"
	maxAttempts429 = 3
	defaultRetry   = 60 * time.Second
)

type Client struct {
	base    string
	hc      *http.Client
	access  string
	secret  string
	limiter *WindowLimiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) bool
}

func New(base, accessKey, secretKey string, limiter *WindowLimiter) (*Client, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("access and secret keys are required")
	}
	if limiter == nil {
		limiter = NewWindowLimiter(400, time.Minute, time.Now)
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: 20 * time.Second},
		access:  accessKey,
		secret:  secretKey,
		limiter: limiter,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// WithClock overrides the signature clock and retry sleep. Tests use this to
// make throttling deterministic.
func (c *Client) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) bool) *Client {
	if now != nil {
		c.now = now
	}
	if sleep != nil {
		c.sleep = sleep
	}
	return c
}

// Do performs one signed call. The local window budget is consulted first; a
// rejection surfaces as *domain.RateBudgetError without touching the network.
// 429 responses are retried up to maxAttempts429 times, sleeping the
// server-provided Retry-After (default 60s) after each one. Any other >=400
// fails immediately.
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if wait, ok := c.limiter.Reserve(); !ok {
		return nil, &domain.RateBudgetError{Wait: wait}
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts429; attempt++ {
		req, err := c.newSignedRequest(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.ObserveExternal("bokun", path, 0, time.Since(start))
			return nil, &domain.TransportError{Err: err}
		}
		observability.ObserveExternal("bokun", path, resp.StatusCode, time.Since(start))

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = defaultRetry
			}
			lastErr = &domain.UpstreamError{Status: http.StatusTooManyRequests, Message: "throttled"}
			if !c.sleep(ctx, wait) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &domain.UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
		}

		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &domain.TransportError{Err: err}
		}
		return b, nil
	}
	return nil, lastErr
}

// RateTitle fetches the activity detail document and returns the title of
// the given rate. Secondary lookup used for language inference.
func (c *Client) RateTitle(ctx context.Context, activityID, rateID string) (string, error) {
	b, err := c.Do(ctx, http.MethodGet, "/activity.json/"+activityID, nil)
	if err != nil {
		return "", err
	}
	var doc struct {
		Rates []struct {
			ID    json.Number `json:"id"`
			Title string      `json:"title"`
		} `json:"rates"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", fmt.Errorf("decode activity %s: %w", activityID, err)
	}
	for _, r := range doc.Rates {
		if r.ID.String() == rateID {
			return r.Title, nil
		}
	}
	return "", fmt.Errorf("rate %s not found on activity %s", rateID, activityID)
}

func (c *Client) newSignedRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}

	date := c.now().UTC().Format(dateFormat)
	mac := hmac.New(sha1.New, []byte(c.secret))
	mac.Write([]byte(date + c.access + method + path))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("X-Bokun-Date", date)
	req.Header.Set("X-Bokun-AccessKey", c.access)
	req.Header.Set("X-Bokun-Signature", sig)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "florence-tours/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if
// absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
