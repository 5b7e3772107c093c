package bokun_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/bokun"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

func noSleep(captured *[]time.Duration) func(context.Context, time.Duration) bool {
	return func(_ context.Context, d time.Duration) bool {
		*captured = append(*captured, d)
		return true
	}
}

func newTestClient(t *testing.T, base string) *bokun.Client {
	t.Helper()
	cl, err := bokun.New(base, "access", "secret", bokun.NewWindowLimiter(1000, time.Minute, nil))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestClient_SignsRequests(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	var gotDate, gotKey, gotSig string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.Header.Get("X-Bokun-Date")
		gotKey = r.Header.Get("X-Bokun-AccessKey")
		gotSig = r.Header.Get("X-Bokun-Signature")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	cl := newTestClient(t, ts.URL).WithClock(func() time.Time { return fixed }, nil)
	if _, err := cl.Do(context.Background(), http.MethodGet, "/booking.json/booking-search", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	wantDate := "2025-06-01 12:30:00"
	if gotDate != wantDate {
		t.Fatalf("date header = %q, want %q", gotDate, wantDate)
	}
	if gotKey != "access" {
		t.Fatalf("access key header = %q", gotKey)
	}
	mac := hmac.New(sha1.New, []byte("secret"))
	mac.Write([]byte(wantDate + "access" + http.MethodGet + "/booking.json/booking-search"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature = %q, want %q", gotSig, want)
	}
}

func TestClient_429_RetryBound(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	var sleeps []time.Duration
	cl := newTestClient(t, ts.URL).WithClock(nil, noSleep(&sleeps))

	_, err := cl.Do(context.Background(), http.MethodGet, "/booking.json/booking-search", nil)
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Status != 429 {
		t.Fatalf("err = %v, want upstream 429", err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("attempts = %d, want exactly 3", n)
	}
	if len(sleeps) != 3 {
		t.Fatalf("sleeps = %v, want three", sleeps)
	}
	for _, d := range sleeps {
		if d != 5*time.Second {
			t.Fatalf("sleep = %s, want 5s", d)
		}
	}
}

func TestClient_429_DefaultRetryAfter(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests) // no Retry-After
			return
		}
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	var sleeps []time.Duration
	cl := newTestClient(t, ts.URL).WithClock(nil, noSleep(&sleeps))

	if _, err := cl.Do(context.Background(), http.MethodGet, "/x", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 60*time.Second {
		t.Fatalf("sleeps = %v, want one 60s wait", sleeps)
	}
}

func TestClient_NonRetryableStatus(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "bad vendor", http.StatusForbidden)
	}))
	defer ts.Close()

	cl := newTestClient(t, ts.URL)
	_, err := cl.Do(context.Background(), http.MethodGet, "/x", nil)
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusForbidden {
		t.Fatalf("err = %v, want upstream 403", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("403 must not be retried")
	}
}

func TestClient_LocalBudgetRejectedBeforeNetwork(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	cl, err := bokun.New(ts.URL, "access", "secret", bokun.NewWindowLimiter(1, time.Minute, nil))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := cl.Do(context.Background(), http.MethodGet, "/x", nil); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	_, err = cl.Do(context.Background(), http.MethodGet, "/x", nil)
	var rbe *domain.RateBudgetError
	if !errors.As(err, &rbe) {
		t.Fatalf("err = %v, want local rate budget rejection", err)
	}
	if rbe.Wait <= 0 || rbe.Wait > time.Minute {
		t.Fatalf("wait = %s, want within the window", rbe.Wait)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("rejected call must not reach the network")
	}
}

func TestClient_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from now on

	cl := newTestClient(t, ts.URL)
	_, err := cl.Do(context.Background(), http.MethodGet, "/x", nil)
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestClient_RateTitle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activity.json/55" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"rates":[{"id":7,"title":"Tour in Italiano"},{"id":8,"title":"English tour"}]}`))
	}))
	defer ts.Close()

	cl := newTestClient(t, ts.URL)
	title, err := cl.RateTitle(context.Background(), "55", "8")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if title != "English tour" {
		t.Fatalf("title = %q", title)
	}
}
