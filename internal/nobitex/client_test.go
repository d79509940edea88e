package nobitex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"nobitex-trader/internal/metrics"
)

func testEndpoint(tries int) Endpoint {
	return Endpoint{
		ID: "test", Path: "/test",
		Timeout: time.Second, Tries: tries, TriesGap: 10 * time.Millisecond,
	}
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	body, err := c.Get(context.Background(), testEndpoint(3), nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Fatalf("body = %s", body)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_ExhaustedReturnsRequestError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":"failed","code":"TooManyRequests"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.Get(context.Background(), testEndpoint(2), nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T %v", err, err)
	}
	if reqErr.Status != http.StatusTooManyRequests {
		t.Fatalf("last status = %d", reqErr.Status)
	}
	if len(reqErr.Body) == 0 {
		t.Fatal("last body must be carried")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

// httpMetrics builds an unregistered metrics handle so tests can read the
// counters without touching the process-wide registry.
func httpMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		HTTPTries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_http_tries_total",
		}, []string{"endpoint"}),
		HTTPFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_http_failures_total",
		}, []string{"endpoint"}),
	}
}

func TestClient_CountsTriesAndFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := httpMetrics()
	c := NewClient(srv.URL, "", nil).WithMetrics(m)
	if _, err := c.Get(context.Background(), testEndpoint(3), nil); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if got := testutil.ToFloat64(m.HTTPTries.WithLabelValues("test")); got != 3 {
		t.Fatalf("tries counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.HTTPFailures.WithLabelValues("test")); got != 1 {
		t.Fatalf("failures counter = %v, want 1", got)
	}
}

func TestClient_SuccessCountsNoFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	m := httpMetrics()
	c := NewClient(srv.URL, "", nil).WithMetrics(m)
	if _, err := c.Get(context.Background(), testEndpoint(3), nil); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.HTTPTries.WithLabelValues("test")); got != 1 {
		t.Fatalf("tries counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPFailures.WithLabelValues("test")); got != 0 {
		t.Fatalf("failures counter = %v, want 0", got)
	}
}

func TestClient_AuthHeaderAndParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCIRT" {
			t.Errorf("symbol param = %q", got)
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", nil)
	if _, err := c.Get(context.Background(), testEndpoint(1), map[string]string{"symbol": "BTCIRT"}); err != nil {
		t.Fatal(err)
	}
}

func TestClient_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		if string(buf) != `{"type":"buy"}` {
			t.Errorf("body = %s", buf)
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if _, err := c.Post(context.Background(), testEndpoint(1), map[string]string{"type": "buy"}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestClient_CancellationPropagates(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c := NewClient(srv.URL, "", nil)
	_, err := c.Get(ctx, testEndpoint(5), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
