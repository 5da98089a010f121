package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

const codeBookCSV = "VarName,Value,ValueLabel\nCURPLSET,7,Kinship Care\nSEX,2,Female\n"

// noWait records the requested delays instead of sleeping.
func noWait(c *Client) *[]time.Duration {
	var got []time.Duration
	c.wait = func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return ctx.Err()
	}
	return &got
}

func TestGetRetriesUnavailableCodeBook(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "portal busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, codeBookCSV)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 3, Backoff: 100 * time.Millisecond, Logger: zaptest.NewLogger(t)})
	delays := noWait(c)

	resp, err := c.Get(context.Background(), srv.URL+"/codebook/AFCARS_codebook.csv", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != codeBookCSV {
		t.Fatalf("body = %q", body)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("requests = %d; want 3", got)
	}
	if diff := cmp.Diff([]time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays); diff != "" {
		t.Fatalf("backoff delays (-want +got):\n%s", diff)
	}
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 2})
	noWait(c)

	_, err := c.Get(context.Background(), srv.URL+"/FC2002v5.tab", nil)
	if err == nil || !strings.Contains(err.Error(), "status 502") || !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("err = %v; want status 502 after 3 attempts", err)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("requests = %d; want 3", got)
	}
}

func TestGetReturnsFinalStatusWithoutRetry(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest} {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(status)
		}))
		c := NewClient(Config{MaxRetries: 5})
		noWait(c)

		resp, err := c.Get(context.Background(), srv.URL+"/FC1999v5.tab", nil)
		if err != nil {
			srv.Close()
			t.Fatalf("status %d: Get: %v", status, err)
		}
		_ = resp.Body.Close()
		srv.Close()
		if resp.StatusCode != status || hits.Load() != 1 {
			t.Fatalf("status %d: got %d after %d requests", status, resp.StatusCode, hits.Load())
		}
	}
}

func TestGetMergesHeaders(t *testing.T) {
	t.Parallel()

	got := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
	}))
	defer srv.Close()

	c := NewClient(Config{Header: http.Header{
		"Authorization": {"Bearer portal"},
		"X-Dataset":     {"afcars"},
	}})
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"x-dataset": {"ncands"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()

	h := <-got
	if h.Get("Authorization") != "Bearer portal" {
		t.Errorf("Authorization = %q", h.Get("Authorization"))
	}
	if v := h.Values("X-Dataset"); len(v) != 1 || v[0] != "ncands" {
		t.Errorf("X-Dataset = %v; want the per-request value only", v)
	}
}

func TestGetHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Config{}).Get(ctx, srv.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if hits.Load() != 0 {
		t.Fatal("request sent on a canceled context")
	}

	if _, err := NewClient(Config{}).Get(context.Background(), "", nil); err == nil {
		t.Fatal("empty url accepted")
	}
}

func TestDelay(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Backoff: 250 * time.Millisecond, MaxBackoff: time.Second})
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 250 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, time.Second},
		{200, time.Second},
	}
	for _, tt := range tests {
		if got := c.delay(tt.retry); got != tt.want {
			t.Errorf("delay(%d) = %v; want %v", tt.retry, got, tt.want)
		}
	}

	d := NewClient(Config{})
	if d.backoff != DefaultBackoff || d.maxBackoff != DefaultMaxBackoff || d.http.Timeout != DefaultTimeout {
		t.Fatalf("defaults = %v/%v/%v", d.backoff, d.maxBackoff, d.http.Timeout)
	}
}

func TestTransient(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusPartialContent:      false,
		http.StatusNotFound:            false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	} {
		if got := transient(status); got != want {
			t.Errorf("transient(%d) = %v; want %v", status, got, want)
		}
	}
}

func TestWaitForStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := waitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("waitFor ignored cancellation")
	}
}
