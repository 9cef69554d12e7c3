package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
)

// recordSleeps returns a sleeper that records delays without waiting.
func recordSleeps(delays *[]time.Duration) Option {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, credential.NewMemoryStore("tok-1"), opts...)
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"t1","title":"Fix pump"}`))
	})

	var task model.Task
	if err := c.Get(context.Background(), "/tasks/t1", nil, &task); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotPath != "/api/tasks/t1" {
		t.Errorf("expected /api prefix, got %q", gotPath)
	}
	if task.Title != "Fix pump" {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestClientWithoutTokenFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, credential.NewMemoryStore(""))
	err := c.Get(context.Background(), "/tasks", nil, nil)
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if !IsAuthError(err) {
		t.Error("expected IsAuthError to be true")
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("no request should reach the server without a token")
	}
}

func TestClientRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	var delays []time.Duration
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"unread":4}`))
	}, recordSleeps(&delays), WithJitter(func(time.Duration) time.Duration { return 0 }))

	var counts model.NotificationCounts
	if err := c.Get(context.Background(), "/notifications/unread-count", nil, &counts); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if counts.Unread != 4 {
		t.Errorf("expected 4 unread, got %d", counts.Unread)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestClientGivesUpAfterThreeRetries(t *testing.T) {
	var calls int32
	var delays []time.Duration
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	}, recordSleeps(&delays))

	err := c.Get(context.Background(), "/tasks", nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !IsRateLimited(err) {
		t.Errorf("expected rate limit error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", calls)
	}
	if len(delays) != 3 {
		t.Fatalf("expected 3 backoff sleeps, got %d", len(delays))
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Errorf("delays not strictly increasing: %v", delays)
		}
	}
}

func TestClientRetryAfterKeepsDelaysIncreasing(t *testing.T) {
	var delays []time.Duration
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}, recordSleeps(&delays), WithJitter(func(time.Duration) time.Duration { return 0 }))

	if err := c.Get(context.Background(), "/tasks", nil, nil); !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(delays) != 3 {
		t.Fatalf("expected 3 backoff sleeps, got %v", delays)
	}
	if delays[0] != 5*time.Second {
		t.Errorf("Retry-After should raise the first delay, got %v", delays[0])
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Errorf("delay %d (%v) not greater than %v", i, delays[i], delays[i-1])
		}
	}
}

func TestClientDoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Task title is required"}`))
	})

	err := c.Post(context.Background(), "/tasks", map[string]string{}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Message != "Task title is required" {
		t.Errorf("expected server message verbatim, got %q", apiErr.Message)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestClientUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	})

	err := c.Get(context.Background(), "/auth/me", nil, nil)
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestClientBackoffRespectsCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithRetry(3, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Get(ctx, "/tasks", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBackoffIsStrictlyIncreasing(t *testing.T) {
	c := NewClient("http://example.invalid", credential.NewMemoryStore("x"),
		WithJitter(func(limit time.Duration) time.Duration { return limit - 1 }))

	prev := time.Duration(0)
	for attempt := 0; attempt < 3; attempt++ {
		d := c.Backoff(attempt)
		if d <= prev {
			t.Fatalf("attempt %d: delay %v not greater than %v", attempt, d, prev)
		}
		prev = d
	}
}
