package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		BackoffBase: time.Millisecond,
		MaxElapsed:  time.Second,
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func completionBody(text string) string {
	return fmt.Sprintf(`{"content":[{"text":%q}]}`, text)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("NewClient() error = nil, want error")
	}
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}
		fmt.Fprint(w, completionBody("hello"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	out, err := client.Complete(context.Background(), "say hello", Options{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "hello" {
		t.Errorf("Complete() = %q, want %q", out, "hello")
	}
}

func TestCompleteRetriesOverloadThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"type":"overloaded_error","message":"busy"}}`)
			return
		}
		fmt.Fprint(w, completionBody("finally"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	out, err := client.Complete(context.Background(), "p", Options{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "finally" {
		t.Errorf("Complete() = %q", out)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestCompleteExhaustsRetriesOnOverload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"type":"overloaded_error","message":"busy"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), "p", Options{MaxAttempts: 3})
	if !errors.Is(err, ErrOverloaded) {
		t.Fatalf("Complete() error = %v, want ErrOverloaded", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestCompleteBackoffDelaysDouble(t *testing.T) {
	const base = 40 * time.Millisecond

	var mu sync.Mutex
	var arrivals []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"type":"overloaded_error","message":"busy"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		BackoffBase: base,
		MaxElapsed:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), "p", Options{MaxAttempts: 3})
	if !errors.Is(err, ErrOverloaded) {
		t.Fatalf("Complete() error = %v, want ErrOverloaded", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(arrivals) != 3 {
		t.Fatalf("upstream calls = %d, want 3", len(arrivals))
	}

	// Delay before retry i is base * 2^i: base, then 2*base. Lower bounds
	// are exact; upper bounds are loose to survive scheduler jitter.
	gaps := []time.Duration{arrivals[1].Sub(arrivals[0]), arrivals[2].Sub(arrivals[1])}
	for i, want := range []time.Duration{base, 2 * base} {
		if gaps[i] < want {
			t.Errorf("gap %d = %v, want >= %v", i, gaps[i], want)
		}
		if gaps[i] > want+500*time.Millisecond {
			t.Errorf("gap %d = %v, want ~%v", i, gaps[i], want)
		}
	}
}

func TestCompleteDoesNotRetryNonOverload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"bad prompt"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), "p", Options{MaxAttempts: 5})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Type != "invalid_request_error" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestCompleteAuthFailureIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"bad key"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), "p", Options{MaxAttempts: 5})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Complete() error = %v, want ErrAuth", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestCompleteStatus529CountsAsOverload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), "p", Options{MaxAttempts: 2})
	if !errors.Is(err, ErrOverloaded) {
		t.Fatalf("Complete() error = %v, want ErrOverloaded", err)
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.Complete(context.Background(), "p", Options{}); err == nil {
		t.Fatal("Complete() error = nil, want error")
	}
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"type":"overloaded_error","message":"busy"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		BackoffBase: time.Hour, // retry delay must never elapse
		MaxElapsed:  2 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Complete(ctx, "p", Options{MaxAttempts: 3})
	if err == nil {
		t.Fatal("Complete() error = nil, want error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Complete() blocked %v after cancellation", elapsed)
	}
}
