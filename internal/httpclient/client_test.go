package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestGate_SpacesRequests(t *testing.T) {
	const interval = 20 * time.Millisecond
	g := NewGate(interval)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Wait(ctx); err != nil {
				t.Errorf("Wait failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Five starts need at least four intervals between the first and last.
	if elapsed := time.Since(start); elapsed < 4*interval {
		t.Errorf("Expected at least %v, got %v", 4*interval, elapsed)
	}
}

func TestGate_ZeroInterval(t *testing.T) {
	g := NewGate(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := g.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected no spacing, took %v", elapsed)
	}
}

func TestGate_Cancelled(t *testing.T) {
	g := NewGate(time.Hour)
	ctx := context.Background()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "tilevault-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("tile-bytes"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(nil, "tilevault-test", 50*time.Millisecond)
	ctx := context.Background()

	body, err := c.Fetch(ctx, srv.URL+"/ok")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "tile-bytes" {
		t.Errorf("Expected body, got %q", body)
	}

	_, err = c.Fetch(ctx, srv.URL+"/missing")
	if statusOf(err) != http.StatusNotFound {
		t.Errorf("Expected 404 StatusError, got %v", err)
	}

	if _, err := c.Fetch(ctx, srv.URL+"/slow"); err == nil {
		t.Error("Expected timeout error")
	}
}

func TestClient_SingleAttempt(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "", time.Second)
	if _, err := c.Fetch(context.Background(), srv.URL); statusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 StatusError, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected exactly one request, got %d", calls)
	}
}

// statusOf returns the provider status carried by err, or 0.
func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
