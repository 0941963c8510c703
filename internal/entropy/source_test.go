package entropy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestIntRangeInclusiveBounds(t *testing.T) {
	tests := []struct {
		draw float64
		want int
	}{
		{0, 5},
		{0.09, 5},
		{0.1, 6},
		{0.5, 10},
		{0.9999, 15},
	}
	for _, tt := range tests {
		got := IntRange(NewSequence(tt.draw), 5, 15)
		if got != tt.want {
			t.Fatalf("IntRange(draw=%v) = %d, want %d", tt.draw, got, tt.want)
		}
	}
}

func TestSingleChoiceDrawsNothing(t *testing.T) {
	s := NewSequence(0.7)
	if got := Pick(s, []string{"only"}); got != "only" {
		t.Fatalf("Pick = %q", got)
	}
	if got := IntRange(s, 4, 4); got != 4 {
		t.Fatalf("IntRange(4, 4) = %d", got)
	}
	if s.Drawn() != 0 {
		t.Fatalf("drew %d values, want 0", s.Drawn())
	}
}

func TestUniformScalesDraw(t *testing.T) {
	got := Uniform(NewSequence(0.5), 0.2, 0.8)
	if got < 0.4999 || got > 0.5001 {
		t.Fatalf("Uniform = %v, want 0.5", got)
	}
}

func TestSequenceCycles(t *testing.T) {
	s := NewSequence(0.1, 0.2)
	want := []float64{0.1, 0.2, 0.1}
	for i, w := range want {
		if got := s.Float64(); got != w {
			t.Fatalf("draw %d = %v, want %v", i, got, w)
		}
	}
	if s.Drawn() != 3 {
		t.Fatalf("Drawn = %d, want 3", s.Drawn())
	}
}

func TestSampleDistinct(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	got := Sample(NewSeeded(7), items, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, v := range got {
		if seen[v] {
			t.Fatalf("duplicate %q in %v", v, got)
		}
		seen[v] = true
	}
	if len(items) != 4 || items[0] != "a" {
		t.Fatalf("input mutated: %v", items)
	}
}

func TestSampleCapsAtLength(t *testing.T) {
	got := Sample(NewSequence(0), []int{1, 2}, 5)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestSeededDeterministic(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("seeded sources diverged at draw %d", i)
		}
	}
}

func TestNilClientFallsBackToCrypto(t *testing.T) {
	var c *Client
	for i := 0; i < 100; i++ {
		v := c.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("fallback draw out of range: %v", v)
		}
	}
	if NewClient("") != nil {
		t.Fatal("expected nil client for empty key")
	}
}

func TestClientDrainsPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"random":{"data":[0.25,0.5,1.0,0.75]}}}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.url = srv.URL
	c.client = &http.Client{Timeout: time.Second}

	if err := c.Refill(context.Background()); err != nil {
		t.Fatalf("refill: %v", err)
	}
	if got := c.Float64(); got != 0.25 {
		t.Fatalf("first draw = %v, want 0.25", got)
	}
	if got := c.Float64(); got != 0.5 {
		t.Fatalf("second draw = %v, want 0.5", got)
	}
}

func TestClientDrawDoesNotWaitForRefill(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"random":{"data":[0.125]}}}`))
	}))
	defer srv.Close()
	defer unblock()

	c := NewClient("key")
	c.url = srv.URL
	c.client = &http.Client{Timeout: 5 * time.Second}

	done := make(chan float64, 1)
	go func() { done <- c.Float64() }()
	select {
	case v := <-done:
		if v < 0 || v >= 1 {
			t.Fatalf("fallback draw out of range: %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("draw blocked on the refill request")
	}
	unblock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.pool)
		c.mu.Unlock()
		if n > 0 {
			if got := c.Float64(); got != 0.125 {
				t.Fatalf("pooled draw = %v, want 0.125", got)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("background refill never filled the pool")
}

func TestClientRefillReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.url = srv.URL
	if err := c.Refill(context.Background()); err == nil {
		t.Fatal("expected api error")
	}
	var nilClient *Client
	if err := nilClient.Refill(context.Background()); err != nil {
		t.Fatalf("nil client refill: %v", err)
	}
}
