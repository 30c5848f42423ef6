package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetSetAndExpiry(t *testing.T) {
	c := New(50 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("got %v %v, want 42 true", v, ok)
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived past its TTL")
	}
}

func TestStats(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	c.Get("missing2")
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 2 {
		t.Fatalf("hits/misses = %d/%d, want 2/2", s.Hits, s.Misses)
	}
	if s.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", s.HitRate)
	}
	if s.Size != 1 {
		t.Errorf("size = %v, want 1", s.Size)
	}
}

func TestKeyStability(t *testing.T) {
	a := Key("optimize", []string{"AAPL", "MSFT"}, "moderate")
	b := Key("optimize", []string{"AAPL", "MSFT"}, "moderate")
	if a != b {
		t.Fatalf("same inputs produced different keys: %s vs %s", a, b)
	}
	if a == Key("optimize", []string{"AAPL", "MSFT"}, "aggressive") {
		t.Fatal("different inputs collided")
	}
	if a == Key("backtest", []string{"AAPL", "MSFT"}, "moderate") {
		t.Fatal("different labels collided")
	}
}

func TestDoCoalescesConcurrentCallers(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := c.Do("shared", func() (any, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return "result", nil
			})
			if err != nil || v.(string) != "result" {
				t.Errorf("got %v %v", v, err)
			}
		}()
	}
	close(start)
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Fatalf("compute ran %d times, want 1", n)
	}
}

func TestDoDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute)
	boom := errors.New("boom")
	if _, err := c.Do("k", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	v, err := c.Do("k", func() (any, error) { return 7, nil })
	if err != nil || v.(int) != 7 {
		t.Fatalf("got %v %v after failed attempt, want 7", v, err)
	}
}

func TestClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if s := c.Stats(); s.Size != 0 {
		t.Fatalf("size after clear = %d, want 0", s.Size)
	}
}
