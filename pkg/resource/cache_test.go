package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingScanner counts scans and can block until released.
type countingScanner struct {
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
	result  []Locator
	err     error
}

func (s *countingScanner) Scan(ctx context.Context) ([]Locator, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(s Scanner, ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewCache(s, ttl)
	c.now = clock.Now
	return c, clock
}

func TestCacheTTL(t *testing.T) {
	scanner := &countingScanner{result: []Locator{MustParse("SIM::DS1054Z::INSTR")}}
	cache, clock := newTestCache(scanner, 5*time.Second)
	ctx := context.Background()

	first, err := cache.List(ctx, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	clock.Advance(4 * time.Second)
	second, err := cache.List(ctx, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if n := scanner.calls.Load(); n != 1 {
		t.Fatalf("scans within TTL = %d, want 1", n)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("cached result differs: %v vs %v", first, second)
	}

	clock.Advance(2 * time.Second)
	if _, err := cache.List(ctx, false); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if n := scanner.calls.Load(); n != 2 {
		t.Fatalf("scans after expiry = %d, want 2", n)
	}

	if _, err := cache.List(ctx, true); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if n := scanner.calls.Load(); n != 3 {
		t.Fatalf("scans after forced refresh = %d, want 3", n)
	}

	cache.Invalidate()
	if _, err := cache.List(ctx, false); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if n := scanner.calls.Load(); n != 4 {
		t.Fatalf("scans after invalidate = %d, want 4", n)
	}
}

func TestCacheReturnsCopy(t *testing.T) {
	scanner := &countingScanner{result: []Locator{MustParse("SIM::DS1054Z::INSTR")}}
	cache, _ := newTestCache(scanner, time.Minute)

	got, _ := cache.List(context.Background(), false)
	got[0].Model = "mutated"
	again, _ := cache.List(context.Background(), false)
	if again[0].Model != "DS1054Z" {
		t.Fatalf("cache entry mutated through returned slice")
	}
}

func TestCacheScanFailureNotCached(t *testing.T) {
	scanner := &countingScanner{err: errors.New("LIBUSB_ERROR_BUSY")}
	cache, _ := newTestCache(scanner, time.Minute)

	if _, err := cache.List(context.Background(), false); err == nil {
		t.Fatalf("expected scan error")
	}
	scanner.err = nil
	if _, err := cache.List(context.Background(), false); err != nil {
		t.Fatalf("List after failure: %v", err)
	}
	if n := scanner.calls.Load(); n != 2 {
		t.Fatalf("scans = %d, want 2", n)
	}
}

func TestCacheSingleInflightScan(t *testing.T) {
	scanner := &countingScanner{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
		result:  []Locator{MustParse("SIM::DP832::INSTR")},
	}
	cache, _ := newTestCache(scanner, time.Minute)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]Locator, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = cache.List(ctx, false)
	}()
	<-scanner.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Forced refreshes join the running scan as well.
			results[i], errs[i] = cache.List(ctx, i%2 == 0)
		}(i)
	}

	deadline := time.Now().Add(5 * time.Second)
	for joined(cache) < callers-1 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d callers joined the scan", joined(cache))
		}
		time.Sleep(time.Millisecond)
	}
	close(scanner.gate)
	wg.Wait()

	if n := scanner.calls.Load(); n != 1 {
		t.Fatalf("concurrent callers triggered %d scans, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if len(results[i]) != 1 || results[i][0].Model != "DP832" {
			t.Fatalf("caller %d got %v", i, results[i])
		}
	}
}

func TestCacheInvalidateDuringScan(t *testing.T) {
	scanner := &countingScanner{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
		result:  []Locator{MustParse("SIM::DS1054Z::INSTR")},
	}
	cache, _ := newTestCache(scanner, time.Minute)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		got, err := cache.List(ctx, false)
		if err == nil && len(got) != 1 {
			err = errors.New("in-flight caller lost its result")
		}
		done <- err
	}()
	<-scanner.started
	cache.Invalidate()
	close(scanner.gate)
	if err := <-done; err != nil {
		t.Fatalf("in-flight List: %v", err)
	}

	if _, err := cache.List(ctx, false); err != nil {
		t.Fatalf("List after Invalidate: %v", err)
	}
	if n := scanner.calls.Load(); n != 2 {
		t.Fatalf("scans = %d, want 2: Invalidate during a scan was ignored", n)
	}
	if _, err := cache.List(ctx, false); err != nil {
		t.Fatalf("cached List: %v", err)
	}
	if n := scanner.calls.Load(); n != 2 {
		t.Fatalf("scans = %d, want 2 once the rescan is cached", n)
	}
}

func joined(c *Cache) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.joined
}

func TestCacheWaiterHonoursContext(t *testing.T) {
	scanner := &countingScanner{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	cache, _ := newTestCache(scanner, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.List(context.Background(), false)
	}()
	<-scanner.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cache.List(ctx, false); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waiter error = %v, want deadline exceeded", err)
	}

	close(scanner.gate)
	<-done
}
