package resource

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a scan result is served from cache.
const DefaultTTL = 5 * time.Second

// Scanner enumerates reachable locators. Scans may be slow and, on shared
// buses, must not overlap.
type Scanner interface {
	Scan(ctx context.Context) ([]Locator, error)
}

// ScannerFunc adapts a function to Scanner.
type ScannerFunc func(ctx context.Context) ([]Locator, error)

func (f ScannerFunc) Scan(ctx context.Context) ([]Locator, error) { return f(ctx) }

// Lister is the read side of a Cache.
type Lister interface {
	List(ctx context.Context, forceRefresh bool) ([]Locator, error)
}

// Observer receives cache events, e.g. for metrics.
type Observer interface {
	ScanCompleted(d time.Duration, found int, err error)
	CacheHit()
}

// scanCall is one in-flight scan shared by every caller that arrives while
// it runs.
type scanCall struct {
	done   chan struct{}
	joined int
	gen    uint64 // cache generation when the scan started
	result []Locator
	err    error
}

// Cache serves scan results for a bounded TTL and guarantees at most one
// scan in flight. Callers arriving during a scan wait for it and share its
// result, including callers that asked for a forced refresh.
type Cache struct {
	scanner Scanner
	ttl     time.Duration
	now     func() time.Time

	log      logrus.FieldLogger
	observer Observer

	mu        sync.Mutex
	entries   []Locator
	scannedAt time.Time
	valid     bool
	gen       uint64 // bumped by Invalidate
	inflight  *scanCall
}

// NewCache wraps scanner. A non-positive ttl selects DefaultTTL.
func NewCache(scanner Scanner, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return &Cache{
		scanner: scanner,
		ttl:     ttl,
		now:     time.Now,
		log:     discard,
	}
}

// SetLogger replaces the logger.
func (c *Cache) SetLogger(log logrus.FieldLogger) {
	if log != nil {
		c.log = log
	}
}

// SetObserver installs an event observer.
func (c *Cache) SetObserver(o Observer) {
	c.observer = o
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// List returns the cached locators while they are younger than the TTL and
// forceRefresh is false; otherwise it scans. The returned slice is a copy.
func (c *Cache) List(ctx context.Context, forceRefresh bool) ([]Locator, error) {
	c.mu.Lock()
	if !forceRefresh && c.valid && c.now().Sub(c.scannedAt) < c.ttl {
		out := cloneLocators(c.entries)
		c.mu.Unlock()
		if c.observer != nil {
			c.observer.CacheHit()
		}
		return out, nil
	}

	if call := c.inflight; call != nil {
		call.joined++
		c.mu.Unlock()
		select {
		case <-call.done:
			return cloneLocators(call.result), call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &scanCall{done: make(chan struct{}), gen: c.gen}
	c.inflight = call
	c.mu.Unlock()

	c.run(ctx, call)
	return cloneLocators(call.result), call.err
}

// run performs the scan on the caller's goroutine and publishes the result.
// A scan that was overtaken by Invalidate still answers its callers but is
// not cached.
func (c *Cache) run(ctx context.Context, call *scanCall) {
	start := c.now()
	found, err := c.scanner.Scan(ctx)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	if err == nil {
		call.result = cloneLocators(found)
		if call.gen == c.gen {
			c.entries = call.result
			c.scannedAt = c.now()
			c.valid = true
		}
	} else {
		c.valid = false
		call.err = err
	}
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)

	if c.observer != nil {
		c.observer.ScanCompleted(elapsed, len(found), err)
	}
	entry := c.log.WithFields(logrus.Fields{"found": len(found), "elapsed": elapsed})
	if err != nil {
		entry.WithError(err).Warn("resource scan failed")
		return
	}
	entry.Debug("resource scan completed")
}

// Invalidate forces the next List to scan regardless of the TTL, including
// when a scan is already running.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.valid = false
	c.mu.Unlock()
}

func cloneLocators(in []Locator) []Locator {
	if in == nil {
		return nil
	}
	return append([]Locator(nil), in...)
}
