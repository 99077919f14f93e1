// Package probe caches vision-capability checks so a provider is not
// re-probed on every chat turn.
package probe

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long a probe outcome is trusted. Capability rarely
// changes within a session, but endpoints do get reconfigured.
const DefaultTTL = 5 * time.Minute

// Prober is the subset of a describer needed to test vision support.
type Prober interface {
	Name() string
	Model() string
	ProbeVision(ctx context.Context) error
}

type entry struct {
	supported bool
	expires   time.Time
}

// Cache remembers per-provider probe outcomes, keyed by provider name and
// model so a configuration change invalidates naturally.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry

	now func() time.Time // stubbed in tests
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// SupportsVision reports whether the provider accepts image input. The probe
// error itself is discarded; a failed probe just means no vision. Both
// outcomes are cached until the TTL elapses.
func (c *Cache) SupportsVision(ctx context.Context, p Prober) bool {
	key := p.Name() + "/" + p.Model()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.supported
	}
	c.mu.Unlock()

	supported := p.ProbeVision(ctx) == nil

	c.mu.Lock()
	c.entries[key] = entry{supported: supported, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return supported
}

// Invalidate drops every cached outcome, forcing fresh probes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
