package trailer

import (
	"fmt"
	"sync"
	"time"
)

// KeyPool rotates a pool of API credentials, each with a request quota
// that resets on a rolling interval. State is in-memory only and starts
// fresh on process restart.
type KeyPool struct {
	mu        sync.Mutex
	keys      []string
	quota     int
	used      map[string]int
	lastReset time.Time
	interval  time.Duration
	now       func() time.Time
}

// NewKeyPool creates a pool. quota is requests per key per interval.
func NewKeyPool(keys []string, quota int, interval time.Duration) *KeyPool {
	p := &KeyPool{
		keys:     keys,
		quota:    quota,
		used:     make(map[string]int, len(keys)),
		interval: interval,
		now:      time.Now,
	}
	p.lastReset = p.now()
	return p
}

// Available returns the first credential with quota left, resetting all
// counters when the interval has rolled over. ErrQuotaExhausted only
// when every key is spent.
func (p *KeyPool) Available() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.now().Sub(p.lastReset) >= p.interval {
		p.used = make(map[string]int, len(p.keys))
		p.lastReset = p.now()
	}

	for _, k := range p.keys {
		if p.used[k] < p.quota {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %d keys, quota %d", ErrQuotaExhausted, len(p.keys), p.quota)
}

// Spend records one request against the credential.
func (p *KeyPool) Spend(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used[key]++
}

// MarkExhausted burns the credential's remaining quota for this window.
// Used when the provider reports quota exceeded before our counter does.
func (p *KeyPool) MarkExhausted(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used[key] = p.quota
}
