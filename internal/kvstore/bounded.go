package kvstore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"
)

const (
	DefaultSuspendBudget = 4096 // characters, the legacy suspend_data ceiling
	DefaultWarnRatio     = 0.9
)

// Bounded enforces a per-key character budget on top of another store,
// modelling a size-limited suspend buffer. Writes over the budget are
// rejected with ErrOverCapacity; writes close to it are logged and reported
// through OnWarn.
type Bounded struct {
	inner     Store
	capacity  int
	warnRatio float64

	// OnWarn is called when a write lands at or above the warning threshold.
	OnWarn func(key string, used, capacity int)

	mu    sync.Mutex
	usage map[string]int
}

func NewBounded(inner Store, capacity int, warnRatio float64) *Bounded {
	if capacity <= 0 {
		capacity = DefaultSuspendBudget
	}
	if warnRatio <= 0 || warnRatio > 1 {
		warnRatio = DefaultWarnRatio
	}
	return &Bounded{inner: inner, capacity: capacity, warnRatio: warnRatio, usage: map[string]int{}}
}

func (b *Bounded) Capacity() int { return b.capacity }

// Usage reports the size in characters of the last value written for key.
func (b *Bounded) Usage(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usage[key]
}

func (b *Bounded) NearCapacity(key string) bool {
	return b.near(b.Usage(key))
}

func (b *Bounded) near(n int) bool {
	return float64(n) >= b.warnRatio*float64(b.capacity)
}

func (b *Bounded) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.inner.Get(ctx, key)
	if err == nil {
		b.mu.Lock()
		b.usage[key] = utf8.RuneCount(v)
		b.mu.Unlock()
	}
	return v, err
}

func (b *Bounded) Set(ctx context.Context, key string, value []byte) error {
	n := utf8.RuneCount(value)
	if n > b.capacity {
		return fmt.Errorf("%w: %s is %d/%d chars", ErrOverCapacity, key, n, b.capacity)
	}
	if err := b.inner.Set(ctx, key, value); err != nil {
		return err
	}
	b.mu.Lock()
	b.usage[key] = n
	b.mu.Unlock()
	if b.near(n) {
		log.Printf("suspend buffer near capacity: key=%s used=%d cap=%d", key, n, b.capacity)
		if b.OnWarn != nil {
			b.OnWarn(key, n, b.capacity)
		}
	}
	return nil
}

func (b *Bounded) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.usage, key)
	b.mu.Unlock()
	return b.inner.Delete(ctx, key)
}
