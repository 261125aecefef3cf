// Package ids provides identifier allocation for rows, views and categories.
//
// Identifiers are opaque tokens: callers must not rely on their ordering or
// density. The UUID allocator is the default; the Counter allocator produces
// deterministic identifiers for tests and reproducible runs.
package ids

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Allocator hands out fresh, globally unique identifiers.
// Implementations must be safe for concurrent use.
type Allocator interface {
	// Next returns a new identifier carrying the given prefix.
	Next(prefix string) string
}

// UUID allocates random version 4 UUIDs.
type UUID struct{}

// Next returns prefix-<uuid>.
func (UUID) Next(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Counter allocates monotonically increasing identifiers per allocator.
// The zero value is ready to use.
type Counter struct {
	n uint64
}

// NewCounter creates a counter allocator whose first identifier is start+1.
func NewCounter(start uint64) *Counter {
	return &Counter{n: start}
}

// Next returns prefix-<n>.
func (c *Counter) Next(prefix string) string {
	id := atomic.AddUint64(&c.n, 1)

	buf := make([]byte, 0, len(prefix)+21)
	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, id, 10)
	return string(buf)
}

var (
	defaultAllocator Allocator = UUID{}
	defaultMu        sync.RWMutex
)

// Default returns the process-wide allocator.
func Default() Allocator {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultAllocator
}

// SetDefault replaces the process-wide allocator and returns the previous one.
func SetDefault(a Allocator) Allocator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultAllocator
	defaultAllocator = a
	return prev
}
