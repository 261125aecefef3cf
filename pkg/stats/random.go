// Package stats holds the numeric helpers shared by the model packages:
// a concurrency-safe seeded random source, log-space reductions and the
// Chinese Restaurant Process partition sampler.
package stats

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// lockedSource serializes access to a PCG source so one *rand.Rand can be
// shared by every snapshot of a model and by parallel estimator workers.
type lockedSource struct {
	mu  sync.Mutex
	src rand.PCGSource
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewSource returns a concurrency-safe source seeded with seed.
func NewSource(seed uint64) rand.Source {
	s := &lockedSource{}
	s.src.Seed(seed)
	return s
}

// NewRand returns a concurrency-safe generator seeded with seed.
// A zero seed draws one from the wall clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(NewSource(seed))
}

var (
	defaultRand     *rand.Rand
	defaultRandOnce sync.Once
)

// DefaultRand returns the process-wide generator.
func DefaultRand() *rand.Rand {
	defaultRandOnce.Do(func() {
		defaultRand = NewRand(0)
	})
	return defaultRand
}
