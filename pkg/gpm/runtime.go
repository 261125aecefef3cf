package gpm

import (
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/ajitpratap0/crosscat/pkg/ids"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/stats"
)

// Runtime carries the collaborators a model needs but does not own.
// It is shared, unchanged, by every snapshot derived from a model.
type Runtime struct {
	// Rand is the random source for every draw. It must be safe for
	// concurrent use; stats.NewRand returns one.
	Rand *rand.Rand
	// IDs allocates row, view and category identifiers.
	IDs ids.Allocator
	// Logger receives debug-level mutation logs.
	Logger *zap.Logger
}

// NewRuntime returns a runtime seeded with seed using a deterministic
// counter allocator, suitable for reproducible runs.
func NewRuntime(seed uint64) *Runtime {
	return &Runtime{
		Rand:   stats.NewRand(seed),
		IDs:    ids.NewCounter(0),
		Logger: logger.Get(),
	}
}

// Resolve fills missing collaborators with process-wide defaults.
// A nil runtime resolves to the defaults.
func (rt *Runtime) Resolve() *Runtime {
	out := &Runtime{}
	if rt != nil {
		*out = *rt
	}
	if out.Rand == nil {
		out.Rand = stats.DefaultRand()
	}
	if out.IDs == nil {
		out.IDs = ids.Default()
	}
	if out.Logger == nil {
		out.Logger = logger.Get()
	}
	return out
}
