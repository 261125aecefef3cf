// Package constrain conditions any generative model on a boolean event by
// rejection sampling.
//
// An event is an expression tree over the model's variables:
//
//	event := constrain.MustParse("(and (= A true) (= B true))")
//	c, err := constrain.New(model, event)
//	sample, err := c.Simulate([]string{"C"}, nil)
//
// Simulate is exact: it redraws from the base model until the event holds.
// It is unbounded unless WithMaxAttempts or a cancellable context is used.
//
// Logpdf is a Monte-Carlo estimate. It draws event-variable samples from the
// constrained model and returns the log of the arithmetic mean of the base
// model's densities across them. The mean of densities is unbiased, its log
// is biased downward for finite sample sizes.
package constrain

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/metrics"
	"github.com/ajitpratap0/crosscat/pkg/observability"
	"github.com/ajitpratap0/crosscat/pkg/stats"
)

// DefaultSampleSize is the number of draws behind each Logpdf estimate.
const DefaultSampleSize = 1000

// Constrained is a GPM conditioned on an event. It is immutable.
type Constrained struct {
	base        gpm.GPM
	event       Node
	predicate   Predicate
	eventVars   []string
	sampleSize  int
	maxAttempts int
	workers     int
	logger      *zap.Logger
}

var _ gpm.GPM = (*Constrained)(nil)

// Option configures a Constrained model.
type Option func(*Constrained)

// WithSampleSize sets the number of draws behind each Logpdf estimate.
func WithSampleSize(n int) Option {
	return func(c *Constrained) { c.sampleSize = n }
}

// WithMaxAttempts bounds the draws of one Simulate call. Zero, the default,
// means unbounded; exhausting a bound fails with ErrorTypeExhausted.
func WithMaxAttempts(n int) Option {
	return func(c *Constrained) { c.maxAttempts = n }
}

// WithWorkers spreads Logpdf draws over n goroutines.
func WithWorkers(n int) Option {
	return func(c *Constrained) { c.workers = n }
}

// WithRuntime takes the sampler's logger from rt.
func WithRuntime(rt *gpm.Runtime) Option {
	return func(c *Constrained) { c.logger = rt.Resolve().Logger }
}

// New compiles event and wraps base with it. Every variable of the event
// must be modeled by base.
func New(base gpm.GPM, event Node, opts ...Option) (*Constrained, error) {
	predicate, err := Compile(event)
	if err != nil {
		return nil, err
	}
	c := &Constrained{
		base:       base,
		event:      event,
		predicate:  predicate,
		eventVars:  Variables(event),
		sampleSize: DefaultSampleSize,
		workers:    1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get()
	}

	switch {
	case c.sampleSize < 1:
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "sample size must be positive, got %d", c.sampleSize)
	case c.maxAttempts < 0:
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "max attempts must not be negative, got %d", c.maxAttempts)
	case c.workers < 1:
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "workers must be positive, got %d", c.workers)
	}
	if missing := gpm.Difference(c.eventVars, base.Variables()); len(missing) > 0 {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
			"event references unmodeled variables %v", missing).
			WithDetail("event", event.String()).
			WithDetail("missing", missing)
	}
	return c, nil
}

// Base returns the wrapped model.
func (c *Constrained) Base() gpm.GPM { return c.base }

// Event returns the conditioning event.
func (c *Constrained) Event() Node { return c.event }

// EventVariables returns the sorted variables of the event.
func (c *Constrained) EventVariables() []string { return append([]string(nil), c.eventVars...) }

// SampleSize returns the number of draws behind each Logpdf estimate.
func (c *Constrained) SampleSize() int { return c.sampleSize }

// Variables returns the base model's variables.
func (c *Constrained) Variables() []string { return c.base.Variables() }

// Simulate draws targets given conditions and the event.
func (c *Constrained) Simulate(targets []string, conditions gpm.Row) (gpm.Row, error) {
	return c.SimulateContext(context.Background(), targets, conditions)
}

// SimulateContext is Simulate that also stops when ctx is done. The error
// then has ErrorTypeExhausted and wraps ctx.Err().
func (c *Constrained) SimulateContext(ctx context.Context, targets []string, conditions gpm.Row) (gpm.Row, error) {
	if err := gpm.CheckDisjoint(targets, conditions); err != nil {
		return nil, err
	}
	draw := gpm.Union(targets, gpm.Difference(c.eventVars, conditions.Keys()))

	rejected := 0
	defer func() {
		metrics.RejectionDraws.WithLabelValues("rejected").Add(float64(rejected))
	}()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeExhausted, "rejection sampling stopped").
				WithDetail("attempts", attempt-1)
		}

		sample, err := c.base.Simulate(draw, conditions)
		if err != nil {
			return nil, err
		}
		ok, err := c.predicate(conditions.Merge(sample))
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.RejectionDraws.WithLabelValues("accepted").Inc()
			metrics.RejectionAttempts.Observe(float64(attempt))
			return sample.Select(targets), nil
		}

		rejected++
		if c.maxAttempts > 0 && attempt >= c.maxAttempts {
			c.logger.Debug("rejection sampling exhausted",
				zap.Int("attempts", attempt),
				zap.String("event", c.event.String()))
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeExhausted,
				"no sample satisfied the event in %d attempts", attempt).
				WithDetail("attempts", attempt).
				WithDetail("event", c.event.String())
		}
	}
}

// Logpdf estimates the log density of targets given conditions and the
// event.
func (c *Constrained) Logpdf(targets, conditions gpm.Row) (float64, error) {
	return c.LogpdfContext(context.Background(), targets, conditions)
}

// LogpdfContext is Logpdf with cancellation and tracing.
//
// Each of the sample-size draws takes the event variables that are not
// conditions from the constrained model and scores targets under the base
// model given conditions and that draw. The estimate is
// logsumexp(l) - log(n), the log of the mean density. Targets may not name
// event variables; such a query fails with ErrorTypeOverlappingVariables.
func (c *Constrained) LogpdfContext(ctx context.Context, targets, conditions gpm.Row) (lp float64, err error) {
	if err := gpm.CheckDisjointRows(targets, conditions); err != nil {
		return 0, err
	}
	if overlap := gpm.Intersect(targets.Keys(), c.eventVars); len(overlap) > 0 {
		return 0, crosscaterrors.NewOverlappingVariables(targets.Keys(), c.eventVars, overlap).
			WithDetail("event", c.event.String())
	}
	ctx, span := observability.StartSpan(ctx, "constrain.logpdf")
	span.SetAttribute("sample_size", c.sampleSize)
	span.SetAttribute("workers", c.workers)
	defer func() {
		span.SetAttribute("estimate", lp)
		span.Finish(err)
	}()

	aux := gpm.Difference(c.eventVars, conditions.Keys())
	logs := make([]float64, c.sampleSize)
	one := func(ctx context.Context, i int) error {
		sample, err := c.SimulateContext(ctx, aux, conditions)
		if err != nil {
			return err
		}
		l, err := c.base.Logpdf(targets, conditions.Merge(sample))
		if err != nil {
			return err
		}
		logs[i] = l
		return nil
	}

	if c.workers == 1 {
		for i := range logs {
			if err := one(ctx, i); err != nil {
				return 0, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for i := range logs {
			g.Go(func() error { return one(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	lp = stats.LogMeanExp(logs)
	if math.IsNaN(lp) {
		return 0, crosscaterrors.New(crosscaterrors.ErrorTypeInternal, "density estimate is NaN").
			WithDetail("event", c.event.String())
	}
	return lp, nil
}
