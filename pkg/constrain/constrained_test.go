package constrain

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/exp/rand"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/stats"
	"github.com/ajitpratap0/crosscat/pkg/testutil"
)

// coins models independent fair booleans.
type coins struct {
	names []string
	rng   *rand.Rand
	draws atomic.Int64
}

func newCoins(seed uint64, names ...string) *coins {
	return &coins{names: names, rng: stats.NewRand(seed)}
}

func (c *coins) Variables() []string { return c.names }

func (c *coins) Logpdf(targets, conditions gpm.Row) (float64, error) {
	if err := gpm.CheckDisjointRows(targets, conditions); err != nil {
		return 0, err
	}
	return float64(len(targets.Keys())) * math.Log(0.5), nil
}

func (c *coins) Simulate(targets []string, conditions gpm.Row) (gpm.Row, error) {
	c.draws.Add(1)
	out := gpm.Row{}
	for _, name := range targets {
		out[name] = c.rng.Float64() < 0.5
	}
	return out, nil
}

// shifted is a model whose density of x depends on a simulated y. It
// records the last y it drew.
type shifted struct {
	rng  *rand.Rand
	mu   sync.Mutex
	last float64
	fail error
}

func (s *shifted) Variables() []string { return []string{"x", "y"} }

func (s *shifted) Logpdf(targets, conditions gpm.Row) (float64, error) {
	if s.fail != nil {
		return 0, s.fail
	}
	y, ok := conditions["y"].(float64)
	if !ok {
		return 0, errors.New("y is required")
	}
	return -y * targets["x"].(float64), nil
}

func (s *shifted) Simulate(targets []string, conditions gpm.Row) (gpm.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := gpm.Row{}
	for _, name := range targets {
		v := s.rng.Float64()
		out[name] = v
		if name == "y" {
			s.last = v
		}
	}
	return out, nil
}

func TestNew(t *testing.T) {
	base := newCoins(1, "A", "B")

	c, err := New(base, MustParse("(= A true)"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleSize, c.SampleSize())
	assert.Equal(t, []string{"A", "B"}, c.Variables())
	assert.Equal(t, []string{"A"}, c.EventVariables())
	assert.Same(t, base, c.Base())

	_, err = New(base, MustParse("(= C true)"))
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeValidation))
	_, err = New(base, MustParse("(= A true)"), WithSampleSize(0))
	assert.Error(t, err)
	_, err = New(base, MustParse("(= A true)"), WithMaxAttempts(-1))
	assert.Error(t, err)
	_, err = New(base, MustParse("(= A true)"), WithWorkers(0))
	assert.Error(t, err)
	_, err = New(base, Op{Operator: OpNot})
	assert.Error(t, err)
}

func TestSimulate_AcceptanceRate(t *testing.T) {
	base := newCoins(42, "A", "B")
	c, err := New(base, MustParse("(and (= A true) (= B true))"))
	require.NoError(t, err)

	const accepted = 4000
	for i := 0; i < accepted; i++ {
		sample, err := c.Simulate(nil, nil)
		require.NoError(t, err)
		assert.Empty(t, sample)
	}
	rate := float64(accepted) / float64(base.draws.Load())
	assert.InDelta(t, 0.25, rate, 0.02)
}

func TestSimulate_OnlyAcceptedSamples(t *testing.T) {
	base := newCoins(7, "A", "B", "C")
	event := MustParse("(or (= A true) (= B true))")
	c, err := New(base, event)
	require.NoError(t, err)
	pred, err := Compile(event)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		sample, err := c.Simulate([]string{"A", "B", "C"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, sample.Keys())
		ok, err := pred(sample)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// Event variables outside the targets are drawn but not returned.
	sample, err := c.Simulate([]string{"C"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, sample.Keys())
}

func TestSimulate_Conditions(t *testing.T) {
	base := newCoins(3, "A", "B")
	c, err := New(base, MustParse("(and (= A true) (= B true))"), WithMaxAttempts(100))
	require.NoError(t, err)

	sample, err := c.Simulate([]string{"B"}, gpm.Row{"A": true})
	require.NoError(t, err)
	assert.Equal(t, gpm.Row{"B": true}, sample)

	// A condition that violates the event can never be accepted.
	_, err = c.Simulate([]string{"B"}, gpm.Row{"A": false})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeExhausted))

	_, err = c.Simulate([]string{"A"}, gpm.Row{"A": true})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables))
}

func TestSimulate_Exhausted(t *testing.T) {
	base := newCoins(5, "A")
	c, err := New(base, MustParse("(and (= A true) (= A false))"), WithMaxAttempts(25))
	require.NoError(t, err)

	_, err = c.Simulate([]string{"A"}, nil)
	require.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeExhausted))
	attempts, _ := crosscaterrors.Detail(err, "attempts")
	assert.Equal(t, 25, attempts)
	assert.Equal(t, int64(25), base.draws.Load())
}

func TestSimulateContext_Cancelled(t *testing.T) {
	base := newCoins(5, "A")
	c, err := New(base, MustParse("(and (= A true) (= A false))"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.SimulateContext(ctx, []string{"A"}, nil)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeExhausted))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLogpdf_SingleSampleIsExact(t *testing.T) {
	base := &shifted{rng: stats.NewRand(8)}
	c, err := New(base, MustParse("(< y 2)"), WithSampleSize(1))
	require.NoError(t, err)

	targets := gpm.Row{"x": 0.7}
	lp, err := c.Logpdf(targets, nil)
	require.NoError(t, err)

	want, err := base.Logpdf(targets, gpm.Row{"y": base.last})
	require.NoError(t, err)
	assert.Equal(t, math.Exp(want), math.Exp(lp))
}

func TestLogpdf_MeanOfDensities(t *testing.T) {
	base := newCoins(9, "A", "B")
	c, err := New(base, MustParse("(= B true)"), WithSampleSize(50))
	require.NoError(t, err)

	lp, err := c.Logpdf(gpm.Row{"A": true}, nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5), lp, 1e-12)

	_, err = c.Logpdf(gpm.Row{"A": true}, gpm.Row{"A": true})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables))
}

func TestLogpdf_TargetsNamingEventVariables(t *testing.T) {
	base := newCoins(11, "A", "B")
	c, err := New(base, MustParse("(= B true)"), WithSampleSize(50))
	require.NoError(t, err)

	for _, targets := range []gpm.Row{
		{"B": false},
		{"B": true},
		{"A": true, "B": false},
	} {
		draws := base.draws.Load()
		lp, err := c.Logpdf(targets, nil)
		require.Error(t, err, "targets %v", targets)
		assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables))
		assert.Zero(t, lp)
		assert.Equal(t, draws, base.draws.Load(), "no sampling before the overlap is reported")

		var cerr *crosscaterrors.Error
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, []string{"B"}, cerr.Details["overlap"])
	}

	// An event variable given as a condition is not redrawn.
	lp, err := c.Logpdf(gpm.Row{"A": true}, gpm.Row{"B": true})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5), lp, 1e-12)
}

func TestLogpdf_Parallel(t *testing.T) {
	defer goleak.VerifyNone(t)

	base := &shifted{rng: stats.NewRand(10)}
	event := MustParse("(< y 0.5)")
	c, err := New(base, event, WithSampleSize(400), WithWorkers(8))
	require.NoError(t, err)

	// For y uniform on (0, 0.5), E[exp(-y)] = 2(1 - exp(-0.5)).
	lp, err := c.Logpdf(gpm.Row{"x": 1.0}, nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2*(1-math.Exp(-0.5))), lp, 0.02)

	base.fail = errors.New("boom")
	_, err = c.Logpdf(gpm.Row{"x": 1.0}, nil)
	assert.EqualError(t, err, "boom")
}

func TestConstrained_OverCrossCat(t *testing.T) {
	model := testutil.Model(t, testutil.Runtime(t, 5))
	event := MustParse(`(or (= color "red") (= color "green"))`)
	c, err := New(model, event, WithSampleSize(20), WithMaxAttempts(10000), WithRuntime(testutil.Runtime(t, 5)))
	require.NoError(t, err)

	ctx := testutil.TestContext(t)
	for i := 0; i < 50; i++ {
		sample, err := c.SimulateContext(ctx, []string{"color", "x"}, nil)
		require.NoError(t, err)
		assert.NotEqual(t, "blue", sample["color"])
		assert.Contains(t, sample, "x")
	}

	// flag and color live in different views, so the event carries no
	// information about flag.
	targets := gpm.Row{"flag": true}
	want, err := model.Logpdf(targets, nil)
	require.NoError(t, err)
	got, err := c.LogpdfContext(ctx, targets, nil)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)
}
