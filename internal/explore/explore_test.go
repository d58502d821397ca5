package explore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter returns canned throughputs and counts calls per key.
type fakeAdapter struct {
	throughput func(op string, n Node, scale string) (float64, error)
	calls      map[CacheKey]int
	order      []CacheKey
}

func newFakeAdapter(fn func(op string, n Node, scale string) (float64, error)) *fakeAdapter {
	return &fakeAdapter{throughput: fn, calls: make(map[CacheKey]int)}
}

func (f *fakeAdapter) Measure(_ context.Context, op Descriptor, n Node, s Scale) (Measurement, error) {
	k := CacheKey{Operation: op.Name, Node: n, Scale: s.Name}
	f.calls[k]++
	f.order = append(f.order, k)
	tp, err := f.throughput(op.Name, n, s.Name)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{Throughput: tp, Elapsed: time.Millisecond}, nil
}

func (f *fakeAdapter) measured(op string, b Backend, scale string) []Node {
	var out []Node
	for _, k := range f.order {
		if k.Operation == op && k.Node.Backend == b && k.Scale == scale {
			out = append(out, k.Node)
		}
	}
	return out
}

func op(name string, backends ...Backend) Descriptor {
	return Descriptor{Name: name, Complexity: 0.4, Capabilities: Capabilities(backends...)}
}

func plan(ops []Descriptor, scales []Scale, fam Family) Plan {
	return Plan{Name: "test", Operations: ops, Scales: scales, Family: fam}
}

func recordsFor(out *Outcome, opName string, b Backend, scale string) []Record {
	return lo.Filter(out.Records, func(r Record, _ int) bool {
		return r.Operation == opName && r.Node.Backend == b && r.Scale.Name == scale
	})
}

func TestResultCacheLookupOrComputeIsIdempotent(t *testing.T) {
	c := NewResultCache()
	key := CacheKey{Operation: "x", Node: BaselineNode(), Scale: "Tiny"}
	calls := 0
	compute := func() (Result, error) {
		calls++
		return Result{Throughput: float64(100 * calls), Status: StatusMeasured}, nil
	}

	first, cached, err := c.LookupOrCompute(key, compute)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := c.LookupOrCompute(key, compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestResultCacheDoesNotStoreErrors(t *testing.T) {
	c := NewResultCache()
	key := CacheKey{Operation: "x", Node: BaselineNode(), Scale: "Tiny"}
	_, _, err := c.LookupOrCompute(key, func() (Result, error) { return Result{}, errors.New("boom") })
	require.Error(t, err)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestBaselineTrackerImmutability(t *testing.T) {
	bt := NewBaselineTracker()
	_, ok := bt.BaselineFor("x", "Tiny")
	assert.False(t, ok)

	require.NoError(t, bt.Establish("x", "Tiny", 100))
	require.NoError(t, bt.Establish("x", "Tiny", 100), "same value is a no-op")

	err := bt.Establish("x", "Tiny", 120)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	v, ok := bt.BaselineFor("x", "Tiny")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	s, ok := bt.Speedup("x", "Tiny", 250)
	require.True(t, ok)
	assert.InDelta(t, 2.5, s, 1e-9)

	_, ok = bt.Speedup("x", "Huge", 250)
	assert.False(t, ok, "no baseline means no speedup, never a default")
}

func TestBaselineTrackerZeroBaselineHasNoSpeedup(t *testing.T) {
	bt := NewBaselineTracker()
	require.NoError(t, bt.Establish("x", "Tiny", 0))
	_, ok := bt.Speedup("x", "Tiny", 10)
	assert.False(t, ok)
}

func TestPruningStrategy(t *testing.T) {
	p := NewPruningStrategy(1.5, 1.3)

	assert.True(t, p.PruneAlternative(1.2, true))
	assert.False(t, p.PruneAlternative(1.5, true), "equal to threshold passes")
	assert.False(t, p.PruneAlternative(3, true))
	assert.True(t, p.PruneAlternative(0, false), "undefined speedup cannot prove benefit")

	assert.False(t, p.StopComposition(1.3, true), "equal to threshold passes")
	assert.True(t, p.StopComposition(1.29, true))
	assert.True(t, p.StopComposition(0, false))

	p.AlternativePruning = false
	assert.False(t, p.PruneAlternative(0.1, true))
}

func TestIncrementalRatio(t *testing.T) {
	r, ok := IncrementalRatio(100, 190)
	require.True(t, ok)
	assert.InDelta(t, 1.9, r, 1e-9)

	_, ok = IncrementalRatio(0, 190)
	assert.False(t, ok)
}

func TestThreadSteps(t *testing.T) {
	assert.Equal(t, []int{2, 4, 8, 16}, ThreadSteps(16, nil))
	assert.Equal(t, []int{2, 4, 8}, ThreadSteps(12, nil))
	assert.Empty(t, ThreadSteps(1, nil))
	assert.Equal(t, []int{2, 3, 6}, ThreadSteps(6, []int{6, 3, 1, 2, 3, 12}))
}

func TestNodeNameRoundTrip(t *testing.T) {
	cases := map[string]Node{
		"naive":            BaselineNode(),
		"vector":           AlternativeNode(VectorUnit),
		"vector_4t":        NewNode(VectorUnit, 4, DefaultAffinity),
		"gpu_8t_pcores":    NewNode(GPU, 8, PerformanceHint),
		"matrix_ecores":    AlternativeNode(MatrixAccelerator).WithAffinity(EfficiencyHint),
		"naive_16t_ecores": NewNode(Naive, 16, EfficiencyHint),
	}
	for name, n := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, n.Name())
			parsed, err := ParseNode(name)
			require.NoError(t, err)
			assert.Equal(t, n, parsed)
		})
	}

	_, err := ParseNode("vector_xt")
	assert.Error(t, err)
	_, err = ParseNode("tpu")
	assert.Error(t, err)
}

func TestNodeClassification(t *testing.T) {
	assert.True(t, BaselineNode().IsBaseline())
	assert.True(t, AlternativeNode(GPU).IsAlternative())
	assert.True(t, NewNode(Naive, 4, DefaultAffinity).IsComposition())
	assert.True(t, NewNode(Naive, 4, PerformanceHint).IsRefinement())
	assert.Equal(t, 1, NewNode(Naive, 0, DefaultAffinity).Threads)
}

// Scenario A: a naive-only operation escalates threads until the
// incremental ratio drops below the threshold.
func TestScenarioNaiveOnlyEscalation(t *testing.T) {
	tp := map[int]float64{1: 100, 2: 190, 4: 361, 8: 397.1, 16: 800}
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		return tp[n.Threads], nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(32))

	out, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive)}, []Scale{ScaleMedium}, Family{}))
	require.NoError(t, err)

	threads := lo.Map(a.measured("X", Naive, "Medium"), func(n Node, _ int) int { return n.Threads })
	assert.Equal(t, []int{1, 2, 4, 8}, threads, "16 must never be measured")

	measured := lo.Filter(out.Records, func(r Record, _ int) bool { return r.Result.Measured() })
	assert.Equal(t, []int{1, 2, 4, 8}, lo.Map(measured, func(r Record, _ int) int { return r.Node.Threads }))

	pruned := lo.Filter(out.Records, func(r Record, _ int) bool { return r.Pruned() })
	for _, r := range pruned {
		assert.Greater(t, r.Node.Threads, 8)
		assert.Zero(t, r.Throughput())
		assert.Equal(t, PhaseComposition, r.Phase)
	}
	assert.Len(t, pruned, 2, "16 and 32 are marked pruned")

	require.Len(t, out.Best, 1)
	assert.Equal(t, 8, out.Best[0].Node.Threads)
}

// Scenario B: a vector unit below the speedup threshold loses its whole
// subtree, while naive is exempt.
func TestScenarioAlternativePruning(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		switch n.Backend {
		case VectorUnit:
			return 120 * float64(n.Threads), nil
		default:
			return 100 * float64(n.Threads), nil
		}
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(4))
	out, err := e.Run(context.Background(), plan([]Descriptor{op("Y", Naive, VectorUnit)}, []Scale{ScaleLarge}, Family{Refine: true}))
	require.NoError(t, err)

	vec := recordsFor(out, "Y", VectorUnit, "Large")
	require.Len(t, vec, 3)
	assert.Equal(t, PhaseAlternative, vec[0].Phase)
	assert.Equal(t, StatusMeasured, vec[0].Status())
	assert.InDelta(t, 1.2, vec[0].Result.Speedup, 1e-9)
	assert.True(t, e.Session().SubtreePruned("Y", VectorUnit, "Large"))

	// the cut subtree shows up as pruned composition markers, never measured
	for i, threads := range []int{2, 4} {
		r := vec[i+1]
		assert.Equal(t, NewNode(VectorUnit, threads, DefaultAffinity), r.Node)
		assert.Equal(t, PhaseComposition, r.Phase)
		assert.True(t, r.Pruned())
		assert.Zero(t, r.Throughput())
	}
	assert.Equal(t, []Node{AlternativeNode(VectorUnit)}, a.measured("Y", VectorUnit, "Large"))
	for _, r := range out.Records {
		if r.Node.Backend == VectorUnit {
			assert.NotEqual(t, PhaseRefinement, r.Phase)
		}
	}

	naive := recordsFor(out, "Y", Naive, "Large")
	phases := lo.Map(naive, func(r Record, _ int) Phase { return r.Phase })
	assert.Contains(t, phases, PhaseComposition, "naive is never subject to alternative pruning")
	assert.Contains(t, phases, PhaseRefinement)
}

// Scenario C: a failing baseline skips the pair and nothing else.
func TestScenarioBaselineFailure(t *testing.T) {
	a := newFakeAdapter(func(op string, n Node, scale string) (float64, error) {
		if op == "Z" && scale == "Large" {
			return 0, fmt.Errorf("%w: kernel crashed", ErrExecution)
		}
		return 100 * float64(n.Threads), nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(2))
	ops := []Descriptor{op("Z", Naive), op("W", Naive)}
	out, err := e.Run(context.Background(), plan(ops, []Scale{ScaleMedium, ScaleLarge}, Family{}))
	require.NoError(t, err)

	zLarge := lo.Filter(out.Records, func(r Record, _ int) bool { return r.Operation == "Z" && r.Scale.Name == "Large" })
	require.Len(t, zLarge, 1)
	assert.Equal(t, PhaseBaseline, zLarge[0].Phase)
	assert.Equal(t, StatusFailed, zLarge[0].Status())

	require.Len(t, out.Skipped, 1)
	assert.Equal(t, SkipBaselineUnavailable, out.Skipped[0].Reason)
	assert.ErrorIs(t, out.Skipped[0].Err, ErrBaselineUnavailable)

	_, ok := e.Session().Baselines.BaselineFor("Z", "Large")
	assert.False(t, ok)

	for _, pair := range [][2]string{{"Z", "Medium"}, {"W", "Medium"}, {"W", "Large"}} {
		recs := lo.Filter(out.Records, func(r Record, _ int) bool { return r.Operation == pair[0] && r.Scale.Name == pair[1] })
		assert.Len(t, recs, 2, "%v should have baseline and the 2-thread composition", pair)
	}
}

func TestUnavailableInputSkipsPair(t *testing.T) {
	a := newFakeAdapter(func(_ string, _ Node, scale string) (float64, error) {
		if scale == "Huge" {
			return 0, fmt.Errorf("%w: huge_10000000_150bp.fq", ErrUnavailableInput)
		}
		return 100, nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(1))
	out, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive)}, []Scale{ScaleHuge, ScaleTiny}, Family{}))
	require.NoError(t, err)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, SkipInputUnavailable, out.Skipped[0].Reason)
	assert.Len(t, out.Best, 1)
}

func TestExecutionFailureIsRecordedAndTraversalContinues(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		if n.Backend == GPU {
			return 0, fmt.Errorf("%w: no device", ErrExecution)
		}
		return 100 * float64(n.Threads), nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(2))
	out, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive, GPU)}, []Scale{ScaleTiny}, Family{}))
	require.NoError(t, err)

	gpu := recordsFor(out, "X", GPU, "Tiny")
	require.Len(t, gpu, 1)
	assert.Equal(t, StatusFailed, gpu[0].Status())
	assert.False(t, gpu[0].Pruned(), "failed is distinct from pruned")
	assert.Contains(t, gpu[0].ErrText(), "no device")
	assert.Empty(t, out.Skipped)
	assert.NotEmpty(t, recordsFor(out, "X", Naive, "Tiny"))
}

func TestZeroBaselineFailsAlternativePruning(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		if n.Backend == Naive {
			return 0, nil
		}
		return 1000, nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(2))
	out, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive, VectorUnit)}, []Scale{ScaleTiny}, Family{}))
	require.NoError(t, err)
	assert.True(t, e.Session().SubtreePruned("X", VectorUnit, "Tiny"))
	vec := recordsFor(out, "X", VectorUnit, "Tiny")
	require.Len(t, vec, 2)
	assert.True(t, vec[1].Pruned(), "vector_2t is cut with its alternative")
}

func TestPrunedSubtreeMarkedInLaterPlans(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		if n.Backend == VectorUnit {
			return 110, nil
		}
		return 100 * float64(n.Threads), nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(2))
	ops := []Descriptor{op("X", Naive, VectorUnit)}

	outs, err := e.RunAll(context.Background(),
		plan(ops, []Scale{ScaleTiny}, Family{}),
		plan(ops, []Scale{ScaleTiny}, Family{}),
	)
	require.NoError(t, err)
	assert.Len(t, a.measured("X", VectorUnit, "Tiny"), 1)

	vec := recordsFor(outs[1], "X", VectorUnit, "Tiny")
	require.Len(t, vec, 2)
	assert.Equal(t, PhaseAlternative, vec[0].Phase)
	assert.Equal(t, StatusMeasured, vec[0].Status(), "the earlier measurement is recalled")
	assert.True(t, vec[0].Cached)
	assert.Equal(t, NewNode(VectorUnit, 2, DefaultAffinity), vec[1].Node)
	assert.True(t, vec[1].Pruned())
	assert.True(t, vec[1].Cached)
}

func TestCacheSharedAcrossPlans(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		return 100 * float64(n.Threads), nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(4))
	ops := []Descriptor{op("X", Naive, VectorUnit)}
	first := plan(ops, []Scale{ScaleTiny}, Family{})
	second := plan(ops, []Scale{ScaleTiny}, Family{Grid: []Node{BaselineNode(), NewNode(Naive, 2, DefaultAffinity)}})

	outs, err := e.RunAll(context.Background(), first, second)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	for k, n := range a.calls {
		assert.Equal(t, 1, n, "key %v measured more than once", k)
	}
	assert.True(t, outs[1].Records[0].Cached)
}

func TestGridHonorsPrunedSubtrees(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		if n.Backend == VectorUnit {
			return 110, nil
		}
		return 100, nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(1))
	ops := []Descriptor{op("X", Naive, VectorUnit)}
	grid := Family{Grid: []Node{AlternativeNode(VectorUnit), NewNode(VectorUnit, 4, DefaultAffinity)}}

	outs, err := e.RunAll(context.Background(),
		plan(ops, []Scale{ScaleTiny}, Family{}),
		plan(ops, []Scale{ScaleTiny}, grid),
	)
	require.NoError(t, err)
	assert.Empty(t, a.measured("X", VectorUnit, "Tiny")[1:], "vector measured only once, in phase 1")

	vec := recordsFor(outs[1], "X", VectorUnit, "Tiny")
	require.Len(t, vec, 2)
	assert.True(t, vec[0].Cached, "the measured alternative is recalled")
	assert.Equal(t, StatusMeasured, vec[0].Status())
	assert.True(t, vec[1].Pruned())
	assert.Zero(t, vec[1].Throughput())
	for _, r := range vec {
		assert.Equal(t, PhaseGrid, r.Phase)
	}
}

func TestMetadataOnlySkipsRefinement(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) { return 100, nil })
	d := op("len", Naive)
	d.MetadataOnly = true

	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(1))
	out, err := e.Run(context.Background(), plan([]Descriptor{d}, []Scale{ScaleTiny}, Family{Refine: true}))
	require.NoError(t, err)
	assert.Len(t, out.Records, 1)

	e = NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(1), WithRefineMetadataOnly(true))
	out, err = e.Run(context.Background(), plan([]Descriptor{d}, []Scale{ScaleTiny}, Family{Refine: true}))
	require.NoError(t, err)
	assert.Len(t, out.Records, 3)
}

func TestRefinementTargetsBestComposition(t *testing.T) {
	tp := map[Node]float64{
		BaselineNode():                          100,
		AlternativeNode(VectorUnit):             400,
		NewNode(Naive, 2, DefaultAffinity):      150,
		NewNode(VectorUnit, 2, DefaultAffinity): 780,
	}
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		if v, ok := tp[n]; ok {
			return v, nil
		}
		return 1, nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(2))
	out, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive, VectorUnit)}, []Scale{ScaleTiny}, Family{Refine: true}))
	require.NoError(t, err)

	refinements := lo.Filter(out.Records, func(r Record, _ int) bool { return r.Phase == PhaseRefinement })
	require.Len(t, refinements, 2)
	for _, r := range refinements {
		assert.Equal(t, VectorUnit, r.Node.Backend)
		assert.Equal(t, 2, r.Node.Threads)
	}
	require.Len(t, out.Best, 1)
	assert.Equal(t, NewNode(VectorUnit, 2, DefaultAffinity), out.Best[0].Node)
	assert.InDelta(t, 7.8, out.Best[0].Speedup, 1e-9)
}

func TestDeterministicOrdering(t *testing.T) {
	run := func() []string {
		a := newFakeAdapter(func(op string, n Node, scale string) (float64, error) {
			return float64(len(op)*len(scale)) * float64(n.Threads) * float64(n.Backend+1), nil
		})
		e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(8))
		ops := []Descriptor{op("alpha", Naive, VectorUnit, GPU), op("beta", Naive, VectorUnit)}
		out, err := e.Run(context.Background(), plan(ops, []Scale{ScaleSmall, ScaleMedium}, Family{Refine: true}))
		require.NoError(t, err)
		return lo.Map(out.Records, func(r Record, _ int) string {
			return fmt.Sprintf("%s/%s/%s/%s/%s", r.Operation, r.Scale.Name, r.Phase, r.Node.Name(), r.Status())
		})
	}
	first := run()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, run())
}

func TestInvariantViolationAbortsBatch(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, _ string) (float64, error) {
		return 100, nil
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(1))
	require.NoError(t, e.Session().Baselines.Establish("X", "Tiny", 42))

	_, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive)}, []Scale{ScaleTiny}, Family{}))
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestAdapterInvariantErrorIsFatal(t *testing.T) {
	a := newFakeAdapter(func(_ string, _ Node, _ string) (float64, error) {
		return 0, invariantf("adapter corrupted")
	})
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3))
	_, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive)}, []Scale{ScaleTiny}, Family{}))
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

type recordingSink struct{ got []Record }

func (s *recordingSink) Emit(r Record) error {
	s.got = append(s.got, r)
	return nil
}

type countingObserver struct{ records, skips int }

func (o *countingObserver) OnRecord(Record) { o.records++ }
func (o *countingObserver) OnSkip(Skip)     { o.skips++ }

func TestSinksAndObserversSeeEveryRecord(t *testing.T) {
	a := newFakeAdapter(func(_ string, n Node, scale string) (float64, error) {
		if scale == "Tiny" {
			return 0, errors.New("boom")
		}
		return 100 * float64(n.Threads), nil
	})
	sink := &recordingSink{}
	obs := &countingObserver{}
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(4), WithSink(sink), WithObserver(obs))
	out, err := e.Run(context.Background(), plan([]Descriptor{op("X", Naive)}, []Scale{ScaleTiny, ScaleSmall}, Family{}))
	require.NoError(t, err)
	assert.Equal(t, out.Records, sink.got)
	assert.Equal(t, len(out.Records), obs.records)
	assert.Equal(t, 1, obs.skips)
}

func TestBuildPlan(t *testing.T) {
	catalog := []Descriptor{op("a", Naive, VectorUnit), op("b", Naive)}

	for _, name := range []string{"dag", "vector-parallel", "NEON_PARALLEL", "core_affinity", "scale-thresholds"} {
		t.Run(name, func(t *testing.T) {
			p, err := BuildPlan(name, catalog)
			require.NoError(t, err)
			assert.Len(t, p.Operations, 2)
			assert.NotEmpty(t, p.Scales)
		})
	}

	_, err := BuildPlan("nope", catalog)
	assert.Error(t, err)

	_, err = BuildPlan("dag", []Descriptor{op("gpu_only", GPU)})
	assert.Error(t, err, "naive is required")

	p, err := BuildPlan("dag", catalog)
	require.NoError(t, err)
	p, err = p.WithOperations([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, lo.Map(p.Operations, func(d Descriptor, _ int) string { return d.Name }))

	_, err = p.WithOperations([]string{"zzz"})
	assert.Error(t, err)
}

func TestPlanSnapshotIsolation(t *testing.T) {
	a := newFakeAdapter(func(_ string, _ Node, _ string) (float64, error) { return 100, nil })
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3), WithMaxThreads(1))
	p := plan([]Descriptor{op("X", Naive)}, []Scale{ScaleTiny}, Family{})
	snap := p.snapshot()
	p.Scales[0] = ScaleHuge
	assert.Equal(t, "Tiny", snap.Scales[0].Name)

	out, err := e.Run(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", out.Records[0].Scale.Name)
}

func TestContextCancellationStopsBatch(t *testing.T) {
	a := newFakeAdapter(func(_ string, _ Node, _ string) (float64, error) { return 100, nil })
	e := NewEngine(a, NewPruningStrategy(1.5, 1.3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, plan([]Descriptor{op("X", Naive)}, []Scale{ScaleTiny}, Family{}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.calls)
}
