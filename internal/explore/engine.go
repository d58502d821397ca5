package explore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/samber/lo"
)

// Measurement is what an execution adapter returns for one configuration.
type Measurement struct {
	// Throughput is in items per second.
	Throughput float64
	Elapsed    time.Duration
}

// Adapter runs one operation at one configuration against one scale. Calls
// block until the measurement is complete. Errors wrapping
// ErrUnavailableInput skip the pair, ErrInvariantViolation aborts the batch,
// anything else is recorded as a failed configuration.
type Adapter interface {
	Measure(ctx context.Context, op Descriptor, node Node, scale Scale) (Measurement, error)
}

// Engine runs the three-phase traversal: alternatives, compositions on the
// surviving alternatives, then refinements of the best composition. Pairs,
// phases and candidates are visited strictly one after another so no two
// measurements ever compete for the hardware.
type Engine struct {
	adapter            Adapter
	strategy           PruningStrategy
	session            *Session
	log                *slog.Logger
	sinks              []Sink
	observers          []Observer
	maxThreads         int
	refineMetadataOnly bool
}

func NewEngine(adapter Adapter, strategy PruningStrategy, opts ...EngineOpt) *Engine {
	o := buildOpts(defaultEngineOpts(), opts...)
	if o.Session == nil {
		o.Session = NewSession()
	}
	if o.MaxThreads < 1 {
		o.MaxThreads = 1
	}
	return &Engine{
		adapter:            adapter,
		strategy:           strategy,
		session:            o.Session,
		log:                o.Logger,
		sinks:              o.Sinks,
		observers:          o.Observers,
		maxThreads:         o.MaxThreads,
		refineMetadataOnly: o.RefineMetadataOnly,
	}
}

// Session exposes the traversal context shared by every plan of this engine.
func (e *Engine) Session() *Session { return e.session }

// RunAll runs several plans in order against the same traversal context.
func (e *Engine) RunAll(ctx context.Context, plans ...Plan) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(plans))
	for _, p := range plans {
		out, err := e.Run(ctx, p)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// Run traverses one plan. Operations are visited in plan order and scales in
// plan order within each operation. The returned error is non-nil only for
// invariant violations, sink failures and context cancellation; the outcome
// holds whatever was produced up to that point.
func (e *Engine) Run(ctx context.Context, plan Plan) (*Outcome, error) {
	p := plan.snapshot()
	log := e.log.With("plan", p.Name)
	out := &Outcome{Plan: p.Name}
	steps := ThreadSteps(e.maxThreads, p.Family.ThreadSteps)

	log.InfoContext(ctx, "batch started",
		"operations", len(p.Operations),
		"scales", len(p.Scales),
		"grid", p.Family.IsGrid(),
		"threadSteps", steps,
		"speedupThreshold", e.strategy.SpeedupThreshold,
		"diminishingReturnsThreshold", e.strategy.DiminishingReturnsThreshold,
	)
	start := time.Now()

	for _, op := range p.Operations {
		for _, scale := range p.Scales {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			pr := &pairRun{
				e:       e,
				ctx:     ctx,
				plan:    p,
				op:      op,
				scale:   scale,
				steps:   steps,
				out:     out,
				log:     log.With("operation", op.Name, "scale", scale.Name),
				emitted: make(map[Node]bool),
			}
			if err := pr.run(); err != nil {
				log.ErrorContext(ctx, "batch aborted", "operation", op.Name, "scale", scale.Name, "error", err)
				return out, err
			}
		}
	}

	log.InfoContext(ctx, "batch finished",
		"records", len(out.Records),
		"skipped", len(out.Skipped),
		"prunedSubtrees", e.session.PrunedSubtrees(),
		"cacheEntries", e.session.Cache.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}

type visit struct {
	node Node
	res  Result
}

type skipError struct {
	reason SkipReason
	cause  error
}

func (e *skipError) Error() string { return e.reason.String() + ": " + e.cause.Error() }
func (e *skipError) Unwrap() error { return e.cause }

// pairRun is the state machine of one (operation, scale) pair.
type pairRun struct {
	e       *Engine
	ctx     context.Context
	plan    Plan
	op      Descriptor
	scale   Scale
	steps   []int
	out     *Outcome
	log     *slog.Logger
	emitted map[Node]bool
}

func (r *pairRun) run() error {
	r.log.DebugContext(r.ctx, "pair started",
		"backends", lo.Map(r.op.Capabilities.Backends(), func(b Backend, _ int) string { return b.String() }),
		"complexity", r.op.Complexity,
		"vectorFriendly", r.op.VectorFriendly(),
		"gpuCandidate", r.op.GPUCandidate(),
	)

	base, err := r.baseline()
	if err != nil {
		return r.handle(err)
	}

	var (
		best  visit
		found bool
	)
	if r.plan.Family.IsGrid() {
		best, found, err = r.grid(base)
	} else {
		best, found, err = r.traverse(base)
	}
	if err != nil {
		return r.handle(err)
	}
	if found {
		r.out.Best = append(r.out.Best, Choice{
			Operation:  r.op.Name,
			Scale:      r.scale,
			Node:       best.node,
			Throughput: best.res.Throughput,
			Speedup:    best.res.Speedup,
		})
		r.log.InfoContext(r.ctx, "pair finished", "best", best.node.Name(), "speedup", round2(best.res.Speedup))
	}
	return nil
}

func (r *pairRun) handle(err error) error {
	var sk *skipError
	if errors.As(err, &sk) {
		r.skip(sk.reason, sk.cause)
		return nil
	}
	return err
}

func (r *pairRun) skip(reason SkipReason, cause error) {
	s := Skip{Operation: r.op.Name, Scale: r.scale, Reason: reason, Err: cause}
	r.out.Skipped = append(r.out.Skipped, s)
	if reason == SkipBaselineUnavailable {
		r.log.ErrorContext(r.ctx, "baseline unavailable, pair skipped", "error", cause)
	} else {
		r.log.WarnContext(r.ctx, "input unavailable, pair skipped", "error", cause)
	}
	for _, o := range r.e.observers {
		o.OnSkip(s)
	}
}

// baseline establishes Naive@1 for the pair. Its failure skips the pair.
func (r *pairRun) baseline() (Result, error) {
	node := BaselineNode()
	res, cached, err := r.lookup(node)
	if err != nil {
		return Result{}, err
	}
	if err := r.emit(node, PhaseBaseline, res, cached); err != nil {
		return Result{}, err
	}
	switch {
	case res.Failed() && errors.Is(res.Err, ErrUnavailableInput):
		return Result{}, &skipError{reason: SkipInputUnavailable, cause: res.Err}
	case res.Failed():
		return Result{}, &skipError{reason: SkipBaselineUnavailable, cause: fmt.Errorf("%w: %w", ErrBaselineUnavailable, res.Err)}
	case res.Pruned():
		return Result{}, invariantf("baseline for %s/%s is marked pruned", r.op.Name, r.scale.Name)
	}
	if err := r.e.session.Baselines.Establish(r.op.Name, r.scale.Name, res.Throughput); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (r *pairRun) traverse(base Result) (visit, bool, error) {
	fam := r.plan.Family
	strategy := r.e.strategy
	baseDefined := base.Throughput > 0

	backends := r.op.Capabilities.Backends()
	if fam.Backends != 0 {
		backends = lo.Filter(backends, func(b Backend, _ int) bool { return fam.Backends.Has(b) })
	}

	// Phase 1: alternatives. Naive@1 is the baseline itself and is exempt.
	var survivors []visit
	for _, b := range backends {
		if b == Naive {
			survivors = append(survivors, visit{node: BaselineNode(), res: base})
			continue
		}
		node := AlternativeNode(b)
		if r.e.session.SubtreePruned(r.op.Name, b, r.scale.Name) {
			if err := r.markPruned(node, PhaseAlternative); err != nil {
				return visit{}, false, err
			}
			if err := r.markSubtreePruned(node); err != nil {
				return visit{}, false, err
			}
			continue
		}
		res, err := r.visit(node, PhaseAlternative)
		if err != nil {
			return visit{}, false, err
		}
		if !res.Measured() {
			continue
		}
		if strategy.PruneAlternative(res.Speedup, baseDefined) {
			r.e.session.pruneSubtree(r.op.Name, b, r.scale.Name)
			r.log.InfoContext(r.ctx, "alternative pruned",
				"node", node.Name(), "speedup", round2(res.Speedup), "threshold", strategy.SpeedupThreshold)
			if err := r.markSubtreePruned(node); err != nil {
				return visit{}, false, err
			}
			continue
		}
		r.log.InfoContext(r.ctx, "alternative kept", "node", node.Name(), "speedup", round2(res.Speedup))
		survivors = append(survivors, visit{node: node, res: res})
	}

	// Phase 2: compositions, walking thread counts upwards per survivor.
	var (
		best  visit
		found bool
	)
	consider := func(v visit) {
		if v.res.Measured() && (!found || v.res.Throughput > best.res.Throughput) {
			best, found = v, true
		}
	}
	for _, s := range survivors {
		consider(s)
		prev := s
		for i, t := range r.steps {
			node := s.node.WithThreads(t)
			res, err := r.visit(node, PhaseComposition)
			if err != nil {
				return visit{}, false, err
			}
			if !res.Measured() {
				break
			}
			cur := visit{node: node, res: res}
			consider(cur)

			ratio, ok := IncrementalRatio(prev.res.Throughput, res.Throughput)
			if strategy.StopComposition(ratio, ok) {
				r.log.InfoContext(r.ctx, "composition stopped",
					"node", node.Name(), "incremental", round2(ratio), "threshold", strategy.DiminishingReturnsThreshold)
				for _, rest := range r.steps[i+1:] {
					if err := r.markPruned(s.node.WithThreads(rest), PhaseComposition); err != nil {
						return visit{}, false, err
					}
				}
				break
			}
			r.log.DebugContext(r.ctx, "composition kept", "node", node.Name(), "incremental", round2(ratio))
			prev = cur
		}
	}
	if !found {
		return visit{}, false, nil
	}

	// Phase 3: refinements of the single best composition. Never prunes.
	if !fam.Refine || (r.op.MetadataOnly && !r.e.refineMetadataOnly) {
		return best, true, nil
	}
	composition := best
	for _, a := range RefinementAffinities {
		node := composition.node.WithAffinity(a)
		res, err := r.visit(node, PhaseRefinement)
		if err != nil {
			return visit{}, false, err
		}
		consider(visit{node: node, res: res})
	}
	return best, true, nil
}

func (r *pairRun) grid(base Result) (visit, bool, error) {
	best, found := visit{node: BaselineNode(), res: base}, base.Measured()
	for _, node := range r.plan.Family.Grid {
		if !r.op.Capabilities.Has(node.Backend) {
			r.log.DebugContext(r.ctx, "grid node not supported by operation", "node", node.Name())
			continue
		}
		if node.IsBaseline() {
			continue
		}
		if r.e.session.SubtreePruned(r.op.Name, node.Backend, r.scale.Name) {
			if err := r.markPruned(node, PhaseGrid); err != nil {
				return visit{}, false, err
			}
			continue
		}
		res, err := r.visit(node, PhaseGrid)
		if err != nil {
			return visit{}, false, err
		}
		if res.Measured() && (!found || res.Throughput > best.res.Throughput) {
			best, found = visit{node: node, res: res}, true
		}
	}
	return best, found, nil
}

// visit measures (or recalls) a node and emits its record.
func (r *pairRun) visit(node Node, phase Phase) (Result, error) {
	res, cached, err := r.lookup(node)
	if err != nil {
		return Result{}, err
	}
	if err := r.emit(node, phase, res, cached); err != nil {
		return Result{}, err
	}
	if res.Failed() {
		if errors.Is(res.Err, ErrUnavailableInput) {
			return res, &skipError{reason: SkipInputUnavailable, cause: res.Err}
		}
		r.log.WarnContext(r.ctx, "measurement failed", "node", node.Name(), "phase", phase.String(), "error", res.Err)
	}
	return res, nil
}

func (r *pairRun) key(node Node) CacheKey {
	return CacheKey{Operation: r.op.Name, Node: node, Scale: r.scale.Name}
}

func (r *pairRun) lookup(node Node) (Result, bool, error) {
	return r.e.session.Cache.LookupOrCompute(r.key(node), func() (Result, error) {
		return r.measure(node)
	})
}

func (r *pairRun) measure(node Node) (Result, error) {
	if !node.IsBaseline() {
		if _, ok := r.e.session.Baselines.BaselineFor(r.op.Name, r.scale.Name); !ok {
			return Result{}, invariantf("measuring %s for %s/%s before its baseline", node.Name(), r.op.Name, r.scale.Name)
		}
	}

	m, err := r.e.adapter.Measure(r.ctx, r.op, node, r.scale)
	if err != nil {
		if IsFatal(err) {
			return Result{}, err
		}
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{Status: StatusFailed, Err: err}, nil
	}
	if m.Throughput < 0 || math.IsNaN(m.Throughput) || math.IsInf(m.Throughput, 0) {
		return Result{Status: StatusFailed, Err: fmt.Errorf("%w: invalid throughput %v", ErrExecution, m.Throughput)}, nil
	}

	res := Result{Throughput: m.Throughput, Elapsed: m.Elapsed, Status: StatusMeasured}
	if node.IsBaseline() {
		if m.Throughput > 0 {
			res.Speedup = 1
		}
	} else if s, ok := r.e.session.Baselines.Speedup(r.op.Name, r.scale.Name, m.Throughput); ok {
		res.Speedup = s
	}
	return res, nil
}

// markPruned stores a pruned marker for an unmeasured node and emits it.
// A node that already holds a real measurement is emitted as cached.
func (r *pairRun) markPruned(node Node, phase Phase) error {
	res, cached, err := r.e.session.Cache.LookupOrCompute(r.key(node), func() (Result, error) {
		return Result{Status: StatusPruned}, nil
	})
	if err != nil {
		return err
	}
	return r.emit(node, phase, res, cached)
}

// markSubtreePruned emits pruned markers for the composition steps below a
// pruned alternative, the same records a stopped escalation leaves behind.
func (r *pairRun) markSubtreePruned(alt Node) error {
	for _, t := range r.steps {
		if err := r.markPruned(alt.WithThreads(t), PhaseComposition); err != nil {
			return err
		}
	}
	return nil
}

func (r *pairRun) emit(node Node, phase Phase, res Result, cached bool) error {
	if r.emitted[node] {
		return nil
	}
	r.emitted[node] = true

	rec := Record{
		Plan:       r.plan.Name,
		Operation:  r.op.Name,
		Complexity: r.op.Complexity,
		Node:       node,
		Scale:      r.scale,
		Phase:      phase,
		Result:     res,
		Cached:     cached,
	}
	r.out.Records = append(r.out.Records, rec)
	for _, s := range r.e.sinks {
		if err := s.Emit(rec); err != nil {
			return fmt.Errorf("emit record: %w", err)
		}
	}
	for _, o := range r.e.observers {
		o.OnRecord(rec)
	}
	return nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
