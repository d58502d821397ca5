package measure_svc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ciricc/hwexplore/internal/affinity"
	"github.com/ciricc/hwexplore/internal/dataset"
	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/ciricc/hwexplore/internal/monitor"
	"github.com/ciricc/hwexplore/internal/ops"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUnsupportedBackend = fmt.Errorf("%w: backend not supported", explore.ErrExecution)
	ErrTimeout            = fmt.Errorf("%w: measurement timed out", explore.ErrExecution)
)

// MeasureService runs catalog operations on the local hardware.
type MeasureService interface {
	explore.Adapter
}

// Loader resolves a scale to its input records.
type Loader interface {
	Load(ctx context.Context, scale explore.Scale) ([]dataset.Record, error)
}

type MeasureServiceImpl struct {
	loader Loader
	logger *slog.Logger
	guard  monitor.Guard
	opts   MeasureOpts
}

func NewMeasureService(
	loader Loader,
	logger *slog.Logger,
	guard monitor.Guard,
	opts ...MeasureOpt,
) *MeasureServiceImpl {
	return &MeasureServiceImpl{
		loader: loader,
		logger: logger.With("component", "measure"),
		guard:  guard,
		opts: buildOpts(MeasureOpts{
			Repeats:      lo.ToPtr(1),
			Warmup:       lo.ToPtr(false),
			Timeout:      lo.ToPtr(time.Duration(0)),
			Topology:     lo.ToPtr(affinity.Topology{}),
			GPUAvailable: lo.ToPtr(false),
		}, opts...),
	}
}

type runFunc func(records []dataset.Record) (ops.Tally, error)

// Measure holds the hardware guard for the whole measurement, so no two
// configurations are ever timed at the same moment.
func (s *MeasureServiceImpl) Measure(
	ctx context.Context,
	op explore.Descriptor,
	node explore.Node,
	scale explore.Scale,
) (explore.Measurement, error) {
	log := s.logger.With("operation", op.Name, "node", node.Name(), "scale", scale.Name)

	if err := s.guard.Acquire(ctx); err != nil {
		return explore.Measurement{}, err
	}
	defer s.guard.Release()
	log.DebugContext(ctx, "Acquired hardware guard")

	// Loading is not part of the measurement and runs without the timeout.
	records, err := s.loader.Load(ctx, scale)
	if err != nil {
		return explore.Measurement{}, err
	}

	run, err := s.resolve(op, node.Backend)
	if err != nil {
		return explore.Measurement{}, err
	}

	cpus := s.opts.Topology.CPUs(node.Affinity)
	if node.Affinity != explore.DefaultAffinity && cpus == nil {
		log.DebugContext(ctx, "affinity hint ignored, host has a single core class")
	}

	if t := *s.opts.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	if *s.opts.Warmup {
		if _, err := s.execute(ctx, run, records, node.Threads, cpus); err != nil {
			return explore.Measurement{}, err
		}
	}

	repeats := max(*s.opts.Repeats, 1)
	secs := make([]float64, 0, repeats)
	for range repeats {
		start := time.Now()
		tally, err := s.execute(ctx, run, records, node.Threads, cpus)
		elapsed := time.Since(start)
		if err != nil {
			return explore.Measurement{}, err
		}
		if tally.Sequences != int64(len(records)) {
			return explore.Measurement{}, fmt.Errorf("%w: kernel saw %d of %d records", explore.ErrExecution, tally.Sequences, len(records))
		}
		secs = append(secs, max(elapsed.Seconds(), 1e-9))
	}

	mean := stat.Mean(secs, nil)
	stddev := 0.0
	if len(secs) > 1 {
		stddev = stat.StdDev(secs, nil)
	}
	m := explore.Measurement{
		Throughput: float64(len(records)) / mean,
		Elapsed:    time.Duration(mean * float64(time.Second)),
	}
	log.DebugContext(ctx, "measured",
		"records", len(records),
		"runs", len(secs),
		"meanSecs", mean,
		"stddevSecs", stddev,
		"throughput", math.Round(m.Throughput),
	)
	return m, nil
}

// resolve picks the kernel entry point for a backend.
func (s *MeasureServiceImpl) resolve(op explore.Descriptor, b explore.Backend) (runFunc, error) {
	if !op.Capabilities.Has(b) {
		return nil, fmt.Errorf("%w: %s does not declare %s", ErrUnsupportedBackend, op.Name, b)
	}
	k, err := ops.KernelOf(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", explore.ErrExecution, err)
	}

	switch b {
	case explore.Naive:
		return func(r []dataset.Record) (ops.Tally, error) { return k.Naive(r), nil }, nil
	case explore.VectorUnit:
		vk, ok := k.(ops.VectorKernel)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no vector path", ErrUnsupportedBackend, op.Name)
		}
		return func(r []dataset.Record) (ops.Tally, error) { return vk.Vector(r), nil }, nil
	case explore.GPU:
		if !*s.opts.GPUAvailable {
			return nil, fmt.Errorf("%w: no GPU detected", ErrUnsupportedBackend)
		}
		gk, ok := k.(ops.GPUKernel)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no GPU kernel in this build", ErrUnsupportedBackend, op.Name)
		}
		return gk.GPU, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, b)
}

// execute runs the kernel over records split into contiguous chunks, one per
// thread, and merges the partial tallies in chunk order.
func (s *MeasureServiceImpl) execute(
	ctx context.Context,
	run runFunc,
	records []dataset.Record,
	threads int,
	cpus []int,
) (ops.Tally, error) {
	if threads <= 1 || len(records) < 2 {
		t, err := s.pinned(ctx, cpus, func() (ops.Tally, error) { return run(records) })
		return t, s.checkDeadline(ctx, err)
	}

	size := (len(records) + threads - 1) / threads
	chunks := lo.Chunk(records, size)
	partial := make([]ops.Tally, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := s.pinned(gctx, cpus, func() (ops.Tally, error) { return run(chunk) })
			partial[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ops.Tally{}, s.checkDeadline(ctx, err)
	}

	var total ops.Tally
	for _, t := range partial {
		total.Add(t)
	}
	return total, s.checkDeadline(ctx, nil)
}

// pinned runs fn with the current thread restricted to cpus. Pinning is
// best effort: when it fails fn still runs, unpinned.
func (s *MeasureServiceImpl) pinned(ctx context.Context, cpus []int, fn func() (ops.Tally, error)) (ops.Tally, error) {
	undo, err := affinity.Pin(cpus)
	if err != nil {
		s.logger.DebugContext(ctx, "pinning failed, running unpinned", "cpus", cpus, "error", err)
		return fn()
	}
	defer undo()
	return fn()
}

// checkDeadline turns an expired per-measurement timeout into ErrTimeout.
// Cancellation of the caller's context is passed through untouched.
func (s *MeasureServiceImpl) checkDeadline(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) && *s.opts.Timeout > 0 {
		return fmt.Errorf("%w after %s", ErrTimeout, *s.opts.Timeout)
	}
	if err != nil && !errors.Is(err, explore.ErrExecution) && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", explore.ErrExecution, err)
	}
	return err
}

func buildOpts(defaultOpts MeasureOpts, opts ...MeasureOpt) MeasureOpts {
	o := defaultOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var _ MeasureService = (*MeasureServiceImpl)(nil)
