package measure_svc

import (
	"time"

	"github.com/ciricc/hwexplore/internal/affinity"
)

type MeasureOpts struct {
	Repeats      *int
	Warmup       *bool
	Timeout      *time.Duration
	Topology     *affinity.Topology
	GPUAvailable *bool
}

type MeasureOpt func(opts *MeasureOpts)

// WithRepeats sets how many timed runs are averaged per measurement.
func WithRepeats(v int) MeasureOpt {
	return func(opts *MeasureOpts) { opts.Repeats = &v }
}

// WithWarmup runs the kernel once, untimed, before the timed runs.
func WithWarmup(v bool) MeasureOpt {
	return func(opts *MeasureOpts) { opts.Warmup = &v }
}

// WithTimeout bounds a single measurement, warmup included. Zero disables it.
func WithTimeout(v time.Duration) MeasureOpt {
	return func(opts *MeasureOpts) { opts.Timeout = &v }
}

func WithTopology(v affinity.Topology) MeasureOpt {
	return func(opts *MeasureOpts) { opts.Topology = &v }
}

func WithGPUAvailable(v bool) MeasureOpt {
	return func(opts *MeasureOpts) { opts.GPUAvailable = &v }
}
