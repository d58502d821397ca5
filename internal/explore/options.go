package explore

import (
	"io"
	"log/slog"
	"runtime"
)

type EngineOpts struct {
	Logger             *slog.Logger
	Session            *Session
	Sinks              []Sink
	Observers          []Observer
	MaxThreads         int
	RefineMetadataOnly bool
}

type EngineOpt func(opts *EngineOpts)

func WithLogger(l *slog.Logger) EngineOpt {
	return func(opts *EngineOpts) { opts.Logger = l }
}

// WithSession makes the engine reuse an existing traversal context.
func WithSession(s *Session) EngineOpt {
	return func(opts *EngineOpts) { opts.Session = s }
}

func WithSink(s Sink) EngineOpt {
	return func(opts *EngineOpts) { opts.Sinks = append(opts.Sinks, s) }
}

func WithObserver(o Observer) EngineOpt {
	return func(opts *EngineOpts) { opts.Observers = append(opts.Observers, o) }
}

func WithMaxThreads(v int) EngineOpt {
	return func(opts *EngineOpts) { opts.MaxThreads = v }
}

// WithRefineMetadataOnly enables the refinement phase for metadata-only
// operations, which skip it by default.
func WithRefineMetadataOnly(v bool) EngineOpt {
	return func(opts *EngineOpts) { opts.RefineMetadataOnly = v }
}

func buildOpts(defaultOpts EngineOpts, opts ...EngineOpt) EngineOpts {
	o := defaultOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func defaultEngineOpts() EngineOpts {
	return EngineOpts{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxThreads: runtime.NumCPU(),
	}
}
