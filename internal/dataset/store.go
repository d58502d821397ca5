package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ciricc/hwexplore/internal/explore"
)

type StoreOpts struct {
	Dir      string
	Generate bool
	// Persist writes generated datasets to Dir so later runs read them back.
	Persist bool
	Seed    uint64
	Logger  *slog.Logger
}

type StoreOpt func(opts *StoreOpts)

func WithDir(dir string) StoreOpt {
	return func(opts *StoreOpts) { opts.Dir = dir }
}

func WithGenerate(v bool) StoreOpt {
	return func(opts *StoreOpts) { opts.Generate = v }
}

func WithPersist(v bool) StoreOpt {
	return func(opts *StoreOpts) { opts.Persist = v }
}

func WithSeed(seed uint64) StoreOpt {
	return func(opts *StoreOpts) { opts.Seed = seed }
}

func WithLogger(l *slog.Logger) StoreOpt {
	return func(opts *StoreOpts) { opts.Logger = l }
}

// Store resolves scales to records. Every scale stays in memory once loaded,
// so a batch that revisits a scale for each operation reads or generates it
// only once. Release drops them.
type Store struct {
	opts StoreOpts
	log  *slog.Logger

	mu     sync.Mutex
	scales map[string][]Record
	builds int
}

func NewStore(opts ...StoreOpt) *Store {
	o := StoreOpts{
		Dir:      "datasets",
		Generate: true,
		Seed:     42,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		opts:   o,
		log:    o.Logger.With("component", "dataset"),
		scales: make(map[string][]Record),
	}
}

// Path is where the store looks for a scale on disk.
func (s *Store) Path(scale explore.Scale) string {
	return filepath.Join(s.opts.Dir, FileName(scale))
}

// Load returns the records for scale. The returned slice is shared and must
// not be modified.
func (s *Store) Load(ctx context.Context, scale explore.Scale) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recs, ok := s.scales[scale.Name]; ok {
		return recs, nil
	}

	start := time.Now()
	path := s.Path(scale)
	recs, err := s.readFile(path)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "dataset loaded", "scale", scale.Name, "path", path, "records", len(recs), "elapsed", time.Since(start))
	case errors.Is(err, fs.ErrNotExist) && s.opts.Generate:
		if scale.Size <= 0 {
			return nil, fmt.Errorf("%w: scale %s has no size to generate", ErrUnavailableInput, scale.Name)
		}
		recs = Generate(scale.Size, ReadLength, s.opts.Seed)
		s.log.InfoContext(ctx, "dataset generated", "scale", scale.Name, "records", len(recs), "seed", s.opts.Seed, "elapsed", time.Since(start))
		if s.opts.Persist {
			s.persist(ctx, path, recs)
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrUnavailableInput, path)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailableInput, path, err)
	}

	s.builds++
	s.scales[scale.Name] = recs
	return recs, nil
}

// Release drops every cached scale.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.scales)
}

func (s *Store) readFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFASTQ(f)
}

func (s *Store) persist(ctx context.Context, path string, recs []Record) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.log.WarnContext(ctx, "cannot create dataset dir", "path", path, "error", err)
		return
	}
	f, err := os.Create(path)
	if err != nil {
		s.log.WarnContext(ctx, "cannot persist dataset", "path", path, "error", err)
		return
	}
	defer f.Close()
	if err := WriteFASTQ(f, recs); err != nil {
		s.log.WarnContext(ctx, "cannot persist dataset", "path", path, "error", err)
	}
}
