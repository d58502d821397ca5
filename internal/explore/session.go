package explore

import "sync"

type subtreeKey struct {
	operation string
	backend   Backend
	scale     string
}

// Session is the traversal context of one batch run: the result cache, the
// baseline tracker and the set of pruned subtrees. It is owned by an Engine
// and shared across every plan that engine runs.
type Session struct {
	Cache     *ResultCache
	Baselines *BaselineTracker

	mu     sync.Mutex
	pruned map[subtreeKey]struct{}
}

func NewSession() *Session {
	return &Session{
		Cache:     NewResultCache(),
		Baselines: NewBaselineTracker(),
		pruned:    make(map[subtreeKey]struct{}),
	}
}

func (s *Session) pruneSubtree(operation string, b Backend, scale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned[subtreeKey{operation, b, scale}] = struct{}{}
}

// SubtreePruned reports whether every configuration of backend b for the
// (operation, scale) pair was cut by alternative pruning.
func (s *Session) SubtreePruned(operation string, b Backend, scale string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pruned[subtreeKey{operation, b, scale}]
	return ok
}

// PrunedSubtrees returns how many subtrees were cut so far.
func (s *Session) PrunedSubtrees() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pruned)
}
