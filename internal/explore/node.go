package explore

import (
	"fmt"
	"strings"
)

// Backend is the mutually exclusive "alternative" axis of a configuration.
type Backend int

const (
	Naive Backend = iota
	VectorUnit
	GPU
	MatrixAccelerator
)

// Backends lists every backend in canonical traversal order.
var Backends = []Backend{Naive, VectorUnit, GPU, MatrixAccelerator}

func (b Backend) String() string {
	switch b {
	case Naive:
		return "naive"
	case VectorUnit:
		return "vector"
	case GPU:
		return "gpu"
	case MatrixAccelerator:
		return "matrix"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackend accepts the textual encoding produced by String plus a few
// common aliases.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "naive", "scalar":
		return Naive, nil
	case "vector", "vectorunit", "simd", "neon":
		return VectorUnit, nil
	case "gpu", "metal", "cuda":
		return GPU, nil
	case "matrix", "matrixaccelerator", "amx":
		return MatrixAccelerator, nil
	}
	return 0, fmt.Errorf("unknown backend %q", s)
}

// Affinity is an advisory core-affinity class. The scheduler may ignore it.
type Affinity int

const (
	DefaultAffinity Affinity = iota
	PerformanceHint
	EfficiencyHint
)

// RefinementAffinities are the non-default classes tried in the refinement phase.
var RefinementAffinities = []Affinity{PerformanceHint, EfficiencyHint}

func (a Affinity) String() string {
	switch a {
	case DefaultAffinity:
		return "default"
	case PerformanceHint:
		return "p_cores"
	case EfficiencyHint:
		return "e_cores"
	default:
		return fmt.Sprintf("affinity(%d)", int(a))
	}
}

func (a Affinity) suffix() string {
	switch a {
	case PerformanceHint:
		return "_pcores"
	case EfficiencyHint:
		return "_ecores"
	default:
		return ""
	}
}

// ParseAffinity is the inverse of Affinity.String.
func ParseAffinity(s string) (Affinity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return DefaultAffinity, nil
	case "p_cores", "pcores", "performance":
		return PerformanceHint, nil
	case "e_cores", "ecores", "efficiency":
		return EfficiencyHint, nil
	}
	return 0, fmt.Errorf("unknown affinity %q", s)
}

// Node is a point in the hardware configuration space. It is a comparable
// value type and is used directly inside cache keys.
type Node struct {
	Backend  Backend
	Threads  int
	Affinity Affinity
}

// NewNode builds a node, clamping a non-positive thread count to 1.
func NewNode(backend Backend, threads int, affinity Affinity) Node {
	if threads < 1 {
		threads = 1
	}
	return Node{Backend: backend, Threads: threads, Affinity: affinity}
}

// BaselineNode is the unconditional reference configuration.
func BaselineNode() Node {
	return Node{Backend: Naive, Threads: 1, Affinity: DefaultAffinity}
}

// AlternativeNode is the canonical single-thread node for a backend.
func AlternativeNode(b Backend) Node {
	return Node{Backend: b, Threads: 1, Affinity: DefaultAffinity}
}

// WithThreads returns a copy of n with a different thread count.
func (n Node) WithThreads(threads int) Node {
	return NewNode(n.Backend, threads, n.Affinity)
}

// WithAffinity returns a copy of n with a different affinity class.
func (n Node) WithAffinity(a Affinity) Node {
	n.Affinity = a
	return n
}

func (n Node) IsBaseline() bool { return n == BaselineNode() }

func (n Node) IsAlternative() bool {
	return n.Threads == 1 && n.Affinity == DefaultAffinity
}

func (n Node) IsComposition() bool {
	return n.Threads > 1 && n.Affinity == DefaultAffinity
}

func (n Node) IsRefinement() bool {
	return n.Affinity != DefaultAffinity
}

// Name is the stable textual encoding used in output records:
// "naive", "vector_4t", "vector_4t_pcores", "vector_pcores".
func (n Node) Name() string {
	var sb strings.Builder
	sb.WriteString(n.Backend.String())
	if n.Threads > 1 {
		fmt.Fprintf(&sb, "_%dt", n.Threads)
	}
	sb.WriteString(n.Affinity.suffix())
	return sb.String()
}

func (n Node) String() string { return n.Name() }

// ParseNode decodes the encoding produced by Name.
func ParseNode(s string) (Node, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) == 0 || parts[0] == "" {
		return Node{}, fmt.Errorf("empty node name")
	}
	b, err := ParseBackend(parts[0])
	if err != nil {
		return Node{}, err
	}
	n := AlternativeNode(b)
	for _, p := range parts[1:] {
		switch {
		case strings.HasSuffix(p, "t") && len(p) > 1:
			var t int
			if _, err := fmt.Sscanf(p, "%dt", &t); err != nil || t < 1 {
				return Node{}, fmt.Errorf("bad thread count in %q", s)
			}
			n.Threads = t
		case p == "pcores":
			n.Affinity = PerformanceHint
		case p == "ecores":
			n.Affinity = EfficiencyHint
		default:
			return Node{}, fmt.Errorf("bad node segment %q in %q", p, s)
		}
	}
	return n, nil
}
