package explore

import (
	"fmt"

	"github.com/samber/lo"
)

// Capability flags for the backends an operation has an implementation for.
type Capability uint8

const (
	CapNaive Capability = 1 << iota
	CapVectorUnit
	CapGPU
	CapMatrixAccelerator
)

// CapabilityOf maps a backend to its capability bit.
func CapabilityOf(b Backend) Capability {
	switch b {
	case Naive:
		return CapNaive
	case VectorUnit:
		return CapVectorUnit
	case GPU:
		return CapGPU
	case MatrixAccelerator:
		return CapMatrixAccelerator
	}
	return 0
}

// Capabilities builds a flag set from a list of backends.
func Capabilities(backends ...Backend) Capability {
	var c Capability
	for _, b := range backends {
		c |= CapabilityOf(b)
	}
	return c
}

func (c Capability) Has(b Backend) bool { return c&CapabilityOf(b) != 0 }

// Backends returns the supported backends in canonical order.
func (c Capability) Backends() []Backend {
	return lo.Filter(Backends, func(b Backend, _ int) bool { return c.Has(b) })
}

// Descriptor is the static metadata of an operation. Descriptors are built
// once when a batch starts and are never mutated afterwards.
type Descriptor struct {
	Name string
	// Complexity is an externally supplied estimate of computational
	// intensity in [0,1].
	Complexity   float64
	Capabilities Capability
	// MetadataOnly marks operations whose output is O(1) per input record
	// regardless of content (e.g. sequence length).
	MetadataOnly bool
	// Factory builds whatever the execution adapter needs to run the
	// operation. The engine never calls it; it only passes the descriptor on.
	Factory func() any
}

// Validate reports descriptors that cannot take part in a traversal.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("operation without a name")
	}
	if d.Complexity < 0 || d.Complexity > 1 {
		return fmt.Errorf("operation %s: complexity %.2f outside [0,1]", d.Name, d.Complexity)
	}
	if !d.Capabilities.Has(Naive) {
		return fmt.Errorf("operation %s: naive backend is required for the baseline", d.Name)
	}
	return nil
}

// VectorFriendly predicts a good vector-unit speedup (complexity < 0.45).
func (d Descriptor) VectorFriendly() bool { return d.Complexity < 0.45 }

// GPUCandidate predicts that a GPU might pay off where vector units do not.
func (d Descriptor) GPUCandidate() bool {
	return !d.VectorFriendly() && d.Complexity > 0.55
}

// Scale is an opaque input-size identifier. Size is informative only.
type Scale struct {
	Name string
	Size int
}

func (s Scale) String() string { return s.Name }
