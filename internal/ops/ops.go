package ops

import (
	"fmt"

	"github.com/ciricc/hwexplore/internal/dataset"
	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/samber/lo"
)

// Tally is the additive result of running a kernel over a slice of records.
// Partial tallies of disjoint chunks merge with Add into the tally of the
// whole input.
type Tally struct {
	Sequences int64
	Bases     int64

	A, C, G, T, N int64

	MinLength int64
	MaxLength int64

	QualitySum   int64
	QualityBases int64

	Passed   int64
	Filtered int64

	ComplexitySum  float64
	LowComplexity  int64
	HighComplexity int64
}

// Add merges o into t.
func (t *Tally) Add(o Tally) {
	if o.Sequences > 0 {
		if t.Sequences == 0 || o.MinLength < t.MinLength {
			t.MinLength = o.MinLength
		}
		t.MaxLength = max(t.MaxLength, o.MaxLength)
	}
	t.Sequences += o.Sequences
	t.Bases += o.Bases
	t.A += o.A
	t.C += o.C
	t.G += o.G
	t.T += o.T
	t.N += o.N
	t.QualitySum += o.QualitySum
	t.QualityBases += o.QualityBases
	t.Passed += o.Passed
	t.Filtered += o.Filtered
	t.ComplexitySum += o.ComplexitySum
	t.LowComplexity += o.LowComplexity
	t.HighComplexity += o.HighComplexity
}

// GCContent is the G+C fraction over all bases.
func (t Tally) GCContent() float64 { return ratio(t.G+t.C, t.Bases) }

func (t Tally) ATContent() float64 { return ratio(t.A+t.T, t.Bases) }

func (t Tally) NContent() float64 { return ratio(t.N, t.Bases) }

// MeanQuality is the mean Phred score over every quality byte.
func (t Tally) MeanQuality() float64 { return ratio(t.QualitySum, t.QualityBases) }

func (t Tally) MeanLength() float64 { return ratio(t.Bases, t.Sequences) }

func (t Tally) MeanComplexity() float64 {
	if t.Sequences == 0 {
		return 0
	}
	return t.ComplexitySum / float64(t.Sequences)
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Kernel is the uniform interface every operation exposes to the execution
// adapter. Naive is mandatory.
type Kernel interface {
	Naive(records []dataset.Record) Tally
}

// VectorKernel is implemented by kernels with a word-at-a-time path. Its
// result must equal Naive on the same input.
type VectorKernel interface {
	Kernel
	Vector(records []dataset.Record) Tally
}

// GPUKernel is implemented by kernels that can offload to a GPU.
type GPUKernel interface {
	Kernel
	GPU(records []dataset.Record) (Tally, error)
}

// Operation names.
const (
	BaseCounting       = "base_counting"
	GCContent          = "gc_content"
	ATContent          = "at_content"
	NContent           = "n_content"
	SequenceLength     = "sequence_length"
	QualityAggregation = "quality_aggregation"
	QualityFilter      = "quality_filter"
	LengthFilter       = "length_filter"
	ComplexityScore    = "complexity_score"
)

// Default parameters of the filtering operations.
const (
	DefaultMinMeanQuality = 20
	DefaultMinLength      = 50
)

func descriptor(name string, complexity float64, metadataOnly bool, k Kernel, backends ...explore.Backend) explore.Descriptor {
	return explore.Descriptor{
		Name:         name,
		Complexity:   complexity,
		Capabilities: explore.Capabilities(backends...),
		MetadataOnly: metadataOnly,
		Factory:      func() any { return k },
	}
}

// Catalog returns every operation in traversal order. Descriptors are
// rebuilt on every call.
func Catalog() []explore.Descriptor {
	const (
		naive  = explore.Naive
		vector = explore.VectorUnit
		gpu    = explore.GPU
		matrix = explore.MatrixAccelerator
	)
	return []explore.Descriptor{
		descriptor(BaseCounting, 0.40, false, baseCounting{}, naive, vector, gpu),
		descriptor(GCContent, 0.32, false, gcContent{}, naive, vector, gpu),
		descriptor(ATContent, 0.35, false, atContent{}, naive, vector),
		descriptor(NContent, 0.25, false, nContent{}, naive, vector),
		descriptor(SequenceLength, 0.20, true, sequenceLength{}, naive, vector),
		descriptor(QualityAggregation, 0.50, false, qualityAggregation{}, naive, vector),
		descriptor(QualityFilter, 0.55, false, qualityFilter{minMean: DefaultMinMeanQuality}, naive, vector),
		descriptor(LengthFilter, 0.25, true, lengthFilter{minLength: DefaultMinLength}, naive),
		descriptor(ComplexityScore, 0.61, false, complexityScore{}, naive, vector, matrix),
	}
}

// Lookup finds a catalog entry by name.
func Lookup(name string) (explore.Descriptor, error) {
	d, ok := lo.Find(Catalog(), func(d explore.Descriptor) bool { return d.Name == name })
	if !ok {
		return explore.Descriptor{}, fmt.Errorf("unknown operation %q", name)
	}
	return d, nil
}

// KernelOf builds the kernel behind a descriptor.
func KernelOf(d explore.Descriptor) (Kernel, error) {
	if d.Factory == nil {
		return nil, fmt.Errorf("operation %s has no factory", d.Name)
	}
	k, ok := d.Factory().(Kernel)
	if !ok {
		return nil, fmt.Errorf("operation %s: factory returned %T, not a kernel", d.Name, d.Factory())
	}
	return k, nil
}
