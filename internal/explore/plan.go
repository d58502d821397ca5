package explore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Standard scales: reads of 150bp.
var (
	ScaleTiny      = Scale{Name: "Tiny", Size: 100}
	ScaleSmall     = Scale{Name: "Small", Size: 1_000}
	ScaleMedium    = Scale{Name: "Medium", Size: 10_000}
	ScaleLarge     = Scale{Name: "Large", Size: 100_000}
	ScaleVeryLarge = Scale{Name: "VeryLarge", Size: 1_000_000}
	ScaleHuge      = Scale{Name: "Huge", Size: 10_000_000}
)

// StandardScales lists every predefined scale, smallest first.
var StandardScales = []Scale{ScaleTiny, ScaleSmall, ScaleMedium, ScaleLarge, ScaleVeryLarge, ScaleHuge}

// ScaleByName finds a standard scale, case-insensitively.
func ScaleByName(name string) (Scale, bool) {
	return lo.Find(StandardScales, func(s Scale) bool { return strings.EqualFold(s.Name, name) })
}

// Family describes the candidate configurations a plan explores.
//
// With an empty Grid the three-phase traversal runs over the backends in
// Backends (all declared backends when zero). With a Grid the listed nodes
// are measured as is, still sharing baseline, cache and pruning bookkeeping.
type Family struct {
	Backends    Capability
	ThreadSteps []int
	Refine      bool
	Grid        []Node
}

func (f Family) IsGrid() bool { return len(f.Grid) > 0 }

// Plan is one named traversal run.
type Plan struct {
	Name       string
	Operations []Descriptor
	Scales     []Scale
	Family     Family
}

// Batch names.
const (
	BatchDAG             = "dag"
	BatchVectorParallel  = "vector_parallel"
	BatchCoreAffinity    = "core_affinity"
	BatchScaleThresholds = "scale_thresholds"
)

// BatchNames lists the predefined batches.
var BatchNames = []string{BatchDAG, BatchVectorParallel, BatchCoreAffinity, BatchScaleThresholds}

func normalizeBatch(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "_")
	if n == "neon_parallel" {
		return BatchVectorParallel
	}
	return n
}

// BuildPlan resolves a predefined batch against an operation catalog.
// Operations keep catalog order.
func BuildPlan(name string, catalog []Descriptor) (Plan, error) {
	for _, d := range catalog {
		if err := d.Validate(); err != nil {
			return Plan{}, err
		}
	}
	ops := slices.Clone(catalog)

	switch normalizeBatch(name) {
	case BatchDAG:
		return Plan{
			Name:       BatchDAG,
			Operations: ops,
			Scales:     []Scale{ScaleMedium, ScaleLarge, ScaleVeryLarge},
			Family:     Family{Refine: true},
		}, nil
	case BatchVectorParallel:
		return Plan{
			Name:       BatchVectorParallel,
			Operations: ops,
			Scales:     []Scale{ScaleMedium, ScaleLarge, ScaleVeryLarge},
			Family: Family{
				Backends:    Capabilities(Naive, VectorUnit),
				ThreadSteps: []int{2, 4},
			},
		}, nil
	case BatchCoreAffinity:
		return Plan{
			Name:       BatchCoreAffinity,
			Operations: ops,
			Scales:     []Scale{ScaleMedium, ScaleLarge},
			Family: Family{Grid: []Node{
				AlternativeNode(VectorUnit),
				AlternativeNode(VectorUnit).WithAffinity(PerformanceHint),
				AlternativeNode(VectorUnit).WithAffinity(EfficiencyHint),
			}},
		}, nil
	case BatchScaleThresholds:
		return Plan{
			Name:       BatchScaleThresholds,
			Operations: ops,
			Scales:     []Scale{ScaleTiny, ScaleSmall, ScaleMedium, ScaleLarge},
			Family: Family{Grid: []Node{
				BaselineNode(),
				AlternativeNode(VectorUnit),
				NewNode(VectorUnit, 2, DefaultAffinity),
				NewNode(VectorUnit, 4, DefaultAffinity),
			}},
		}, nil
	}
	return Plan{}, fmt.Errorf("unknown batch %q (known: %s)", name, strings.Join(BatchNames, ", "))
}

// WithOperations narrows the plan to the named operations, keeping plan
// order. Unknown names are an error.
func (p Plan) WithOperations(names []string) (Plan, error) {
	if len(names) == 0 {
		return p, nil
	}
	byName := lo.KeyBy(p.Operations, func(d Descriptor) string { return d.Name })
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			return Plan{}, fmt.Errorf("plan %s: unknown operation %q", p.Name, n)
		}
	}
	p.Operations = lo.Filter(p.Operations, func(d Descriptor, _ int) bool {
		return lo.Contains(names, d.Name)
	})
	return p, nil
}

// WithScales replaces the plan's scales.
func (p Plan) WithScales(scales []Scale) Plan {
	if len(scales) > 0 {
		p.Scales = slices.Clone(scales)
	}
	return p
}

// snapshot copies the operation and scale lists so a running traversal is
// unaffected by later changes to the plan.
func (p Plan) snapshot() Plan {
	p.Operations = slices.Clone(p.Operations)
	p.Scales = slices.Clone(p.Scales)
	p.Family.ThreadSteps = slices.Clone(p.Family.ThreadSteps)
	p.Family.Grid = slices.Clone(p.Family.Grid)
	return p
}

// ThreadSteps returns the increasing thread counts to walk in the
// composition phase. Explicit steps are filtered to (1, max]; otherwise
// counts double from 2 up to max.
func ThreadSteps(max int, explicit []int) []int {
	if len(explicit) > 0 {
		steps := lo.Uniq(lo.Filter(explicit, func(t int, _ int) bool { return t > 1 && t <= max }))
		slices.Sort(steps)
		return steps
	}
	var steps []int
	for t := 2; t <= max; t *= 2 {
		steps = append(steps, t)
	}
	return steps
}
