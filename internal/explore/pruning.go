package explore

import "math"

// PruningStrategy decides whether a branch of the configuration space is
// worth exploring. It holds no state beyond its thresholds.
//
// Alternative pruning assumes monotonicity: a backend that does not reach
// SpeedupThreshold on one thread is assumed not to reach it with more
// threads either. AlternativePruning turns that assumption off.
type PruningStrategy struct {
	SpeedupThreshold            float64
	DiminishingReturnsThreshold float64
	AlternativePruning          bool
}

func NewPruningStrategy(speedupThreshold, diminishingReturnsThreshold float64) PruningStrategy {
	return PruningStrategy{
		SpeedupThreshold:            speedupThreshold,
		DiminishingReturnsThreshold: diminishingReturnsThreshold,
		AlternativePruning:          true,
	}
}

// PruneAlternative reports whether the subtree rooted at an alternative is
// cut. defined is false when the speedup could not be computed (zero or
// missing baseline); such alternatives cannot prove a benefit and are cut.
// Comparisons are strict so a speedup equal to the threshold survives.
func (p PruningStrategy) PruneAlternative(speedup float64, defined bool) bool {
	if !p.AlternativePruning {
		return false
	}
	if !defined || math.IsNaN(speedup) || math.IsInf(speedup, 0) {
		return true
	}
	return speedup < p.SpeedupThreshold
}

// IncrementalRatio is the benefit of one composition step over the step
// below it. The ratio of throughputs equals the ratio of speedups against
// the same baseline. ok is false when the previous step measured nothing.
func IncrementalRatio(previous, current float64) (ratio float64, ok bool) {
	if previous <= 0 || math.IsNaN(previous) || math.IsNaN(current) {
		return 0, false
	}
	return current / previous, true
}

// StopComposition reports whether thread escalation stops after the step
// that produced ratio.
func (p PruningStrategy) StopComposition(ratio float64, defined bool) bool {
	if !defined {
		return true
	}
	return ratio < p.DiminishingReturnsThreshold
}
