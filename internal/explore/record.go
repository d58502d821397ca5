package explore

import "time"

// Phase tells where in the traversal a record was produced.
type Phase int

const (
	PhaseBaseline Phase = iota
	PhaseAlternative
	PhaseComposition
	PhaseRefinement
	PhaseGrid
)

func (p Phase) String() string {
	switch p {
	case PhaseBaseline:
		return "baseline"
	case PhaseAlternative:
		return "alternative"
	case PhaseComposition:
		return "composition"
	case PhaseRefinement:
		return "refinement"
	case PhaseGrid:
		return "grid"
	}
	return "unknown"
}

// Record is one entry of the output stream: a measured, pruned or failed
// (operation, node, scale) point.
type Record struct {
	Plan       string
	Operation  string
	Complexity float64
	Node       Node
	Scale      Scale
	Phase      Phase
	Result     Result
	// Cached is true when the result came from an earlier visit.
	Cached bool
}

func (r Record) Throughput() float64 { return r.Result.Throughput }
func (r Record) Elapsed() time.Duration { return r.Result.Elapsed }
func (r Record) Pruned() bool { return r.Result.Pruned() }
func (r Record) Status() Status { return r.Result.Status }

// ErrText is the failure message, empty unless the record failed.
func (r Record) ErrText() string {
	if r.Result.Err == nil {
		return ""
	}
	return r.Result.Err.Error()
}

// Choice is the fastest measured configuration of one (operation, scale).
type Choice struct {
	Operation  string
	Scale      Scale
	Node       Node
	Throughput float64
	Speedup    float64
}

// SkipReason explains why a pair produced no traversal.
type SkipReason int

const (
	SkipBaselineUnavailable SkipReason = iota
	SkipInputUnavailable
)

func (s SkipReason) String() string {
	if s == SkipInputUnavailable {
		return "input_unavailable"
	}
	return "baseline_unavailable"
}

// Skip is a pair that was abandoned.
type Skip struct {
	Operation string
	Scale     Scale
	Reason    SkipReason
	Err       error
}

// Outcome is everything a Run produced.
type Outcome struct {
	Plan    string
	Records []Record
	Best    []Choice
	Skipped []Skip
}

// Sink receives records as they are produced, in stream order.
type Sink interface {
	Emit(Record) error
}

// Observer is notified about progress. Implementations must not block.
type Observer interface {
	OnRecord(Record)
	OnSkip(Skip)
}
