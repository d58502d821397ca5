package benchreport

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/ciricc/hwexplore/internal/hostinfo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const ReportVersion = "1"

type Thresholds struct {
	SpeedupThreshold            float64 `json:"speedup_threshold"`
	DiminishingReturnsThreshold float64 `json:"diminishing_returns_threshold"`
	PruneAlternatives           bool    `json:"prune_alternatives"`
	MaxThreads                  int     `json:"max_threads"`
	ThreadSteps                 []int   `json:"thread_steps,omitempty"`
}

// Best is the fastest measured configuration of one (operation, scale).
type Best struct {
	Operation  string  `json:"operation"`
	Scale      string  `json:"scale"`
	ConfigName string  `json:"config_name"`
	Throughput float64 `json:"throughput"`
	Speedup    float64 `json:"speedup"`
}

type SkippedPair struct {
	Plan      string `json:"plan"`
	Operation string `json:"operation"`
	Scale     string `json:"scale"`
	Reason    string `json:"reason"`
	Error     string `json:"error"`
}

type Totals struct {
	Records        int     `json:"records"`
	Measured       int     `json:"measured"`
	Pruned         int     `json:"pruned"`
	Failed         int     `json:"failed"`
	Cached         int     `json:"cached"`
	Skipped        int     `json:"skipped"`
	PrunedSubtrees int     `json:"pruned_subtrees"`
	CacheEntries   int     `json:"cache_entries"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type Report struct {
	Version          string        `json:"version"`
	RunID            string        `json:"run_id"`
	TimestampRFC3339 string        `json:"timestamp_rfc3339"`
	Batches          []string      `json:"batches"`
	Env              hostinfo.Env  `json:"env"`
	Thresholds       Thresholds    `json:"thresholds"`
	Records          []Row         `json:"records"`
	Best             []Best        `json:"best"`
	Skipped          []SkippedPair `json:"skipped,omitempty"`
	Totals           Totals        `json:"totals"`
}

// NewReport summarises the outcomes of one engine. session may be nil when
// the traversal context is not available.
func NewReport(
	env hostinfo.Env,
	th Thresholds,
	session *explore.Session,
	elapsed time.Duration,
	outcomes ...*explore.Outcome,
) Report {
	r := Report{
		Version:          ReportVersion,
		RunID:            uuid.NewString(),
		TimestampRFC3339: time.Now().UTC().Format(time.RFC3339),
		Env:              env,
		Thresholds:       th,
		Records:          []Row{},
		Best:             []Best{},
	}
	for _, out := range lo.Compact(outcomes) {
		r.Batches = append(r.Batches, out.Plan)
		for _, rec := range out.Records {
			r.Records = append(r.Records, RowFromRecord(rec))
			if rec.Cached {
				r.Totals.Cached++
			}
		}
		for _, c := range out.Best {
			r.Best = append(r.Best, Best{
				Operation:  c.Operation,
				Scale:      c.Scale.Name,
				ConfigName: c.Node.Name(),
				Throughput: c.Throughput,
				Speedup:    c.Speedup,
			})
		}
		for _, s := range out.Skipped {
			r.Skipped = append(r.Skipped, SkippedPair{
				Plan:      out.Plan,
				Operation: s.Operation,
				Scale:     s.Scale.Name,
				Reason:    s.Reason.String(),
				Error:     s.Err.Error(),
			})
		}
	}

	counts := lo.CountValuesBy(r.Records, func(row Row) string { return row.Status })
	r.Totals.Records = len(r.Records)
	r.Totals.Measured = counts[explore.StatusMeasured.String()]
	r.Totals.Pruned = counts[explore.StatusPruned.String()]
	r.Totals.Failed = counts[explore.StatusFailed.String()]
	r.Totals.Skipped = len(r.Skipped)
	r.Totals.ElapsedSeconds = elapsed.Seconds()
	if session != nil {
		r.Totals.PrunedSubtrees = session.PrunedSubtrees()
		r.Totals.CacheEntries = session.Cache.Len()
	}
	return r
}

// WriteJSON writes the report to path, creating parent directories.
func (r Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func ReadJSON(r io.Reader) (Report, error) {
	var rep Report
	err := json.NewDecoder(r).Decode(&rep)
	return rep, err
}
