package benchreport

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/ciricc/hwexplore/internal/hostinfo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(node explore.Node, phase explore.Phase, res explore.Result) explore.Record {
	return explore.Record{
		Plan:       explore.BatchDAG,
		Operation:  "gc_content",
		Complexity: 0.32,
		Node:       node,
		Scale:      explore.ScaleMedium,
		Phase:      phase,
		Result:     res,
	}
}

func sampleRecords() []explore.Record {
	return []explore.Record{
		record(explore.BaselineNode(), explore.PhaseBaseline, explore.Result{Throughput: 1000, Speedup: 1, Elapsed: 10 * time.Millisecond}),
		record(explore.AlternativeNode(explore.VectorUnit), explore.PhaseAlternative, explore.Result{Throughput: 4000, Speedup: 4, Elapsed: 2500 * time.Microsecond}),
		record(explore.NewNode(explore.VectorUnit, 4, explore.PerformanceHint), explore.PhaseRefinement, explore.Result{Throughput: 9000, Speedup: 9}),
		record(explore.NewNode(explore.Naive, 16, explore.DefaultAffinity), explore.PhaseComposition, explore.Result{Status: explore.StatusPruned}),
		record(explore.AlternativeNode(explore.GPU), explore.PhaseAlternative, explore.Result{Status: explore.StatusFailed, Err: errors.New("no device, sorry")}),
	}
}

func TestCSVSinkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewCSVSink(&buf)
	require.NoError(t, err)
	for _, r := range sampleRecords() {
		require.NoError(t, sink.Emit(r))
	}
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.Equal(t, "gc_content,vector_4t_pcores,vector,4,p_cores,Medium,10000,refinement,measured,9000.00,9.0000,false,0.000000,0.32,", lines[3])

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "naive", rows[0].ConfigName)
	assert.Equal(t, "baseline", rows[0].Phase)
	assert.InDelta(t, 0.01, rows[0].ElapsedSecs, 1e-9)
	assert.True(t, rows[3].Pruned)
	assert.Equal(t, "pruned", rows[3].Status)
	assert.Equal(t, "failed", rows[4].Status)
	assert.Equal(t, "no device, sorry", rows[4].Error)

	n, err := rows[2].Node()
	require.NoError(t, err)
	assert.Equal(t, explore.NewNode(explore.VectorUnit, 4, explore.PerformanceHint), n)
}

func TestReadCSVRejectsForeignHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b,c,d,e,f,g,h,i,j,k,l,m,n,o\n"))
	assert.Error(t, err)
}

func TestCreateCSVSinkMakesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "results.csv")
	sink, err := CreateCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Emit(sampleRecords()[0]))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestChooseTieBreaks(t *testing.T) {
	rows := []Row{
		{Operation: "gc_content", Scale: "Large", NumSequences: 100_000, ConfigName: "vector_8t", Threads: 8, Affinity: "default", Status: "measured", Throughput: 500},
		{Operation: "gc_content", Scale: "Large", NumSequences: 100_000, ConfigName: "vector_4t", Threads: 4, Affinity: "default", Status: "measured", Throughput: 500},
		{Operation: "gc_content", Scale: "Large", NumSequences: 100_000, ConfigName: "vector_4t_pcores", Threads: 4, Affinity: "p_cores", Status: "measured", Throughput: 500},
		{Operation: "gc_content", Scale: "Large", NumSequences: 100_000, ConfigName: "gpu", Threads: 1, Status: "failed"},
		{Operation: "gc_content", Scale: "Medium", NumSequences: 10_000, ConfigName: "naive", Threads: 1, Affinity: "default", Status: "measured", Throughput: 10, Speedup: 1},
		{Operation: "gc_content", Scale: "Medium", NumSequences: 10_000, ConfigName: "naive_16t", Threads: 16, Status: "pruned"},
		{Operation: "at_content", Scale: "Medium", NumSequences: 10_000, ConfigName: "vector", Threads: 1, Affinity: "default", Status: "measured", Throughput: 20, Speedup: 2},
	}

	best := Choose(rows)
	require.Len(t, best, 3)
	assert.Equal(t, Best{Operation: "at_content", Scale: "Medium", ConfigName: "vector", Throughput: 20, Speedup: 2}, best[0])
	assert.Equal(t, "Medium", best[1].Scale, "smaller scales first")
	assert.Equal(t, "naive", best[1].ConfigName)
	assert.Equal(t, "vector_4t", best[2].ConfigName)
}

func TestNewReport(t *testing.T) {
	recs := sampleRecords()
	recs[1].Cached = true
	out := &explore.Outcome{
		Plan:    explore.BatchDAG,
		Records: recs,
		Best: []explore.Choice{{
			Operation:  "gc_content",
			Scale:      explore.ScaleMedium,
			Node:       explore.NewNode(explore.VectorUnit, 4, explore.PerformanceHint),
			Throughput: 9000,
			Speedup:    9,
		}},
		Skipped: []explore.Skip{{
			Operation: "gc_content",
			Scale:     explore.ScaleHuge,
			Reason:    explore.SkipInputUnavailable,
			Err:       explore.ErrUnavailableInput,
		}},
	}
	env := hostinfo.Env{OS: "linux", Arch: "amd64", CPUNumLogical: 8}
	th := Thresholds{SpeedupThreshold: 1.5, DiminishingReturnsThreshold: 1.3, PruneAlternatives: true, MaxThreads: 8}

	rep := NewReport(env, th, explore.NewSession(), 3*time.Second, out, nil)

	_, err := uuid.Parse(rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{explore.BatchDAG}, rep.Batches)
	assert.Len(t, rep.Records, 5)
	assert.Equal(t, []Best{{Operation: "gc_content", Scale: "Medium", ConfigName: "vector_4t_pcores", Throughput: 9000, Speedup: 9}}, rep.Best)
	assert.Equal(t, Totals{
		Records:        5,
		Measured:       3,
		Pruned:         1,
		Failed:         1,
		Cached:         1,
		Skipped:        1,
		ElapsedSeconds: 3,
	}, rep.Totals)
	assert.Equal(t, "input_unavailable", rep.Skipped[0].Reason)

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, rep.WriteJSON(path))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	back, err := ReadJSON(f)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, back.RunID)
	assert.Equal(t, rep.Best, back.Best)
	assert.Equal(t, env.CPUNumLogical, back.Env.CPUNumLogical)
	assert.Equal(t, Choose(rep.Records), Choose(back.Records))
}
