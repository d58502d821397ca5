// Package benchreport defines the on-disk formats of a batch run: a CSV
// record stream and a JSON report, plus readers for both.
package benchreport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ciricc/hwexplore/internal/explore"
)

// Columns is the CSV header. The order is stable.
var Columns = []string{
	"operation", "config_name", "backend", "threads", "affinity", "scale",
	"num_sequences", "phase", "status", "throughput", "speedup", "pruned",
	"elapsed_secs", "complexity", "error",
}

// Row is one output record in its serialised form.
type Row struct {
	Operation    string  `json:"operation"`
	ConfigName   string  `json:"config_name"`
	Backend      string  `json:"backend"`
	Threads      int     `json:"threads"`
	Affinity     string  `json:"affinity"`
	Scale        string  `json:"scale"`
	NumSequences int     `json:"num_sequences"`
	Phase        string  `json:"phase"`
	Status       string  `json:"status"`
	Throughput   float64 `json:"throughput"`
	Speedup      float64 `json:"speedup"`
	Pruned       bool    `json:"pruned"`
	ElapsedSecs  float64 `json:"elapsed_secs"`
	Complexity   float64 `json:"complexity"`
	Error        string  `json:"error,omitempty"`
}

func RowFromRecord(r explore.Record) Row {
	return Row{
		Operation:    r.Operation,
		ConfigName:   r.Node.Name(),
		Backend:      r.Node.Backend.String(),
		Threads:      r.Node.Threads,
		Affinity:     r.Node.Affinity.String(),
		Scale:        r.Scale.Name,
		NumSequences: r.Scale.Size,
		Phase:        r.Phase.String(),
		Status:       r.Status().String(),
		Throughput:   r.Throughput(),
		Speedup:      r.Result.Speedup,
		Pruned:       r.Pruned(),
		ElapsedSecs:  r.Elapsed().Seconds(),
		Complexity:   r.Complexity,
		Error:        r.ErrText(),
	}
}

// Measured reports whether the row holds a real measurement.
func (r Row) Measured() bool { return r.Status == explore.StatusMeasured.String() }

// Node decodes the configuration encoded in ConfigName.
func (r Row) Node() (explore.Node, error) { return explore.ParseNode(r.ConfigName) }

func (r Row) fields() []string {
	return []string{
		r.Operation,
		r.ConfigName,
		r.Backend,
		strconv.Itoa(r.Threads),
		r.Affinity,
		r.Scale,
		strconv.Itoa(r.NumSequences),
		r.Phase,
		r.Status,
		strconv.FormatFloat(r.Throughput, 'f', 2, 64),
		strconv.FormatFloat(r.Speedup, 'f', 4, 64),
		strconv.FormatBool(r.Pruned),
		strconv.FormatFloat(r.ElapsedSecs, 'f', 6, 64),
		strconv.FormatFloat(r.Complexity, 'f', 2, 64),
		r.Error,
	}
}

func parseRow(f []string) (Row, error) {
	if len(f) != len(Columns) {
		return Row{}, fmt.Errorf("expected %d fields, got %d", len(Columns), len(f))
	}
	var (
		r    = Row{Operation: f[0], ConfigName: f[1], Backend: f[2], Affinity: f[4], Scale: f[5], Phase: f[7], Status: f[8], Error: f[14]}
		errs []error
	)
	atoi := func(s string) int {
		v, err := strconv.Atoi(s)
		errs = append(errs, err)
		return v
	}
	atof := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		errs = append(errs, err)
		return v
	}
	r.Threads = atoi(f[3])
	r.NumSequences = atoi(f[6])
	r.Throughput = atof(f[9])
	r.Speedup = atof(f[10])
	pruned, err := strconv.ParseBool(f[11])
	errs = append(errs, err)
	r.Pruned = pruned
	r.ElapsedSecs = atof(f[12])
	r.Complexity = atof(f[13])
	return r, errors.Join(errs...)
}

// CSVSink streams records to a CSV file as the engine emits them. Every
// row is flushed right away so a crashed batch still leaves its results.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
}

func NewCSVSink(w io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}
	if err := s.write(Columns); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCSVSink creates path, and its parent directories, and writes the header.
func CreateCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := NewCSVSink(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

func (s *CSVSink) Emit(r explore.Record) error {
	return s.write(RowFromRecord(r).fields())
}

func (s *CSVSink) write(fields []string) error {
	if err := s.w.Write(fields); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if s.closer == nil {
		return s.w.Error()
	}
	return errors.Join(s.w.Error(), s.closer.Close())
}

var _ explore.Sink = (*CSVSink)(nil)

// ReadCSV parses a record stream written by CSVSink.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, c := range Columns {
		if header[i] != c {
			return nil, fmt.Errorf("unexpected column %q at %d, want %q", header[i], i, c)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		f, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(f)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}
