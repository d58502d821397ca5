package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// ReadFASTQ parses 4-line FASTQ records. Blank lines between records are
// tolerated; a truncated record is an error.
func ReadFASTQ(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		out  []Record
		line int
	)
	next := func() ([]byte, bool) {
		for sc.Scan() {
			line++
			b := bytes.TrimRight(sc.Bytes(), "\r")
			if len(b) == 0 {
				continue
			}
			return b, true
		}
		return nil, false
	}

	for {
		header, ok := next()
		if !ok {
			break
		}
		if header[0] != '@' {
			return nil, fmt.Errorf("fastq line %d: expected '@' header, got %q", line, header)
		}
		id := string(header[1:])

		seq, ok := next()
		if !ok {
			return nil, fmt.Errorf("fastq record %s: missing sequence", id)
		}
		seq = bytes.Clone(seq)

		plus, ok := next()
		if !ok || plus[0] != '+' {
			return nil, fmt.Errorf("fastq record %s: missing '+' separator", id)
		}

		qual, ok := next()
		if !ok {
			return nil, fmt.Errorf("fastq record %s: missing quality line", id)
		}
		if len(qual) != len(seq) {
			return nil, fmt.Errorf("fastq record %s: quality length %d != sequence length %d", id, len(qual), len(seq))
		}
		out = append(out, Record{ID: id, Seq: seq, Qual: bytes.Clone(qual)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fastq: %w", err)
	}
	return out, nil
}

// WriteFASTQ writes records in 4-line form. Records without qualities get
// a run of '!' so the output stays valid FASTQ.
func WriteFASTQ(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		qual := r.Qual
		if qual == nil {
			qual = bytes.Repeat([]byte{'!'}, len(r.Seq))
		}
		bw.WriteByte('@')
		bw.WriteString(r.ID)
		bw.WriteByte('\n')
		bw.Write(r.Seq)
		bw.WriteString("\n+\n")
		bw.Write(qual)
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
