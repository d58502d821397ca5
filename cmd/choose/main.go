package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ciricc/hwexplore/pkg/benchreport"
	"github.com/ciricc/hwexplore/pkg/styles"
	"github.com/samber/lo"
)

func main() {
	var (
		dir       = flag.String("dir", "reports", "directory containing CSV or JSON reports")
		operation = flag.String("op", "", "only show this operation")
		scale     = flag.String("scale", "", "only show this scale")
	)
	flag.Parse()

	rows, files, err := loadRows(*dir)
	if err != nil {
		fatalf("load reports: %v", err)
	}
	if files == 0 {
		fatalf("no reports found in %s", *dir)
	}

	best := lo.Filter(benchreport.Choose(rows), func(b benchreport.Best, _ int) bool {
		return (*operation == "" || strings.EqualFold(b.Operation, *operation)) &&
			(*scale == "" || strings.EqualFold(b.Scale, *scale))
	})
	if len(best) == 0 {
		fatalf("no measured configurations in %d report(s)", files)
	}

	table := lo.Map(best, func(b benchreport.Best, _ int) []string {
		return []string{
			b.Operation,
			b.Scale,
			b.ConfigName,
			strconv.FormatFloat(b.Throughput, 'f', 0, 64),
			strconv.FormatFloat(b.Speedup, 'f', 2, 64) + "x",
		}
	})
	styles.PrintFS("info", "%d report(s), %d rows", files, len(rows))
	fmt.Println(styles.Table([]string{"operation", "scale", "best", "seq/s", "speedup"}, table))
}

// loadRows reads every CSV record stream and JSON report under dir.
// Files that do not parse are skipped.
func loadRows(dir string) ([]benchreport.Row, int, error) {
	var (
		out   []benchreport.Row
		files int
	)
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".csv" && ext != ".json" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		var rows []benchreport.Row
		if ext == ".csv" {
			rows, err = benchreport.ReadCSV(f)
		} else {
			var rep benchreport.Report
			rep, err = benchreport.ReadJSON(f)
			rows = rep.Records
		}
		if err != nil {
			styles.FprintS(os.Stderr, "muted", "skip %s: %v", path, err)
			return nil
		}
		files++
		out = append(out, rows...)
		return nil
	}
	if err := filepath.WalkDir(dir, walk); err != nil {
		return nil, 0, err
	}
	return out, files, nil
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
