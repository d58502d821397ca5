package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ciricc/hwexplore/internal/app"
	"github.com/ciricc/hwexplore/internal/config"
	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/ciricc/hwexplore/pkg/styles"
	"github.com/samber/lo"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "optional path to config.yaml")
		batch       = flag.String("batch", "", "batch to run: dag|vector_parallel|core_affinity|scale_thresholds (comma separated for several)")
		operations  = flag.String("ops", "", "comma separated subset of operations")
		scales      = flag.String("scales", "", "comma separated scales overriding the batch scales (e.g. tiny,small)")
		csvPath     = flag.String("out", "", "CSV output path")
		jsonPath    = flag.String("report", "", "optional JSON report path")
		promPath    = flag.String("metrics", "", "optional Prometheus textfile path")
		speedup     = flag.Float64("speedup_threshold", 0, "minimum single-thread speedup for an alternative to survive")
		diminishing = flag.Float64("diminishing_threshold", 0, "minimum throughput gain per thread step")
		noPrune     = flag.Bool("no_prune_alternatives", false, "explore every alternative regardless of speedup")
		maxThreads  = flag.Int("max_threads", 0, "upper bound for thread escalation")
		steps       = flag.String("thread_steps", "", "explicit comma separated thread steps (default: doubling)")
		repeats     = flag.Int("repeats", 0, "measured runs per configuration")
		warmup      = flag.Bool("warmup", false, "run one unmeasured warmup before each measurement")
		datasetDir  = flag.String("datasets", "", "directory holding FASTQ datasets")
		logLevel    = flag.String("log", "", "log level: debug|info|warn|error")
		healthAddr  = flag.String("health", "", "serve gRPC health on this address while running")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fatalf("load config: %v", err)
		}
	}

	// flags override the file
	setIf(&cfg.Batch, *batch)
	setIf(&cfg.Output.CSV, *csvPath)
	setIf(&cfg.Output.JSON, *jsonPath)
	setIf(&cfg.Output.MetricsTextfile, *promPath)
	setIf(&cfg.Dataset.Dir, *datasetDir)
	setIf(&cfg.Log.Level, *logLevel)
	setIf(&cfg.Pruning.SpeedupThreshold, *speedup)
	setIf(&cfg.Pruning.DiminishingReturnsThreshold, *diminishing)
	setIf(&cfg.Traversal.MaxThreads, *maxThreads)
	setIf(&cfg.Measure.Repeats, *repeats)
	if *operations != "" {
		cfg.Operations = splitList(*operations)
	}
	if *scales != "" {
		cfg.Scales = splitList(*scales)
	}
	if *steps != "" {
		parsed, err := parseInts(*steps)
		if err != nil {
			fatalf("thread_steps: %v", err)
		}
		cfg.Traversal.ThreadSteps = parsed
	}
	if *noPrune {
		cfg.Pruning.PruneAlternatives = false
	}
	if *warmup {
		cfg.Measure.Warmup = true
	}
	if *healthAddr != "" {
		cfg.Health.Enabled = true
		cfg.Health.Address = *healthAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		fatalf("init error: %v", err)
	}

	res, runErr := application.Run(ctx)
	if err := application.Close(); err != nil {
		styles.FprintS(os.Stderr, "error", "close: %v", err)
	}
	printSummary(res)
	if runErr != nil {
		fatalf("%v", runErr)
	}
}

func printSummary(res app.Result) {
	for _, out := range res.Outcomes {
		if out == nil {
			continue
		}
		styles.PrintFS("info", "batch %s", out.Plan)
		rows := lo.Map(out.Best, func(c explore.Choice, _ int) []string {
			return []string{
				c.Operation,
				c.Scale.Name,
				c.Node.Name(),
				strconv.FormatFloat(c.Throughput, 'f', 0, 64),
				strconv.FormatFloat(c.Speedup, 'f', 2, 64) + "x",
			}
		})
		fmt.Println(styles.Table([]string{"operation", "scale", "best", "seq/s", "speedup"}, rows))
		for _, s := range out.Skipped {
			styles.PrintFS("muted", "skipped %s @ %s: %s", s.Operation, s.Scale.Name, s.Reason)
		}
	}
	t := res.Report.Totals
	styles.PrintFS("success", "%d records: %d measured, %d pruned, %d failed, %d cached; %d pairs skipped in %.1fs",
		t.Records, t.Measured, t.Pruned, t.Failed, t.Cached, t.Skipped, t.ElapsedSeconds)
}

func setIf[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string { return strings.TrimSpace(p) }))
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintln(os.Stderr, styles.SprintfS("error", format, a...))
	os.Exit(1)
}
