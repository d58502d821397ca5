package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ciricc/hwexplore/internal/affinity"
	"github.com/ciricc/hwexplore/internal/config"
	"github.com/ciricc/hwexplore/internal/dataset"
	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/ciricc/hwexplore/internal/health"
	"github.com/ciricc/hwexplore/internal/hostinfo"
	"github.com/ciricc/hwexplore/internal/monitor"
	"github.com/ciricc/hwexplore/internal/ops"
	"github.com/ciricc/hwexplore/internal/service/measure_svc"
	"github.com/ciricc/hwexplore/internal/telemetry"
	"github.com/ciricc/hwexplore/pkg/benchreport"
	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type Application struct {
	Config        config.Config
	Log           *slog.Logger
	Env           hostinfo.Env
	Engine        *explore.Engine
	Metrics       *telemetry.Metrics
	HealthChecker *health.HealthChecker
	plans         []explore.Plan
	store         *dataset.Store
	csv           *benchreport.CSVSink
	grpcServer    *grpc.Server
	lis           net.Listener
}

// Result is what a finished Run leaves behind.
type Result struct {
	Outcomes []*explore.Outcome
	Report   benchreport.Report
}

func New(ctx context.Context, cfg config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	plans, err := buildPlans(cfg)
	if err != nil {
		return nil, err
	}

	env := hostinfo.Collect(ctx, log)
	topo := affinity.Detect()
	log.InfoContext(ctx, "host",
		"cpu", env.CPUModel,
		"logical", env.CPUNumLogical,
		"pCores", len(topo.Performance),
		"eCores", len(topo.Efficiency),
		"gpus", len(env.GPUs),
	)

	store := dataset.NewStore(
		dataset.WithDir(cfg.Dataset.Dir),
		dataset.WithGenerate(cfg.Dataset.Generate),
		dataset.WithPersist(cfg.Dataset.Persist),
		dataset.WithSeed(cfg.Dataset.Seed),
		dataset.WithLogger(log),
	)

	// One measurement at a time on this host.
	guard := monitor.NewSemaphoreGuard(1)

	svc := measure_svc.NewMeasureService(
		store,
		log,
		guard,
		measure_svc.WithRepeats(cfg.Measure.Repeats),
		measure_svc.WithWarmup(cfg.Measure.Warmup),
		measure_svc.WithTimeout(cfg.Measure.Timeout),
		measure_svc.WithTopology(topo),
		measure_svc.WithGPUAvailable(env.HasGPU()),
	)

	metrics := telemetry.New(guard)
	engineOpts := []explore.EngineOpt{
		explore.WithLogger(log),
		explore.WithObserver(metrics),
		explore.WithMaxThreads(cfg.Traversal.MaxThreads),
		explore.WithRefineMetadataOnly(cfg.Traversal.RefineMetadataOnly),
	}

	a := &Application{
		Config:  cfg,
		Log:     log,
		Env:     env,
		Metrics: metrics,
		plans:   plans,
		store:   store,
	}

	if cfg.Output.CSV != "" {
		a.csv, err = benchreport.CreateCSVSink(cfg.Output.CSV)
		if err != nil {
			return nil, fmt.Errorf("open csv output: %w", err)
		}
		engineOpts = append(engineOpts, explore.WithSink(a.csv))
	}

	strategy := explore.NewPruningStrategy(cfg.Pruning.SpeedupThreshold, cfg.Pruning.DiminishingReturnsThreshold)
	strategy.AlternativePruning = cfg.Pruning.PruneAlternatives
	a.Engine = explore.NewEngine(svc, strategy, engineOpts...)

	if cfg.Health.Enabled {
		if err := a.startHealth(cfg.Health.Address); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Application) startHealth(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health listen: %w", err)
	}
	a.lis = lis
	a.HealthChecker = health.NewHealthChecker()
	a.grpcServer = grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, a.HealthChecker)
	go func() {
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.Log.Error("health server stopped", "error", err)
		}
	}()
	a.Log.Info("health server listening", "address", lis.Addr().String())
	return nil
}

// HealthAddr is the address the health server listens on, empty when disabled.
func (a *Application) HealthAddr() string {
	if a.lis == nil {
		return ""
	}
	return a.lis.Addr().String()
}

// Plans returns the batches this application runs, in order.
func (a *Application) Plans() []explore.Plan { return a.plans }

// Run executes every configured batch and writes the configured outputs.
// Outputs are written even when the batch aborted, so partial results
// survive.
func (a *Application) Run(ctx context.Context) (Result, error) {
	a.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	start := time.Now()

	outcomes, runErr := a.Engine.RunAll(ctx, a.plans...)
	a.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	a.store.Release()

	report := benchreport.NewReport(a.Env, a.thresholds(), a.Engine.Session(), time.Since(start), outcomes...)
	res := Result{Outcomes: outcomes, Report: report}

	var errs []error
	if runErr != nil {
		errs = append(errs, fmt.Errorf("run: %w", runErr))
	}
	if path := a.Config.Output.JSON; path != "" {
		if err := report.WriteJSON(path); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		}
	}
	if path := a.Config.Output.MetricsTextfile; path != "" {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	return res, errors.Join(errs...)
}

func (a *Application) setStatus(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if a.HealthChecker != nil {
		a.HealthChecker.SetServingStatus(health.TraversalService, st)
	}
}

func (a *Application) thresholds() benchreport.Thresholds {
	return benchreport.Thresholds{
		SpeedupThreshold:            a.Config.Pruning.SpeedupThreshold,
		DiminishingReturnsThreshold: a.Config.Pruning.DiminishingReturnsThreshold,
		PruneAlternatives:           a.Config.Pruning.PruneAlternatives,
		MaxThreads:                  a.Config.Traversal.MaxThreads,
		ThreadSteps:                 a.Config.Traversal.ThreadSteps,
	}
}

func (a *Application) Close() error {
	var errs []error
	if a.HealthChecker != nil {
		a.HealthChecker.Shutdown()
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.csv != nil {
		errs = append(errs, a.csv.Close())
	}
	return errors.Join(errs...)
}

// buildPlans resolves the comma separated batch list against the catalog
// and applies the operation, scale and thread-step overrides.
func buildPlans(cfg config.Config) ([]explore.Plan, error) {
	scales := make([]explore.Scale, 0, len(cfg.Scales))
	for _, name := range cfg.Scales {
		s, ok := explore.ScaleByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown scale %q", name)
		}
		scales = append(scales, s)
	}

	names := lo.Compact(lo.Map(strings.Split(cfg.Batch, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	if len(names) == 0 {
		return nil, errors.New("no batch selected")
	}

	plans := make([]explore.Plan, 0, len(names))
	for _, name := range names {
		p, err := explore.BuildPlan(name, ops.Catalog())
		if err != nil {
			return nil, err
		}
		if p, err = p.WithOperations(cfg.Operations); err != nil {
			return nil, err
		}
		p = p.WithScales(scales)
		if len(cfg.Traversal.ThreadSteps) > 0 {
			p.Family.ThreadSteps = cfg.Traversal.ThreadSteps
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
