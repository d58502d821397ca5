package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Batch string `yaml:"batch"`
	// Operations narrows the batch to a subset of the catalog.
	Operations []string `yaml:"operations"`
	// Scales replaces the scales of every batch when set.
	Scales []string `yaml:"scales"`

	Output struct {
		CSV             string `yaml:"csv"`
		JSON            string `yaml:"json"`
		MetricsTextfile string `yaml:"metrics_textfile"`
	} `yaml:"output"`

	Pruning struct {
		SpeedupThreshold            float64 `yaml:"speedup_threshold"`
		DiminishingReturnsThreshold float64 `yaml:"diminishing_returns_threshold"`
		PruneAlternatives           bool    `yaml:"prune_alternatives"`
	} `yaml:"pruning"`

	Traversal struct {
		MaxThreads         int   `yaml:"max_threads"`
		ThreadSteps        []int `yaml:"thread_steps"`
		RefineMetadataOnly bool  `yaml:"refine_metadata_only"`
	} `yaml:"traversal"`

	Measure struct {
		Repeats int           `yaml:"repeats"`
		Warmup  bool          `yaml:"warmup"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"measure"`

	Dataset struct {
		Dir      string `yaml:"dir"`
		Generate bool   `yaml:"generate"`
		// Persist writes generated datasets to Dir for later runs.
		Persist bool   `yaml:"persist"`
		Seed    uint64 `yaml:"seed"`
	} `yaml:"dataset"`

	Health struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
	} `yaml:"health"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given. Keys
// missing from a file keep these values.
func Default() Config {
	var c Config
	c.Batch = "dag"
	c.Output.CSV = "results.csv"
	c.Pruning.SpeedupThreshold = 1.5
	c.Pruning.DiminishingReturnsThreshold = 1.3
	c.Pruning.PruneAlternatives = true
	c.Traversal.MaxThreads = runtime.NumCPU()
	c.Measure.Repeats = 1
	c.Dataset.Dir = "datasets"
	c.Dataset.Generate = true
	c.Dataset.Seed = 42
	c.Health.Address = ":8090"
	c.Log.Level = "info"
	return c
}

func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Pruning.SpeedupThreshold <= 0 {
		errs = append(errs, fmt.Errorf("pruning.speedup_threshold must be positive, got %v", c.Pruning.SpeedupThreshold))
	}
	if c.Pruning.DiminishingReturnsThreshold <= 0 {
		errs = append(errs, fmt.Errorf("pruning.diminishing_returns_threshold must be positive, got %v", c.Pruning.DiminishingReturnsThreshold))
	}
	if c.Traversal.MaxThreads < 1 {
		errs = append(errs, fmt.Errorf("traversal.max_threads must be at least 1, got %d", c.Traversal.MaxThreads))
	}
	if c.Measure.Repeats < 1 {
		errs = append(errs, fmt.Errorf("measure.repeats must be at least 1, got %d", c.Measure.Repeats))
	}
	if c.Measure.Timeout < 0 {
		errs = append(errs, fmt.Errorf("measure.timeout must not be negative, got %s", c.Measure.Timeout))
	}
	return errors.Join(errs...)
}
