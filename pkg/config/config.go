// Package config provides configuration loading for the ebg training tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wiegertj/EBG-train/pkg/gbdt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the complete training configuration.
type Config struct {
	// DataDir is the root of the data directory layout.
	DataDir string `yaml:"data_dir"`
	// Workers bounds parallelism; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
	// Seed drives every random choice; 0 picks a time based seed.
	Seed     int64  `yaml:"seed"`
	LogLevel string `yaml:"log_level"`

	Extract    ExtractConfig    `yaml:"extract"`
	Assemble   AssembleConfig   `yaml:"assemble"`
	Regression gbdt.Params      `yaml:"regression"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Bench      BenchConfig      `yaml:"bench"`
}

// ExtractConfig locates the raw archives.
type ExtractConfig struct {
	Pattern string `yaml:"pattern"`
}

// AssembleConfig locates the feature and target tables.
type AssembleConfig struct {
	FeaturesPattern string `yaml:"features_pattern"`
	Targets         string `yaml:"targets"`
}

// ClassifierConfig configures the threshold classifiers.
type ClassifierConfig struct {
	Thresholds        []float64 `yaml:"thresholds"`
	HoldoutFraction   float64   `yaml:"holdout_fraction"`
	NSplits           int       `yaml:"n_splits"`
	NTrials           int       `yaml:"n_trials"`
	DecisionThreshold float64   `yaml:"decision_threshold"`
	TopFeatures       int       `yaml:"top_features"`
	BranchIDAsFeature bool      `yaml:"branch_id_as_feature"`
	MaxBin            int       `yaml:"max_bin"`
	RFE               RFEConfig `yaml:"rfe"`
}

// RFEConfig configures recursive feature elimination with a random forest.
type RFEConfig struct {
	Enabled             bool    `yaml:"enabled"`
	NFeatures           int     `yaml:"n_features"`
	Step                float64 `yaml:"step"`
	NEstimators         int     `yaml:"n_estimators"`
	MaxDepth            int     `yaml:"max_depth"`
	MinSamplesSplit     int     `yaml:"min_samples_split"`
	MinSamplesLeaf      int     `yaml:"min_samples_leaf"`
	MaxFeatures         int     `yaml:"max_features"` // 0 => all features
	Criterion           string  `yaml:"criterion"`
	Bootstrap           bool    `yaml:"bootstrap"`
	MinImpurityDecrease float64 `yaml:"min_impurity_decrease"`
}

// BenchConfig names the timing tables and the reference tool.
type BenchConfig struct {
	CPU       string `yaml:"cpu"`
	Elapsed   string `yaml:"elapsed"`
	Reference string `yaml:"reference"`
}

// DefaultConfig returns a Config with the published training setup.
func DefaultConfig() *Config {
	reg := gbdt.DefaultParams()
	reg.Objective = gbdt.Quantile
	reg.Alpha = 0.5
	reg.LearningRate = 0.05

	return &Config{
		DataDir:  "data",
		LogLevel: "info",
		Extract: ExtractConfig{
			Pattern: "raw/*.tar.gz",
		},
		Assemble: AssembleConfig{
			FeaturesPattern: "processed/features/**/*.csv",
			Targets:         "processed/target/targets.csv",
		},
		Regression: reg,
		Classifier: ClassifierConfig{
			Thresholds:        []float64{0.7, 0.75, 0.8, 0.85},
			HoldoutFraction:   0.2,
			NSplits:           10,
			NTrials:           5,
			DecisionThreshold: 0.5,
			TopFeatures:       30,
			BranchIDAsFeature: true,
			MaxBin:            255,
			RFE: RFEConfig{
				NFeatures:       10,
				Step:            0.1,
				NEstimators:     250,
				MaxDepth:        20,
				MinSamplesSplit: 20,
				MinSamplesLeaf:  10,
				Criterion:       "gini",
				Bootstrap:       true,
			},
		},
		Bench: BenchConfig{
			CPU:       "benchmark/cpu_times.csv",
			Elapsed:   "benchmark/elapsed_times.csv",
			Reference: "ebg",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalid)
	}
	if err := c.Regression.Validate(); err != nil {
		return fmt.Errorf("%w: regression: %w", ErrInvalid, err)
	}

	cl := c.Classifier
	if len(cl.Thresholds) == 0 {
		return fmt.Errorf("%w: classifier.thresholds is empty", ErrInvalid)
	}
	for _, t := range cl.Thresholds {
		if t <= 0 || t >= 1 {
			return fmt.Errorf("%w: classifier threshold %v outside (0, 1)", ErrInvalid, t)
		}
	}
	switch {
	case cl.HoldoutFraction <= 0 || cl.HoldoutFraction >= 1:
		return fmt.Errorf("%w: classifier.holdout_fraction must be in (0, 1)", ErrInvalid)
	case cl.NSplits < 2:
		return fmt.Errorf("%w: classifier.n_splits must be >= 2", ErrInvalid)
	case cl.NTrials < 1:
		return fmt.Errorf("%w: classifier.n_trials must be >= 1", ErrInvalid)
	case cl.DecisionThreshold <= 0 || cl.DecisionThreshold >= 1:
		return fmt.Errorf("%w: classifier.decision_threshold must be in (0, 1)", ErrInvalid)
	case cl.TopFeatures < 1:
		return fmt.Errorf("%w: classifier.top_features must be >= 1", ErrInvalid)
	case cl.MaxBin < 2 || cl.MaxBin > 256:
		return fmt.Errorf("%w: classifier.max_bin must be in [2, 256]", ErrInvalid)
	}
	if cl.RFE.Enabled {
		switch {
		case cl.RFE.Step <= 0:
			return fmt.Errorf("%w: classifier.rfe.step must be > 0", ErrInvalid)
		case cl.RFE.NFeatures < 1:
			return fmt.Errorf("%w: classifier.rfe.n_features must be >= 1", ErrInvalid)
		case cl.RFE.NEstimators < 1:
			return fmt.Errorf("%w: classifier.rfe.n_estimators must be >= 1", ErrInvalid)
		case cl.RFE.Criterion != "gini" && cl.RFE.Criterion != "entropy":
			return fmt.Errorf("%w: classifier.rfe.criterion must be gini or entropy", ErrInvalid)
		case cl.RFE.MaxFeatures < 0 || cl.RFE.MinImpurityDecrease < 0:
			return fmt.Errorf("%w: classifier.rfe.max_features and min_impurity_decrease must be >= 0", ErrInvalid)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load returns the defaults when path is empty and the file contents otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

// Path joins elements onto the data directory.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// FinalDataset is the assembled training table.
func (c *Config) FinalDataset() string {
	return c.Path("processed", "final", "final_dataset.csv")
}

// ModelPath is the location of a named quantile regressor.
func (c *Config) ModelPath(name string) string {
	return c.Path("models", name+".gob")
}

// ClassifierModel is the trained classifier for threshold t.
func (c *Config) ClassifierModel(t float64) string {
	return c.Path("processed", "final", "test_classifier_"+FormatThreshold(t)+".gob")
}

// Predictions is the holdout prediction table for threshold t.
func (c *Config) Predictions(t float64) string {
	return c.Path("processed", "final", "test_classifier_"+FormatThreshold(t)+"_.csv")
}

// ImportancePlot is the feature importance chart for threshold t.
func (c *Config) ImportancePlot(t float64) string {
	return c.Path("processed", "final", "feature_importance_"+FormatThreshold(t)+".png")
}

// MetricsFile is the Prometheus textfile written by a classify run.
func (c *Config) MetricsFile() string {
	return c.Path("processed", "final", "classifier_metrics.prom")
}

// FormatThreshold formats t the way it appears in file names.
func FormatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'g', -1, 64)
}
