// Package gbdt implements gradient boosted decision trees grown leaf-wise on
// histogram bins, with a binary log-loss objective for classification and a
// quantile (pinball) objective for lower-bound support regression.
package gbdt

import (
	"errors"
	"fmt"
)

// Objectives understood by Train.
const (
	Binary   = "binary"
	Quantile = "quantile"
)

// ErrParams wraps every parameter validation failure.
var ErrParams = errors.New("gbdt: invalid params")

// Params configures boosting. Names follow LightGBM's.
type Params struct {
	Objective       string  `yaml:"objective"`
	Alpha           float64 `yaml:"alpha"` // quantile level for the quantile objective
	NumIterations   int     `yaml:"num_iterations"`
	NumLeaves       int     `yaml:"num_leaves"`
	LearningRate    float64 `yaml:"learning_rate"`
	MinChildSamples int     `yaml:"min_child_samples"`
	LambdaL1        float64 `yaml:"lambda_l1"`
	LambdaL2        float64 `yaml:"lambda_l2"`
	MinSplitGain    float64 `yaml:"min_split_gain"`
	MinSumHessian   float64 `yaml:"min_sum_hessian"`
	MaxBin          int     `yaml:"max_bin"`
	Workers         int     `yaml:"-"` // goroutines for split search, 0 => GOMAXPROCS
}

// DefaultParams mirrors LightGBM's defaults for a binary objective.
func DefaultParams() Params {
	return Params{
		Objective:       Binary,
		Alpha:           0.9,
		NumIterations:   100,
		NumLeaves:       31,
		LearningRate:    0.1,
		MinChildSamples: 20,
		MinSumHessian:   1e-3,
		MaxBin:          255,
	}
}

// Validate checks that p can be trained with.
func (p Params) Validate() error {
	switch p.Objective {
	case Binary:
	case Quantile:
		if p.Alpha <= 0 || p.Alpha >= 1 {
			return fmt.Errorf("%w: alpha must be in (0, 1), got %v", ErrParams, p.Alpha)
		}
	default:
		return fmt.Errorf("%w: unknown objective %q", ErrParams, p.Objective)
	}
	switch {
	case p.NumIterations < 1:
		return fmt.Errorf("%w: num_iterations must be >= 1", ErrParams)
	case p.NumLeaves < 2:
		return fmt.Errorf("%w: num_leaves must be >= 2", ErrParams)
	case p.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be > 0", ErrParams)
	case p.MinChildSamples < 1:
		return fmt.Errorf("%w: min_child_samples must be >= 1", ErrParams)
	case p.LambdaL1 < 0 || p.LambdaL2 < 0:
		return fmt.Errorf("%w: lambda_l1 and lambda_l2 must be >= 0", ErrParams)
	case p.MinSplitGain < 0 || p.MinSumHessian < 0:
		return fmt.Errorf("%w: min_split_gain and min_sum_hessian must be >= 0", ErrParams)
	case p.MaxBin < 2 || p.MaxBin > 256:
		return fmt.Errorf("%w: max_bin must be in [2, 256]", ErrParams)
	}
	return nil
}

// FromMap builds Params from a tuning trial on top of base. Unknown keys are
// rejected so a typo in a search space cannot silently fall back to a default.
func FromMap(base Params, values map[string]float64) (Params, error) {
	p := base
	for k, v := range values {
		switch k {
		case "num_iterations":
			p.NumIterations = int(v)
		case "num_leaves":
			p.NumLeaves = int(v)
		case "learning_rate":
			p.LearningRate = v
		case "min_child_samples":
			p.MinChildSamples = int(v)
		case "lambda_l1":
			p.LambdaL1 = v
		case "lambda_l2":
			p.LambdaL2 = v
		case "min_split_gain":
			p.MinSplitGain = v
		case "alpha":
			p.Alpha = v
		case "max_bin":
			p.MaxBin = int(v)
		default:
			return p, fmt.Errorf("%w: unknown parameter %q", ErrParams, k)
		}
	}
	return p, p.Validate()
}
