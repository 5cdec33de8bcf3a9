// Package tuning runs hyperparameter searches that maximize an objective
// over independently sampled trials.
package tuning

import (
	"fmt"
	"math"
	"math/rand"
)

// Param is one dimension of a search space.
type Param interface {
	ParamName() string
	Sample(rng *rand.Rand) float64
}

// IntParam samples integers uniformly from [Low, High].
type IntParam struct {
	Name      string
	Low, High int
}

func (p IntParam) ParamName() string { return p.Name }

func (p IntParam) Sample(rng *rand.Rand) float64 {
	return float64(p.Low + rng.Intn(p.High-p.Low+1))
}

// FloatParam samples uniformly from [Low, High), or log-uniformly when Log is set.
type FloatParam struct {
	Name      string
	Low, High float64
	Log       bool
}

func (p FloatParam) ParamName() string { return p.Name }

func (p FloatParam) Sample(rng *rand.Rand) float64 {
	if p.Log {
		lo, hi := math.Log(p.Low), math.Log(p.High)
		return math.Exp(lo + rng.Float64()*(hi-lo))
	}
	return p.Low + rng.Float64()*(p.High-p.Low)
}

// Space is an ordered list of parameters. Sampling order is fixed so that a
// seeded study is reproducible.
type Space []Param

// Validate rejects empty ranges and duplicate names.
func (s Space) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		name := p.ParamName()
		if seen[name] {
			return fmt.Errorf("tuning: duplicate parameter %q", name)
		}
		seen[name] = true
		switch v := p.(type) {
		case IntParam:
			if v.High < v.Low {
				return fmt.Errorf("tuning: %s: high %d < low %d", name, v.High, v.Low)
			}
		case FloatParam:
			if v.High < v.Low {
				return fmt.Errorf("tuning: %s: high %v < low %v", name, v.High, v.Low)
			}
			if v.Log && v.Low <= 0 {
				return fmt.Errorf("tuning: %s: log scale needs low > 0", name)
			}
		}
	}
	return nil
}

// Sample draws one value for every parameter.
func (s Space) Sample(rng *rand.Rand) map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, p := range s {
		out[p.ParamName()] = p.Sample(rng)
	}
	return out
}

// ClassifierSpace is the search space of the support classifiers.
func ClassifierSpace() Space {
	return Space{
		IntParam{Name: "num_iterations", Low: 10, High: 300},
		IntParam{Name: "num_leaves", Low: 2, High: 300},
		FloatParam{Name: "learning_rate", Low: 0.001, High: 0.3},
		IntParam{Name: "min_child_samples", Low: 1, High: 200},
		FloatParam{Name: "lambda_l1", Low: 1e-5, High: 1.0},
		FloatParam{Name: "lambda_l2", Low: 1e-5, High: 1.0},
		FloatParam{Name: "min_split_gain", Low: 1e-5, High: 0.3},
	}
}
