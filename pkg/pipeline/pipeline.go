// Package pipeline prepares the assembled training table for the models: it
// selects and renames the feature columns, cleans non-finite values, adds the
// quantile regressor predictions and derives the binary label.
package pipeline

import (
	"fmt"

	"github.com/wiegertj/EBG-train/pkg/data"
)

// Step transforms a frame. Steps may modify and return their input.
type Step interface {
	Name() string
	Apply(f *data.Frame) (*data.Frame, error)
}

// Pipeline chains steps.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Then returns a new pipeline with steps appended.
func (p *Pipeline) Then(steps ...Step) *Pipeline {
	all := make([]Step, 0, len(p.steps)+len(steps))
	all = append(all, p.steps...)
	return &Pipeline{steps: append(all, steps...)}
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	out := make([]string, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Name()
	}
	return out
}

func (p *Pipeline) Apply(f *data.Frame) (*data.Frame, error) {
	for _, step := range p.steps {
		var err error
		f, err = step.Apply(f)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %s: %w", step.Name(), err)
		}
	}
	return f, nil
}

// Base selects, renames and cleans the raw feature columns. It is what the
// quantile regressors are trained on.
func Base() *Pipeline {
	return NewPipeline(
		SelectColumns(append([]string{Dataset, BranchID, Support}, RawFeatures()...)...),
		RenameColumns(FeatureNames),
		FillNonFinite{Value: -1},
	)
}
