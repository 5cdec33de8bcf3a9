package pipeline

import (
	"fmt"

	"github.com/wiegertj/EBG-train/pkg/data"
)

type selectColumns []string

// SelectColumns keeps only names, in that order.
func SelectColumns(names ...string) Step { return selectColumns(names) }

func (s selectColumns) Name() string { return "select" }

func (s selectColumns) Apply(f *data.Frame) (*data.Frame, error) {
	return f.Select(s...)
}

type renameColumns map[string]string

// RenameColumns renames columns by mapping; unknown names are ignored.
func RenameColumns(mapping map[string]string) Step { return renameColumns(mapping) }

func (r renameColumns) Name() string { return "rename" }

func (r renameColumns) Apply(f *data.Frame) (*data.Frame, error) {
	return f, f.Rename(r)
}

// FillNonFinite replaces NaN and ±Inf in numeric columns with Value. Column
// data shared with the frame the columns were selected from is left as is.
type FillNonFinite struct{ Value float64 }

func (FillNonFinite) Name() string { return "fill_non_finite" }

func (s FillNonFinite) Apply(f *data.Frame) (*data.Frame, error) {
	f.FillNonFinite(s.Value)
	return f, nil
}

// Predictor predicts one value per frame row.
type Predictor interface {
	PredictFrame(f *data.Frame) ([]float64, error)
}

// Regressor pairs a prediction column with the model that fills it.
type Regressor struct {
	Column string
	Model  Predictor
}

// RegressorFeatures adds a column per regressor holding its prediction.
// All predictions are made on the input columns, before any is added.
type RegressorFeatures []Regressor

func (RegressorFeatures) Name() string { return "regressor_features" }

func (r RegressorFeatures) Apply(f *data.Frame) (*data.Frame, error) {
	preds := make([][]float64, len(r))
	for i, reg := range r {
		p, err := reg.Model.PredictFrame(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", reg.Column, err)
		}
		preds[i] = p
	}
	for i, reg := range r {
		if err := f.SetFloat(reg.Column, preds[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// SanitizeNames replaces ':' in column names with '_'.
type SanitizeNames struct{}

func (SanitizeNames) Name() string { return "sanitize_names" }

func (SanitizeNames) Apply(f *data.Frame) (*data.Frame, error) {
	return f, f.ReplaceInNames(":", "_")
}

// Label adds Label = 1 where support > Threshold, else 0.
type Label struct{ Threshold float64 }

func (Label) Name() string { return "label" }

func (l Label) Apply(f *data.Frame) (*data.Frame, error) {
	support, err := f.Float(Support)
	if err != nil {
		return nil, err
	}
	label := make([]float64, len(support))
	for i, s := range support {
		if s > l.Threshold {
			label[i] = 1
		}
	}
	return f, f.SetFloat(IsValid, label)
}
