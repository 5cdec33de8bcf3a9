package train

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wiegertj/EBG-train/pkg/config"
	"github.com/wiegertj/EBG-train/pkg/data"
	"github.com/wiegertj/EBG-train/pkg/model"
	"github.com/wiegertj/EBG-train/pkg/pipeline"
)

// Prediction table columns.
const (
	UsedProbability  = "used_probability"
	NotProbability   = "not_probability"
	Entropy          = "entropy"
	Prediction       = "prediction"
	PredictionBinary = "prediction_binary"
)

// Predictions builds the holdout table: the dataset, the model features and
// the group code, followed by the probability of the predicted class, its
// complement, their base-2 entropy, the raw and thresholded prediction and
// the true label (in the support column).
func Predictions(test *data.Frame, features []string, groups, labels []int, proba []float64, cut float64) (*data.Frame, error) {
	out, err := test.Select(append([]string{pipeline.Dataset}, features...)...)
	if err != nil {
		return nil, err
	}
	n := out.Len()
	if len(proba) != n || len(groups) != n || len(labels) != n {
		return nil, fmt.Errorf("%w: %d rows, %d predictions", data.ErrShape, n, len(proba))
	}

	binary := model.BinaryPredFromProba(proba, cut)
	used := make([]float64, n)
	not := make([]float64, n)
	entropy := make([]float64, n)
	for i, p := range proba {
		used[i] = p
		if binary[i] == 0 {
			used[i] = 1 - p
		}
		not[i] = 1 - used[i]
		entropy[i] = model.BinaryEntropy(used[i])
	}

	cols := []struct {
		name string
		v    []float64
	}{
		{pipeline.Group, toFloat(groups)},
		{UsedProbability, used},
		{NotProbability, not},
		{Entropy, entropy},
		{Prediction, proba},
		{PredictionBinary, toFloat(binary)},
		{pipeline.Support, toFloat(labels)},
	}
	for _, c := range cols {
		if err := out.SetFloat(c.name, c.v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PlotImportance draws a horizontal bar chart of normalized importances,
// most important feature on top.
func PlotImportance(imp []Importance, threshold float64, path string) error {
	p := plot.New()
	p.Title.Text = "Feature importance (normalized gain), threshold " + config.FormatThreshold(threshold)
	p.X.Label.Text = "importance"
	p.X.Min, p.X.Max = 0, 1

	n := len(imp)
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i, v := range imp {
		// bars are drawn bottom-up
		values[n-1-i] = v.Value
		names[n-1-i] = v.Feature
	}
	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return fmt.Errorf("importance plot: %w", err)
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars, plotter.NewGrid())
	p.NominalY(names...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	height := vg.Length(n)*vg.Points(14) + 1.5*vg.Inch
	return p.Save(9*vg.Inch, height, path)
}
