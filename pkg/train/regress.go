package train

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sync/errgroup"

	"github.com/wiegertj/EBG-train/pkg/config"
	"github.com/wiegertj/EBG-train/pkg/gbdt"
	"github.com/wiegertj/EBG-train/pkg/pipeline"
)

// Regressor describes one quantile regressor whose prediction is a classifier input.
type Regressor struct {
	Name   string // model file stem
	Column string
	Alpha  float64
}

// Regressors are the quantile models, in the order their columns are added.
var Regressors = []Regressor{
	{Name: "median_model", Column: pipeline.MedianPred, Alpha: 0.5},
	{Name: "low_model_10", Column: pipeline.LowerBound10, Alpha: 0.10},
	{Name: "low_model_5", Column: pipeline.LowerBound5, Alpha: 0.05},
}

// TrainRegressors fits every quantile regressor on all rows of the training
// set with support as the target and saves them under models/.
func (t *Trainer) TrainRegressors(ctx context.Context) error {
	raw, err := t.loadDataset()
	if err != nil {
		return err
	}
	f, err := pipeline.Base().Apply(raw)
	if err != nil {
		return err
	}
	features := pipeline.RegressorInputs(t.cfg.Classifier.BranchIDAsFeature)
	X, err := f.Rows(features...)
	if err != nil {
		return err
	}
	y, err := f.Float(pipeline.Support)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range Regressors {
		r := r
		g.Go(func() error {
			p := t.cfg.Regression
			p.Objective = gbdt.Quantile
			p.Alpha = r.Alpha
			p.Workers = t.cfg.Workers
			b, err := gbdt.TrainContext(ctx, X, y, features, p)
			if err != nil {
				return fmt.Errorf("train %s: %w", r.Name, err)
			}
			path := t.cfg.ModelPath(r.Name)
			if err := b.Save(path); err != nil {
				return err
			}
			t.logger.Info("saved regressor", "model", r.Name, "alpha", r.Alpha, "path", path,
				"trees", len(b.Trees), "pinball_loss", gbdt.PinballLoss(y, b.Predict(X), r.Alpha))
			return nil
		})
	}
	return g.Wait()
}

// LoadRegressors loads the saved quantile regressors as a pipeline step.
func LoadRegressors(cfg *config.Config) (pipeline.RegressorFeatures, error) {
	out := make(pipeline.RegressorFeatures, 0, len(Regressors))
	for _, r := range Regressors {
		path := cfg.ModelPath(r.Name)
		b, err := gbdt.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingModel, path)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		out = append(out, pipeline.Regressor{Column: r.Column, Model: b})
	}
	return out, nil
}
