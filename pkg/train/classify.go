package train

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wiegertj/EBG-train/pkg/data"
	"github.com/wiegertj/EBG-train/pkg/gbdt"
	"github.com/wiegertj/EBG-train/pkg/model"
	"github.com/wiegertj/EBG-train/pkg/pipeline"
	"github.com/wiegertj/EBG-train/pkg/rfe"
	"github.com/wiegertj/EBG-train/pkg/split"
	"github.com/wiegertj/EBG-train/pkg/stats"
	"github.com/wiegertj/EBG-train/pkg/tuning"
)

// Importance is the min-max normalized gain of one feature.
type Importance struct {
	Feature string
	Value   float64
}

// Result summarizes one classifier run.
type Result struct {
	RunID       string
	Threshold   float64
	Features    []string
	TrainRows   int
	TestRows    int
	TrainGroups int
	TestGroups  int
	BestParams  map[string]float64
	BestCV      float64
	Trials      []tuning.Trial
	Metrics     model.Metrics
	Importance  []Importance // descending, at most TopFeatures
	ModelPath   string
	Predictions string
	Plot        string
}

// TrainClassifiers trains one classifier per configured threshold and writes
// the metrics textfile.
func (t *Trainer) TrainClassifiers(ctx context.Context) ([]*Result, error) {
	raw, err := t.loadDataset()
	if err != nil {
		return nil, err
	}
	regs, err := LoadRegressors(t.cfg)
	if err != nil {
		return nil, err
	}
	var out []*Result
	for _, th := range t.cfg.Classifier.Thresholds {
		r, err := t.trainClassifier(ctx, raw, regs, th)
		if err != nil {
			return out, fmt.Errorf("threshold %v: %w", th, err)
		}
		out = append(out, r)
	}
	path := t.cfg.MetricsFile()
	if err := t.metrics.WriteFile(path); err != nil {
		return out, err
	}
	t.logger.Info("wrote metrics", "path", path)
	return out, nil
}

// TrainClassifier trains and evaluates the classifier for one threshold.
func (t *Trainer) TrainClassifier(ctx context.Context, threshold float64) (*Result, error) {
	raw, err := t.loadDataset()
	if err != nil {
		return nil, err
	}
	regs, err := LoadRegressors(t.cfg)
	if err != nil {
		return nil, err
	}
	return t.trainClassifier(ctx, raw, regs, threshold)
}

func (t *Trainer) trainClassifier(ctx context.Context, raw *data.Frame, regs pipeline.RegressorFeatures, threshold float64) (*Result, error) {
	cc := t.cfg.Classifier
	res := &Result{RunID: uuid.NewString(), Threshold: threshold}
	logger := t.logger.With("run", res.RunID, "threshold", threshold)

	f, err := pipeline.Base().Then(regs, pipeline.SanitizeNames{}, pipeline.Label{Threshold: threshold}).Apply(raw)
	if err != nil {
		return nil, err
	}
	groups, err := f.Codes(pipeline.Dataset)
	if err != nil {
		return nil, err
	}
	label, err := f.Float(pipeline.IsValid)
	if err != nil {
		return nil, err
	}
	y := make([]int, len(label))
	for i, v := range label {
		y[i] = int(v)
	}

	rng := rand.New(rand.NewSource(t.seed))
	trainIdx, testIdx := split.GroupHoldout(groups, cc.HoldoutFraction, rng)
	if len(testIdx) == 0 || len(trainIdx) == 0 {
		return nil, fmt.Errorf("%w: %d datasets leave an empty holdout or training set",
			split.ErrTooFewGroups, len(split.UniqueGroups(groups)))
	}
	gTrain := split.Values(groups, trainIdx)
	yTrain := split.Values(y, trainIdx)
	res.TrainRows, res.TestRows = len(trainIdx), len(testIdx)
	res.TrainGroups = len(split.UniqueGroups(gTrain))
	res.TestGroups = len(split.UniqueGroups(split.Values(groups, testIdx)))
	logger.Info("holdout split", "train_rows", res.TrainRows, "test_rows", res.TestRows,
		"train_datasets", res.TrainGroups, "test_datasets", res.TestGroups)

	features := pipeline.ClassifierInputs(cc.BranchIDAsFeature)
	X, err := f.Rows(features...)
	if err != nil {
		return nil, err
	}
	xTrain := split.Rows(X, trainIdx)

	if cc.RFE.Enabled {
		sel, err := t.selectFeatures(ctx, xTrain, yTrain, features, logger)
		if err != nil {
			return nil, err
		}
		features = sel
		if X, err = f.Rows(features...); err != nil {
			return nil, err
		}
		xTrain = split.Rows(X, trainIdx)
	}
	res.Features = features

	folds, err := split.GroupKFold(gTrain, cc.NSplits)
	if err != nil {
		return nil, err
	}
	base := gbdt.DefaultParams()
	base.MaxBin = cc.MaxBin

	study := tuning.NewStudy(tuning.ClassifierSpace(), t.seed, logger)
	objective := func(ctx context.Context, values map[string]float64) (float64, error) {
		p, err := gbdt.FromMap(base, values)
		if err != nil {
			return 0, err
		}
		return t.crossValidate(ctx, xTrain, yTrain, features, folds, p)
	}
	err = study.Optimize(ctx, objective, cc.NTrials)
	res.Trials = study.Trials
	if err != nil {
		return nil, err
	}
	best, _ := study.Best()
	res.BestParams, res.BestCV = best.Params, best.Value
	logger.Info("best trial", "trial", best.Number, "cv_f1", best.Value, "params", best.Params)

	final, err := gbdt.FromMap(base, best.Params)
	if err != nil {
		return nil, err
	}
	final.Workers = t.cfg.Workers
	booster, err := gbdt.TrainContext(ctx, xTrain, toFloat(yTrain), features, final)
	if err != nil {
		return nil, err
	}
	res.ModelPath = t.cfg.ClassifierModel(threshold)
	if err := booster.Save(res.ModelPath); err != nil {
		return nil, err
	}
	logger.Info("saved classifier", "path", res.ModelPath, "trees", len(booster.Trees))

	yTest := split.Values(y, testIdx)
	proba := booster.Predict(split.Rows(X, testIdx))
	res.Metrics = model.Evaluate(yTest, proba, cc.DecisionThreshold)
	logger.Info("holdout metrics",
		"accuracy", res.Metrics.Accuracy,
		"precision", res.Metrics.Precision,
		"recall", res.Metrics.Recall,
		"f1", res.Metrics.F1,
		"roc_auc", res.Metrics.ROCAUC)

	res.Importance = NormalizedImportance(features, booster.FeatureImportance(), cc.TopFeatures)
	for _, imp := range res.Importance {
		logger.Debug("feature importance", "feature", imp.Feature, "value", imp.Value)
	}
	res.Plot = t.cfg.ImportancePlot(threshold)
	if err := PlotImportance(res.Importance, threshold, res.Plot); err != nil {
		return nil, err
	}

	res.Predictions = t.cfg.Predictions(threshold)
	pred, err := Predictions(f.Take(testIdx), features, split.Values(groups, testIdx), yTest, proba, cc.DecisionThreshold)
	if err != nil {
		return nil, err
	}
	if err := pred.WriteCSVFile(res.Predictions); err != nil {
		return nil, err
	}
	logger.Info("wrote holdout predictions", "path", res.Predictions, "rows", pred.Len())

	t.metrics.observe(res)
	return res, nil
}

// crossValidate returns the mean F1 of fold models trained with p. Folds are
// trained concurrently with single-threaded boosters.
func (t *Trainer) crossValidate(ctx context.Context, X [][]float64, y []int, names []string, folds []split.Fold, p gbdt.Params) (float64, error) {
	p.Workers = 1
	cut := t.cfg.Classifier.DecisionThreshold
	scores := make([]float64, len(folds))

	g, ctx := errgroup.WithContext(ctx)
	if t.cfg.Workers > 0 {
		g.SetLimit(t.cfg.Workers)
	}
	for i, fold := range folds {
		i, fold := i, fold
		g.Go(func() error {
			start := time.Now()
			b, err := gbdt.TrainContext(ctx, split.Rows(X, fold.Train), toFloat(split.Values(y, fold.Train)), names, p)
			if err != nil {
				return fmt.Errorf("fold %d: %w", i, err)
			}
			t.metrics.foldSeconds.Observe(time.Since(start).Seconds())
			proba := b.Predict(split.Rows(X, fold.Valid))
			scores[i] = model.F1(split.Values(y, fold.Valid), model.BinaryPredFromProba(proba, cut))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return stats.Mean(scores), nil
}

func (t *Trainer) selectFeatures(ctx context.Context, X [][]float64, y []int, names []string, logger *slog.Logger) ([]string, error) {
	rc := t.cfg.Classifier.RFE
	res, err := rfe.Select(ctx, X, y, names, rfe.Options{
		NFeatures: rc.NFeatures,
		Step:      rc.Step,
		Logger:    logger,
		NewEstimator: func() model.Estimator {
			return model.NewRandomForest(
				model.WithNEstimators(rc.NEstimators),
				model.WithForestMaxDepth(rc.MaxDepth),
				model.WithForestMinSamplesSplit(rc.MinSamplesSplit),
				model.WithForestMinSamplesLeaf(rc.MinSamplesLeaf),
				model.WithForestMaxFeatures(rc.MaxFeatures),
				model.WithForestCriterion(rc.Criterion),
				model.WithForestMinImpurityDecrease(rc.MinImpurityDecrease),
				model.WithBootstrap(rc.Bootstrap),
				model.WithForestRandomState(t.seed),
				model.WithWorkers(t.cfg.Workers),
			)
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Info("selected features", "features", res.Selected)
	return res.Selected, nil
}

// NormalizedImportance min-max scales gains and returns the top n features in
// descending order. Ties keep feature order.
func NormalizedImportance(names []string, gain []float64, n int) []Importance {
	scaled := stats.MinMaxScale(gain)
	out := make([]Importance, len(names))
	for i, name := range names {
		out[i] = Importance{Feature: name, Value: scaled[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func toFloat(y []int) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = float64(v)
	}
	return out
}
