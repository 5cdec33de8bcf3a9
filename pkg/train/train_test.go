package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiegertj/EBG-train/pkg/config"
	"github.com/wiegertj/EBG-train/pkg/data"
	"github.com/wiegertj/EBG-train/pkg/pipeline"
	"github.com/wiegertj/EBG-train/pkg/split"
)

// writeDataset writes a final_dataset.csv where support follows the first
// raw feature plus noise.
func writeDataset(t *testing.T, cfg *config.Config, datasets, branches int) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	n := datasets * branches
	f := data.NewFrame(n)

	names := make([]string, n)
	ids := make([]float64, n)
	support := make([]float64, n)
	feats := make([][]float64, len(pipeline.Schema))
	for j := range feats {
		feats[j] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("ds%02d", i/branches)
		ids[i] = float64(i % branches)
		for j := range feats {
			feats[j][i] = rng.Float64()
		}
		if i%17 == 0 {
			feats[3][i] = math.NaN()
		}
		support[i] = math.Min(1, math.Max(0, feats[0][i]+rng.NormFloat64()*0.05))
	}
	require.NoError(t, f.SetText(pipeline.Dataset, names))
	require.NoError(t, f.SetFloat(pipeline.BranchID, ids))
	require.NoError(t, f.SetFloat(pipeline.Support, support))
	for j, raw := range pipeline.RawFeatures() {
		require.NoError(t, f.SetFloat(raw, feats[j]))
	}
	require.NoError(t, f.WriteCSVFile(cfg.FinalDataset()))
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Seed = 7
	cfg.Workers = 2
	cfg.Regression.NumIterations = 15
	cfg.Regression.MinChildSamples = 5
	cfg.Classifier.Thresholds = []float64{0.7}
	cfg.Classifier.NSplits = 3
	cfg.Classifier.NTrials = 2
	cfg.Classifier.TopFeatures = 10
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestTrainClassifier_MissingModel(t *testing.T) {
	cfg := testConfig(t)
	writeDataset(t, cfg, 10, 10)
	_, err := New(cfg, nil).TrainClassifier(context.Background(), 0.7)
	assert.ErrorIs(t, err, ErrMissingModel)
}

func TestTrainEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writeDataset(t, cfg, 12, 40)
	tr := New(cfg, nil)
	ctx := context.Background()

	require.NoError(t, tr.TrainRegressors(ctx))
	for _, r := range Regressors {
		assert.FileExists(t, cfg.ModelPath(r.Name))
	}

	results, err := tr.TrainClassifiers(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 10, res.TrainGroups)
	assert.Equal(t, 2, res.TestGroups)
	assert.Equal(t, 480, res.TrainRows+res.TestRows)
	assert.Len(t, res.Trials, 2)
	assert.Equal(t, pipeline.ClassifierInputs(true), res.Features)
	assert.True(t, res.Metrics.Accuracy >= 0 && res.Metrics.Accuracy <= 1)

	require.Len(t, res.Importance, 10)
	assert.True(t, res.Importance[0].Value == 1 || res.Importance[0].Value == 0)
	for i := 1; i < len(res.Importance); i++ {
		assert.LessOrEqual(t, res.Importance[i].Value, res.Importance[i-1].Value)
	}

	assert.FileExists(t, res.ModelPath)
	assert.FileExists(t, res.Plot)
	pred, err := data.ReadCSVFile(res.Predictions)
	require.NoError(t, err)
	assert.Equal(t, res.TestRows, pred.Len())
	used, err := pred.Float(UsedProbability)
	require.NoError(t, err)
	entropy, err := pred.Float(Entropy)
	require.NoError(t, err)
	for i := range used {
		assert.GreaterOrEqual(t, used[i], 0.5)
		assert.True(t, entropy[i] >= 0 && entropy[i] <= 1)
	}
	datasets, err := pred.Text(pipeline.Dataset)
	require.NoError(t, err)
	distinct := map[string]bool{}
	for _, d := range datasets {
		distinct[d] = true
	}
	assert.Len(t, distinct, 2)

	prom, err := os.ReadFile(cfg.MetricsFile())
	require.NoError(t, err)
	assert.Contains(t, string(prom), `ebg_classifier_holdout_score{metric="f1",threshold="0.7"}`)
	assert.Contains(t, string(prom), "ebg_classifier_fold_train_seconds_count 6")
	assert.True(t, strings.Contains(string(prom), `ebg_classifier_trials_total{state="complete",threshold="0.7"} 2`))
}

func TestTrainClassifier_RFE(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.RFE.Enabled = true
	cfg.Classifier.RFE.NFeatures = 5
	cfg.Classifier.RFE.NEstimators = 5
	cfg.Classifier.RFE.Step = 0.5
	cfg.Classifier.NTrials = 1
	writeDataset(t, cfg, 12, 30)

	tr := New(cfg, nil)
	require.NoError(t, tr.TrainRegressors(context.Background()))
	res, err := tr.TrainClassifier(context.Background(), 0.75)
	require.NoError(t, err)
	assert.Len(t, res.Features, 5)
	assert.Len(t, res.Importance, 5)
}

func TestTrainClassifier_TooFewDatasets(t *testing.T) {
	tests := []struct {
		name     string
		datasets int
		nSplits  int
	}{
		{"empty holdout", 4, 3},
		{"fewer datasets than folds", 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Classifier.NSplits = tt.nSplits
			writeDataset(t, cfg, tt.datasets, 10)
			tr := New(cfg, nil)
			require.NoError(t, tr.TrainRegressors(context.Background()))
			_, err := tr.TrainClassifier(context.Background(), 0.7)
			assert.ErrorIs(t, err, split.ErrTooFewGroups)
		})
	}
}

func TestTrainRegressors_EmptyFeatureColumn(t *testing.T) {
	cfg := testConfig(t)
	writeDataset(t, cfg, 6, 20)
	f, err := data.ReadCSVFile(cfg.FinalDataset())
	require.NoError(t, err)
	empty := make([]float64, f.Len())
	for i := range empty {
		empty[i] = math.NaN()
	}
	require.NoError(t, f.SetFloat("bl_ratio", empty))
	require.NoError(t, f.WriteCSVFile(cfg.FinalDataset()))

	require.NoError(t, New(cfg, nil).TrainRegressors(context.Background()))
	for _, r := range Regressors {
		assert.FileExists(t, cfg.ModelPath(r.Name))
	}
}

func TestNormalizedImportance(t *testing.T) {
	imp := NormalizedImportance([]string{"a", "b", "c", "d"}, []float64{2, 10, 6, 2}, 3)
	assert.Equal(t, []Importance{{"b", 1}, {"c", 0.5}, {"a", 0}}, imp)

	imp = NormalizedImportance([]string{"a", "b"}, []float64{3, 3}, 0)
	assert.Equal(t, []Importance{{"a", 0}, {"b", 0}}, imp)
}

func TestPredictions(t *testing.T) {
	f := data.NewFrame(2)
	require.NoError(t, f.SetText(pipeline.Dataset, []string{"a", "b"}))
	require.NoError(t, f.SetFloat("x", []float64{1, 2}))
	out, err := Predictions(f, []string{"x"}, []int{0, 1}, []int{1, 0}, []float64{0.8, 0.3}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"dataset", "x", "group", UsedProbability, NotProbability, Entropy,
		Prediction, PredictionBinary, "support"}, out.Names())

	used, _ := out.Float(UsedProbability)
	assert.InDeltaSlice(t, []float64{0.8, 0.7}, used, 1e-12)
	bin, _ := out.Float(PredictionBinary)
	assert.Equal(t, []float64{1, 0}, bin)

	_, err = Predictions(f, []string{"x"}, []int{0}, []int{1}, []float64{0.8}, 0.5)
	assert.ErrorIs(t, err, data.ErrShape)
}
