package pipeline

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiegertj/EBG-train/pkg/data"
)

func rawFrame(t *testing.T) *data.Frame {
	t.Helper()
	f := data.NewFrame(3)
	require.NoError(t, f.SetText(Dataset, []string{"d1", "d1", "d2"}))
	require.NoError(t, f.SetFloat(BranchID, []float64{0, 1, 0}))
	require.NoError(t, f.SetFloat(Support, []float64{0.9, 0.7, 0.75}))
	require.NoError(t, f.SetFloat("unused", []float64{1, 2, 3}))
	for i, name := range RawFeatures() {
		v := []float64{float64(i), float64(i) + 0.5, float64(i) + 1}
		if i == 0 {
			v[1] = math.NaN()
		}
		if i == 1 {
			v[2] = math.Inf(-1)
		}
		require.NoError(t, f.SetFloat(name, v))
	}
	return f
}

type constModel struct {
	v    float64
	need string
}

func (c constModel) PredictFrame(f *data.Frame) ([]float64, error) {
	if _, err := f.Float(c.need); err != nil {
		return nil, err
	}
	out := make([]float64, f.Len())
	for i := range out {
		out[i] = c.v
	}
	return out, nil
}

func TestSchema(t *testing.T) {
	require.Len(t, Schema, 22)
	assert.Len(t, FeatureNames, 22)
	assert.Equal(t, "mean_closeness_centrality_ratio", FeatureNames["mean_clo_sim_ratio"])
	assert.Len(t, RegressorInputs(true), 23)
	assert.Len(t, RegressorInputs(false), 22)
	in := ClassifierInputs(true)
	assert.Equal(t, []string{MedianPred, LowerBound10, LowerBound5}, in[len(in)-3:])
}

func TestBase(t *testing.T) {
	f, err := Base().Apply(rawFrame(t))
	require.NoError(t, err)

	assert.Equal(t, append([]string{Dataset, BranchID, Support}, VerboseFeatures()...), f.Names())
	assert.False(t, f.Has("unused"))

	v, err := f.Float("parsimony_bootstrap_support")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, 1}, v)
	v, err = f.Float("parsimony_support")
	require.NoError(t, err)
	assert.Equal(t, -1.0, v[2])
}

func TestBase_LeavesInputUnchanged(t *testing.T) {
	raw := rawFrame(t)
	_, err := Base().Apply(raw)
	require.NoError(t, err)

	v, err := raw.Float(RawFeatures()[0])
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v[1]))
	v, err = raw.Float(RawFeatures()[1])
	require.NoError(t, err)
	assert.True(t, math.IsInf(v[2], -1))
}

func TestBase_EmptyFeatureColumn(t *testing.T) {
	raw := rawFrame(t)
	require.NoError(t, raw.SetFloat("bl_ratio", []float64{math.NaN(), math.NaN(), math.NaN()}))
	var buf bytes.Buffer
	require.NoError(t, raw.WriteCSV(&buf))
	read, err := data.ReadCSV(&buf)
	require.NoError(t, err)

	f, err := Base().Apply(read)
	require.NoError(t, err)
	X, err := f.Rows(RegressorInputs(true)...)
	require.NoError(t, err)
	require.Len(t, X, 3)

	v, err := f.Float(FeatureNames["bl_ratio"])
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1}, v)
}

func TestBase_MissingColumn(t *testing.T) {
	f := rawFrame(t)
	f.Drop("bl_ratio")
	_, err := Base().Apply(f)
	assert.ErrorIs(t, err, data.ErrColumn)
	assert.Contains(t, err.Error(), "select")
}

func TestClassifierSteps(t *testing.T) {
	p := Base().Then(
		RegressorFeatures{
			{Column: MedianPred, Model: constModel{v: 0.8, need: "branch_length"}},
			{Column: LowerBound10, Model: constModel{v: 0.5, need: "branch_length"}},
			// must not see the columns added by the other regressors
			{Column: LowerBound5, Model: constModel{v: 0.3, need: "branch_length"}},
		},
		SanitizeNames{},
		Label{Threshold: 0.7},
	)
	assert.Equal(t, []string{"select", "rename", "fill_non_finite", "regressor_features", "sanitize_names", "label"}, p.Steps())

	f, err := p.Apply(rawFrame(t))
	require.NoError(t, err)

	lb, err := f.Float(LowerBound5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.3, 0.3}, lb)

	label, err := f.Float(IsValid)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, label, "support equal to the threshold is not valid")
}

func TestRegressorFeatures_Error(t *testing.T) {
	f := data.NewFrame(1)
	_, err := RegressorFeatures{{Column: MedianPred, Model: constModel{need: "x"}}}.Apply(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, data.ErrColumn))
}

func TestSanitizeNames(t *testing.T) {
	f := data.NewFrame(1)
	require.NoError(t, f.SetFloat("a:b", []float64{1}))
	f, err := SanitizeNames{}.Apply(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b"}, f.Names())
}
