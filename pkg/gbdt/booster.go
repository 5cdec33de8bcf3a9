package gbdt

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wiegertj/EBG-train/pkg/data"
)

var (
	ErrEmpty = errors.New("gbdt: empty training set")
	ErrShape = errors.New("gbdt: shape mismatch")
	ErrLabel = errors.New("gbdt: binary labels must be 0 or 1")
)

// Booster is a trained additive tree ensemble.
type Booster struct {
	Params       Params
	FeatureNames []string
	InitScore    float64
	Trees        []Tree
	Gain         []float64 // total split gain per feature
}

// Train fits a booster. featureNames may be nil, in which case the features
// are named f0, f1, ...
func Train(X [][]float64, y []float64, featureNames []string, p Params) (*Booster, error) {
	return TrainContext(context.Background(), X, y, featureNames, p)
}

// TrainContext is Train with cancellation checked between boosting rounds.
func TrainContext(ctx context.Context, X [][]float64, y []float64, featureNames []string, p Params) (*Booster, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(X)
	if n == 0 || len(X[0]) == 0 {
		return nil, ErrEmpty
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows but %d labels", ErrShape, n, len(y))
	}
	nf := len(X[0])
	for i, row := range X {
		if len(row) != nf {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), nf)
		}
	}
	if featureNames == nil {
		featureNames = make([]string, nf)
		for j := range featureNames {
			featureNames[j] = fmt.Sprintf("f%d", j)
		}
	}
	if len(featureNames) != nf {
		return nil, fmt.Errorf("%w: %d feature names for %d features", ErrShape, len(featureNames), nf)
	}
	if p.Objective == Binary {
		for _, v := range y {
			if v != 0 && v != 1 {
				return nil, ErrLabel
			}
		}
	}

	obj := newObjective(p)
	b := &Booster{
		Params:       p,
		FeatureNames: append([]string(nil), featureNames...),
		InitScore:    obj.initScore(y),
		Gain:         make([]float64, nf),
	}

	gr := &grower{
		data:    binData(X, p.MaxBin, p.Workers),
		p:       p,
		grad:    make([]float64, n),
		hess:    make([]float64, n),
		workers: p.Workers,
	}
	score := make([]float64, n)
	for i := range score {
		score[i] = b.InitScore
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	residuals := make([]float64, 0, n)
	for iter := 0; iter < p.NumIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj.gradients(y, score, gr.grad, gr.hess)
		tree, leaves := gr.grow(rows, b.Gain)
		if len(leaves) < 2 {
			// no leaf can be split any further
			break
		}
		for _, l := range leaves {
			v := gr.output(l.g, l.h)
			if len(l.rows) > 0 {
				residuals = residuals[:0]
				for _, r := range l.rows {
					residuals = append(residuals, y[r]-score[r])
				}
				if rv, ok := obj.renew(residuals); ok {
					v = rv
				}
			}
			v *= p.LearningRate
			tree.Nodes[l.node].Value = v
			for _, r := range l.rows {
				score[r] += v
			}
		}
		b.Trees = append(b.Trees, *tree)
	}
	return b, nil
}

// PredictRaw returns the untransformed ensemble score of every row.
func (b *Booster) PredictRaw(X [][]float64) []float64 {
	out := make([]float64, len(X))
	forEach(len(X), b.Params.Workers, func(i int) {
		s := b.InitScore
		for t := range b.Trees {
			s += b.Trees[t].predict(X[i])
		}
		out[i] = s
	})
	return out
}

// Predict returns class-1 probabilities for the binary objective and the
// predicted quantile for the quantile objective.
func (b *Booster) Predict(X [][]float64) []float64 {
	obj := newObjective(b.Params)
	out := b.PredictRaw(X)
	for i, v := range out {
		out[i] = obj.transform(v)
	}
	return out
}

// PredictFrame predicts the rows of f, selecting the booster's features by name.
func (b *Booster) PredictFrame(f *data.Frame) ([]float64, error) {
	X, err := f.Rows(b.FeatureNames...)
	if err != nil {
		return nil, err
	}
	return b.Predict(X), nil
}

// FeatureImportance returns the total gain of the splits on each feature.
func (b *Booster) FeatureImportance() []float64 {
	return append([]float64(nil), b.Gain...)
}

// Encode writes the booster in gob format.
func (b *Booster) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(b)
}

// Decode reads a booster written by Encode.
func Decode(r io.Reader) (*Booster, error) {
	b := new(Booster)
	if err := gob.NewDecoder(r).Decode(b); err != nil {
		return nil, fmt.Errorf("gbdt: decode booster: %w", err)
	}
	return b, nil
}

// Save writes the booster to path, creating parent directories.
func (b *Booster) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a booster saved with Save.
func Load(path string) (*Booster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
