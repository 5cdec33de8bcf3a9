// Package rfe implements recursive feature elimination: fit, drop the least
// important features, repeat until the requested number remain.
package rfe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/wiegertj/EBG-train/pkg/model"
	"github.com/wiegertj/EBG-train/pkg/split"
)

var ErrOptions = errors.New("rfe: invalid options")

// Options configures Select.
type Options struct {
	// NFeatures is the number of features to keep; 0 keeps half.
	NFeatures int
	// Step is the number of features removed per round when >= 1, or the
	// fraction of the initial feature count when in (0, 1).
	Step float64
	// NewEstimator returns a fresh, unfitted estimator for each round.
	NewEstimator func() model.Estimator
	Logger       *slog.Logger
}

// Result of a selection. Ranking is 1 for selected features and grows with the
// round in which a feature was eliminated, later rounds ranking better.
type Result struct {
	Support  []bool
	Ranking  []int
	Selected []string
}

// Select runs recursive feature elimination over the columns of X.
func Select(ctx context.Context, X [][]float64, y []int, names []string, opts Options) (*Result, error) {
	if len(X) == 0 {
		return nil, model.ErrEmpty
	}
	p := len(X[0])
	if len(names) != p {
		return nil, fmt.Errorf("%w: %d names for %d features", ErrOptions, len(names), p)
	}
	if opts.NewEstimator == nil {
		return nil, fmt.Errorf("%w: no estimator", ErrOptions)
	}
	if opts.Step <= 0 {
		return nil, fmt.Errorf("%w: step must be > 0", ErrOptions)
	}
	keep := opts.NFeatures
	if keep <= 0 {
		keep = p / 2
	}
	if keep > p {
		keep = p
	}
	step := int(opts.Step)
	if opts.Step < 1 {
		step = max(1, int(opts.Step*float64(p)))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{Support: make([]bool, p), Ranking: make([]int, p)}
	for j := range res.Support {
		res.Support[j] = true
		res.Ranking[j] = 1
	}

	for remaining := p; remaining > keep; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		features := make([]int, 0, remaining)
		for j, ok := range res.Support {
			if ok {
				features = append(features, j)
			}
		}
		est := opts.NewEstimator()
		if err := est.Fit(columns(X, features), y); err != nil {
			return nil, fmt.Errorf("rfe: fit with %d features: %w", remaining, err)
		}
		imp := est.FeatureImportances()
		if len(imp) != len(features) {
			return nil, fmt.Errorf("%w: estimator reported %d importances for %d features",
				ErrOptions, len(imp), len(features))
		}

		order := make([]int, len(features))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return imp[order[a]] < imp[order[b]] })

		drop := min(step, remaining-keep)
		for _, i := range order[:drop] {
			res.Support[features[i]] = false
		}
		for j, ok := range res.Support {
			if !ok {
				res.Ranking[j]++
			}
		}
		remaining -= drop
		logger.Debug("rfe round", "features", remaining, "dropped", drop)
	}

	for j, ok := range res.Support {
		if ok {
			res.Selected = append(res.Selected, names[j])
		}
	}
	return res, nil
}

func columns(X [][]float64, features []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = split.Values(row, features)
	}
	return out
}
