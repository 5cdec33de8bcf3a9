package model

import (
	"bytes"
	"encoding/gob"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	_ Classifier = (*RandomForest)(nil)
	_ Estimator  = (*RandomForest)(nil)
)

// RandomForest for classification
type RandomForest struct {
	// Hyperparameters / options
	NEstimators         int
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MaxFeatures         int
	Criterion           string // "gini" or "entropy"
	MinImpurityDecrease float64
	Bootstrap           bool
	RandomState         int64
	Workers             int // 0 => GOMAXPROCS

	// Internal state
	Trees []*DecisionTreeClassifier
}

// Option functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = d }
}
func WithForestMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MinSamplesSplit = n }
}
func WithForestMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MinSamplesLeaf = n }
}
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithForestCriterion(c string) RandomForestOption {
	return func(rf *RandomForest) { rf.Criterion = c }
}
func WithForestMinImpurityDecrease(v float64) RandomForestOption {
	return func(rf *RandomForest) { rf.MinImpurityDecrease = v }
}
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}
func WithWorkers(n int) RandomForestOption { return func(rf *RandomForest) { rf.Workers = n } }

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Criterion:       "gini",
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the random forest.
// Bootstrap samples are index slices into X; the rows are never copied.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	n := len(X)
	if len(y) != n {
		return ErrShape
	}

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)

	for i := 0; i < rf.NEstimators; i++ {
		i := i
		g.Go(func() error {
			// Use a new rand source for each goroutine to avoid contention
			seed := rf.RandomState + int64(i)
			treeRand := rand.New(rand.NewSource(seed))

			sampleIndices := make([]int, n)
			for j := 0; j < n; j++ {
				if rf.Bootstrap {
					sampleIndices[j] = treeRand.Intn(n)
				} else {
					sampleIndices[j] = j
				}
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(rf.MaxFeatures),
				WithCriterion(rf.Criterion),
				WithMinImpurityDecrease(rf.MinImpurityDecrease),
				WithRandomState(seed), // unique seed for each tree
			)
			if err := tree.FitIndices(X, y, sampleIndices); err != nil {
				return err
			}
			rf.Trees[i] = tree
			return nil
		})
	}
	return g.Wait()
}

// Predict returns the majority vote of all trees.
func (rf *RandomForest) Predict(X [][]float64) []int {
	n := len(X)
	finalPred := make([]int, n)
	votes := make([]map[int]int, n)
	for i := range votes {
		votes[i] = make(map[int]int, 2)
	}
	for _, tree := range rf.Trees {
		for i, p := range tree.Predict(X) {
			votes[i][p]++
		}
	}
	for i, counts := range votes {
		bestClass, maxCount := 0, -1
		for cls, cnt := range counts {
			if cnt > maxCount || (cnt == maxCount && cls < bestClass) {
				bestClass, maxCount = cls, cnt
			}
		}
		finalPred[i] = bestClass
	}
	return finalPred
}

// PredictProba1 returns the mean probability of class 1 over all trees.
func (rf *RandomForest) PredictProba1(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(rf.Trees) == 0 {
		return out
	}
	for _, tree := range rf.Trees {
		pos := -1
		for k, c := range tree.Classes() {
			if c == 1 {
				pos = k
			}
		}
		if pos < 0 {
			continue
		}
		for i, p := range tree.PredictProba(X) {
			out[i] += p[pos]
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out
}

// FeatureImportances averages the normalized per-tree importances and
// renormalizes them to sum to 1.
func (rf *RandomForest) FeatureImportances() []float64 {
	if len(rf.Trees) == 0 {
		return nil
	}
	out := make([]float64, rf.Trees[0].nFeatures)
	for _, tree := range rf.Trees {
		for j, v := range tree.FeatureImportances() {
			out[j] += v
		}
	}
	sum := 0.0
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for j := range out {
			out[j] /= sum
		}
	}
	return out
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (rf *RandomForest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	type wire RandomForest
	if err := gob.NewEncoder(&buf).Encode((*wire)(rf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (rf *RandomForest) UnmarshalBinary(data []byte) error {
	type wire RandomForest
	return gob.NewDecoder(bytes.NewReader(data)).Decode((*wire)(rf))
}
