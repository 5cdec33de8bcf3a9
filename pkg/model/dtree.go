package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeClassifier is a CART-style classifier.
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => use all features, >0 => number of features to sample when looking for split
	MinImpurityDecrease float64 // minimal impurity decrease to accept a split
	RandomState         int64   // seed for randomness (feature subsampling)

	// internals
	root        *Node
	classes     []int     // unique class labels (order used by probas)
	importances []float64 // weighted impurity decrease per feature
	nFeatures   int
}

// Node is a tree node. Fields are exported for gob.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64 // x <= Threshold => Left
	Left      *Node
	Right     *Node

	N         int
	Probas    []float64 // class distribution aligned with the tree's classes
	PredIndex int
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MaxDepth:            0, // 0 => no explicit max (stopping by other criteria)
		MinSamplesSplit:     2,
		MinSamplesLeaf:      1,
		Criterion:           "gini",
		MaxFeatures:         0,
		MinImpurityDecrease: 0.0,
		RandomState:         time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API
// ---------------------------

// Fit trains the decision tree on all rows of X (n x p) and labels y.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.FitIndices(X, y, idx)
}

// FitIndices trains on the rows listed in idx. Indices may repeat, which is how
// bootstrap samples are passed without copying X.
func (t *DecisionTreeClassifier) FitIndices(X [][]float64, y []int, idx []int) error {
	if len(X) == 0 || len(idx) == 0 {
		return ErrEmpty
	}
	if len(y) != len(X) {
		return ErrShape
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return errors.New("dtree: inconsistent number of features in X rows")
		}
	}

	// collect classes and build class list
	classMap := map[int]int{}
	t.classes = nil
	for _, lab := range y {
		if _, ok := classMap[lab]; !ok {
			classMap[lab] = len(t.classes)
			t.classes = append(t.classes, lab)
		}
	}
	sort.Ints(t.classes)
	for i, c := range t.classes {
		classMap[c] = i
	}
	yi := make([]int, len(y))
	for i, lab := range y {
		yi[i] = classMap[lab]
	}

	t.nFeatures = p
	t.importances = make([]float64, p)
	b := &treeBuilder{
		t:        t,
		X:        X,
		y:        yi,
		nClasses: len(t.classes),
		rnd:      rand.New(rand.NewSource(t.RandomState)),
		total:    float64(len(idx)),
	}
	if t.Criterion == "entropy" {
		b.impurity = entropyFromCounts
	} else {
		b.impurity = giniFromCounts
	}
	t.root = b.build(append([]int(nil), idx...), 0)
	return nil
}

// Predict returns predicted class labels.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		out[i] = t.classes[t.leaf(X[i]).PredIndex]
	}
	return out
}

// PredictProba returns the per-class probability vectors for rows in X,
// ordered like Classes.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = t.leaf(X[i]).Probas
	}
	return out
}

// Classes returns the sorted class labels seen in Fit.
func (t *DecisionTreeClassifier) Classes() []int { return t.classes }

// FeatureImportances returns the impurity decrease contributed by each
// feature, normalized to sum to 1 (all zeros for a single-leaf tree).
func (t *DecisionTreeClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(t.importances))
	sum := 0.0
	for _, v := range t.importances {
		sum += v
	}
	if sum == 0 {
		return out
	}
	for i, v := range t.importances {
		out[i] = v / sum
	}
	return out
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, v := range []any{
		t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf, t.Criterion,
		t.MaxFeatures, t.MinImpurityDecrease, t.RandomState,
		t.classes, t.importances, t.nFeatures, t.root,
	} {
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	for _, v := range []any{
		&t.MaxDepth, &t.MinSamplesSplit, &t.MinSamplesLeaf, &t.Criterion,
		&t.MaxFeatures, &t.MinImpurityDecrease, &t.RandomState,
		&t.classes, &t.importances, &t.nFeatures, &t.root,
	} {
		if err := dec.Decode(v); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

type treeBuilder struct {
	t        *DecisionTreeClassifier
	X        [][]float64
	y        []int // class indices
	nClasses int
	impurity func([]int) float64
	rnd      *rand.Rand
	total    float64
}

// A struct to hold the results of a single feature's best split search.
type splitResult struct {
	gain      float64
	feature   int
	threshold float64
}

// pair is a named type for a value and its original index.
type pair struct {
	v float64
	i int
}

func (b *treeBuilder) build(idx []int, depth int) *Node {
	t := b.t
	node := &Node{N: len(idx)}

	counts := make([]int, b.nClasses)
	for _, ii := range idx {
		counts[b.y[ii]]++
	}
	node.Probas = countsToProbas(counts)
	node.PredIndex = argmax(counts)
	node.Leaf = true

	// make leaf if pure or too few samples or depth reached
	if isPure(counts) || (t.MinSamplesSplit > 0 && len(idx) < t.MinSamplesSplit) {
		return node
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return node
	}

	// determine features to try
	p := t.nFeatures
	featIndices := make([]int, p)
	for j := 0; j < p; j++ {
		featIndices[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		b.rnd.Shuffle(p, func(i, j int) { featIndices[i], featIndices[j] = featIndices[j], featIndices[i] })
		featIndices = featIndices[:t.MaxFeatures]
		sort.Ints(featIndices)
	}

	parentImpurity := b.impurity(counts)
	results := make([]splitResult, len(featIndices))

	// Large nodes search features in parallel; small ones are not worth the goroutines.
	if len(idx) >= 2048 {
		var wg sync.WaitGroup
		for k, f := range featIndices {
			wg.Add(1)
			go func(k, f int) {
				defer wg.Done()
				results[k] = b.bestSplit(idx, f, counts, parentImpurity)
			}(k, f)
		}
		wg.Wait()
	} else {
		for k, f := range featIndices {
			results[k] = b.bestSplit(idx, f, counts, parentImpurity)
		}
	}

	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && r.gain > best.gain {
			best = r
		}
	}

	// weighted impurity decrease as in scikit-learn
	decrease := float64(len(idx)) / b.total * best.gain
	if best.feature == -1 || decrease <= t.MinImpurityDecrease {
		return node
	}

	var leftIdx, rightIdx []int
	for _, ii := range idx {
		if b.X[ii][best.feature] <= best.threshold {
			leftIdx = append(leftIdx, ii)
		} else {
			rightIdx = append(rightIdx, ii)
		}
	}
	t.importances[best.feature] += decrease

	node.Leaf = false
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = b.build(leftIdx, depth+1)
	node.Right = b.build(rightIdx, depth+1)
	return node
}

// bestSplit scans the sorted values of feature f once, moving samples from
// the right child to the left child and scoring every boundary between
// distinct values. NaN compares false with <= and therefore goes right.
func (b *treeBuilder) bestSplit(idx []int, f int, counts []int, parentImpurity float64) splitResult {
	result := splitResult{feature: -1}
	minLeaf := b.t.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	vals := make([]pair, 0, len(idx))
	for _, ii := range idx {
		v := b.X[ii][f]
		if math.IsNaN(v) {
			v = math.Inf(1)
		}
		vals = append(vals, pair{v, ii})
	}
	sort.Slice(vals, func(a, c int) bool { return vals[a].v < vals[c].v })

	n := len(vals)
	left := make([]int, b.nClasses)
	right := append([]int(nil), counts...)
	for s := 1; s < n; s++ {
		ci := b.y[vals[s-1].i]
		left[ci]++
		right[ci]--
		if vals[s].v == vals[s-1].v || s < minLeaf || n-s < minLeaf {
			continue
		}
		wl := float64(s) / float64(n)
		weighted := wl*b.impurity(left) + (1-wl)*b.impurity(right)
		gain := parentImpurity - weighted
		if gain > result.gain {
			thr := vals[s-1].v + (vals[s].v-vals[s-1].v)/2.0
			if math.IsInf(vals[s].v, 1) {
				thr = vals[s-1].v
			}
			result = splitResult{gain: gain, feature: f, threshold: thr}
		}
	}
	return result
}

func (t *DecisionTreeClassifier) leaf(x []float64) *Node {
	node := t.root
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// ---------------------------
// Utilities: impurity & misc
// ---------------------------

func giniFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		p := float64(c) / n
		res += p * (1 - p)
	}
	return res
}

func entropyFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbas(counts []int) []float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i := range counts {
		p[i] = float64(counts[i]) / float64(n)
	}
	return p
}

func argmax(counts []int) int {
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	return best
}
