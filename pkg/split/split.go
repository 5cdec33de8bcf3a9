// Package split produces train/test partitions that keep every group (one
// phylogenetic dataset) on a single side.
package split

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrTooFewGroups is returned when there are fewer groups than folds.
var ErrTooFewGroups = errors.New("split: fewer groups than folds")

// Fold is one cross-validation round given as row indices.
type Fold struct {
	Train []int
	Valid []int
}

// UniqueGroups returns the distinct groups in order of first appearance.
func UniqueGroups(groups []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, g := range groups {
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

// GroupHoldout samples int(nGroups*fraction) groups without replacement and
// returns the rows of the remaining groups as train and the sampled ones as test.
func GroupHoldout(groups []int, fraction float64, rng *rand.Rand) (train, test []int) {
	uniq := UniqueGroups(groups)
	m := int(float64(len(uniq)) * fraction)
	held := make(map[int]bool, m)
	for _, i := range rng.Perm(len(uniq))[:m] {
		held[uniq[i]] = true
	}
	for i, g := range groups {
		if held[g] {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}
	return
}

// GroupKFold splits rows into k folds so that a group never spans two folds.
// Groups are taken largest first and each goes to the fold with the fewest
// rows so far, which keeps fold sizes balanced.
func GroupKFold(groups []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("split: need at least 2 folds, got %d", k)
	}
	uniq := UniqueGroups(groups)
	if len(uniq) < k {
		return nil, fmt.Errorf("%w: %d groups, %d folds", ErrTooFewGroups, len(uniq), k)
	}
	sort.Ints(uniq)

	size := make(map[int]int, len(uniq))
	for _, g := range groups {
		size[g]++
	}
	// ascending stable sort then reverse, so equal sizes go highest group first
	sort.SliceStable(uniq, func(a, b int) bool { return size[uniq[a]] < size[uniq[b]] })
	for i, j := 0, len(uniq)-1; i < j; i, j = i+1, j-1 {
		uniq[i], uniq[j] = uniq[j], uniq[i]
	}

	weight := make([]int, k)
	foldOf := make(map[int]int, len(uniq))
	for _, g := range uniq {
		lightest := 0
		for f := 1; f < k; f++ {
			if weight[f] < weight[lightest] {
				lightest = f
			}
		}
		weight[lightest] += size[g]
		foldOf[g] = lightest
	}

	folds := make([]Fold, k)
	for i, g := range groups {
		f := foldOf[g]
		for j := range folds {
			if j == f {
				folds[j].Valid = append(folds[j].Valid, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}

// Rows gathers X rows by index without copying them.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

// Values gathers y values by index.
func Values[T any](y []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
