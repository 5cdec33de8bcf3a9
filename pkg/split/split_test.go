package split

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeGroups(sizes ...int) []int {
	var g []int
	for id, n := range sizes {
		for iter := 0; iter < n; iter++ {
			g = append(g, id)
		}
	}
	return g
}

func TestGroupHoldout(t *testing.T) {
	groups := makeGroups(3, 1, 4, 2, 5, 2, 1, 1, 3, 2)
	train, test := GroupHoldout(groups, 0.2, rand.New(rand.NewSource(7)))

	assert.Len(t, UniqueGroups(Values(groups, test)), 2)
	assert.Equal(t, len(groups), len(train)+len(test))

	testGroups := map[int]bool{}
	for _, i := range test {
		testGroups[groups[i]] = true
	}
	for _, i := range train {
		assert.False(t, testGroups[groups[i]], "group %d on both sides", groups[i])
	}
}

func TestGroupHoldout_Deterministic(t *testing.T) {
	groups := makeGroups(2, 2, 2, 2, 2, 2, 2, 2, 2, 2)
	_, a := GroupHoldout(groups, 0.3, rand.New(rand.NewSource(42)))
	_, b := GroupHoldout(groups, 0.3, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestGroupKFold(t *testing.T) {
	groups := makeGroups(6, 1, 4, 2, 5, 3)
	folds, err := GroupKFold(groups, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := make([]int, len(groups))
	for _, f := range folds {
		assert.Equal(t, len(groups), len(f.Train)+len(f.Valid))
		valid := map[int]bool{}
		for _, i := range f.Valid {
			seen[i]++
			valid[groups[i]] = true
		}
		for _, i := range f.Train {
			assert.False(t, valid[groups[i]])
		}
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d validated %d times", i, n)
	}

	// sizes 6,5,4,3,2,1 -> folds {6,1}, {5,2}, {4,3}: balanced at 7 rows each
	for _, f := range folds {
		assert.Len(t, f.Valid, 7)
	}
}

func TestGroupKFold_TooFewGroups(t *testing.T) {
	_, err := GroupKFold(makeGroups(2, 2), 3)
	assert.ErrorIs(t, err, ErrTooFewGroups)
}
