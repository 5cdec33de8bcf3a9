package tuning

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpace_Sample(t *testing.T) {
	s := ClassifierSpace()
	require.NoError(t, s.Validate())
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 200; iter++ {
		v := s.Sample(rng)
		require.Len(t, v, 7)
		assert.GreaterOrEqual(t, v["num_leaves"], 2.0)
		assert.LessOrEqual(t, v["num_leaves"], 300.0)
		assert.Equal(t, float64(int(v["num_iterations"])), v["num_iterations"])
		assert.GreaterOrEqual(t, v["learning_rate"], 0.001)
		assert.Less(t, v["learning_rate"], 0.3)
	}
}

func TestSpace_Validate(t *testing.T) {
	assert.Error(t, Space{IntParam{Name: "a", Low: 3, High: 1}}.Validate())
	assert.Error(t, Space{FloatParam{Name: "a", Low: 0, High: 1, Log: true}}.Validate())
	assert.Error(t, Space{IntParam{Name: "a", Low: 1, High: 2}, FloatParam{Name: "a", Low: 0, High: 1}}.Validate())
}

func TestFloatParam_Log(t *testing.T) {
	p := FloatParam{Name: "lr", Low: 1e-4, High: 1, Log: true}
	rng := rand.New(rand.NewSource(2))
	small := 0
	for iter := 0; iter < 1000; iter++ {
		v := p.Sample(rng)
		require.True(t, v >= 1e-4 && v <= 1)
		if v < 1e-2 {
			small++
		}
	}
	// half of the log range lies below 1e-2
	assert.InDelta(t, 500, small, 80)
}

func TestStudy_Optimize(t *testing.T) {
	space := Space{FloatParam{Name: "x", Low: -1, High: 1}}
	s := NewStudy(space, 7, nil)
	obj := func(_ context.Context, p map[string]float64) (float64, error) {
		return -p["x"] * p["x"], nil
	}
	require.NoError(t, s.Optimize(context.Background(), obj, 20))
	require.Len(t, s.Trials, 20)

	best, err := s.Best()
	require.NoError(t, err)
	for _, tr := range s.Trials {
		assert.LessOrEqual(t, tr.Value, best.Value)
	}

	again := NewStudy(space, 7, nil)
	require.NoError(t, again.Optimize(context.Background(), obj, 20))
	b2, _ := again.Best()
	assert.Equal(t, best.Params, b2.Params)
}

func TestStudy_FailedTrials(t *testing.T) {
	space := Space{IntParam{Name: "k", Low: 0, High: 9}}
	s := NewStudy(space, 1, nil)
	calls := 0
	err := s.Optimize(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		calls++
		if calls%2 == 1 {
			return 0, errors.New("boom")
		}
		return float64(calls), nil
	}, 4)
	require.NoError(t, err)
	best, err := s.Best()
	require.NoError(t, err)
	assert.Equal(t, 4.0, best.Value)
	assert.Error(t, s.Trials[0].Err)

	s = NewStudy(space, 1, nil)
	err = s.Optimize(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, errors.New("boom")
	}, 3)
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
	_, err = s.Best()
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
}

func TestStudy_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStudy(Space{IntParam{Name: "k", Low: 0, High: 1}}, 1, nil)
	err := s.Optimize(ctx, func(context.Context, map[string]float64) (float64, error) { return 1, nil }, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Trials)
}
