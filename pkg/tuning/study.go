package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// ErrNoCompletedTrials is returned when every trial of a study failed.
var ErrNoCompletedTrials = errors.New("tuning: no completed trials")

// Objective scores one parameter set; larger is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

// Trial records one evaluation of the objective.
type Trial struct {
	Number   int
	Params   map[string]float64
	Value    float64
	Err      error
	Duration time.Duration
}

// Study maximizes an objective by random search over a Space.
type Study struct {
	Space  Space
	Rand   *rand.Rand
	Logger *slog.Logger
	Trials []Trial

	best int
}

// NewStudy returns a study over space seeded with seed.
func NewStudy(space Space, seed int64, logger *slog.Logger) *Study {
	if logger == nil {
		logger = slog.Default()
	}
	return &Study{
		Space:  space,
		Rand:   rand.New(rand.NewSource(seed)),
		Logger: logger,
		best:   -1,
	}
}

// Optimize runs nTrials trials sequentially. A failing trial is recorded and
// skipped; cancellation of ctx stops the study with ctx's error.
func (s *Study) Optimize(ctx context.Context, objective Objective, nTrials int) error {
	if err := s.Space.Validate(); err != nil {
		return err
	}
	for i := 0; i < nTrials; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := Trial{Number: len(s.Trials), Params: s.Space.Sample(s.Rand)}
		start := time.Now()
		t.Value, t.Err = objective(ctx, t.Params)
		t.Duration = time.Since(start)
		if t.Err == nil && math.IsNaN(t.Value) {
			t.Err = fmt.Errorf("tuning: objective returned NaN")
		}
		s.Trials = append(s.Trials, t)

		if t.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.Logger.Warn("trial failed", "trial", t.Number, "error", t.Err)
			continue
		}
		if s.best < 0 || t.Value > s.Trials[s.best].Value {
			s.best = len(s.Trials) - 1
		}
		s.Logger.Info("trial finished", "trial", t.Number, "value", t.Value,
			"best_trial", s.Trials[s.best].Number, "best_value", s.Trials[s.best].Value,
			"duration", t.Duration)
	}
	if s.best < 0 {
		return ErrNoCompletedTrials
	}
	return nil
}

// Best returns the best completed trial.
func (s *Study) Best() (Trial, error) {
	if s.best < 0 {
		return Trial{}, ErrNoCompletedTrials
	}
	return s.Trials[s.best], nil
}
