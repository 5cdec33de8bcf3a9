// Package train trains the quantile regressors and the threshold classifiers
// of the bootstrap support predictor.
package train

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wiegertj/EBG-train/pkg/config"
	"github.com/wiegertj/EBG-train/pkg/data"
)

// ErrMissingModel is returned when a quantile regressor has not been trained.
var ErrMissingModel = errors.New("train: missing regressor model")

// Trainer runs training jobs for one configuration.
type Trainer struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *Metrics
	seed    int64
}

// New returns a trainer. A zero cfg.Seed is replaced by a time based seed.
func New(cfg *config.Config, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Trainer{cfg: cfg, logger: logger, metrics: NewMetrics(), seed: seed}
}

// Seed is the effective random seed.
func (t *Trainer) Seed() int64 { return t.seed }

// Metrics returns the collectors updated by classifier runs.
func (t *Trainer) Metrics() *Metrics { return t.metrics }

func (t *Trainer) loadDataset() (*data.Frame, error) {
	path := t.cfg.FinalDataset()
	f, err := data.ReadCSVFile(path)
	if err != nil {
		return nil, fmt.Errorf("train: load training set: %w", err)
	}
	t.logger.Info("loaded training set", "path", path, "rows", f.Len())
	return f, nil
}

// Metrics holds the Prometheus collectors of classifier runs.
type Metrics struct {
	Registry    *prometheus.Registry
	score       *prometheus.GaugeVec
	cvF1        *prometheus.GaugeVec
	trials      *prometheus.CounterVec
	foldSeconds prometheus.Histogram
}

// NewMetrics registers the classifier collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ebg",
			Name:      "classifier_holdout_score",
			Help:      "Holdout score of the classifier per support threshold.",
		}, []string{"threshold", "metric"}),
		cvF1: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ebg",
			Name:      "classifier_cv_f1",
			Help:      "Best mean cross-validated F1 of the hyperparameter search.",
		}, []string{"threshold"}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ebg",
			Name:      "classifier_trials_total",
			Help:      "Hyperparameter trials run, by outcome.",
		}, []string{"threshold", "state"}),
		foldSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ebg",
			Name:      "classifier_fold_train_seconds",
			Help:      "Time to train one cross-validation fold model.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	m.Registry.MustRegister(m.score, m.cvF1, m.trials, m.foldSeconds)
	return m
}

func (m *Metrics) observe(r *Result) {
	th := config.FormatThreshold(r.Threshold)
	m.score.WithLabelValues(th, "accuracy").Set(r.Metrics.Accuracy)
	m.score.WithLabelValues(th, "precision").Set(r.Metrics.Precision)
	m.score.WithLabelValues(th, "recall").Set(r.Metrics.Recall)
	m.score.WithLabelValues(th, "f1").Set(r.Metrics.F1)
	m.score.WithLabelValues(th, "roc_auc").Set(r.Metrics.ROCAUC)
	m.cvF1.WithLabelValues(th).Set(r.BestCV)
	for _, tr := range r.Trials {
		state := "complete"
		if tr.Err != nil {
			state = "fail"
		}
		m.trials.WithLabelValues(th, state).Inc()
	}
}

// WriteFile writes all collected metrics in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
