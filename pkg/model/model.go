// Package model holds the tree ensembles used for feature selection and the
// binary classification metrics shared by the training commands.
package model

import "errors"

var (
	ErrEmpty = errors.New("model: empty training set")
	ErrShape = errors.New("model: X and y length mismatch")
)

// Classifier is a fitted binary classifier.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProba1(X [][]float64) []float64 // p(y=1)
}

// Importancer reports one importance score per input feature.
type Importancer interface {
	FeatureImportances() []float64
}

// Estimator is what recursive feature elimination needs from a model.
type Estimator interface {
	Fit(X [][]float64, y []int) error
	Importancer
}
