package model

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrSingleClass is returned by ROCAUC when y holds only one class.
var ErrSingleClass = errors.New("model: roc auc undefined for a single class")

// Metrics summarizes a binary classifier on a labelled set.
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	ROCAUC    float64 // NaN when undefined
	LogLoss   float64
}

// Evaluate computes all metrics from labels and class-1 probabilities.
func Evaluate(yTrue []int, proba []float64, cut float64) Metrics {
	pred := BinaryPredFromProba(proba, cut)
	m := Metrics{Accuracy: Accuracy(yTrue, pred), LogLoss: LogLoss(yTrue, proba)}
	m.Precision, m.Recall, m.F1 = PrecisionRecallF1(yTrue, pred)
	auc, err := ROCAUC(yTrue, proba)
	if err != nil {
		auc = math.NaN()
	}
	m.ROCAUC = auc
	return m
}

// BinaryPredFromProba thresholds probabilities: p >= threshold is class 1.
func BinaryPredFromProba(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return out
}

// Accuracy is the fraction of equal labels.
func Accuracy(yTrue []int, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// PrecisionRecallF1 for the positive class 1. Undefined ratios are 0.
func PrecisionRecallF1(yTrue []int, yPred []int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		if yPred[i] == 1 && yTrue[i] == 1 {
			tp++
		}
		if yPred[i] == 1 && yTrue[i] == 0 {
			fp++
		}
		if yPred[i] == 0 && yTrue[i] == 1 {
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}

// F1 is the F1 score of the positive class.
func F1(yTrue, yPred []int) float64 {
	_, _, f1 := PrecisionRecallF1(yTrue, yPred)
	return f1
}

// ROCAUC is the area under the ROC curve of class-1 scores.
func ROCAUC(yTrue []int, score []float64) (float64, error) {
	n := len(yTrue)
	pos := 0
	for _, v := range yTrue {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return math.NaN(), ErrSingleClass
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return score[order[a]] < score[order[b]] })
	y := make([]float64, n)
	classes := make([]bool, n)
	for i, j := range order {
		y[i] = score[j]
		classes[i] = yTrue[j] == 1
	}
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// BinaryEntropy is the base-2 Shannon entropy of the distribution {p, 1-p}.
func BinaryEntropy(p float64) float64 {
	return stat.Entropy([]float64{p, 1 - p}) / math.Ln2
}

// LogLoss is the mean binary cross-entropy of class-1 probabilities.
func LogLoss(yTrue []int, proba []float64) float64 {
	n := len(yTrue)
	if n == 0 {
		return 0
	}
	s := 0.0
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(proba[i], 1e-15), 1-1e-15)
		y := float64(yTrue[i])
		s += -(y*math.Log(p) + (1-y)*math.Log(1-p))
	}
	return s / float64(n)
}
