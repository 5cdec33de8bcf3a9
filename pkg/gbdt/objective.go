package gbdt

import (
	"math"

	"github.com/wiegertj/EBG-train/pkg/stats"
)

// objective supplies the boosting start value and per-row gradients.
type objective interface {
	initScore(y []float64) float64
	gradients(y, score, grad, hess []float64)
	// transform maps a raw score to the prediction scale.
	transform(raw float64) float64
	// renew optionally replaces a leaf value given the residuals in the leaf.
	renew(residuals []float64) (float64, bool)
}

func newObjective(p Params) objective {
	if p.Objective == Quantile {
		return quantileLoss{alpha: p.Alpha}
	}
	return binaryLogLoss{}
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// binaryLogLoss is the binary cross-entropy on the logit scale.
type binaryLogLoss struct{}

func (binaryLogLoss) initScore(y []float64) float64 {
	p := math.Min(math.Max(stats.Mean(y), 1e-15), 1-1e-15)
	return math.Log(p / (1 - p))
}

func (binaryLogLoss) gradients(y, score, grad, hess []float64) {
	for i := range y {
		s := sigmoid(score[i])
		grad[i] = s - y[i]
		hess[i] = s * (1 - s)
	}
}

func (binaryLogLoss) transform(raw float64) float64 { return sigmoid(raw) }

func (binaryLogLoss) renew([]float64) (float64, bool) { return 0, false }

// quantileLoss is the pinball loss for quantile alpha.
type quantileLoss struct{ alpha float64 }

func (q quantileLoss) initScore(y []float64) float64 { return stats.Quantile(y, q.alpha) }

func (q quantileLoss) gradients(y, score, grad, hess []float64) {
	for i := range y {
		if score[i]-y[i] >= 0 {
			grad[i] = 1 - q.alpha
		} else {
			grad[i] = -q.alpha
		}
		hess[i] = 1
	}
}

func (quantileLoss) transform(raw float64) float64 { return raw }

func (q quantileLoss) renew(residuals []float64) (float64, bool) {
	return stats.QuantileInPlace(residuals, q.alpha), true
}

// PinballLoss is the mean quantile loss of predictions at level alpha.
func PinballLoss(y, pred []float64, alpha float64) float64 {
	if len(y) == 0 {
		return 0
	}
	s := 0.0
	for i := range y {
		d := y[i] - pred[i]
		if d >= 0 {
			s += alpha * d
		} else {
			s -= (1 - alpha) * d
		}
	}
	return s / float64(len(y))
}
