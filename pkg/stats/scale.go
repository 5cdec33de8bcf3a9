package stats

// MinMaxScale maps x linearly onto [0, 1] using its own minimum and maximum.
// A constant slice maps to all zeros.
func MinMaxScale(x []float64) []float64 {
	out := make([]float64, len(x))
	min, max := MinMax(x)
	if max == min {
		return out
	}
	for i, v := range x {
		out[i] = (v - min) / (max - min)
	}
	return out
}
