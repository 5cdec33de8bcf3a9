package gbdt

import (
	"math"
	"sort"
)

// binMapper maps raw feature values to bins. Bin b holds values
// v <= upper[b] (and > upper[b-1]); the last bound is +Inf. NaN goes to the
// last bin so that training agrees with prediction, where NaN <= t is false.
type binMapper struct {
	upper []float64
}

func newBinMapper(values []float64, maxBin int) binMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}

	var upper []float64
	if len(distinct) <= maxBin {
		for i := 1; i < len(distinct); i++ {
			lo, hi := distinct[i-1], distinct[i]
			if math.IsInf(lo, -1) || math.IsInf(hi, 1) {
				// no finite midpoint; lo still separates the two values
				upper = append(upper, lo)
				continue
			}
			upper = append(upper, lo+(hi-lo)/2)
		}
	} else {
		// equal-frequency cut points over the (non-distinct) sorted values
		n := len(sorted)
		for b := 1; b < maxBin; b++ {
			cut := sorted[b*n/maxBin]
			if cut == sorted[n-1] {
				break
			}
			if len(upper) == 0 || cut > upper[len(upper)-1] {
				upper = append(upper, cut)
			}
		}
	}
	upper = append(upper, math.Inf(1))
	return binMapper{upper: upper}
}

func (m binMapper) numBins() int { return len(m.upper) }

func (m binMapper) bin(v float64) uint8 {
	if math.IsNaN(v) {
		return uint8(len(m.upper) - 1)
	}
	return uint8(sort.SearchFloat64s(m.upper, v))
}

// binnedData is the column-major binned training matrix.
type binnedData struct {
	mappers []binMapper
	bins    [][]uint8 // [feature][row]
}

func binData(X [][]float64, maxBin int, workers int) *binnedData {
	p := len(X[0])
	d := &binnedData{
		mappers: make([]binMapper, p),
		bins:    make([][]uint8, p),
	}
	forEach(p, workers, func(j int) {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		m := newBinMapper(col, maxBin)
		b := make([]uint8, len(X))
		for i, v := range col {
			b[i] = m.bin(v)
		}
		d.mappers[j] = m
		d.bins[j] = b
	})
	return d
}
