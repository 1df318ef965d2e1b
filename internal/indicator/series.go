// Package indicator computes technical indicator series over close prices.
//
// Series are recomputed from scratch over the whole (capacity-bounded)
// buffer on every evaluation. Positions before an indicator's minimum
// lookback carry NaN; use Defined to test a position before reading it.
package indicator

import "math"

// Undefined marks series positions before the minimum lookback.
var Undefined = math.NaN()

// Defined reports whether series has a computed value at index i.
func Defined(series []float64, i int) bool {
	return i >= 0 && i < len(series) && !math.IsNaN(series[i])
}

// undefinedSeries returns an all-NaN series of length n.
func undefinedSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = Undefined
	}
	return s
}
