package indicator

// EMA returns the Exponential Moving Average series for the given length.
// The result is aligned with values: positions before index length-1 are
// NaN, the value at length-1 is the arithmetic mean of the first length
// inputs (SMA seed), and later positions follow the recurrence
//
//	ema[i] = values[i]*k + ema[i-1]*(1-k),  k = 2/(length+1)
//
// An input shorter than length yields an all-NaN series.
func EMA(values []float64, length int) []float64 {
	out := undefinedSeries(len(values))
	if length <= 0 || len(values) < length {
		return out
	}

	sum := 0.0
	for i := 0; i < length; i++ {
		sum += values[i]
	}
	out[length-1] = sum / float64(length)

	k := 2.0 / float64(length+1)
	for i := length; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
