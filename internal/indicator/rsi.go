package indicator

// rsiEpsilon substitutes a zero average loss so a one-sided market saturates
// near 100 instead of dividing by zero.
const rsiEpsilon = 1e-10

// RSI returns Wilder's Relative Strength Index series for the given period.
// The result is aligned with values: positions up to and including index
// period-1 are NaN. At index period the average gain/loss are the means of
// the positive/negative deltas over the first period deltas; later positions
// apply Wilder smoothing:
//
//	avgGain = (avgGain*(period-1) + gain) / period
//
// and symmetrically for avgLoss. An input of period or fewer values yields
// an all-NaN series.
func RSI(values []float64, period int) []float64 {
	out := undefinedSeries(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		avgLoss = rsiEpsilon
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
