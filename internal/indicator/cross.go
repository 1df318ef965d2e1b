package indicator

// CrossDirection classifies an EMA crossover at a series index.
type CrossDirection int

const (
	CrossNone CrossDirection = iota
	CrossUp
	CrossDown
)

// CrossedUp reports whether short crossed above long at index i:
// short[i-1] <= long[i-1] and short[i] > long[i], all four values defined.
func CrossedUp(short, long []float64, i int) bool {
	if i < 1 || !Defined(short, i-1) || !Defined(long, i-1) || !Defined(short, i) || !Defined(long, i) {
		return false
	}
	return short[i-1] <= long[i-1] && short[i] > long[i]
}

// CrossedDown reports whether short crossed below long at index i:
// short[i-1] >= long[i-1] and short[i] < long[i], all four values defined.
func CrossedDown(short, long []float64, i int) bool {
	if i < 1 || !Defined(short, i-1) || !Defined(long, i-1) || !Defined(short, i) || !Defined(long, i) {
		return false
	}
	return short[i-1] >= long[i-1] && short[i] < long[i]
}

// Cross holds the outcome of cross detection at a single index.
// A cross on the newest candle has no following candle to confirm it and is
// reported with Confirmed=false; callers must treat it as provisional until
// one more candle closes.
type Cross struct {
	Direction CrossDirection
	Confirmed bool
}

// DetectAt inspects index i for a crossover. When a cross fires at i and
// index i+1 exists, the cross is only reported if the ordering it implies
// still holds at i+1 — a deliberate one-candle false-positive filter.
func DetectAt(short, long []float64, i int) Cross {
	switch {
	case CrossedUp(short, long, i):
		if i+1 >= len(short) {
			return Cross{Direction: CrossUp, Confirmed: false}
		}
		if Defined(short, i+1) && Defined(long, i+1) && short[i+1] > long[i+1] {
			return Cross{Direction: CrossUp, Confirmed: true}
		}
		return Cross{}
	case CrossedDown(short, long, i):
		if i+1 >= len(short) {
			return Cross{Direction: CrossDown, Confirmed: false}
		}
		if Defined(short, i+1) && Defined(long, i+1) && short[i+1] < long[i+1] {
			return Cross{Direction: CrossDown, Confirmed: true}
		}
		return Cross{}
	default:
		return Cross{}
	}
}
