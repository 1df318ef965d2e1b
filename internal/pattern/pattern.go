// Package pattern scans recent close-price geometry for a fixed catalog of
// chart patterns and derives the structural levels downstream risk sizing
// needs (support, resistance, structure high/low).
//
// Detection is a pure function of the last window closes. The catalog is an
// ordered slice of heuristics; when several fire on the same window, the
// later entry wins. That precedence is deliberate and explicit: entries are
// ordered from broad reversal shapes to tighter continuation shapes.
package pattern

import "candlesignal/internal/model"

const (
	// window is the minimum history the matcher needs; with fewer closes
	// it reports no match.
	window = 50

	// levelWindow is the trailing span used for support/resistance levels.
	levelWindow = 20
)

// Tolerance bands, expressed as fractions of price.
const (
	doubleTol   = 0.003 // pivot equality for double tops/bottoms
	shoulderTol = 0.015 // outer-pivot equality for head & shoulders
	wedgeRange  = 0.02  // max net range of a wedge window
	triangleTol = 0.003 // distance from the flat triangle boundary
	poleMove    = 0.02  // minimum flag-pole move
	flagRange   = 0.015 // max consolidation range relative to pole price
	cupDepth    = 0.02  // minimum cup depth below the rim
	cupSymmetry = 0.015 // max rim asymmetry
)

// check is one catalog entry: it inspects closes (oldest-first, at least
// window long) and reports whether its pattern is present.
type check struct {
	kind model.PatternKind
	fire func(closes []float64) bool
}

// catalog is evaluated in order; the last matching entry wins.
var catalog = []check{
	{model.PatternDoubleTop, isDoubleTop},
	{model.PatternDoubleBottom, isDoubleBottom},
	{model.PatternHeadShoulders, isHeadShoulders},
	{model.PatternInvHeadShoulders, isInverseHeadShoulders},
	{model.PatternRisingWedge, isRisingWedge},
	{model.PatternFallingWedge, isFallingWedge},
	{model.PatternAscendingTriangle, isAscendingTriangle},
	{model.PatternDescendingTriangle, isDescendingTriangle},
	{model.PatternBullFlag, isBullFlag},
	{model.PatternBearFlag, isBearFlag},
	{model.PatternCupHandle, isCupHandle},
}

// Detect runs the catalog over the most recent closes. It returns nil when
// history is shorter than the minimum window or no heuristic fires.
func Detect(closes []float64) *model.PatternMatch {
	if len(closes) < window {
		return nil
	}
	recent := closes[len(closes)-window:]

	var matched model.PatternKind
	found := false
	for _, c := range catalog {
		if c.fire(recent) {
			matched = c.kind
			found = true
		}
	}
	if !found {
		return nil
	}

	lo, hi := minMax(closes[len(closes)-levelWindow:])
	return &model.PatternMatch{
		Kind:          matched,
		Support:       lo,
		Resistance:    hi,
		StructureLow:  lo,
		StructureHigh: hi,
	}
}

// ── pivots ──

// pivots returns the local extrema of values using a 2-candle lookback on
// each side: highs[i] when values[i] strictly exceeds its four neighbors,
// lows symmetrically.
func pivots(values []float64) (highs, lows []float64) {
	const lb = 2
	for i := lb; i < len(values)-lb; i++ {
		isHigh, isLow := true, true
		for j := i - lb; j <= i+lb; j++ {
			if j == i {
				continue
			}
			if values[j] >= values[i] {
				isHigh = false
			}
			if values[j] <= values[i] {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, values[i])
		}
		if isLow {
			lows = append(lows, values[i])
		}
	}
	return highs, lows
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func within(a, b, frac float64) bool {
	ref := a
	if b < ref {
		ref = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= ref*frac
}

// ── double top / bottom ──
// Two pivots roughly equal (within doubleTol) separated by an opposite move
// of at least the same tolerance.

func isDoubleTop(closes []float64) bool {
	highs, _ := pivots(closes)
	if len(highs) < 2 {
		return false
	}
	a, b := highs[len(highs)-2], highs[len(highs)-1]
	if !within(a, b, doubleTol) {
		return false
	}
	lo, _ := minMax(closes)
	peak := a
	if b < peak {
		peak = b
	}
	return lo < peak*(1-doubleTol)
}

func isDoubleBottom(closes []float64) bool {
	_, lows := pivots(closes)
	if len(lows) < 2 {
		return false
	}
	a, b := lows[len(lows)-2], lows[len(lows)-1]
	if !within(a, b, doubleTol) {
		return false
	}
	_, hi := minMax(closes)
	trough := a
	if b > trough {
		trough = b
	}
	return hi > trough*(1+doubleTol)
}

// ── head & shoulders ──
// Three pivots where the middle strictly exceeds (or falls below) both
// outers, and the outers are mutually within shoulderTol.

func isHeadShoulders(closes []float64) bool {
	highs, _ := pivots(closes)
	if len(highs) < 3 {
		return false
	}
	l, h, r := highs[len(highs)-3], highs[len(highs)-2], highs[len(highs)-1]
	return h > l && h > r && within(l, r, shoulderTol)
}

func isInverseHeadShoulders(closes []float64) bool {
	_, lows := pivots(closes)
	if len(lows) < 3 {
		return false
	}
	l, h, r := lows[len(lows)-3], lows[len(lows)-2], lows[len(lows)-1]
	return h < l && h < r && within(l, r, shoulderTol)
}

// ── wedges ──
// A 10-candle window drifting in one direction (first-half mean vs
// second-half mean) while the net range stays under wedgeRange of the
// starting average.

func isRisingWedge(closes []float64) bool {
	w := closes[len(closes)-10:]
	first, second := mean(w[:5]), mean(w[5:])
	lo, hi := minMax(w)
	return second > first && (hi-lo) < first*wedgeRange
}

func isFallingWedge(closes []float64) bool {
	w := closes[len(closes)-10:]
	first, second := mean(w[:5]), mean(w[5:])
	lo, hi := minMax(w)
	return second < first && (hi-lo) < first*wedgeRange
}

// ── triangles ──
// A monotonic support (or resistance) trend across the quarters of a
// 20-candle window while the last close sits within triangleTol of the
// opposing flat boundary.

func quarterExtremes(w []float64, wantMin bool) [4]float64 {
	var out [4]float64
	q := len(w) / 4
	for i := 0; i < 4; i++ {
		lo, hi := minMax(w[i*q : (i+1)*q])
		if wantMin {
			out[i] = lo
		} else {
			out[i] = hi
		}
	}
	return out
}

func isAscendingTriangle(closes []float64) bool {
	w := closes[len(closes)-levelWindow:]
	mins := quarterExtremes(w, true)
	if !(mins[0] < mins[1] && mins[1] < mins[2] && mins[2] < mins[3]) {
		return false
	}
	_, hi := minMax(w)
	last := w[len(w)-1]
	return last >= hi*(1-triangleTol)
}

func isDescendingTriangle(closes []float64) bool {
	w := closes[len(closes)-levelWindow:]
	maxs := quarterExtremes(w, false)
	if !(maxs[0] > maxs[1] && maxs[1] > maxs[2] && maxs[2] > maxs[3]) {
		return false
	}
	lo, _ := minMax(w)
	last := w[len(w)-1]
	return last <= lo*(1+triangleTol)
}

// ── flags ──
// A sharp directional move over the first third of a 30-candle window (the
// pole) followed by a low-range consolidation over the remainder.

func isBullFlag(closes []float64) bool {
	w := closes[len(closes)-30:]
	pole := (w[9] - w[0]) / w[0]
	if pole < poleMove {
		return false
	}
	lo, hi := minMax(w[10:])
	return (hi - lo) < w[9]*flagRange
}

func isBearFlag(closes []float64) bool {
	w := closes[len(closes)-30:]
	pole := (w[9] - w[0]) / w[0]
	if pole > -poleMove {
		return false
	}
	lo, hi := minMax(w[10:])
	return (hi - lo) < w[9]*flagRange
}

// ── cup & handle ──
// A 50-candle window whose midpoint sits at least cupDepth below both rims
// while the rims stay within cupSymmetry of each other.

func isCupHandle(closes []float64) bool {
	w := closes[len(closes)-window:]
	first, mid, last := w[0], w[len(w)/2], w[len(w)-1]
	if mid > first*(1-cupDepth) || mid > last*(1-cupDepth) {
		return false
	}
	return within(first, last, cupSymmetry)
}
