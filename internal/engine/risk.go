package engine

import "candlesignal/internal/model"

// riskLevels is one stop-loss/take-profit pair. Zero values mean "no level
// from this source".
type riskLevels struct {
	stop   float64
	target float64
}

// indicatorLevels derives stop/target as fixed fractional offsets from the
// entry price, direction-aware.
func indicatorLevels(decision model.Decision, price, stopPct, targetPct float64) riskLevels {
	switch decision {
	case model.DecisionBuy:
		return riskLevels{stop: price * (1 - stopPct), target: price * (1 + targetPct)}
	case model.DecisionSell:
		return riskLevels{stop: price * (1 + stopPct), target: price * (1 - targetPct)}
	default:
		return riskLevels{}
	}
}

// patternLevels maps a pattern's structural levels to stop/target around the
// current price. The measured-move patterns project the structure height
// from the entry; flags and wedges use fixed price multiples.
func patternLevels(m *model.PatternMatch, price float64) riskLevels {
	if m == nil {
		return riskLevels{}
	}
	height := m.StructureHigh - m.StructureLow
	span := m.Resistance - m.Support

	switch m.Kind {
	case model.PatternDoubleTop, model.PatternHeadShoulders:
		return riskLevels{stop: m.StructureHigh, target: price - height}
	case model.PatternDoubleBottom, model.PatternInvHeadShoulders:
		return riskLevels{stop: m.StructureLow, target: price + height}
	case model.PatternAscendingTriangle:
		return riskLevels{stop: m.Support, target: price + span}
	case model.PatternDescendingTriangle:
		return riskLevels{stop: m.Resistance, target: price - span}
	case model.PatternCupHandle:
		return riskLevels{stop: m.StructureLow, target: price + height}
	case model.PatternBullFlag:
		return riskLevels{stop: price * 0.99, target: price * 1.02}
	case model.PatternBearFlag:
		return riskLevels{stop: price * 1.01, target: price * 0.98}
	case model.PatternRisingWedge:
		return riskLevels{stop: price * 0.997, target: price * 0.985}
	case model.PatternFallingWedge:
		return riskLevels{stop: price * 1.003, target: price * 1.015}
	default:
		return riskLevels{}
	}
}

// fuseLevels reconciles indicator-based and pattern-based levels: the more
// conservative stop (closer to price in the protective direction) and the
// more ambitious target. With a single source, its levels pass through.
func fuseLevels(decision model.Decision, ind, pat riskLevels) riskLevels {
	if pat == (riskLevels{}) {
		return ind
	}
	if ind == (riskLevels{}) {
		return pat
	}
	out := ind
	switch decision {
	case model.DecisionBuy:
		if pat.stop < out.stop {
			out.stop = pat.stop
		}
		if pat.target > out.target {
			out.target = pat.target
		}
	case model.DecisionSell:
		if pat.stop > out.stop {
			out.stop = pat.stop
		}
		if pat.target < out.target {
			out.target = pat.target
		}
	}
	return out
}
