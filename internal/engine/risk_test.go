package engine

import (
	"math"
	"testing"

	"candlesignal/internal/model"
)

func TestFuseLevels_BuyTakesConservativeStopAmbitiousTarget(t *testing.T) {
	ind := riskLevels{stop: 99, target: 105}
	pat := riskLevels{stop: 98, target: 107}

	fused := fuseLevels(model.DecisionBuy, ind, pat)
	if fused.stop != 98 {
		t.Errorf("fused stop=%v, want 98 (min for a long)", fused.stop)
	}
	if fused.target != 107 {
		t.Errorf("fused target=%v, want 107 (max for a long)", fused.target)
	}
}

func TestFuseLevels_SellMirrorsBuy(t *testing.T) {
	ind := riskLevels{stop: 101, target: 95}
	pat := riskLevels{stop: 102, target: 93}

	fused := fuseLevels(model.DecisionSell, ind, pat)
	if fused.stop != 102 {
		t.Errorf("fused stop=%v, want 102 (max for a short)", fused.stop)
	}
	if fused.target != 93 {
		t.Errorf("fused target=%v, want 93 (min for a short)", fused.target)
	}
}

func TestFuseLevels_SingleSourcePassesThrough(t *testing.T) {
	ind := riskLevels{stop: 99, target: 105}
	if got := fuseLevels(model.DecisionBuy, ind, riskLevels{}); got != ind {
		t.Errorf("got %+v, want indicator levels unchanged", got)
	}
	pat := riskLevels{stop: 98, target: 107}
	if got := fuseLevels(model.DecisionBuy, riskLevels{}, pat); got != pat {
		t.Errorf("got %+v, want pattern levels unchanged", got)
	}
}

func TestIndicatorLevels_DirectionAware(t *testing.T) {
	buy := indicatorLevels(model.DecisionBuy, 100, 0.005, 0.015)
	if math.Abs(buy.stop-99.5) > 1e-9 || math.Abs(buy.target-101.5) > 1e-9 {
		t.Errorf("buy levels %+v, want stop 99.5 target 101.5", buy)
	}

	sell := indicatorLevels(model.DecisionSell, 100, 0.005, 0.015)
	if math.Abs(sell.stop-100.5) > 1e-9 || math.Abs(sell.target-98.5) > 1e-9 {
		t.Errorf("sell levels %+v, want stop 100.5 target 98.5", sell)
	}

	if hold := indicatorLevels(model.DecisionHold, 100, 0.005, 0.015); hold != (riskLevels{}) {
		t.Errorf("hold produced levels %+v", hold)
	}
}

func TestPatternLevels_MappingTable(t *testing.T) {
	m := func(kind model.PatternKind) *model.PatternMatch {
		return &model.PatternMatch{
			Kind:          kind,
			Support:       95,
			Resistance:    105,
			StructureLow:  95,
			StructureHigh: 105,
		}
	}
	price := 100.0
	height := 10.0

	cases := []struct {
		kind         model.PatternKind
		stop, target float64
	}{
		{model.PatternDoubleTop, 105, price - height},
		{model.PatternHeadShoulders, 105, price - height},
		{model.PatternDoubleBottom, 95, price + height},
		{model.PatternInvHeadShoulders, 95, price + height},
		{model.PatternAscendingTriangle, 95, price + 10},
		{model.PatternDescendingTriangle, 105, price - 10},
		{model.PatternCupHandle, 95, price + height},
		{model.PatternBullFlag, price * 0.99, price * 1.02},
		{model.PatternBearFlag, price * 1.01, price * 0.98},
		{model.PatternRisingWedge, price * 0.997, price * 0.985},
		{model.PatternFallingWedge, price * 1.003, price * 1.015},
	}

	for _, tc := range cases {
		got := patternLevels(m(tc.kind), price)
		if math.Abs(got.stop-tc.stop) > 1e-9 {
			t.Errorf("%s: stop=%v, want %v", tc.kind, got.stop, tc.stop)
		}
		if math.Abs(got.target-tc.target) > 1e-9 {
			t.Errorf("%s: target=%v, want %v", tc.kind, got.target, tc.target)
		}
	}
}

func TestPatternLevels_NilMatch(t *testing.T) {
	if got := patternLevels(nil, 100); got != (riskLevels{}) {
		t.Errorf("nil match produced levels %+v", got)
	}
}
