package indicator

import (
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func constant(c float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = c
	}
	return out
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_SeedIsMeanOfFirstLength(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// EMA(3) seed at index 2: (100+102+104)/3 = 102.0
	// k = 2/(3+1) = 0.5
	// index 3: 103*0.5 + 102.0*0.5 = 102.5
	// index 4: 105*0.5 + 102.5*0.5 = 103.75
	values := []float64{100, 102, 104, 103, 105}
	ema := EMA(values, 3)

	if Defined(ema, 0) || Defined(ema, 1) {
		t.Fatalf("EMA(3) defined before index 2: %v", ema)
	}
	assertClose(t, "EMA(3) seed", ema[2], 102.0, 1e-9)
	assertClose(t, "EMA(3) index 3", ema[3], 102.5, 1e-9)
	assertClose(t, "EMA(3) index 4", ema[4], 103.75, 1e-9)
}

func TestEMA_ConstantInputIsConstant(t *testing.T) {
	ema := EMA(constant(42.5, 30), 5)
	for i := 4; i < 30; i++ {
		assertClose(t, "EMA(5) constant input", ema[i], 42.5, 1e-9)
	}
}

func TestEMA_ShortInputAllUndefined(t *testing.T) {
	ema := EMA([]float64{1, 2, 3}, 10)
	if len(ema) != 3 {
		t.Fatalf("len=%d, want 3", len(ema))
	}
	for i := range ema {
		if Defined(ema, i) {
			t.Errorf("index %d defined on short input", i)
		}
	}
}

func TestEMA_EmptyInput(t *testing.T) {
	if got := EMA(nil, 5); len(got) != 0 {
		t.Errorf("EMA(nil)=%v, want empty", got)
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Prices: 44.00, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10
	// First 5 deltas: +0.34, -0.25, -0.48, +0.72, +0.50
	//   avgGain = (0.34+0.72+0.50)/5 = 0.312
	//   avgLoss = (0.25+0.48)/5      = 0.146
	//   RSI at index 5 = 100 - 100/(1+0.312/0.146) = 68.122
	// Index 6 (+0.27):
	//   avgGain = (0.312*4+0.27)/5 = 0.3036
	//   avgLoss = (0.146*4+0)/5    = 0.1168
	//   RSI = 100 - 100/(1+2.5993) = 72.217
	values := []float64{44.00, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10}
	rsi := RSI(values, 5)

	for i := 0; i <= 4; i++ {
		if Defined(rsi, i) {
			t.Fatalf("RSI defined at index %d, want undefined through period-1", i)
		}
	}
	assertClose(t, "RSI(5) index 5", rsi[5], 68.122, 0.05)
	assertClose(t, "RSI(5) index 6", rsi[6], 72.217, 0.05)
}

func TestRSI_StrictlyIncreasingSaturatesNear100(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	rsi := RSI(values, 14)
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		t.Fatalf("RSI produced %v on one-sided input", last)
	}
	if last < 99.9 {
		t.Errorf("RSI of strictly increasing series = %.4f, want ≥ 99.9", last)
	}
	if last > 100 {
		t.Errorf("RSI exceeded 100: %.6f", last)
	}
}

func TestRSI_StrictlyDecreasingConvergesTo0(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 200 - float64(i)
	}
	rsi := RSI(values, 14)
	last := rsi[len(rsi)-1]
	if last > 0.1 {
		t.Errorf("RSI of strictly decreasing series = %.4f, want ≤ 0.1", last)
	}
}

func TestRSI_ShortInputAllUndefined(t *testing.T) {
	rsi := RSI(constant(100, 14), 14) // exactly period values: still one short
	for i := range rsi {
		if Defined(rsi, i) {
			t.Errorf("index %d defined with input length == period", i)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Cross Detection
// ────────────────────────────────────────────────────────────

func TestCross_UpAndDownMutuallyExclusive(t *testing.T) {
	short := []float64{1, 2, 3, 2, 1, 2, 2}
	long := []float64{2, 2, 2, 2, 2, 2, 2}
	for i := 1; i < len(short); i++ {
		if CrossedUp(short, long, i) && CrossedDown(short, long, i) {
			t.Errorf("index %d: both CrossedUp and CrossedDown", i)
		}
	}
}

func TestCross_DetectsUpCross(t *testing.T) {
	short := []float64{1.0, 1.5, 2.5}
	long := []float64{2.0, 2.0, 2.0}
	if !CrossedUp(short, long, 2) {
		t.Error("expected up-cross at index 2")
	}
	if CrossedUp(short, long, 1) {
		t.Error("unexpected up-cross at index 1")
	}
}

func TestCross_UndefinedValuesNeverCross(t *testing.T) {
	short := []float64{Undefined, 1.5, 2.5}
	long := []float64{2.0, Undefined, 2.0}
	for i := 0; i < 3; i++ {
		if CrossedUp(short, long, i) || CrossedDown(short, long, i) {
			t.Errorf("cross reported at index %d with undefined inputs", i)
		}
	}
}

func TestDetectAt_LastIndexReportedUnconfirmed(t *testing.T) {
	short := []float64{1.0, 1.5, 2.5}
	long := []float64{2.0, 2.0, 2.0}
	c := DetectAt(short, long, 2)
	if c.Direction != CrossUp {
		t.Fatalf("direction=%v, want CrossUp", c.Direction)
	}
	if c.Confirmed {
		t.Error("cross on the newest index must be unconfirmed")
	}
}

func TestDetectAt_ConfirmedWhenOrderingHolds(t *testing.T) {
	short := []float64{1.0, 1.5, 2.5, 2.6}
	long := []float64{2.0, 2.0, 2.0, 2.0}
	c := DetectAt(short, long, 2)
	if c.Direction != CrossUp || !c.Confirmed {
		t.Errorf("got %+v, want confirmed up-cross", c)
	}
}

func TestDetectAt_ContradictedCrossSuppressed(t *testing.T) {
	// Cross fires at index 2, but the next candle falls back below: the
	// re-evaluation at the now-prior index must report no cross at all.
	short := []float64{1.0, 1.5, 2.5, 1.8}
	long := []float64{2.0, 2.0, 2.0, 2.0}
	c := DetectAt(short, long, 2)
	if c.Direction != CrossNone {
		t.Errorf("got %+v, want no cross after contradicting candle", c)
	}
}
