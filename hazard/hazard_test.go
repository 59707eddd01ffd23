package hazard

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNelsonAalenDiscreteTies(t *testing.T) {
	// d=[1,1,2,3], last value (3) is censored. Risk set starts at 4 and
	// decreases by the full tie count at each distinct duration: 4 -> 2 -> 1.
	d := []float64{1, 1, 2, 3}
	curve := NelsonAalen(d, true)

	wantDurations := []float64{0, 1, 2, 3}
	wantIncrements := []float64{0, 0.5, 0.5, 0}

	if len(curve.Durations) != len(wantDurations) {
		t.Fatalf("got %d durations, want %d", len(curve.Durations), len(wantDurations))
	}
	for i := range wantDurations {
		if curve.Durations[i] != wantDurations[i] {
			t.Errorf("duration[%d] = %v, want %v", i, curve.Durations[i], wantDurations[i])
		}
		if !approxEqual(curve.Increments[i], wantIncrements[i]) {
			t.Errorf("increment[%d] = %v, want %v", i, curve.Increments[i], wantIncrements[i])
		}
	}
}

func TestNelsonAalenContinuousTies(t *testing.T) {
	// Same input in continuous mode: the tie at duration 1 splits into
	// 1/4 + 1/3 instead of the discrete 2/4.
	d := []float64{1, 1, 2, 3}
	curve := NelsonAalen(d, false)

	want := 1.0/4 + 1.0/3
	if !approxEqual(curve.Increments[1], want) {
		t.Errorf("continuous tie increment = %v, want %v", curve.Increments[1], want)
	}
}

func TestNelsonAalenNoEvents(t *testing.T) {
	curve := NelsonAalen(nil, true)
	if len(curve.Durations) != 1 || curve.Durations[0] != 0 {
		t.Fatalf("empty input should yield the zero sentinel curve, got %+v", curve)
	}
}

func TestNelsonAalenSingleCensored(t *testing.T) {
	// A single observation is entirely censored: no risk-set decrement
	// survives it, and the curve carries no real hazard mass.
	curve := NelsonAalen([]float64{5}, true)
	if curve.Increments[len(curve.Increments)-1] != 0 {
		t.Errorf("sole censored observation should contribute zero hazard, got %v", curve.Increments)
	}
}

func TestSmoothedZeroOutsideWindow(t *testing.T) {
	curve := NelsonAalen([]float64{1, 2, 3, 10}, true)

	if got := curve.Smoothed(100, 1); got != 0 {
		t.Errorf("Smoothed(100, 1) = %v, want 0 (no mass within [99,101])", got)
	}
	if got := curve.Smoothed(-100, 1); got != 0 {
		t.Errorf("Smoothed(-100, 1) = %v, want 0", got)
	}
}

func TestSmoothedIncludesBoundary(t *testing.T) {
	// A point mass exactly at x+bandwidth lies inside the inclusive search
	// window (the original's upper_bound(..., x+bandwidth+epsilon) edge),
	// but the Epanechnikov weight there is 1-(±1)² = 0, so it adds exactly
	// nothing: the result is 0, not a negative or NaN value.
	curve := Curve{Durations: []float64{0, 2}, Increments: []float64{0, 1}}
	got := curve.Smoothed(0, 2)
	if got != 0 {
		t.Errorf("Smoothed with the only mass at the boundary = %v, want exactly 0", got)
	}
}

func TestSmoothedZeroBandwidth(t *testing.T) {
	curve := NelsonAalen([]float64{1, 2, 3}, true)
	if got := curve.Smoothed(2, 0); got != 0 {
		t.Errorf("Smoothed with zero bandwidth = %v, want 0", got)
	}
}

func TestScottBandwidth(t *testing.T) {
	// Constant input has zero variance, so the bandwidth collapses to 0
	// regardless of sample size.
	if got := ScottBandwidth([]float64{5, 5, 5, 5}); got != 0 {
		t.Errorf("ScottBandwidth of a constant sample = %v, want 0", got)
	}

	if got := ScottBandwidth(nil); got != 0 {
		t.Errorf("ScottBandwidth of empty sample = %v, want 0", got)
	}

	// n^(-1/3) must shrink the bandwidth as the sample grows, for a fixed
	// spread, so larger samples smooth less aggressively per-point.
	small := ScottBandwidth([]float64{1, 2, 3})
	large := ScottBandwidth([]float64{1, 2, 3, 1, 2, 3, 1, 2, 3, 1, 2, 3})
	if large >= small {
		t.Errorf("bandwidth should shrink as n grows: n=3 -> %v, n=12 -> %v", small, large)
	}
}

func TestDiffs(t *testing.T) {
	got := Diffs([]float64{1, 3, 6, 10})
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("Diffs[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDiffsSingleton(t *testing.T) {
	got := Diffs([]float64{42})
	if len(got) != 1 || got[0] != 42 {
		t.Errorf("Diffs of a single timestamp should pass it through unchanged, got %v", got)
	}
}
