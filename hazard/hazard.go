// Package hazard implements the survival-analysis primitives the
// classifier's feature pipeline is built on: a Nelson-Aalen cumulative
// hazard estimator, Epanechnikov-kernel smoothing of that estimator, and
// Scott's rule for picking a kernel bandwidth from a sample.
//
// None of this package knows about requests, objects, or caches — it
// operates on plain slices of durations, the same shape as HR-Cache's
// nelson_aalen_fitter/calculate_hazard in utils.cpp.
package hazard

import (
	"math"
	"sort"
)

// hazardConst is 3/4, the Epanechnikov kernel's normalizing constant.
const hazardConst = 3.0 / 4

// Curve is a fitted cumulative hazard step function: Durations[i] paired
// with the cumulative hazard increment at that duration. Durations is
// sorted ascending and always starts with the (0, 0) sentinel.
type Curve struct {
	Durations []float64
	Increments []float64
}

// NelsonAalen fits a cumulative hazard curve to a set of inter-arrival
// durations, where the last element of durations is treated as censored
// (it ends at the window boundary rather than at a recurrence).
//
// In discrete mode the increment at a duration is events/riskSet. In
// continuous mode, when more than one event ties at the same duration,
// the increment is the sum of 1/(riskSet-k) for k in [0, events).
//
// durations is modified in place (sorted); pass a copy if the caller
// still needs the original order.
func NelsonAalen(durations []float64, discrete bool) Curve {
	n := len(durations)
	if n == 0 {
		return Curve{Durations: []float64{0}, Increments: []float64{0}}
	}

	lastDuration := durations[n-1]
	sort.Float64s(durations)

	riskSet := float64(n)
	outDurations := make([]float64, 0, n+1)
	outIncrements := make([]float64, 0, n+1)
	outDurations = append(outDurations, 0)
	outIncrements = append(outIncrements, 0)

	i := 0
	for i < n {
		current := durations[i]
		events := 0
		censored := 0
		for i < n && durations[i] == current {
			events++
			i++
		}
		// The censored observation is the one at the value of the input's
		// last element; it does not count as an event even if it ties with
		// real events.
		if current == lastDuration {
			events--
			censored++
		}

		increment := float64(events) / riskSet
		if !discrete && events > 1 {
			increment = 0
			for k := range events {
				increment += 1 / (riskSet - float64(k))
			}
		}

		riskSet -= float64(events + censored)
		outDurations = append(outDurations, current)
		outIncrements = append(outIncrements, increment)
	}

	return Curve{Durations: outDurations, Increments: outIncrements}
}

// Smoothed evaluates the Epanechnikov-kernel-smoothed hazard at x, using
// the fitted curve's increments as point masses and bandwidth b.
//
// Only durations within [x-b, x+b] contribute, found by binary search so
// the call costs O(log n + k) rather than a full scan.
func (c Curve) Smoothed(x, bandwidth float64) float64 {
	if bandwidth <= 0 {
		return 0
	}

	lower := x - bandwidth
	upper := x + bandwidth + math.SmallestNonzeroFloat64

	first := sort.SearchFloat64s(c.Durations, lower)
	if first == len(c.Durations) || c.Durations[first] > upper {
		return 0
	}
	last := sort.Search(len(c.Durations)-first, func(i int) bool {
		return c.Durations[first+i] > upper
	}) + first

	constant := hazardConst / bandwidth
	var result float64
	for i := first; i < last; i++ {
		u := (x - c.Durations[i]) / bandwidth
		result += constant * (1 - u*u) * c.Increments[i]
	}
	return result
}

// ScottBandwidth returns Scott's rule-of-thumb bandwidth for a sample of
// durations: 3.49 * stddev(durations) * n^(-1/3).
func ScottBandwidth(durations []float64) float64 {
	n := len(durations)
	if n == 0 {
		return 0
	}

	var sum float64
	for _, d := range durations {
		sum += d
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, d := range durations {
		diff := d - mean
		sqDiff += diff * diff
	}
	stddev := math.Sqrt(sqDiff / float64(n))

	return 3.49 * stddev / math.Cbrt(float64(n))
}

// Diffs returns the successive differences of a sorted-by-arrival
// timestamp sequence: Diffs([]float64{t0,t1,t2}) = [t1-t0, t2-t1].
// A single-element input returns the input unchanged, matching the
// original's degenerate single-timestamp case (no intervals to compute,
// so the lone timestamp stands in as an "infinite" interval placeholder).
func Diffs(timestamps []float64) []float64 {
	if len(timestamps) <= 1 {
		return append([]float64(nil), timestamps...)
	}
	out := make([]float64, len(timestamps)-1)
	for i := range out {
		out[i] = timestamps[i+1] - timestamps[i]
	}
	return out
}
