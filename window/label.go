package window

import (
	"math/rand"
	"sync"

	"github.com/codeGROOVE-dev/hrcache/hazard"
)

// Label runs the hazard-based labeling pass over the window's sampled
// requests (populated by a prior call to Sample): it fits a per-object
// Nelson-Aalen curve over each sampled object's own inter-arrival
// history, then walks the sampled requests in arrival order assigning a
// binary admission label to each based on how its own re-reference
// hazard compares to every other sampled object's.
//
// workers bounds the fork-join parallelism used for both the per-object
// curve fitting and the per-request labeling pass; a value <= 1 runs
// each pass as a single chunk on one worker goroutine while the caller
// waits.
func (w *Window) Label(discrete, futureLabeling bool, workers int, rng *rand.Rand) {
	if workers < 1 {
		workers = 1
	}
	if len(w.sampledObjects) == 0 {
		return
	}

	// The right-censoring boundary for every object's own history is the
	// timestamp of the very last request admitted to the whole window,
	// not just the last request of that object.
	lastWindowTimestamp := w.globalHead.globalPrev.Timestamp

	prepareObjectCurves(w.sampledObjects, lastWindowTimestamp, discrete, workers)
	w.labelSampledRequests(rng, workers)

	if futureLabeling {
		applyFutureLabeling(w.sampledObjects)
	}
}

// prepareObjectCurves fits each object's Nelson-Aalen curve and Scott
// bandwidth from its own arrival timestamps plus the shared censoring
// boundary, splitting the object list into up to `workers` chunks.
func prepareObjectCurves(objects []*Object, lastWindowTimestamp float64, discrete bool, workers int) {
	forEachChunk(len(objects), workers, func(lo, hi int) {
		for _, obj := range objects[lo:hi] {
			timestamps := make([]float64, 0, obj.RequestsCount+1)
			req := obj.Head
			for i := 0; i < obj.RequestsCount; i++ {
				timestamps = append(timestamps, req.Timestamp)
				req = req.objNext
			}
			timestamps = append(timestamps, lastWindowTimestamp)

			obj.Timestamps = timestamps
			obj.TimestampDiffs = hazard.Diffs(timestamps)
			obj.HazardCurve = hazard.NelsonAalen(append([]float64(nil), obj.TimestampDiffs...), discrete)
			obj.HazardBandwidth = hazard.ScottBandwidth(obj.HazardCurve.Durations)
		}
	})
}

// labelSampledRequests walks w.sampledRequests in chunks, each chunk
// seeded by a sequential pre-pass over every request preceding it so
// that the per-object "last seen" state is reconstructed before the
// chunk's own labeling begins (matching the fork-join design in §4.3/§5:
// labeling is deterministic given the sample set even though it runs in
// parallel).
func (w *Window) labelSampledRequests(rng *rand.Rand, workers int) {
	requests := w.sampledRequests
	cacheBudget := float64(int64(float64(w.cfg.CacheSize) * w.sampleRate))

	var mu sync.Mutex // guards rng, the only genuinely shared state
	coin := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}

	forEachChunk(len(requests), workers, func(lo, hi int) {
		lastSeen := make([]float64, w.nextIdx)
		seen := make([]bool, w.nextIdx)

		for i := 0; i < lo; i++ {
			r := requests[i]
			lastSeen[r.Object.Idx] = r.Timestamp
			seen[r.Object.Idx] = true
		}

		for i := lo; i < hi; i++ {
			r := requests[i]
			labelRequest(r, w.sampledObjects, lastSeen, seen, cacheBudget, coin)
			lastSeen[r.Object.Idx] = r.Timestamp
			seen[r.Object.Idx] = true
		}
	})
}

// labelRequest assigns r.Label per §4.3: objects that have not yet
// appeared in the window (relative to r) contribute nothing to the
// competing-size sum, and an object's own first intra-window arrival is
// labeled 0 unconditionally.
func labelRequest(r *Request, objects []*Object, lastSeen []float64, seen []bool, cacheBudget float64, coin func() float64) {
	idx := r.Object.Idx
	if !seen[idx] {
		r.Label = 0
		return
	}

	selfHazard := r.Object.HazardCurve.Smoothed(r.Timestamp-lastSeen[idx], r.Object.HazardBandwidth)

	var competingSize float64
	for _, obj := range objects {
		if obj.ID == r.Object.ID {
			continue
		}
		if !seen[obj.Idx] {
			continue
		}
		h := obj.HazardCurve.Smoothed(r.Timestamp-lastSeen[obj.Idx], obj.HazardBandwidth)
		if h >= selfHazard {
			competingSize += float64(obj.Size)
		}
	}

	switch {
	case competingSize+float64(r.Size) <= cacheBudget:
		r.Label = 1
	case competingSize < cacheBudget:
		remainingFraction := (cacheBudget - competingSize) / float64(r.Size)
		if coin() < remainingFraction {
			r.Label = 1
		} else {
			r.Label = 0
		}
	default:
		r.Label = 0
	}
}

// applyFutureLabeling shifts every sampled object's per-request labels
// one step backward so each request carries the label of its next
// arrival, wrapping the last request onto the first (intended
// asymmetry, per §4.3).
func applyFutureLabeling(objects []*Object) {
	for _, obj := range objects {
		if obj.Head == nil {
			continue
		}
		req := obj.Head
		for {
			req.Label = req.objNext.Label
			req = req.objNext
			if req == obj.Head {
				break
			}
		}
	}
}

// forEachChunk splits [0, n) into up to `workers` contiguous chunks and
// runs fn on each concurrently, waiting for all to finish.
func forEachChunk(n, workers int, fn func(lo, hi int)) {
	if n == 0 {
		return
	}
	if workers > n {
		workers = n
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunkSize {
		hi := min(lo+chunkSize, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
