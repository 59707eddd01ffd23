package window

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

const processCountPerWorker = 10_000_000

// maxSampleRate is the hard ceiling on how much of a window can be
// sampled, regardless of what the caller's limit allows.
const maxSampleRate = 1.0

// Seed derives a reproducible per-window shuffle seed from the window's
// first request, the way §9 requires: every random choice in a window
// (the object-sample shuffle here, the ring pre-shuffle in the
// classifier) must trace back to one seed recorded for that window.
func Seed(firstOID int, firstTimestamp float64) uint64 {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(firstOID >> (8 * i))
	}
	bits := int64(firstTimestamp)
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(bits >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

// Sample picks a subset of this window's objects to run through labeling,
// bounded by maxRequests and by hardwareConcurrency's process-count cap,
// then walks the global arrival list to materialize SampledRequests in
// arrival order. It is idempotent only in the sense that calling it twice
// re-samples from scratch; callers normally call it once per window.
func (w *Window) Sample(maxRequests, hardwareConcurrency int, seed uint64) {
	maxRequestsNum := min(maxRequests, int(maxSampleRate*float64(w.requestsCount)))
	processLimit := int64(processCountPerWorker) * int64(max(hardwareConcurrency, 1))

	ids := make([]int, len(w.objects))
	for oid, obj := range w.objects {
		ids[obj.Idx] = oid
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	var totalSize, acceptedSize float64
	sampledCount := 0
	accepted := make(map[int]bool, len(ids))
	acceptedObjects := 0
	w.sampledObjects = w.sampledObjects[:0]

	for _, oid := range ids {
		obj := w.objects[oid]
		totalSize += float64(obj.Size)

		potential := sampledCount + obj.RequestsCount
		if potential > maxRequestsNum {
			continue
		}
		if int64(potential)*int64(acceptedObjects+1) > processLimit {
			continue
		}

		accepted[oid] = true
		acceptedObjects++
		acceptedSize += float64(obj.Size)
		sampledCount += obj.RequestsCount
		w.sampledObjects = append(w.sampledObjects, obj)
	}

	if totalSize == 0 {
		w.sampleRate = 0
	} else {
		w.sampleRate = acceptedSize / totalSize
	}

	w.sampledRequests = make([]*Request, 0, sampledCount)
	if w.globalHead == nil {
		return
	}
	req := w.globalHead
	for i := 0; i < w.requestsCount; i++ {
		if accepted[req.Object.ID] {
			w.sampledRequests = append(w.sampledRequests, req)
		}
		req = req.globalNext
	}
}
