// Package metadata implements the process-wide object metadata store (C2):
// a mapping from object id to a decayed reference-frequency counter and the
// last feature vector emitted for that object, both of which outlive any
// single request window so a new window can seed its feature history from
// the previous one.
package metadata

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// sentinel fills a freshly created feature vector before any real feature
// has been written into it, the same role INF plays in the original store.
const sentinel = 1e18

// entry is the per-object state the store carries across windows.
type entry struct {
	frequency    float64
	lastFeatures []float64
}

// Store is the C2 object metadata store. It is touched only by the
// coordinator's main thread (see SPEC_FULL.md's concurrency notes), but
// uses xsync.Map for its entry table so a future concurrent reader (for
// example an inspection endpoint) can be added without a lock audit.
type Store struct {
	alpha   float64
	objects *xsync.Map[int, *entry]
	decay   float64 // D: global decayed arrival count
}

// New returns a metadata store with decay factor alpha. alpha=0 disables
// decay entirely (every arrival counts as a flat +1).
func New(alpha float64) *Store {
	return &Store{
		alpha:   alpha,
		objects: xsync.NewMap[int, *entry](),
	}
}

// Seen records an arrival for oid at time t, updating both the object's
// decayed frequency and the store-wide decayed arrival count. It creates
// the object's entry (with a sentinel-filled feature vector of length
// featuresLength) on first call. t is accepted for interface symmetry with
// the request pipeline but does not otherwise enter the decay arithmetic.
func (s *Store) Seen(oid int, t float64, featuresLength int) {
	_ = t
	factor := s.alpha
	if factor == 0 {
		factor = 1 // alpha=0: no decay, counts accumulate
	}
	s.decay = s.decay*factor + 1

	e, ok := s.objects.Load(oid)
	if !ok {
		e = &entry{lastFeatures: newSentinelVector(featuresLength)}
		s.objects.Store(oid, e)
	}
	e.frequency = e.frequency*factor + 1
}

// DecayedFrequency returns f/D for oid, or 0 if D is zero or oid has never
// been seen.
func (s *Store) DecayedFrequency(oid int) float64 {
	if s.decay == 0 {
		return 0
	}
	e, ok := s.objects.Load(oid)
	if !ok {
		return 0
	}
	return e.frequency / s.decay
}

// Features returns the cached last feature vector for oid, creating it
// (sentinel-filled, length featuresLength) if oid has never been seen.
// The returned slice is owned by the store; callers must copy it before
// mutating it further (window.Add does this when seeding a new object's
// feature history).
func (s *Store) Features(oid int, featuresLength int) []float64 {
	e, ok := s.objects.Load(oid)
	if !ok {
		e = &entry{lastFeatures: newSentinelVector(featuresLength)}
		s.objects.Store(oid, e)
	}
	return e.lastFeatures
}

// UpdateFeatures overwrites oid's cached feature vector with v, copying v
// so the caller's slice can be reused or mutated afterward.
func (s *Store) UpdateFeatures(oid int, v []float64) {
	e, ok := s.objects.Load(oid)
	if !ok {
		e = &entry{lastFeatures: make([]float64, len(v))}
		s.objects.Store(oid, e)
	}
	if len(e.lastFeatures) != len(v) {
		e.lastFeatures = make([]float64, len(v))
	}
	copy(e.lastFeatures, v)
}

func newSentinelVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = sentinel
	}
	return v
}
