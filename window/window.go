// Package window implements the request window (C3): the intrusive
// per-object and global arrival lists, feature-vector construction,
// readiness detection, and (in sample.go / label.go) the sampling and
// hazard-based labeling passes that turn a completed window into training
// data for the classifier.
//
// The window also owns the Request and Object types, matching the data
// model's stated ownership rule ("the window owns all requests"): every
// other package that needs to talk about a request or an object imports
// them from here rather than from a shared root package.
package window

import (
	"fmt"

	"github.com/codeGROOVE-dev/hrcache/hazard"
)

const (
	minWindowSize = 10_000
	maxWindowSize = 10_000_000
)

// Request is one trace event inside a window: an object seen at a given
// timestamp with a given size, plus the classifier's verdict on it once
// predicted and the feature vector it carried at arrival time.
//
// Each request belongs to two cyclic doubly-linked lists: the per-object
// list (objPrev/objNext, same oid, arrival order) and the global window
// list (globalPrev/globalNext, all oids, arrival order). Both lists are
// append-at-tail via insert-before-head, so Head always points at the
// oldest live member.
type Request struct {
	Object           *Object
	Timestamp        float64
	Size             int
	AdmitProbability float64
	Label            int
	Features         []float64

	objPrev, objNext       *Request
	globalPrev, globalNext *Request
}

// ObjectID is a convenience accessor; the spec's Request.object_id field
// is reached here via the owning Object.
func (r *Request) ObjectID() int { return r.Object.ID }

// Object is the per-window state for one object id: its first-seen size
// (authoritative for the life of the window), the head of its per-object
// request list, and the dense index assigned on first sight. Timestamps,
// TimestampDiffs, HazardCurve and HazardBandwidth are transient buffers
// populated only during labeling (see label.go) and are otherwise zero.
type Object struct {
	ID            int
	Size          int
	RequestsCount int
	Head          *Request
	Idx           int

	Timestamps      []float64
	TimestampDiffs  []float64
	HazardCurve     hazard.Curve
	HazardBandwidth float64
}

// metadataStore is the subset of *metadata.Store the window needs. Kept
// as a local interface (rather than importing the concrete type) so the
// window package has no dependency on metadata's internals beyond this
// contract.
type metadataStore interface {
	Seen(oid int, t float64, featuresLength int)
	DecayedFrequency(oid int) float64
	Features(oid int, featuresLength int) []float64
	UpdateFeatures(oid int, v []float64)
}

// FeatureConfig selects which instantaneous custom features are appended
// to the end of every feature vector, in fixed priority order (highest
// priority first): Size, Frequency, DecayedFrequency.
type FeatureConfig struct {
	Size             bool
	Frequency        bool
	DecayedFrequency bool
	DecayAlpha       float64
}

// count returns Fc, the number of enabled custom features.
func (c FeatureConfig) count() int {
	n := 0
	if c.Size {
		n++
	}
	if c.Frequency {
		n++
	}
	if c.DecayedFrequency {
		n++
	}
	return n
}

// Config bundles a window's fixed parameters: set once at construction
// and unchanged for the window's lifetime.
type Config struct {
	// Size is the configured fixed window length. Zero means dynamic
	// readiness (see IsReady).
	Size int
	// CacheSize is the cache budget used both by the dynamic readiness
	// rule and the labeling budget (see label.go).
	CacheSize int64
	// FeaturesLength is F, the fixed length of every feature vector.
	FeaturesLength int
	Features       FeatureConfig
}

// Window is the C3 request window: it accumulates requests for one
// training cycle, building per-object arrival history and a global
// arrival-order list.
type Window struct {
	cfg Config
	fc  int // Fc, cached from cfg.Features.count()

	meta metadataStore

	globalHead *Request
	objects    map[int]*Object
	nextIdx    int

	requestsCount    int
	objectsTotalSize int64
	meanSize         float64

	// populated by Sample (sample.go) and consumed by Label (label.go)
	sampleRate      float64
	sampledRequests []*Request
	sampledObjects  []*Object
}

// New creates an empty window bound to the given metadata store.
func New(cfg Config, meta metadataStore) *Window {
	return &Window{
		cfg:     cfg,
		fc:      cfg.Features.count(),
		meta:    meta,
		objects: make(map[int]*Object),
	}
}

// RequestsCount, ObjectsTotalSize, MeanSize, SampleRate and
// SampledRequests expose read-only window state to the coordinator and
// the labeling/sampling passes.
func (w *Window) RequestsCount() int        { return w.requestsCount }
func (w *Window) ObjectsTotalSize() int64    { return w.objectsTotalSize }
func (w *Window) MeanSize() float64          { return w.meanSize }
func (w *Window) SampleRate() float64        { return w.sampleRate }
func (w *Window) SampledRequests() []*Request { return w.sampledRequests }
func (w *Window) SampledObjects() []*Object    { return w.sampledObjects }
func (w *Window) Objects() map[int]*Object    { return w.objects }

// FirstRequest returns the first request added to the window in
// arrival order (the head of the global cyclic list), or nil if the
// window is empty. Unlike ranging over Objects, this is deterministic.
func (w *Window) FirstRequest() *Request { return w.globalHead }

// Add records one trace event and returns the Request node it created.
func (w *Window) Add(oid int, t float64, sz int) *Request {
	if sz < 0 {
		panic(fmt.Sprintf("window: negative request size for oid %d", oid))
	}

	w.meta.Seen(oid, t, w.cfg.FeaturesLength)
	w.meanSize = (w.meanSize*float64(w.requestsCount) + float64(sz)) / float64(w.requestsCount+1)

	req := &Request{Timestamp: t, Size: sz}
	w.appendGlobal(req)

	obj, created := w.objects[oid]
	if !created {
		obj = &Object{ID: oid, Size: sz, Idx: w.nextIdx}
		w.nextIdx++
		w.objects[oid] = obj
		w.objectsTotalSize += int64(sz)
	}
	req.Object = obj
	appendObjectList(obj, req)

	isFirstForObject := obj.RequestsCount == 0
	obj.RequestsCount++
	w.requestsCount++

	w.populateFeatures(req, isFirstForObject)

	return req
}

// populateFeatures fills req.Features per §4.3: seeded from the metadata
// store's cached history on an object's first request in this window,
// otherwise shifted from the previous request plus freshly computed
// instantaneous custom features.
func (w *Window) populateFeatures(req *Request, isFirstForObject bool) {
	f := w.cfg.FeaturesLength
	req.Features = make([]float64, f)

	if isFirstForObject {
		copy(req.Features, w.meta.Features(req.Object.ID, f))
	} else {
		prev := req.objPrev
		copy(req.Features[:f-1], prev.Features[1:f])
		req.Features[f-1-w.fc] = req.Timestamp - prev.Timestamp
	}

	pos := f - 1
	if w.cfg.Features.DecayedFrequency {
		req.Features[pos] = w.meta.DecayedFrequency(req.Object.ID)
		pos--
	}
	if w.cfg.Features.Frequency {
		req.Features[pos] = float64(req.Object.RequestsCount) / float64(w.requestsCount)
		pos--
	}
	if w.cfg.Features.Size {
		req.Features[pos] = float64(req.Size)
		pos--
	}
}

// appendGlobal inserts req before globalHead, i.e. appends it as the new
// tail of the global arrival-order cyclic list.
func (w *Window) appendGlobal(req *Request) {
	if w.globalHead == nil {
		req.globalNext, req.globalPrev = req, req
		w.globalHead = req
		return
	}
	tail := w.globalHead.globalPrev
	req.globalPrev = tail
	req.globalNext = w.globalHead
	tail.globalNext = req
	w.globalHead.globalPrev = req
}

// appendObjectList inserts req before obj.Head, the per-object analogue
// of appendGlobal.
func appendObjectList(obj *Object, req *Request) {
	if obj.Head == nil {
		req.objNext, req.objPrev = req, req
		obj.Head = req
		return
	}
	tail := obj.Head.objPrev
	req.objPrev = tail
	req.objNext = obj.Head
	tail.objNext = req
	obj.Head.objPrev = req
}

// IsReady reports whether the window has accumulated enough requests to
// be handed to the training worker. weight is 1/learning_rate, supplied
// by the coordinator.
func (w *Window) IsReady(weight float64) bool {
	if w.cfg.Size > 0 {
		return w.requestsCount >= w.cfg.Size
	}
	if w.requestsCount < minWindowSize {
		return false
	}
	if w.requestsCount >= maxWindowSize {
		return true
	}
	return float64(w.objectsTotalSize) >= (1/weight)*float64(w.cfg.CacheSize)
}

// Flush seeds the metadata store with every live object's most recent
// feature vector, so the next window's first request for that object can
// pick up where this one left off. Call this before discarding the
// window.
func (w *Window) Flush() {
	for oid, obj := range w.objects {
		if obj.Head == nil {
			continue
		}
		last := obj.Head.objPrev // tail: most recently appended request
		w.meta.UpdateFeatures(oid, last.Features)
	}
}
