package hrcache

import (
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/codeGROOVE-dev/hrcache/analytics"
	"github.com/codeGROOVE-dev/hrcache/cache"
	"github.com/codeGROOVE-dev/hrcache/classifier"
	"github.com/codeGROOVE-dev/hrcache/metadata"
	"github.com/codeGROOVE-dev/hrcache/window"
)

// trainBudgetFraction mirrors create_hr's own derived constant: the
// classifier's ring buffer is sized off 3% of the cache's byte capacity.
const trainBudgetFraction = 0.03

// Simulator is the C6 coordinator: it drives the per-request pipeline
// (§4.6) over window, cache, metadata and classifier, reporting through
// an analytics sink.
type Simulator struct {
	key    string
	cfg    Config
	logger *slog.Logger

	lru  *cache.Cache
	meta *metadata.Store
	win  *window.Window
	clf  *classifier.Classifier
	sink analytics.Sink
	rng  *rand.Rand

	pending []*window.Request

	analyticsCfg analytics.Config
	interval     analytics.Counters
	cumulative   analytics.Counters
	round        int

	untrainedRequests int64
	processedRequests int64
}

// New validates cfg and wires the four core components together.
func New(key string, sink analytics.Sink, logger *slog.Logger, opts ...Option) (*Simulator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	lru, err := cache.New(cache.Config{
		Capacity:        cfg.CacheSize,
		HotLowerBound:   cfg.HotLowerBound,
		ColdLowerBound:  cfg.ColdLowerBound,
		EvictHotForCold: cfg.EvictHotForCold,
	})
	if err != nil {
		return nil, err
	}

	decayAlpha := 0.0
	if cfg.FeatureDecayedFrequency {
		decayAlpha = cfg.DecayAlpha
	}
	meta := metadata.New(decayAlpha)

	winCfg := window.Config{
		Size:           cfg.WindowSize,
		CacheSize:      cfg.CacheSize,
		FeaturesLength: cfg.FeaturesLength,
		Features: window.FeatureConfig{
			Size:             cfg.FeatureSize,
			Frequency:        cfg.FeatureFrequency,
			DecayedFrequency: cfg.FeatureDecayedFrequency,
			DecayAlpha:       decayAlpha,
		},
	}
	win := window.New(winCfg, meta)

	trainBudget := int64(float64(cfg.CacheSize) * trainBudgetFraction)
	clf := classifier.New(classifier.Config{
		Capacity:       classifier.Capacity(trainBudget, cfg.FeaturesLength),
		FeaturesLength: cfg.FeaturesLength,
		LearningRate:   0.1,
		NumLeaves:      cfg.NumLeaves,
		MaxDepth:       cfg.MaxDepth,
		MaxBoostRounds: cfg.MaxBoostRounds,
		OneTimeTrain:   cfg.OneTimeTraining,
	})

	s := &Simulator{
		key:    key,
		cfg:    *cfg,
		logger: logger,
		lru:    lru,
		meta:   meta,
		win:    win,
		clf:    clf,
		sink:   sink,
		rng:    rand.New(rand.NewSource(1)),
		analyticsCfg: analytics.Config{
			Key:                     key,
			CacheSize:               cfg.CacheSize,
			HotLowerBound:           cfg.HotLowerBound,
			ColdLowerBound:          cfg.ColdLowerBound,
			EvictHotForCold:         cfg.EvictHotForCold,
			WindowSize:              cfg.WindowSize,
			LearningRate:            cfg.LearningRate,
			FeaturesLength:          cfg.FeaturesLength,
			FeatureSize:             cfg.FeatureSize,
			FeatureFrequency:        cfg.FeatureFrequency,
			FeatureDecayedFrequency: decayAlpha,
			HazardBandwidth:         cfg.HazardBandwidth,
			HazardDiscrete:          cfg.HazardDiscrete,
			FutureLabeling:          cfg.FutureLabeling,
			OneTimeTraining:         cfg.OneTimeTraining,
			MaxBoostRounds:          cfg.MaxBoostRounds,
			ReportInterval:          cfg.ReportInterval,
		},
	}
	return s, nil
}

func validate(cfg *Config) error {
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("hrcache: cache size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.HotLowerBound < 0 || cfg.HotLowerBound > 1 {
		return fmt.Errorf("hrcache: hot lower bound %v outside [0,1]", cfg.HotLowerBound)
	}
	if cfg.ColdLowerBound < 0 || cfg.ColdLowerBound > 1 {
		return fmt.Errorf("hrcache: cold lower bound %v outside [0,1]", cfg.ColdLowerBound)
	}
	if cfg.LearningRate <= 0 {
		return fmt.Errorf("hrcache: learning rate must be positive, got %v", cfg.LearningRate)
	}
	if cfg.FeaturesLength <= 0 {
		return fmt.Errorf("hrcache: features length must be positive, got %d", cfg.FeaturesLength)
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("hrcache: concurrency must be positive, got %d", cfg.Concurrency)
	}
	return nil
}

// Stats summarizes the simulator's lifetime counters, reported once at
// shutdown by the CLI.
type Stats struct {
	CumulativeMissPct      float64
	CumulativeMissBytesPct float64
	UntrainedRequests      int64
	HotEvictedBytes        int64
	HotEvictedRequests     int64
	ColdEvictedBytes       int64
	ColdEvictedRequests    int64
}

// Process runs one request through the full pipeline (§4.6).
func (s *Simulator) Process(t float64, oid, size int) error {
	req := s.win.Add(oid, t, size)
	s.processedRequests++
	s.pending = append(s.pending, req)
	if !s.clf.Available() {
		s.untrainedRequests++
	}

	weight := 1 / s.cfg.LearningRate
	if s.win.IsReady(weight) {
		if err := s.drainBatch(); err != nil {
			return err
		}
		if err := s.trainWindow(); err != nil {
			return err
		}
	} else if s.win.RequestsCount()%s.cfg.Concurrency == 0 {
		if err := s.drainBatch(); err != nil {
			return err
		}
	}

	if s.processedRequests%int64(s.cfg.ReportInterval) == 0 {
		if err := s.reportRound(); err != nil {
			return err
		}
	}

	return nil
}

// drainBatch is the corrected sync_requests (§4.5, §9's redesign flag):
// predict the pending batch once (if a model is available), then admit
// each request exactly once using that prediction (or 0, if no model is
// available yet).
func (s *Simulator) drainBatch() error {
	if len(s.pending) == 0 {
		return nil
	}

	if err := s.clf.Predict(s.pending); err != nil {
		s.logger.Warn("classifier prediction failed, treating batch as p=0", "error", err)
		for _, r := range s.pending {
			r.AdmitProbability = 0
		}
	}

	for _, r := range s.pending {
		result := s.lru.LookupAndAdmit(r.ObjectID(), r.Timestamp, int64(r.Size), r.AdmitProbability)
		s.interval.Observe(result.Hit, int64(r.Size))
		s.cumulative.Observe(result.Hit, int64(r.Size))

		s.interval.RecordEviction(true, result.HotEvictions, result.HotEvictedBytes)
		s.cumulative.RecordEviction(true, result.HotEvictions, result.HotEvictedBytes)
		s.interval.RecordEviction(false, result.ColdEvictions, result.ColdEvictedBytes)
		s.cumulative.RecordEviction(false, result.ColdEvictions, result.ColdEvictedBytes)
	}

	s.pending = s.pending[:0]
	return nil
}

// trainWindow hands the current window to the (synchronous, per §5)
// training step: flush metadata carryover, start a fresh window, then
// sample, label and train on the old one. The fork-join parallelism inside Sample/Label
// is the only concurrency; the call itself blocks the main thread, the
// source's own "wait_for_model=true" behavior.
func (s *Simulator) trainWindow() error {
	old := s.win

	old.Flush()
	s.win = window.New(window.Config{
		Size:           s.cfg.WindowSize,
		CacheSize:      s.cfg.CacheSize,
		FeaturesLength: s.cfg.FeaturesLength,
		Features: window.FeatureConfig{
			Size:             s.cfg.FeatureSize,
			Frequency:        s.cfg.FeatureFrequency,
			DecayedFrequency: s.cfg.FeatureDecayedFrequency,
			DecayAlpha:       s.analyticsCfg.FeatureDecayedFrequency,
		},
	}, s.meta)

	if old.RequestsCount() == 0 || !s.clf.NeedsTraining() {
		return nil
	}

	seed := windowSeed(old)
	maxRequests := s.clf.Capacity() / 2
	old.Sample(maxRequests, s.cfg.HardwareConcurrency, seed)

	labelRNG := rand.New(rand.NewSource(int64(seed)))
	old.Label(s.cfg.HazardDiscrete, s.cfg.FutureLabeling, s.cfg.HardwareConcurrency, labelRNG)

	if s.cfg.Verbose {
		s.logger.Info("HR bound", "positive_rate", positiveLabelRate(old.SampledRequests()))
	}

	s.clf.Train(old.SampledRequests(), labelRNG, s.logger)

	if s.cfg.Verbose {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		s.logger.Info("window trained",
			"sampled_requests", len(old.SampledRequests()),
			"sample_rate", old.SampleRate(),
			"heap_alloc", humanize.Bytes(mem.HeapAlloc),
		)
	}

	return nil
}

// windowSeed derives the per-window reproducible seed (§9) from the
// window's first request in arrival order. This must be computed
// before Sample/Label run (they are what the seed drives), so it
// cannot use SampledRequests; FirstRequest is the deterministic
// alternative to ranging over the window's object map.
func windowSeed(w *window.Window) uint64 {
	r := w.FirstRequest()
	if r == nil {
		return 0
	}
	return window.Seed(r.ObjectID(), r.Timestamp)
}

// positiveLabelRate reports the fraction of reqs labeled 1, the "HR
// bound" diagnostic from the original hazard-rate implementation: how
// much of the sampled training set the hazard model says should be
// admitted, logged right after labeling so a verbose run can sanity
// check the labeler independent of the classifier it feeds.
func positiveLabelRate(reqs []*window.Request) float64 {
	if len(reqs) == 0 {
		return 0
	}
	positive := 0
	for _, r := range reqs {
		if r.Label == 1 {
			positive++
		}
	}
	return float64(positive) / float64(len(reqs))
}

// reportRound emits one analytics round and resets the interval counters.
func (s *Simulator) reportRound() error {
	s.round++
	if s.sink != nil {
		if err := s.sink.Report(s.analyticsCfg, s.round, s.interval, s.cumulative); err != nil {
			return fmt.Errorf("hrcache: analytics report: %w", err)
		}
	}
	s.interval.Reset()
	return nil
}

// Close drains any partially-filled batch. It does not close the
// analytics sink: a sink may be shared across several independent
// Simulator instances (one per --rounds pass), so the caller that
// opened it owns closing it.
func (s *Simulator) Close() error {
	return s.drainBatch()
}

// Stats returns the simulator's lifetime counters.
func (s *Simulator) Stats() Stats {
	return Stats{
		CumulativeMissPct:      s.cumulative.MissPct(),
		CumulativeMissBytesPct: s.cumulative.MissBytesPct(),
		UntrainedRequests:      s.untrainedRequests,
		HotEvictedBytes:        s.cumulative.HotEvictedBytes,
		HotEvictedRequests:     s.cumulative.HotEvictions,
		ColdEvictedBytes:       s.cumulative.ColdEvictedBytes,
		ColdEvictedRequests:    s.cumulative.ColdEvictions,
	}
}
