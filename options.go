// Package hrcache is the C6 coordinator: it wires the window, cache,
// metadata store, and classifier together into the per-request pipeline
// (§4.6), training each completed window synchronously inside Process.
package hrcache

// Config bundles every construction-time parameter, adapted from the
// teacher's Options/Option split (options.go): an in-process config
// struct mutated by functional Option values, with a defaultConfig() to
// seed sane values before applying the caller's overrides.
type Config struct {
	CacheSize       int64
	HotLowerBound   float64
	ColdLowerBound  float64
	EvictHotForCold bool

	WindowSize   int
	LearningRate float64

	FeaturesLength          int
	FeatureSize             bool
	FeatureFrequency        bool
	FeatureDecayedFrequency bool
	DecayAlpha              float64

	HazardBandwidth float64
	HazardDiscrete  bool
	FutureLabeling  bool

	OneTimeTraining bool
	MaxBoostRounds  int
	NumLeaves       int
	MaxDepth        int

	Concurrency         int
	HardwareConcurrency int
	ReportInterval      int

	Verbose bool
}

// Option configures a Config.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		CacheSize:           100 * 1024 * 1024,
		HotLowerBound:       0.5,
		ColdLowerBound:      0,
		EvictHotForCold:     true,
		LearningRate:        3,
		FeaturesLength:      32,
		HazardDiscrete:      true,
		FutureLabeling:      true,
		MaxBoostRounds:      100,
		NumLeaves:           32,
		MaxDepth:            50,
		Concurrency:         100,
		HardwareConcurrency: 4,
		ReportInterval:      1_000_000,
	}
}

// WithCacheSize sets the cache's byte capacity.
func WithCacheSize(n int64) Option { return func(c *Config) { c.CacheSize = n } }

// WithHotLowerBound sets the admission probability threshold for HOT residency.
func WithHotLowerBound(p float64) Option { return func(c *Config) { c.HotLowerBound = p } }

// WithColdLowerBound sets the admission probability threshold below which nothing is admitted.
func WithColdLowerBound(p float64) Option { return func(c *Config) { c.ColdLowerBound = p } }

// WithEvictHotForCold controls whether a COLD admission may evict from HOT.
func WithEvictHotForCold(b bool) Option { return func(c *Config) { c.EvictHotForCold = b } }

// WithWindowSize fixes the window length; 0 (the default) selects the dynamic readiness rule.
func WithWindowSize(n int) Option { return func(c *Config) { c.WindowSize = n } }

// WithLearningRate sets the dynamic readiness weight divisor (weight = 1/learning_rate).
func WithLearningRate(r float64) Option { return func(c *Config) { c.LearningRate = r } }

// WithFeaturesLength sets F, the fixed feature vector length.
func WithFeaturesLength(f int) Option { return func(c *Config) { c.FeaturesLength = f } }

// WithFeatureSize enables the instantaneous request-size feature.
func WithFeatureSize(b bool) Option { return func(c *Config) { c.FeatureSize = b } }

// WithFeatureFrequency enables the running request-share feature.
func WithFeatureFrequency(b bool) Option { return func(c *Config) { c.FeatureFrequency = b } }

// WithFeatureDecayedFrequency enables the decayed-frequency feature with decay factor alpha.
func WithFeatureDecayedFrequency(alpha float64) Option {
	return func(c *Config) {
		c.FeatureDecayedFrequency = true
		c.DecayAlpha = alpha
	}
}

// WithHazardBandwidth is informational only (effective bandwidth is always per-object Scott's rule).
func WithHazardBandwidth(b float64) Option { return func(c *Config) { c.HazardBandwidth = b } }

// WithHazardDiscrete selects discrete vs continuous Nelson-Aalen tie handling.
func WithHazardDiscrete(b bool) Option { return func(c *Config) { c.HazardDiscrete = b } }

// WithFutureLabeling enables the label-shift-to-next-arrival pass.
func WithFutureLabeling(b bool) Option { return func(c *Config) { c.FutureLabeling = b } }

// WithOneTimeTraining restricts training to the window in which the ring buffer first becomes non-empty.
func WithOneTimeTraining(b bool) Option { return func(c *Config) { c.OneTimeTraining = b } }

// WithMaxBoostRounds bounds the classifier's boosting rounds per training call.
func WithMaxBoostRounds(n int) Option { return func(c *Config) { c.MaxBoostRounds = n } }

// WithConcurrency sets the prediction batch size.
func WithConcurrency(n int) Option { return func(c *Config) { c.Concurrency = n } }

// WithHardwareConcurrency sets the fork-join worker count used during training.
func WithHardwareConcurrency(n int) Option { return func(c *Config) { c.HardwareConcurrency = n } }

// WithReportInterval sets how many requests elapse between analytics rounds.
func WithReportInterval(n int) Option { return func(c *Config) { c.ReportInterval = n } }

// WithVerbose enables diagnostic logging.
func WithVerbose(b bool) Option { return func(c *Config) { c.Verbose = b } }
