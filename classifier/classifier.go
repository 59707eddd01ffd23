// Package classifier implements the C5 classifier wrapper: a fixed
// capacity ring-buffer training set, an atomically swapped current model
// handle, and the train/predict operations the coordinator drives:
// predict on every drained batch, and train once per completed window,
// run synchronously on the same goroutine that calls Process.
package classifier

import (
	"log/slog"
	"math/rand"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/codeGROOVE-dev/hrcache/window"
)

const (
	minDataSetCount = 100_000
	maxDataSetCount = 1_000_000
)

// Capacity returns the ring buffer's row count N, chosen so that
// N*(featuresLength+1)*8 bytes <= trainBudget, clamped to
// [minDataSetCount, maxDataSetCount].
func Capacity(trainBudget int64, featuresLength int) int {
	rowBytes := int64(featuresLength+1) * 8
	n := trainBudget / rowBytes
	if n < minDataSetCount {
		n = minDataSetCount
	}
	if n > maxDataSetCount {
		n = maxDataSetCount
	}
	return int(n)
}

// Config are the classifier's fixed construction-time parameters.
type Config struct {
	Capacity       int
	FeaturesLength int
	LearningRate   float64
	NumLeaves      int
	MaxDepth       int
	MaxBoostRounds int
	OneTimeTrain   bool
	Backend        Backend
}

// Classifier is the ring-buffer training store plus the current/pending
// model handle, guarded for concurrent predict (reader) / train (writer)
// access.
type Classifier struct {
	cfg     Config
	backend Backend

	// ring buffer training data: rows[i] holds the featuresLength features
	// of one sampled request and labels[i] its label, the source's
	// data[N][F+1] layout (label in column 0) split into two parallel
	// slices that are always shuffled together.
	rows     [][]float64
	labels   []float64
	rowCount int
	full     bool

	everTrained bool

	mu      *xsync.RBMutex
	current Model
}

// New returns an empty classifier with an unavailable model.
func New(cfg Config) *Classifier {
	if cfg.Backend == nil {
		cfg.Backend = GBTBackend{}
	}
	rows := make([][]float64, cfg.Capacity)
	for i := range rows {
		rows[i] = make([]float64, cfg.FeaturesLength)
	}
	return &Classifier{
		cfg:     cfg,
		backend: cfg.Backend,
		rows:    rows,
		labels:  make([]float64, cfg.Capacity),
		mu:      xsync.NewRBMutex(),
	}
}

// Capacity returns the ring buffer's fixed row count N.
func (c *Classifier) Capacity() int { return len(c.rows) }

// NeedsTraining reports whether the next Train call would actually fit
// a model (as opposed to merely appending rows to the ring): true
// unless one_time_training is set and the ring already holds rows from
// an earlier Train call (whether or not that call's fit succeeded). The
// coordinator uses this to skip sampling and
// labeling entirely once a one_time_training model is in hand, matching
// the source's own early-exit around prepare_request_window.
func (c *Classifier) NeedsTraining() bool {
	rt := c.mu.RLock()
	defer c.mu.RUnlock(rt)
	return !c.cfg.OneTimeTrain || (c.rowCount == 0 && !c.full)
}

// Available reports whether a trained model is currently published.
func (c *Classifier) Available() bool {
	rt := c.mu.RLock()
	defer c.mu.RUnlock(rt)
	return c.available()
}

func (c *Classifier) available() bool {
	return c.everTrained
}

// Predict is a pure read of the current model handle: it writes
// AdmitProbability into every request in batch. Called only from the
// main thread. If no model is available, every request keeps its
// existing (zero) probability.
func (c *Classifier) Predict(batch []*window.Request) error {
	if len(batch) == 0 {
		return nil
	}
	rt := c.mu.RLock()
	defer c.mu.RUnlock(rt)

	if !c.available() {
		return nil
	}

	x := make([][]float64, len(batch))
	for i, r := range batch {
		x[i] = r.Features
	}
	probs, err := c.backend.Predict(c.current, x)
	if err != nil {
		return err
	}
	for i, r := range batch {
		r.AdmitProbability = probs[i]
	}
	return nil
}

// Train is the single per-window training call (§4.5): it appends
// sampled requests into the ring, then, if this is the buffer's first
// non-empty state or one_time_training is false, builds a model from the
// ring's current contents and publishes it as current. It holds the
// writer lock for its entire duration, so predict and train are mutually
// exclusive as the source requires.
//
// Called only by the coordinator's window rotation, synchronously on the
// goroutine that runs Process; never concurrently with another Train
// call.
func (c *Classifier) Train(requests []*window.Request, rng *rand.Rand, logger *slog.Logger) {
	trainThisWindow := !c.cfg.OneTimeTrain || (c.rowCount == 0 && !c.full)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.appendLocked(requests, rng)

	if !trainThisWindow {
		return
	}

	actualRowCount := c.rowCount
	if c.full {
		actualRowCount = len(c.rows)
	}
	if actualRowCount == 0 {
		return
	}

	x := make([][]float64, actualRowCount)
	y := make([]float64, actualRowCount)
	copy(x, c.rows[:actualRowCount])
	copy(y, c.labels[:actualRowCount])

	m, err := c.backend.Train(x, y, Hyperparams{
		LearningRate: c.cfg.LearningRate,
		NumLeaves:    c.cfg.NumLeaves,
		MaxDepth:     c.cfg.MaxDepth,
		Rounds:       c.cfg.MaxBoostRounds,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("classifier training failed, keeping previous model", "error", err)
		}
		return
	}

	c.current = m
	c.everTrained = true
}

// appendLocked writes requests into the ring starting at rowCount,
// pre-shuffling the full buffer before the first row of a wrap (both the
// wrap that happens before this call, if the buffer was already full
// coming in, and any wrap that happens mid-batch), and advances rowCount
// modulo the capacity. Must be called with the writer lock held.
func (c *Classifier) appendLocked(requests []*window.Request, rng *rand.Rand) {
	n := len(c.rows)
	if n == 0 || len(requests) == 0 {
		return
	}

	if c.full {
		c.shuffleLocked(rng)
	}

	for i, r := range requests {
		row := (c.rowCount + i) % n
		if row == 0 && i != 0 {
			c.full = true
			c.shuffleLocked(rng)
		}
		copy(c.rows[row], r.Features)
		c.labels[row] = float64(r.Label)
	}

	c.rowCount = (c.rowCount + len(requests)) % n
	if c.rowCount == 0 && len(requests) > 0 {
		c.full = true
	}
}

// shuffleLocked performs a Fisher-Yates shuffle of the ring buffer's
// rows (keeping each row's label alongside its features), decorrelating
// wall-clock row order from training row order once the ring has
// wrapped.
func (c *Classifier) shuffleLocked(rng *rand.Rand) {
	n := len(c.rows)
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		c.rows[i], c.rows[j] = c.rows[j], c.rows[i]
		c.labels[i], c.labels[j] = c.labels[j], c.labels[i]
	}
}
