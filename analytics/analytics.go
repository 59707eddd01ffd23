// Package analytics implements the C6 analytics collaborator (§4.7): a
// counter bundle updated on every request, reported to a CSV sink (and
// optionally a Prometheus sink) at round boundaries.
package analytics

import (
	"fmt"
	"os"
)

// Config carries the run's fixed parameters, written verbatim into every
// CSV row so that a log file accumulated across many runs stays
// self-describing.
type Config struct {
	Key                     string
	CacheSize               int64
	HotLowerBound           float64
	ColdLowerBound          float64
	EvictHotForCold         bool
	WindowSize              int
	LearningRate            float64
	FeaturesLength          int
	FeatureSize             bool
	FeatureFrequency        bool
	FeatureDecayedFrequency float64
	HazardBandwidth         float64
	HazardDiscrete          bool
	FutureLabeling          bool
	OneTimeTraining         bool
	MaxBoostRounds          int
	ReportInterval          int
}

// Counters accumulates one round's worth of request outcomes, plus the
// hot/cold eviction tallies the coordinator observes while draining
// admission decisions (§4.4, SPEC_FULL.md supplemented feature #2).
type Counters struct {
	Requests   int64
	Misses     int64
	MissBytes  int64
	TotalBytes int64

	HotEvictions     int64
	ColdEvictions    int64
	HotEvictedBytes  int64
	ColdEvictedBytes int64
}

// Observe records one request's outcome.
func (c *Counters) Observe(hit bool, size int64) {
	c.Requests++
	c.TotalBytes += size
	if !hit {
		c.Misses++
		c.MissBytes += size
	}
}

// RecordEviction tallies count and bytes evicted from one segment
// (HOT or COLD) during a single admission decision.
func (c *Counters) RecordEviction(hot bool, count int, bytes int64) {
	if count == 0 {
		return
	}
	if hot {
		c.HotEvictions += int64(count)
		c.HotEvictedBytes += bytes
	} else {
		c.ColdEvictions += int64(count)
		c.ColdEvictedBytes += bytes
	}
}

// Reset zeros the interval counters, leaving cumulative totals (tracked
// separately by the caller) untouched.
func (c *Counters) Reset() { *c = Counters{} }

// MissPct and MissBytesPct report the round's object and byte miss
// ratios as percentages. Zero requests reports 0, not NaN.
func (c *Counters) MissPct() float64 {
	if c.Requests == 0 {
		return 0
	}
	return 100 * float64(c.Misses) / float64(c.Requests)
}

func (c *Counters) MissBytesPct() float64 {
	if c.TotalBytes == 0 {
		return 0
	}
	return 100 * float64(c.MissBytes) / float64(c.TotalBytes)
}

// HotEvictPct and ColdEvictPct report each segment's share of evictions
// by count; HotEvictBytesPct and ColdEvictBytesPct report the same by
// bytes. Zero evictions reports 0, not NaN.
func (c *Counters) HotEvictPct() float64 {
	total := c.HotEvictions + c.ColdEvictions
	if total == 0 {
		return 0
	}
	return 100 * float64(c.HotEvictions) / float64(total)
}

func (c *Counters) ColdEvictPct() float64 {
	total := c.HotEvictions + c.ColdEvictions
	if total == 0 {
		return 0
	}
	return 100 * float64(c.ColdEvictions) / float64(total)
}

func (c *Counters) HotEvictBytesPct() float64 {
	total := c.HotEvictedBytes + c.ColdEvictedBytes
	if total == 0 {
		return 0
	}
	return 100 * float64(c.HotEvictedBytes) / float64(total)
}

func (c *Counters) ColdEvictBytesPct() float64 {
	total := c.HotEvictedBytes + c.ColdEvictedBytes
	if total == 0 {
		return 0
	}
	return 100 * float64(c.ColdEvictedBytes) / float64(total)
}

// Sink receives one round's worth of results.
type Sink interface {
	Report(cfg Config, round int, interval, cumulative Counters) error
	Close() error
}

// csvHeader's first 22 columns are spec.md §6's exact required list,
// unchanged; the trailing eight are the supplemented hot/cold eviction
// share columns (SPEC_FULL.md supplemented feature #2), appended rather
// than interleaved so the required columns keep their original
// positions.
var csvHeader = []string{
	"key", "cache_size", "hot_lb", "cold_lb", "evict_hot_for_cold",
	"window_size", "learning_rate", "features_length", "feature_size",
	"feature_frequency", "feature_decayed_frequency", "hazard_bandwidth",
	"hazard_discrete", "future_labeling", "one_time_training",
	"max_boost_rounds", "report_interval", "round", "miss_bytes_pct",
	"miss_pct", "cumulative_miss_bytes_pct", "cumulative_miss_pct",
	"hot_evict_pct", "cold_evict_pct", "hot_evict_bytes_pct", "cold_evict_bytes_pct",
	"cumulative_hot_evict_pct", "cumulative_cold_evict_pct",
	"cumulative_hot_evict_bytes_pct", "cumulative_cold_evict_bytes_pct",
}

// CSVSink appends analytics rounds to a CSV file: §6's column list,
// followed by the eight eviction-share columns (see csvHeader). The
// header is written only when the file did not previously exist.
type CSVSink struct {
	f *os.File
}

// OpenCSVSink opens (creating if necessary) path for appending, writing
// the header iff the file is new.
func OpenCSVSink(path string) (*CSVSink, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("analytics: open %s: %w", path, err)
	}

	s := &CSVSink{f: f}
	if isNew {
		if err := s.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// Report writes one CSV row for the completed round.
func (s *CSVSink) Report(cfg Config, round int, interval, cumulative Counters) error {
	row := []string{
		cfg.Key,
		fmt.Sprint(cfg.CacheSize),
		fmt.Sprint(cfg.HotLowerBound),
		fmt.Sprint(cfg.ColdLowerBound),
		fmt.Sprint(cfg.EvictHotForCold),
		fmt.Sprint(cfg.WindowSize),
		fmt.Sprint(cfg.LearningRate),
		fmt.Sprint(cfg.FeaturesLength),
		fmt.Sprint(cfg.FeatureSize),
		fmt.Sprint(cfg.FeatureFrequency),
		fmt.Sprint(cfg.FeatureDecayedFrequency),
		fmt.Sprint(cfg.HazardBandwidth),
		fmt.Sprint(cfg.HazardDiscrete),
		fmt.Sprint(cfg.FutureLabeling),
		fmt.Sprint(cfg.OneTimeTraining),
		fmt.Sprint(cfg.MaxBoostRounds),
		fmt.Sprint(cfg.ReportInterval),
		fmt.Sprint(round),
		fmt.Sprint(interval.MissBytesPct()),
		fmt.Sprint(interval.MissPct()),
		fmt.Sprint(cumulative.MissBytesPct()),
		fmt.Sprint(cumulative.MissPct()),
		fmt.Sprint(interval.HotEvictPct()),
		fmt.Sprint(interval.ColdEvictPct()),
		fmt.Sprint(interval.HotEvictBytesPct()),
		fmt.Sprint(interval.ColdEvictBytesPct()),
		fmt.Sprint(cumulative.HotEvictPct()),
		fmt.Sprint(cumulative.ColdEvictPct()),
		fmt.Sprint(cumulative.HotEvictBytesPct()),
		fmt.Sprint(cumulative.ColdEvictBytesPct()),
	}
	return s.writeRow(row)
}

// Close emits the required separator row of bare commas and closes the
// file.
func (s *CSVSink) Close() error {
	sep := make([]string, len(csvHeader))
	if err := s.writeRow(sep); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func (s *CSVSink) writeRow(fields []string) error {
	line := ""
	for i, f := range fields {
		if i > 0 {
			line += ","
		}
		line += f
	}
	line += "\n"
	if _, err := s.f.WriteString(line); err != nil {
		return fmt.Errorf("analytics: write: %w", err)
	}
	return nil
}

// MultiSink fans a single Report/Close call out to every member sink,
// so several sinks (for example a CSV sink and a Prometheus sink) can be
// driven through the coordinator's single Sink. cmd/hrcache does not use
// it: it passes the CSV sink, or none, directly.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks, skipping nil entries so an absent
// optional sink can be passed uniformly.
func NewMultiSink(sinks ...Sink) *MultiSink {
	var filtered []Sink
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Report(cfg Config, round int, interval, cumulative Counters) error {
	for _, s := range m.sinks {
		if err := s.Report(cfg, round, interval, cumulative); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
