// Command hrcache replays a trace file through the Hazard-Rate cache
// simulator (§6) and reports analytics to stdout and, optionally, a CSV
// log file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/codeGROOVE-dev/hrcache"
	"github.com/codeGROOVE-dev/hrcache/analytics"
	"github.com/codeGROOVE-dev/hrcache/trace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hrcache:", err)
		os.Exit(1)
	}
}

func run() error {
	filePath := flag.String("file-path", "", "trace file path (required)")
	rounds := flag.Int("rounds", 1, "replay the trace N times")
	concurrency := flag.Int("concurrency", 100, "prediction batch size")
	verbose := flag.Bool("verbose", false, "enable diagnostic logging")
	cacheSize := flag.Int64("cache-size", 100*1024*1024, "cache capacity in bytes")
	hotLowerBound := flag.Float64("hot-lower-bound", 0.5, "admission probability threshold for HOT residency")
	coldLowerBound := flag.Float64("cold-lower-bound", 0, "admission probability threshold below which nothing is admitted")
	evictHotForCold := flag.Bool("evict-hot-for-cold", true, "allow a COLD admission to evict from HOT")
	windowSize := flag.Int("window-size", 0, "fixed window length (0 selects the dynamic readiness rule)")
	learningRate := flag.Float64("learning-rate", 3, "dynamic readiness weight divisor")
	featuresLength := flag.Int("features-length", 32, "fixed feature vector length")
	featureSize := flag.Bool("feature-size", false, "enable the instantaneous request-size feature")
	featureFrequency := flag.Bool("feature-frequency", false, "enable the running request-share feature")
	featureDecayedFrequency := flag.Float64("feature-decayed-frequency", 0, "enable the decayed-frequency feature with this decay alpha (0 disables)")
	hazardBandwidth := flag.Float64("hazard-bandwidth", 0, "informational only; effective bandwidth is always per-object Scott's rule")
	hazardDiscrete := flag.Bool("hazard-discrete", true, "use discrete Nelson-Aalen tie handling")
	futureLabeling := flag.Bool("future-labeling", true, "shift labels to the next arrival")
	oneTimeTraining := flag.Bool("one-time-training", false, "train only once, in the window where the ring buffer first becomes non-empty")
	maxBoostRounds := flag.Int("max-boost-rounds", 100, "classifier boosting rounds per training call")
	reportInterval := flag.Int("report-interval", 1_000_000, "requests between analytics rounds")
	logFile := flag.String("log-file", "", "append CSV analytics to this path")
	flag.Parse()

	if *filePath == "" {
		return errors.New("--file-path is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFor(*verbose),
	}))

	opts := []hrcache.Option{
		hrcache.WithCacheSize(*cacheSize),
		hrcache.WithHotLowerBound(*hotLowerBound),
		hrcache.WithColdLowerBound(*coldLowerBound),
		hrcache.WithEvictHotForCold(*evictHotForCold),
		hrcache.WithWindowSize(*windowSize),
		hrcache.WithLearningRate(*learningRate),
		hrcache.WithFeaturesLength(*featuresLength),
		hrcache.WithFeatureSize(*featureSize),
		hrcache.WithFeatureFrequency(*featureFrequency),
		hrcache.WithHazardBandwidth(*hazardBandwidth),
		hrcache.WithHazardDiscrete(*hazardDiscrete),
		hrcache.WithFutureLabeling(*futureLabeling),
		hrcache.WithOneTimeTraining(*oneTimeTraining),
		hrcache.WithMaxBoostRounds(*maxBoostRounds),
		hrcache.WithConcurrency(*concurrency),
		hrcache.WithReportInterval(*reportInterval),
		hrcache.WithVerbose(*verbose),
	}
	if *featureDecayedFrequency > 0 {
		opts = append(opts, hrcache.WithFeatureDecayedFrequency(*featureDecayedFrequency))
	}

	var sink analytics.Sink
	if *logFile != "" {
		csv, err := analytics.OpenCSVSink(*logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer csv.Close()
		sink = csv
	}

	// --rounds runs N independent simulator instances over the same
	// trace (§6): each round gets its own fresh cache, window and
	// classifier, not a continuation of the previous round's state.
	for round := 1; round <= *rounds; round++ {
		if err := runRound(*filePath, *rounds, round, sink, logger, opts); err != nil {
			return err
		}
	}

	return nil
}

func runRound(filePath string, totalRounds, round int, sink analytics.Sink, logger *slog.Logger, opts []hrcache.Option) error {
	src, err := trace.Open(filePath)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer src.Close()

	key := filePath
	if totalRounds > 1 {
		key = fmt.Sprintf("%s#round%d", filePath, round)
	}
	sim, err := hrcache.New(key, sink, logger, opts...)
	if err != nil {
		return fmt.Errorf("configure simulator: %w", err)
	}

	for {
		req, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read trace: %w", err)
		}
		if err := sim.Process(req.Timestamp, req.ObjectID, req.Size); err != nil {
			return fmt.Errorf("process request: %w", err)
		}
	}

	if err := sim.Close(); err != nil {
		return fmt.Errorf("close simulator: %w", err)
	}

	stats := sim.Stats()
	fmt.Printf("round=%d cumulative_miss_pct=%.4f cumulative_miss_bytes_pct=%.4f untrained_requests=%d hot_evicted=%d(%d bytes) cold_evicted=%d(%d bytes)\n",
		round, stats.CumulativeMissPct, stats.CumulativeMissBytesPct, stats.UntrainedRequests,
		stats.HotEvictedRequests, stats.HotEvictedBytes, stats.ColdEvictedRequests, stats.ColdEvictedBytes)

	return nil
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
