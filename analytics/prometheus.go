package analytics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func listen(addr string) (net.Listener, error) { return net.Listen("tcp", addr) }

// PrometheusSink exposes the same round-boundary counters as gauges on
// an HTTP /metrics endpoint, for a long-running simulation watched by an
// external scrape target rather than read back from the CSV log.
type PrometheusSink struct {
	missPct           prometheus.Gauge
	missBytesPct      prometheus.Gauge
	cumulativeMissPct prometheus.Gauge
	cumulativeBytePct prometheus.Gauge
	round             prometheus.Gauge

	hotEvictPct            prometheus.Gauge
	coldEvictPct           prometheus.Gauge
	cumulativeHotEvictPct  prometheus.Gauge
	cumulativeColdEvictPct prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewPrometheusSink registers the miss-ratio and eviction-share gauges
// on a fresh registry
// and starts serving /metrics on addr in the background.
func NewPrometheusSink(addr string) (*PrometheusSink, error) {
	reg := prometheus.NewRegistry()

	s := &PrometheusSink{
		registry: reg,
		missPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_miss_pct", Help: "Object miss ratio over the most recent report interval.",
		}),
		missBytesPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_miss_bytes_pct", Help: "Byte miss ratio over the most recent report interval.",
		}),
		cumulativeMissPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_cumulative_miss_pct", Help: "Object miss ratio since the start of the run.",
		}),
		cumulativeBytePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_cumulative_miss_bytes_pct", Help: "Byte miss ratio since the start of the run.",
		}),
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_round", Help: "Index of the most recently reported round.",
		}),
		hotEvictPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_hot_evict_pct", Help: "Share of evictions (by count) from HOT over the most recent report interval.",
		}),
		coldEvictPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_cold_evict_pct", Help: "Share of evictions (by count) from COLD over the most recent report interval.",
		}),
		cumulativeHotEvictPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_cumulative_hot_evict_pct", Help: "Share of evictions (by count) from HOT since the start of the run.",
		}),
		cumulativeColdEvictPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrcache_cumulative_cold_evict_pct", Help: "Share of evictions (by count) from COLD since the start of the run.",
		}),
	}
	reg.MustRegister(s.missPct, s.missBytesPct, s.cumulativeMissPct, s.cumulativeBytePct, s.round,
		s.hotEvictPct, s.coldEvictPct, s.cumulativeHotEvictPct, s.cumulativeColdEvictPct)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	s.server = srv

	ln, err := listen(addr)
	if err != nil {
		return nil, fmt.Errorf("analytics: prometheus listen %s: %w", addr, err)
	}
	go srv.Serve(ln) //nolint:errcheck // server lifetime ends at Close

	return s, nil
}

// Report implements Sink.
func (s *PrometheusSink) Report(_ Config, round int, interval, cumulative Counters) error {
	s.missPct.Set(interval.MissPct())
	s.missBytesPct.Set(interval.MissBytesPct())
	s.cumulativeMissPct.Set(cumulative.MissPct())
	s.cumulativeBytePct.Set(cumulative.MissBytesPct())
	s.round.Set(float64(round))
	s.hotEvictPct.Set(interval.HotEvictPct())
	s.coldEvictPct.Set(interval.ColdEvictPct())
	s.cumulativeHotEvictPct.Set(cumulative.HotEvictPct())
	s.cumulativeColdEvictPct.Set(cumulative.ColdEvictPct())
	return nil
}

// Close implements Sink, shutting down the metrics HTTP server.
func (s *PrometheusSink) Close() error {
	return s.server.Close()
}
