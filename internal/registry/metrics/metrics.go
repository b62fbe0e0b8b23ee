// Package metrics exposes the Prometheus instruments for the registry
// core. Instruments are bound to an explicit registerer so tests can use
// isolated registries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the registry core records.
type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	SweepDomainsTotal *prometheus.CounterVec
	SweepRunsTotal    *prometheus.CounterVec
	SweepDuration     prometheus.Histogram

	CheckCacheHits   prometheus.Counter
	CheckCacheMisses prometheus.Counter
}

// New registers the registry instruments with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regcore_commands_total",
			Help: "Lifecycle commands processed, by command and outcome code",
		}, []string{"command", "outcome"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regcore_command_duration_seconds",
			Help:    "Latency of lifecycle commands",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"command"}),
		SweepDomainsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regcore_sweep_domains_total",
			Help: "Domains processed by the reconciliation sweep, by action",
		}, []string{"action"}),
		SweepRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regcore_sweep_runs_total",
			Help: "Reconciliation sweep runs, by result",
		}, []string{"result"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "regcore_sweep_duration_seconds",
			Help:    "Wall time of one full reconciliation sweep",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 1800},
		}),
		CheckCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "regcore_check_cache_hits_total",
			Help: "Availability checks answered from cache",
		}),
		CheckCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "regcore_check_cache_misses_total",
			Help: "Availability checks that fell through to the store",
		}),
	}
}

// ObserveCommand records one finished command.
func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}
