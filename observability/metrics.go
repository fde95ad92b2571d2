package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetricsRegistry records vault operation activity for Prometheus
// scraping.
type VaultMetricsRegistry struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	staked     prometheus.Gauge
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetricsRegistry
)

// VaultMetrics returns the lazily-initialised metrics registry for vault
// operations.
func VaultMetrics() *VaultMetricsRegistry {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetricsRegistry{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Vault operations processed, by operation name.",
			}, []string{"op"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "operation_failures_total",
				Help:      "Vault operations rejected, by operation name.",
			}, []string{"op"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "operation_seconds",
				Help:      "Vault operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			staked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "total_staked",
				Help:      "Current global staked principal (float approximation).",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.failures,
			vaultRegistry.latency,
			vaultRegistry.staked,
		)
	})
	return vaultRegistry
}

// Observe records one operation outcome and its latency.
func (r *VaultMetricsRegistry) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op).Inc()
	if err != nil {
		r.failures.WithLabelValues(op).Inc()
	}
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetTotalStaked publishes the global aggregate as a gauge. Precision above
// 2^53 is approximate; the authoritative value lives in state.
func (r *VaultMetricsRegistry) SetTotalStaked(total float64) {
	if r == nil {
		return
	}
	r.staked.Set(total)
}
