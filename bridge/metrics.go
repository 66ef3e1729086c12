package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for call transport paths.
const (
	pathInline = "inline"
	pathQueued = "queued"
)

// Metric label values for call and evaluation status.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusTimeout   = "timeout"
	statusMisused   = "misused"
	statusCancelled = "cancelled"
)

var (
	pendingOperations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptbridge_pending_operations",
			Help: "Number of in-flight operations awaiting completion.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptbridge_queue_depth",
			Help: "Number of cross-thread requests not yet drained by the host.",
		},
	)

	evalsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptbridge_evals_active",
			Help: "Number of asynchronous evaluations not yet terminal.",
		},
	)

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptbridge_calls_total",
			Help: "Total number of script call-sites routed through the bridge.",
		},
		[]string{"path", "status"},
	)

	callTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scriptbridge_call_timeouts_total",
			Help: "Total number of pending or queued operations that exceeded their bound.",
		},
	)

	evalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptbridge_evals_total",
			Help: "Total number of asynchronous evaluations by terminal status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(pendingOperations)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(evalsActive)
	prometheus.MustRegister(callsTotal)
	prometheus.MustRegister(callTimeouts)
	prometheus.MustRegister(evalsTotal)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	for _, path := range []string{pathInline, pathQueued} {
		for _, status := range []string{statusCompleted, statusFailed, statusTimeout, statusMisused} {
			callsTotal.WithLabelValues(path, status)
		}
	}
	for _, status := range []string{statusCompleted, statusFailed, statusCancelled} {
		evalsTotal.WithLabelValues(status)
	}
}
