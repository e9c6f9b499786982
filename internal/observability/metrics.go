package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledmanager",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	monitorTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledmanager",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Display status checks by resulting status.",
		},
		[]string{"status"},
	)
	monitorTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledmanager",
			Subsystem: "monitor",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one display status check.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	monitorPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledmanager",
			Subsystem: "monitor",
			Name:      "publishes_total",
			Help:      "Corrective content publishes issued by schedule reconciliation.",
		},
		[]string{"result"},
	)
	monitorActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledmanager",
			Subsystem: "monitor",
			Name:      "active_displays",
			Help:      "Displays with a running monitoring timer.",
		},
	)
	sweepChecked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledmanager",
			Subsystem: "monitor",
			Name:      "stale_checked_total",
			Help:      "Unmonitored online displays re-checked by the stale status sweep.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, monitorTicks, monitorTickDuration, monitorPublishes, monitorActive, sweepChecked)
	})
}

func RecordHTTPRequest(method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func RecordTick(status string, duration time.Duration) {
	RegisterMetrics()
	monitorTicks.WithLabelValues(status).Inc()
	monitorTickDuration.Observe(duration.Seconds())
}

func RecordPublish(success bool) {
	RegisterMetrics()
	result := "ok"
	if !success {
		result = "failed"
	}
	monitorPublishes.WithLabelValues(result).Inc()
}

func SetActiveDisplays(n int) {
	RegisterMetrics()
	monitorActive.Set(float64(n))
}

func RecordStaleChecked(n int) {
	RegisterMetrics()
	sweepChecked.Add(float64(n))
}
