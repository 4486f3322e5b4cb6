package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "presence"

var (
	once sync.Once

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Count of memoized loader lookups by key and outcome.",
		},
		[]string{"key", "outcome"},
	)

	cacheReloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_reload_duration_seconds",
			Help:      "Time spent re-reading a source file on cache miss or expiry.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"key"},
	)

	skippedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_rows_total",
			Help:      "Count of malformed source rows dropped while parsing.",
		},
		[]string{"source"},
	)

	reportCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Count of report cache lookups by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Count of bot commands handled by command and status.",
		},
		[]string{"command", "status"},
	)

	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Count of monthly report deliveries by publisher and status.",
		},
		[]string{"publisher", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(cacheRequests, cacheReloadDuration, skippedRows, reportCache, botCommands, exports)
	})
}

func IncCacheHit(key string) {
	cacheRequests.WithLabelValues(key, "hit").Inc()
}

func IncCacheMiss(key string) {
	cacheRequests.WithLabelValues(key, "miss").Inc()
}

func IncCacheError(key string) {
	cacheRequests.WithLabelValues(key, "error").Inc()
}

func ObserveReload(key string, took time.Duration) {
	cacheReloadDuration.WithLabelValues(key).Observe(took.Seconds())
}

func AddSkippedRows(source string, count int) {
	if count <= 0 {
		return
	}
	skippedRows.WithLabelValues(source).Add(float64(count))
}

func IncReportCache(backend, outcome string) {
	reportCache.WithLabelValues(backend, outcome).Inc()
}

func IncBotCommand(command, status string) {
	botCommands.WithLabelValues(command, status).Inc()
}

func IncExport(publisher, status string) {
	exports.WithLabelValues(publisher, status).Inc()
}
