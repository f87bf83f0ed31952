package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once              sync.Once
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"service", "method", "path"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_mutations_total",
			Help: "Total number of committed create, update and delete operations",
		},
		[]string{"entity", "operation"},
	)

	NotificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_notification_failures_total",
			Help: "Committed mutations whose change notification could not be published",
		},
		[]string{"event"},
	)
)

// InitMetrics registers the HTTP and data collectors with reg once per process.
func InitMetrics(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(HTTPRequestsTotal)
		reg.MustRegister(HTTPRequestDuration)
		reg.MustRegister(HTTPResponseSize)
		reg.MustRegister(MutationsTotal)
		reg.MustRegister(NotificationFailuresTotal)
	})
}

func RecordMutation(entity, operation string) {
	MutationsTotal.WithLabelValues(entity, operation).Inc()
}

func RecordNotificationFailure(event string) {
	NotificationFailuresTotal.WithLabelValues(event).Inc()
}
