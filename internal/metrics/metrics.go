package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dentsched",
			Name:      "availability_checks_total",
			Help:      "Count of availability resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	validationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dentsched",
			Name:      "validation_rejections_total",
			Help:      "Count of booking validations rejected, by cause.",
		},
		[]string{"cause"},
	)

	scheduleSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dentsched",
			Name:      "schedule_saves_total",
			Help:      "Count of schedule document writes by result.",
		},
		[]string{"result"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dentsched",
			Name:      "availability_cache_total",
			Help:      "Availability cache lookups by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dentsched",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status class.",
		},
		[]string{"route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dentsched",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(availabilityChecks, validationRejections,
			scheduleSaves, cacheHits, httpRequests, httpDuration)
	})
}

func IncAvailabilityCheck(outcome string) {
	availabilityChecks.WithLabelValues(outcome).Inc()
}

func IncValidationRejection(cause string) {
	validationRejections.WithLabelValues(cause).Inc()
}

func IncScheduleSave(result string) {
	scheduleSaves.WithLabelValues(result).Inc()
}

func IncCacheHit() {
	cacheHits.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheHits.WithLabelValues("miss").Inc()
}

func ObserveHTTPRequest(route string, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
