// Package metrics exposes Prometheus collectors for the repair desk. Every
// recorder is a no-op until Init has run.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "hotline_"

	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

var (
	registerOnce sync.Once

	identifierChecks  *prometheus.CounterVec
	scanCodes         prometheus.Counter
	repairTransitions *prometheus.CounterVec
	partsConsumed     *prometheus.CounterVec
	dashboardBuilds   *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
)

// Init registers collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		identifierChecks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "identifier_checks_total",
				Help: "Device identifier validations by kind and result",
			},
			[]string{"kind", "result"},
		)
		scanCodes = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_codes_total",
				Help: "Codes captured from keyboard wedge scanner bursts",
			},
		)
		repairTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "repair_transitions_total",
				Help: "Repair job status changes by target status",
			},
			[]string{"status"},
		)
		partsConsumed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "parts_consumed_total",
				Help: "Catalog part units consumed by completed repairs",
			},
			[]string{"product_id"},
		)
		dashboardBuilds = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dashboard_builds_total",
				Help: "Technician dashboard requests by cache outcome",
			},
			[]string{"cache"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		)

		prometheus.MustRegister(
			identifierChecks,
			scanCodes,
			repairTransitions,
			partsConsumed,
			dashboardBuilds,
			httpLatency,
		)
	})
}

func IncIdentifierCheck(kind string, valid bool) {
	if identifierChecks == nil {
		return
	}
	result := ResultInvalid
	if valid {
		result = ResultValid
	}
	identifierChecks.WithLabelValues(kind, result).Inc()
}

func AddScanCodes(count int) {
	if scanCodes == nil || count <= 0 {
		return
	}
	scanCodes.Add(float64(count))
}

func IncRepairTransition(status string) {
	if repairTransitions == nil {
		return
	}
	repairTransitions.WithLabelValues(status).Inc()
}

func AddPartsConsumed(productID string, qty int) {
	if partsConsumed == nil || productID == "" || qty <= 0 {
		return
	}
	partsConsumed.WithLabelValues(productID).Add(float64(qty))
}

func IncDashboardBuild(cached bool) {
	if dashboardBuilds == nil {
		return
	}
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	dashboardBuilds.WithLabelValues(outcome).Inc()
}

func ObserveHTTPRequest(method string, code int, duration time.Duration) {
	if httpLatency == nil {
		return
	}
	httpLatency.WithLabelValues(method, strconv.Itoa(code)).Observe(duration.Seconds())
}
