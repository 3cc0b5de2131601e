package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raterudder/devicerudder/pkg/types"
)

type metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.SummaryVec
	evaluations     *prometheus.CounterVec
	devicesShed     prometheus.Counter
	recordFailures  prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devicerudder",
			Subsystem: "server",
			Name:      "http_requests_total",
			Help:      "total number of http requests",
		},
			[]string{"code", "method"},
		),
		requestDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: "devicerudder",
			Subsystem: "server",
			Name:      "http_request_duration_seconds",
			Help:      "duration of http requests",
		},
			[]string{"code", "method"},
		),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devicerudder",
			Subsystem: "controller",
			Name:      "evaluations_total",
			Help:      "total number of evaluations by resulting mode",
		},
			[]string{"energy_saving", "temperature_regulation"},
		),
		devicesShed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devicerudder",
			Subsystem: "controller",
			Name:      "devices_shed_total",
			Help:      "total number of devices turned off by load shedding",
		}),
		recordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devicerudder",
			Subsystem: "server",
			Name:      "decision_record_failures_total",
			Help:      "total number of decisions that could not be stored",
		}),
	}
	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.evaluations,
		m.devicesShed,
		m.recordFailures,
	)
	return m
}

// observeEvaluation counts the evaluation and every device the usage limit
// stage wrote.
func (m *metrics) observeEvaluation(result types.EvaluationResult) {
	m.evaluations.WithLabelValues(
		strconv.FormatBool(result.EnergySavingMode),
		strconv.FormatBool(result.TemperatureRegulationActive),
	).Inc()
	for _, report := range result.Stages {
		if report.Stage == types.StageUsageLimit {
			m.devicesShed.Add(float64(len(report.Writes)))
		}
	}
}

func (m *metrics) instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.requestCounter,
		promhttp.InstrumentHandlerDuration(m.requestDuration, next),
	)
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
