package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	executionDuration *prometheus.HistogramVec
	registrations     *prometheus.CounterVec
	registeredTools   *prometheus.GaugeVec
	batchOperations   *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gqlmcpd_execution_duration_seconds",
				Help:    "Duration of GraphQL operation executions in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint", "status"},
		),
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gqlmcpd_endpoint_registrations_total",
				Help: "Total number of endpoint register/refresh attempts",
			},
			[]string{"endpoint", "status"},
		),
		registeredTools: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gqlmcpd_registered_tools",
				Help: "Current number of generated tools per endpoint",
			},
			[]string{"endpoint"},
		),
		batchOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gqlmcpd_batch_operations_total",
				Help: "Total number of batch member operations by outcome",
			},
			[]string{"endpoint", "status"},
		),
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func (p *PrometheusMetrics) ObserveExecution(endpointName string, duration time.Duration, success bool) {
	p.executionDuration.WithLabelValues(endpointName, statusLabel(success)).Observe(duration.Seconds())
	p.batchOperations.WithLabelValues(endpointName, statusLabel(success)).Inc()
}

func (p *PrometheusMetrics) ObserveRegistration(endpointName string, err error) {
	p.registrations.WithLabelValues(endpointName, statusLabel(err == nil)).Inc()
}

func (p *PrometheusMetrics) SetRegisteredTools(endpointName string, count int) {
	p.registeredTools.WithLabelValues(endpointName).Set(float64(count))
}
