package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados possíveis de uma chamada de alocação.
const (
	ResultSuccess      = "success"
	ResultInsufficient = "insufficient"
	ResultConflict     = "conflict"
	ResultInvalid      = "invalid"
	ResultError        = "error"
)

// Metrics agrupa as métricas do serviço num registry próprio.
type Metrics struct {
	registry *prometheus.Registry

	AllocationsTotal   *prometheus.CounterVec
	AllocationRetries  prometheus.Counter
	AllocationDuration *prometheus.HistogramVec
	BatchesReceived    prometheus.Counter
}

// New cria as métricas no namespace informado (e.g., "dairystock").
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.AllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Total de chamadas de alocação FIFO por operação e resultado",
		},
		[]string{"operation", "result"},
	)

	m.AllocationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_retries_total",
			Help:      "Total de transações de alocação repetidas após conflito",
		},
	)

	m.AllocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_duration_seconds",
			Help:      "Duração das chamadas de alocação, incluindo novas tentativas",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	m.BatchesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_received_total",
			Help:      "Total de lotes recebidos no ledger",
		},
	)

	registry.MustRegister(m.AllocationsTotal, m.AllocationRetries, m.AllocationDuration, m.BatchesReceived)
	return m
}

// Handler expõe o registry no formato do Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
