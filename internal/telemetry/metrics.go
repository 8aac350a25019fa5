package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счётчики и гистограммы движка для Prometheus.
//
// Регистрируются в переданном Registerer; nil-safe: методы на nil
// приёмнике ничего не делают, что позволяет не тащить метрики в тесты.
type Metrics struct {
	executionsTotal *prometheus.CounterVec
	nodeRunsTotal   *prometheus.CounterVec
	nodeRetries     prometheus.Counter
	nodeDuration    *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	workersActive   prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики движка.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "executions_total",
			Help:      "Количество завершённых запусков по итоговому статусу.",
		}, []string{"status"}),

		nodeRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "node_executions_total",
			Help:      "Количество выполнений узлов по типу и результату.",
		}, []string{"type", "result"}),

		nodeRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "node_retries_total",
			Help:      "Количество повторных попыток выполнения узлов.",
		}),

		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeflow",
			Name:      "node_duration_seconds",
			Help:      "Длительность выполнения узла.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodeflow",
			Name:      "queue_depth",
			Help:      "Текущая глубина очереди запусков.",
		}),

		workersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodeflow",
			Name:      "workers_active",
			Help:      "Количество воркеров, выполняющих запуск.",
		}),
	}
}

// ExecutionFinished фиксирует завершение запуска.
func (m *Metrics) ExecutionFinished(status string) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(status).Inc()
}

// NodeExecuted фиксирует выполнение узла.
func (m *Metrics) NodeExecuted(nodeType, result string, seconds float64) {
	if m == nil {
		return
	}
	m.nodeRunsTotal.WithLabelValues(nodeType, result).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(seconds)
}

// NodeRetried фиксирует повторную попытку узла.
func (m *Metrics) NodeRetried() {
	if m == nil {
		return
	}
	m.nodeRetries.Inc()
}

// SetQueueDepth обновляет глубину очереди.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// WorkerStarted/WorkerFinished отслеживают занятость воркеров.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.workersActive.Inc()
}

func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.workersActive.Dec()
}
