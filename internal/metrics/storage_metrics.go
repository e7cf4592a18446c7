package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics содержит метрики слоя хранения: длительности операций
// и счётчик конфликтов optimistic locking.
type StorageMetrics struct {
	opDuration *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
}

// NewStorageMetrics создаёт метрики в default registerer. Повторные вызовы
// возвращают уже зарегистрированные коллекторы, поэтому каждый репозиторий
// может запрашивать свой экземпляр независимо.
func NewStorageMetrics() *StorageMetrics {
	return newStorageMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newStorageMetricsWithRegisterer(registerer prometheus.Registerer) *StorageMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorageMetrics{
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "ordercore_storage_op_duration_seconds",
			Help:    "Duration of repository operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"entity", "op"}),
		conflicts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordercore_storage_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts detected",
		}, []string{"entity"}),
	}
}

// ObserveOp фиксирует длительность операции репозитория.
// Используется как defer m.ObserveOp("order", "update", time.Now()).
func (m *StorageMetrics) ObserveOp(entity, op string, started time.Time) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(entity, op).Observe(time.Since(started).Seconds())
}

// ConflictDetected увеличивает счётчик конфликтов версий для сущности.
func (m *StorageMetrics) ConflictDetected(entity string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(entity).Inc()
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
