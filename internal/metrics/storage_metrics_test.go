package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorageMetrics_ObserveOp(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newStorageMetricsWithRegisterer(registry)

	m.ObserveOp("order", "update", time.Now().Add(-10*time.Millisecond))
	m.ObserveOp("order", "update", time.Now().Add(-20*time.Millisecond))

	metric := &dto.Metric{}
	hist, err := m.opDuration.GetMetricWithLabelValues("order", "update")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}
	if err := hist.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestStorageMetrics_ConflictDetected(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newStorageMetricsWithRegisterer(registry)

	m.ConflictDetected("customer")
	m.ConflictDetected("customer")
	m.ConflictDetected("product")

	metric := &dto.Metric{}
	counter, err := m.conflicts.GetMetricWithLabelValues("customer")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if metric.GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 conflicts, got %f", metric.GetCounter().GetValue())
	}
}

func TestStorageMetrics_DoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newStorageMetricsWithRegisterer(registry)
	second := newStorageMetricsWithRegisterer(registry)

	first.ConflictDetected("order")
	second.ConflictDetected("order")

	metric := &dto.Metric{}
	counter, err := first.conflicts.GetMetricWithLabelValues("order")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if metric.GetCounter().GetValue() != 2 {
		t.Fatalf("expected shared collector with 2 increments, got %f", metric.GetCounter().GetValue())
	}
}

func TestStorageMetrics_NilReceiver(t *testing.T) {
	var m *StorageMetrics
	m.ObserveOp("order", "get", time.Now())
	m.ConflictDetected("order")
}
