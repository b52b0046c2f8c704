package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const metricsNamespace = "supplywatch"

// PrometheusMetrics records registry and broadcaster activity. It implements
// MetricsRecorder, PersistFailureRecorder and SubscriberMetrics.
type PrometheusMetrics struct {
	operations      *prometheus.CounterVec
	durations       *prometheus.HistogramVec
	persistFailures *prometheus.CounterVec
	subscribers     prometheus.Gauge
	published       *prometheus.CounterVec
	evicted         prometheus.Counter
}

// NewPrometheusMetrics builds the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registry_operations_total",
			Help:      "Registry operations by name and result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "registry_operation_duration_seconds",
			Help:      "Registry operation latency including the snapshot write.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot writes that failed and left the registry unpersisted.",
		}, []string{"driver"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "subscribers",
			Help:      "Currently connected event subscribers.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_published_total",
			Help:      "Change events handed to the broadcaster by kind.",
		}, []string{"kind"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "subscribers_evicted_total",
			Help:      "Subscribers disconnected because their queue was full.",
		}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.durations, m.persistFailures, m.subscribers, m.published, m.evicted} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// PersistFailed implements PersistFailureRecorder.
func (m *PrometheusMetrics) PersistFailed(driver string) {
	m.persistFailures.WithLabelValues(driver).Inc()
}

func (m *PrometheusMetrics) SubscriberAdded()   { m.subscribers.Inc() }
func (m *PrometheusMetrics) SubscriberRemoved() { m.subscribers.Dec() }
func (m *PrometheusMetrics) SubscriberEvicted() { m.evicted.Inc() }

func (m *PrometheusMetrics) EventPublished(kind string) {
	m.published.WithLabelValues(kind).Inc()
}

// OtelTracer adapts an OpenTelemetry tracer to the Tracer interface.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer uses tp, or the global provider when tp is nil.
func NewOtelTracer(tp trace.TracerProvider) *OtelTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OtelTracer{tracer: tp.Tracer("supplywatch/registry")}
}

// Start implements Tracer.
func (t *OtelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "registry."+operation,
		trace.WithAttributes(attribute.String("registry.operation", operation)),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
