package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PrometheusMetricsRecorder exports operation counters, latency histograms,
// and the size of the served dataset to a Prometheus registry.
type PrometheusMetricsRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	entities   *prometheus.GaugeVec
}

// NewPrometheusMetricsRecorder registers the fungiatlas collectors on reg.
// A nil registry gets a fresh one, readable through Registry.
func NewPrometheusMetricsRecorder(reg *prometheus.Registry) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &PrometheusMetricsRecorder{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fungiatlas",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fungiatlas",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"operation"}),
		entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fungiatlas",
			Name:      "dataset_entities",
			Help:      "Entities in the served dataset.",
		}, []string{"kind"}),
	}
}

// Registry returns the registry the collectors live on.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveDataset records the size of a newly published dataset.
func (r *PrometheusMetricsRecorder) ObserveDataset(ds *Dataset) {
	if ds == nil {
		return
	}
	r.entities.WithLabelValues("species").Set(float64(ds.Len()))
	r.entities.WithLabelValues("edges").Set(float64(ds.Graph().Len()))
	r.entities.WithLabelValues("features").Set(float64(ds.Vocabulary().Len()))
}

// datasetObserver is implemented by recorders that track dataset size.
type datasetObserver interface {
	ObserveDataset(ds *Dataset)
}

// OTelTracer adapts an OpenTelemetry tracer to Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tracer; nil uses the global provider.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	if tracer == nil {
		tracer = otel.Tracer("fungiatlas/core")
	}
	return &OTelTracer{tracer: tracer}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "fungiatlas."+operation,
		trace.WithAttributes(attribute.String("fungiatlas.operation", operation)),
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
