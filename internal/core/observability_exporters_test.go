package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fungiatlas/internal/atlasdata"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	assert.Same(t, reg, rec.Registry())

	rec.Observe(context.Background(), "identify", true, 3*time.Millisecond)
	rec.Observe(context.Background(), "identify", true, time.Millisecond)
	rec.Observe(context.Background(), "identify", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.operations.WithLabelValues("identify", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("identify", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.durations))

	rec.ObserveDataset(nil)
	rec.ObserveDataset(loadDefault(t))
	assert.Equal(t, 15.0, testutil.ToFloat64(rec.entities.WithLabelValues("species")))
	assert.Equal(t, 12.0, testutil.ToFloat64(rec.entities.WithLabelValues("edges")))
	assert.Equal(t, 13.0, testutil.ToFloat64(rec.entities.WithLabelValues("features")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"fungiatlas_operations_total",
		"fungiatlas_operation_duration_seconds",
		"fungiatlas_dataset_entities",
	}, names)
}

func TestServicePublishesDatasetGauges(t *testing.T) {
	rec := NewPrometheusMetricsRecorder(nil)
	svc := NewService(atlasdata.Source{}, WithMetricsRecorder(rec))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, testutil.ToFloat64(rec.entities.WithLabelValues("species")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("reload", "success")))
}

func TestOTelTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	tracer := NewOTelTracer(provider.Tracer("fungiatlas-test"))

	_, span := tracer.Start(context.Background(), "reload")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "identify")
	span.End(errors.New("unknown feature"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "fungiatlas.reload", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("fungiatlas.operation", "reload"))

	assert.Equal(t, "fungiatlas.identify", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "unknown feature", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)
	assert.Equal(t, "exception", ended[1].Events()[0].Name)
}

func TestOTelTracerDefaultsToGlobalProvider(t *testing.T) {
	tracer := NewOTelTracer(nil)
	ctx, span := tracer.Start(context.Background(), "identify")
	assert.NotNil(t, ctx)
	span.End(nil)
}

func TestNoopCollaborators(t *testing.T) {
	var logger Logger = noopLogger{}
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	noopAuditRecorder{}.Record(context.Background(), AuditEntry{})
	noopMetricsRecorder{}.Observe(context.Background(), "reload", true, 0)
	ctx := context.Background()
	got, span := noopTracer{}.Start(ctx, "reload")
	assert.Equal(t, ctx, got)
	span.End(nil)
}
