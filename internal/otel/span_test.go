package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func TestTracer_NilProvider(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Tracer(nil))

	ctx, span := StartSpan(context.Background(), Tracer(nil), "sync.run")
	require.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	assert.NotPanics(t, func() { span.End() })
}

func TestStartSpan_RecordsAttributes(t *testing.T) {
	t.Parallel()

	exporter, tp := newRecorder(t)

	_, span := StartSpan(context.Background(), Tracer(tp), "upstream.fetch_page")
	span.SetAttributes(AttrPage.Int(3), AttrRunID.String("run-1"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "upstream.fetch_page", spans[0].Name)
	assert.Equal(t, TracerName, spans[0].InstrumentationScope.Name)

	attrs := make(map[string]any)
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(3), attrs["upstream.page"])
	assert.Equal(t, "run-1", attrs["sync.run_id"])
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { RecordError(nil, errors.New("boom")) })

	exporter, tp := newRecorder(t)

	_, ok := tp.Tracer("t").Start(context.Background(), "ok")
	RecordError(ok, nil)
	ok.End()

	_, failed := tp.Tracer("t").Start(context.Background(), "failed")
	RecordError(failed, errors.New("login rejected for https://erp.example.com"))
	failed.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)

	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "operation failed", spans[1].Status.Description)
	require.NotEmpty(t, spans[1].Events)
	assert.Equal(t, "exception", spans[1].Events[0].Name)
}
