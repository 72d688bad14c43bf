// Package otel provides span helpers and shared attribute keys for the catalog BFF.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used for every span in this module
const TracerName = "github.com/greenhouse-labs/catalog-bff"

// Attribute keys shared by the sync pipeline and the read API.
const (
	AttrRunID        = attribute.Key("sync.run_id")
	AttrTrigger      = attribute.Key("sync.trigger")
	AttrPage         = attribute.Key("upstream.page")
	AttrPageSize     = attribute.Key("upstream.page_size")
	AttrPagesFetched = attribute.Key("upstream.pages_fetched")
	AttrRecordsKept  = attribute.Key("sync.records_kept")
	AttrDropped      = attribute.Key("sync.records_dropped")
	AttrStored       = attribute.Key("store.items_stored")
	AttrItemID       = attribute.Key("catalog.item_id")
	AttrResultCount  = attribute.Key("result.count")
)

// Tracer returns the module tracer from provider, or nil when provider is nil
func Tracer(provider trace.TracerProvider) trace.Tracer {
	if provider == nil {
		return nil
	}
	return provider.Tracer(TracerName)
}

// StartSpan starts a new span if the tracer is non-nil. Otherwise ctx is
// returned unchanged with a no-op span, so ending it never ends a parent.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, noop.Span{}
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed.
// The status description stays generic so upstream URLs and credentials in
// error strings only reach the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
