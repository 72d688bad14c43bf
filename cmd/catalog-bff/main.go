// Package main is the entry point for the catalog BFF.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/cmd/catalog-bff/app"
)

// traceHandler wraps an slog.Handler to inject the OpenTelemetry trace_id and
// span_id of the active span into every record
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	// stderr keeps stdout clean for commands that print data (version --format json)
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: app.LogLevel})
	slog.SetDefault(slog.New(&traceHandler{Handler: base}))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
