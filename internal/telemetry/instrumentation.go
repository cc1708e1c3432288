package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes must stay low-cardinality: no URLs, file paths or query
// text. Those belong in logs, which carry trace_id for correlation.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation runs fn inside a span named operationName.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentSearchPage instruments one provider page request. fn reports how
// many results the page carried.
func (t *Telemetry) InstrumentSearchPage(ctx context.Context, provider string, fn func(ctx context.Context) (int, error)) error {
	var results int

	start := time.Now()

	err := t.InstrumentOperation(ctx, "search_page", "search", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("search.provider", provider))

		var err error
		results, err = fn(ctx)

		return err
	})

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordSearchPage(ctx, status, results, time.Since(start))

	return err
}

// InstrumentDownload instruments a single image request and keeps the
// in-flight gauge accurate while fn runs. fn reports the bytes received.
func (t *Telemetry) InstrumentDownload(ctx context.Context, fn func(ctx context.Context) (int64, error)) error {
	var received int64

	t.IncrementActiveDownloads(ctx)
	defer t.DecrementActiveDownloads(ctx)

	start := time.Now()

	err := t.InstrumentOperation(ctx, "download", "downloader", func(ctx context.Context) error {
		var err error
		received, err = fn(ctx)

		return err
	})

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordDownload(ctx, status, received, time.Since(start))

	return err
}
