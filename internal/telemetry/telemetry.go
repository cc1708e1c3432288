package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers.
//
// A zero Telemetry (or a nil *Telemetry) is valid: every Record* call is a
// no-op and Instrument* helpers just run the wrapped function.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	meter          metric.Meter
	exporter       *prometheus.Exporter

	searchPagesTotal   metric.Int64Counter
	searchResultsTotal metric.Int64Counter
	searchDuration     metric.Float64Histogram

	downloadsTotal   metric.Int64Counter
	downloadsActive  metric.Int64UpDownCounter
	downloadDuration metric.Float64Histogram
	downloadBytes    metric.Int64Counter
	filesTotal       metric.Int64Counter

	validationsTotal metric.Int64Counter
	systemErrors     metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

// New creates a new telemetry instance. When cfg.Enabled is false the
// returned Telemetry records nothing.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	}

	if cfg.OTLPEndpoint != "" {
		otlp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlp)))
	}

	meterProvider := sdkmetric.NewMeterProvider(opts...)
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	t, err := newTelemetry(meterProvider, tracerProvider, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	t.exporter = exporter

	if err := otelruntime.Start(otelruntime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime metrics: %w", err)
	}

	return t, nil
}

func newTelemetry(mp *sdkmetric.MeterProvider, tp *sdktrace.TracerProvider, name string) (*Telemetry, error) {
	t := &Telemetry{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(name),
		meter:          mp.Meter(name),
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

// Tracer returns the OpenTelemetry tracer, or nil when telemetry is disabled.
func (t *Telemetry) Tracer() trace.Tracer {
	if t == nil {
		return nil
	}

	return t.tracer
}

// Transport wraps base so outgoing requests get client spans and metrics.
func (t *Telemetry) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	if t == nil || t.meterProvider == nil {
		return base
	}

	return otelhttp.NewTransport(base,
		otelhttp.WithMeterProvider(t.meterProvider),
		otelhttp.WithTracerProvider(t.tracerProvider),
	)
}

// ServerHandler wraps h with server-side spans and metrics.
func (t *Telemetry) ServerHandler(h http.Handler, operation string) http.Handler {
	if t == nil || t.meterProvider == nil {
		return h
	}

	return otelhttp.NewHandler(h, operation,
		otelhttp.WithMeterProvider(t.meterProvider),
		otelhttp.WithTracerProvider(t.tracerProvider),
	)
}

// RecordSearchPage records one provider page request.
func (t *Telemetry) RecordSearchPage(ctx context.Context, status string, results int, duration time.Duration) {
	if t == nil || t.searchPagesTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	t.searchPagesTotal.Add(ctx, 1, attrs)
	t.searchResultsTotal.Add(ctx, int64(results))
	t.searchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordDownload records one image request.
func (t *Telemetry) RecordDownload(ctx context.Context, status string, bytes int64, duration time.Duration) {
	if t == nil || t.downloadsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	t.downloadsTotal.Add(ctx, 1, attrs)
	t.downloadDuration.Record(ctx, duration.Seconds(), attrs)

	if bytes > 0 {
		t.downloadBytes.Add(ctx, bytes)
	}
}

// RecordFile records what happened to a completed job on disk:
// "written", "unsupported_extension", "no_data" or "write_error".
func (t *Telemetry) RecordFile(ctx context.Context, outcome, extension string) {
	if t == nil || t.filesTotal == nil {
		return
	}

	t.filesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("extension", extension),
	))
}

// IncrementActiveDownloads increments in-flight image requests.
func (t *Telemetry) IncrementActiveDownloads(ctx context.Context) {
	if t != nil && t.downloadsActive != nil {
		t.downloadsActive.Add(ctx, 1)
	}
}

// DecrementActiveDownloads decrements in-flight image requests.
func (t *Telemetry) DecrementActiveDownloads(ctx context.Context) {
	if t != nil && t.downloadsActive != nil {
		t.downloadsActive.Add(ctx, -1)
	}
}

// RecordValidation records one validated (or rejected) image.
func (t *Telemetry) RecordValidation(ctx context.Context, status string) {
	if t != nil && t.validationsTotal != nil {
		t.validationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordSystemError records system error metrics.
func (t *Telemetry) RecordSystemError(ctx context.Context, component, errorType string) {
	if t != nil && t.systemErrors != nil {
		t.systemErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("error_type", errorType),
		))
	}
}

// Handler returns the HTTP handler for metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}

	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	if t.searchPagesTotal, err = t.meter.Int64Counter(
		"search_pages_total",
		metric.WithDescription("Total number of search provider page requests"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create search_pages_total counter: %w", err)
	}

	if t.searchResultsTotal, err = t.meter.Int64Counter(
		"search_results_total",
		metric.WithDescription("Total number of image results returned by the search provider"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create search_results_total counter: %w", err)
	}

	if t.searchDuration, err = t.meter.Float64Histogram(
		"search_page_duration_seconds",
		metric.WithDescription("Search page request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create search_page_duration histogram: %w", err)
	}

	if t.downloadsTotal, err = t.meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total number of image requests"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	if t.downloadsActive, err = t.meter.Int64UpDownCounter(
		"downloads_active",
		metric.WithDescription("Number of image requests in flight"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create downloads_active counter: %w", err)
	}

	if t.downloadDuration, err = t.meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Image request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create download_duration histogram: %w", err)
	}

	if t.downloadBytes, err = t.meter.Int64Counter(
		"download_bytes_total",
		metric.WithDescription("Total bytes received from image hosts"),
		metric.WithUnit("By"),
	); err != nil {
		return fmt.Errorf("failed to create download_bytes_total counter: %w", err)
	}

	if t.filesTotal, err = t.meter.Int64Counter(
		"dataset_files_total",
		metric.WithDescription("Completed download jobs by outcome"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create dataset_files_total counter: %w", err)
	}

	if t.validationsTotal, err = t.meter.Int64Counter(
		"validations_total",
		metric.WithDescription("Total number of validated images"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create validations_total counter: %w", err)
	}

	if t.systemErrors, err = t.meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create system_errors counter: %w", err)
	}

	return nil
}
