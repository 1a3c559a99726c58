package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"personasim/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Pipeline stages reported through RecordStage.
const (
	StageSimulate  = "simulate"
	StageAnalyze   = "analyze"
	StageCompare   = "compare"
	StageExtract   = "extract"
	StageExport    = "export"
	StageFramework = "framework"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// Metrics holds all custom metrics for personasim
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Pipeline metrics
	StageRuns          metric.Int64Counter
	ResponsesGenerated metric.Int64Counter
	ContentSize        metric.Int64Histogram

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup. A nil manager is a
// valid no-op recorder.
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	extraReaders     []sdkmetric.Reader
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.ServeMux
}

// NewObservabilityManager creates a new observability manager. Extra readers
// are attached to the meter provider next to the configured exporters.
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config, readers ...sdkmetric.Reader) (*ObservabilityManager, error) {
	if !obsConfig.Enabled {
		return &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}, nil
	}

	om := &ObservabilityManager{
		config:       obsConfig,
		fullConfig:   fullConfig,
		extraReaders: readers,
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

func (om *ObservabilityManager) initResource() error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.getServiceInstanceID()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(om.resource)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initCustomMetrics()
}

func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	readers := append([]sdkmetric.Reader(nil), om.extraReaders...)

	if err := om.setupConsoleReader(&readers); err != nil {
		return nil, err
	}
	if err := om.setupOTLPReader(&readers); err != nil {
		return nil, err
	}
	if err := om.setupPrometheusReader(&readers); err != nil {
		return nil, err
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

func (om *ObservabilityManager) setupConsoleReader(readers *[]sdkmetric.Reader) error {
	if !om.config.ConsoleOutput {
		return nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create console metric exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	*readers = append(*readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	return nil
}

func (om *ObservabilityManager) setupOTLPReader(readers *[]sdkmetric.Reader) error {
	if om.fullConfig == nil || !om.fullConfig.Observability.OTLP.Enabled {
		return nil
	}

	otlpReader, err := om.createOTLPMetricsReader()
	if err != nil {
		return fmt.Errorf("failed to create OTLP metrics reader: %w", err)
	}
	*readers = append(*readers, otlpReader)
	return nil
}

func (om *ObservabilityManager) setupPrometheusReader(readers *[]sdkmetric.Reader) error {
	if !om.config.Prometheus.Enabled {
		return nil
	}

	prometheusReader, prometheusMux, err := SetupPrometheusExporter(om.config.Prometheus)
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	if prometheusReader == nil {
		return nil
	}
	*readers = append(*readers, prometheusReader)
	om.prometheusServer = prometheusMux

	srv, err := StartPrometheusServer(prometheusMux, om.config.Prometheus.Port)
	if err != nil {
		return fmt.Errorf("failed to start Prometheus server: %w", err)
	}
	if srv != nil {
		om.shutdownFuncs = append(om.shutdownFuncs, srv.Shutdown)
	}
	return nil
}

func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	om.metrics = &Metrics{}

	if err := om.createAIMetrics(meter); err != nil {
		return err
	}
	if err := om.createPipelineMetrics(meter); err != nil {
		return err
	}
	return om.createRateLimitMetrics(meter)
}

func (om *ObservabilityManager) createAIMetrics(meter metric.Meter) error {
	var err error

	om.metrics.AIProcessingTime, err = meter.Float64Histogram(
		"personasim_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	om.metrics.AIRequestCount, err = meter.Int64Counter(
		"personasim_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	om.metrics.AIErrorCount, err = meter.Int64Counter(
		"personasim_ai_errors_total",
		metric.WithDescription("Total number of AI request errors"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	om.metrics.AITokenUsage, err = meter.Int64Histogram(
		"personasim_ai_token_usage",
		metric.WithDescription("Token usage for AI requests (input, output)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	return nil
}

func (om *ObservabilityManager) createPipelineMetrics(meter metric.Meter) error {
	var err error

	om.metrics.StageRuns, err = meter.Int64Counter(
		"personasim_pipeline_runs_total",
		metric.WithDescription("Pipeline stage runs by stage and outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline runs metric: %w", err)
	}

	om.metrics.ResponsesGenerated, err = meter.Int64Counter(
		"personasim_responses_generated_total",
		metric.WithDescription("Simulated answers written to response sets"),
	)
	if err != nil {
		return fmt.Errorf("failed to create responses generated metric: %w", err)
	}

	om.metrics.ContentSize, err = meter.Int64Histogram(
		"personasim_content_size_bytes",
		metric.WithDescription("Size of documents read and artifacts written"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create content size metric: %w", err)
	}

	return nil
}

func (om *ObservabilityManager) createRateLimitMetrics(meter metric.Meter) error {
	var err error

	om.metrics.RateLimitHits, err = meter.Int64Counter(
		"personasim_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om == nil || om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if om == nil || !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om == nil || !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	if om == nil {
		return nil
	}
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (om *ObservabilityManager) custom() *config.CustomMetricsConfig {
	if om.fullConfig == nil {
		return nil
	}
	return &om.fullConfig.Observability.CustomMetrics
}

// RecordAICall records one completed model call. It satisfies the usage
// recorder hook of the AI service.
func (om *ObservabilityManager) RecordAICall(ctx context.Context, operation string, inputTokens, outputTokens int64, duration time.Duration, err error) {
	if om == nil || om.metrics == nil {
		return
	}
	custom := om.custom()
	if custom != nil && !custom.AIOperations.Enabled {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	opt := metric.WithAttributes(attrs...)

	if custom == nil || custom.AIOperations.TrackDuration {
		om.metrics.AIProcessingTime.Record(ctx, duration.Seconds(), opt)
	}
	om.metrics.AIRequestCount.Add(ctx, 1, opt)
	if err != nil {
		om.metrics.AIErrorCount.Add(ctx, 1, opt)
		return
	}

	if custom == nil || custom.AIOperations.TrackTokenUsage {
		om.recordTokens(ctx, operation, "input", inputTokens)
		om.recordTokens(ctx, operation, "output", outputTokens)
	}
}

func (om *ObservabilityManager) recordTokens(ctx context.Context, operation, tokenType string, value int64) {
	om.metrics.AITokenUsage.Record(ctx, value, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("token_type", tokenType),
	))
}

func (om *ObservabilityManager) pipelineEnabled() bool {
	if om == nil || om.metrics == nil {
		return false
	}
	custom := om.custom()
	return custom == nil || custom.PipelineMetrics.Enabled
}

// RecordStage counts one run of a pipeline stage.
func (om *ObservabilityManager) RecordStage(ctx context.Context, stage string, success bool, attributes ...attribute.KeyValue) {
	if !om.pipelineEnabled() {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("stage", stage)}, attributes...)
	if custom := om.custom(); custom == nil || custom.PipelineMetrics.TrackSuccessRates {
		attrs = append(attrs, attribute.Bool("success", success))
	}
	om.metrics.StageRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordResponses counts answers generated for one persona.
func (om *ObservabilityManager) RecordResponses(ctx context.Context, persona string, count int) {
	if !om.pipelineEnabled() || count <= 0 {
		return
	}
	om.metrics.ResponsesGenerated.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("persona", persona)))
}

// RecordContentSize records the size of a document read or artifact written.
func (om *ObservabilityManager) RecordContentSize(ctx context.Context, stage, kind string, size int) {
	if !om.pipelineEnabled() {
		return
	}
	if custom := om.custom(); custom != nil && !custom.PipelineMetrics.TrackContentSizes {
		return
	}
	om.metrics.ContentSize.Record(ctx, int64(size), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("kind", kind),
	))
}

// RecordRateLimitHit counts a rejected request.
func (om *ObservabilityManager) RecordRateLimitHit(ctx context.Context, attributes ...attribute.KeyValue) {
	if om == nil || om.metrics == nil {
		return
	}
	if custom := om.custom(); custom != nil && (!custom.Infrastructure.Enabled || !custom.Infrastructure.TrackRateLimits) {
		return
	}
	om.metrics.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attributes...))
}

type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return om.config.ServiceName + "-1"
}

func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
