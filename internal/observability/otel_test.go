package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"personasim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func testConfig() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName:    "personasim-test",
		ServiceVersion: "test",
		Enabled:        true,
		SampleRate:     1.0,
	}
}

func newTestManager(t *testing.T, full *config.Config) (*ObservabilityManager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	om, err := NewObservabilityManager(testConfig(), full, reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	return om, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterTotal(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordAICall(t *testing.T) {
	om, reader := newTestManager(t, nil)
	ctx := context.Background()

	om.RecordAICall(ctx, config.OpSimulate, 120, 40, 250*time.Millisecond, nil)
	om.RecordAICall(ctx, config.OpSimulate, 0, 0, time.Second, errors.New("quota"))

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, metrics["personasim_ai_requests_total"]))
	assert.Equal(t, int64(1), counterTotal(t, metrics["personasim_ai_errors_total"]))

	tokens, ok := metrics["personasim_ai_token_usage"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Len(t, tokens.DataPoints, 2, "input and output series for the successful call")
}

func TestRecordStageHonoursConfig(t *testing.T) {
	full := &config.Config{}
	full.Observability.CustomMetrics.PipelineMetrics.Enabled = false
	om, reader := newTestManager(t, full)

	om.RecordStage(context.Background(), StageAnalyze, true)
	om.RecordResponses(context.Background(), "alex", 3)

	metrics := collect(t, reader)
	_, recorded := metrics["personasim_pipeline_runs_total"]
	assert.False(t, recorded)
}

func TestRecordStage(t *testing.T) {
	om, reader := newTestManager(t, nil)
	ctx := context.Background()

	om.RecordStage(ctx, StageSimulate, true, attribute.String("persona", "alex"))
	om.RecordStage(ctx, StageSimulate, false)
	om.RecordResponses(ctx, "alex", 4)
	om.RecordContentSize(ctx, StageExtract, "pdf", 2048)
	om.RecordRateLimitHit(ctx, attribute.String("client_type", "ip"))

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, metrics["personasim_pipeline_runs_total"]))
	assert.Equal(t, int64(4), counterTotal(t, metrics["personasim_responses_generated_total"]))
	assert.Equal(t, int64(1), counterTotal(t, metrics["personasim_rate_limit_hits_total"]))

	sizes, ok := metrics["personasim_content_size_bytes"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, sizes.DataPoints, 1)
	assert.Equal(t, int64(2048), sizes.DataPoints[0].Sum)
}

func TestNilAndDisabledManagers(t *testing.T) {
	var nilManager *ObservabilityManager
	ctx := context.Background()

	assert.NotPanics(t, func() {
		nilManager.RecordAICall(ctx, "x", 1, 1, time.Millisecond, nil)
		nilManager.RecordStage(ctx, StageCompare, true)
		nilManager.RecordRateLimitHit(ctx)
		_ = nilManager.Tracer("x")
		assert.NoError(t, nilManager.Shutdown(ctx))
	})

	disabled, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.NotNil(t, disabled.GetMetrics())

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	disabled.HTTPMiddleware()(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.SampleRate = 0.5
	cfg.Observability.Tracing.Enabled = true
	cfg.Observability.Tracing.SampleRate = 0.25

	got := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "personasim", got.ServiceName)
	assert.Equal(t, "1.2.3", got.ServiceVersion)
	assert.InDelta(t, 0.25, got.SampleRate, 1e-9)

	fallback := GetObservabilityConfig(nil, "dev")
	assert.False(t, fallback.Enabled)
	assert.False(t, fallback.Prometheus.Enabled)
}
