package ai

import (
	"errors"
	"testing"
	"time"

	"personasim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func breakerConfig(maxRequests uint32, minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      maxRequests,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakerConfigurations(t *testing.T) {
	simulateCB := NewAICircuitBreaker(config.OpSimulate, breakerConfig(3, 3, 0.6), nil)
	analyzeCB := NewAICircuitBreaker(config.OpAnalyze, breakerConfig(5, 2, 0.7), nil)
	compareCB := NewAICircuitBreaker(config.OpCompare, breakerConfig(4, 5, 0.5), nil)

	tests := []struct {
		name     string
		cb       *AICircuitBreaker
		wantName string
	}{
		{"simulate", simulateCB, "AI-simulate"},
		{"analyze", analyzeCB, "AI-analyze"},
		{"compare", compareCB, "AI-compare"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.cb)
			stats := tt.cb.GetStats()
			assert.Equal(t, tt.wantName, stats["name"])
			assert.Equal(t, "closed", stats["state"])
			assert.Equal(t, true, stats["enabled"])
			assert.True(t, tt.cb.IsHealthy())
		})
	}

	assert.NotSame(t, simulateCB, analyzeCB)
	assert.NotSame(t, analyzeCB, compareCB)
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cfg := &config.OperationAIConfig{CircuitBreaker: config.CircuitBreakerConfig{Enabled: false}}

	cb := NewAICircuitBreaker(config.OpSimulate, cfg, nil)
	assert.Nil(t, cb)
	assert.Nil(t, NewModelCircuitBreaker(config.OpSimulate, cfg, nil))

	// a nil breaker passes calls straight through
	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls)
	assert.True(t, cb.IsHealthy())
	assert.Equal(t, map[string]any{"enabled": false}, cb.GetStats())
}

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewAICircuitBreaker(config.OpAnalyze, breakerConfig(1, 2, 0.5), nil)
	require.NotNil(t, cb)

	fail := func() (*genai.GenerateContentResponse, error) {
		return nil, errors.New("upstream unavailable")
	}

	_, _ = cb.Execute(fail)
	assert.True(t, cb.IsHealthy(), "one failure is below minRequests")

	_, _ = cb.Execute(fail)
	assert.False(t, cb.IsHealthy())
	assert.Equal(t, "open", cb.GetStats()["state"])

	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	})
	assert.Error(t, err)
	assert.Zero(t, calls, "open breaker rejects without calling")
}
