package ai

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// Client is the generative model boundary used by every pipeline stage.
// Failures are returned as service errors.
type Client interface {
	Generate(ctx context.Context, prompt string, maxOutputTokens int32, temperature float32) (string, error)
}

// StructuredClient is a Client that can also constrain output to a JSON schema.
type StructuredClient interface {
	Client
	GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema, maxOutputTokens int32, temperature float32) (string, error)
}

// Provider is implemented by concrete model backends.
type Provider interface {
	GenerateContent(ctx context.Context, req Request) (string, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// Request describes one model call.
type Request struct {
	Prompt          string
	MaxOutputTokens int32
	Temperature     float32
	Schema          *genai.Schema
}

// UsageRecorder receives one callback per completed model call.
type UsageRecorder interface {
	RecordAICall(ctx context.Context, operation string, inputTokens, outputTokens int64, duration time.Duration, err error)
}
