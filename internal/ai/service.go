package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"personasim/internal/config"
	"personasim/internal/errors"

	"google.golang.org/genai"
)

// Service handles model calls for one pipeline operation
type Service struct {
	Provider  Provider // Exported for access from server package
	config    *config.OperationAIConfig
	operation string
	logger    *errors.Logger
	recorder  UsageRecorder

	mu    sync.Mutex
	usage TokenUsage
	calls int
}

var _ StructuredClient = (*Service)(nil)

// NewService creates a new AI service instance with configuration for a specific operation
func NewService(cfg *config.OperationAIConfig, operation string, prompts *config.PromptSet, logger *errors.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			fmt.Sprintf("no API key configured for the %s operation (set ai.apiKey or GEMINI_API_KEY)", operation), nil)
	}

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"operation_type", operation,
		"model", cfg.Model,
		"temperature", *cfg.Temperature,
		"max_output_tokens", *cfg.MaxOutputTokens,
		"timeout", *cfg.Timeout,
		"max_retries", *cfg.MaxRetries,
		"use_system_prompts", *cfg.UseSystemPrompts)

	var provider Provider
	var err error

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, operation, prompts, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, errors.NewServiceError(errors.ErrCodeAIServiceFailed,
			"Failed to create AI provider", err)
	}

	return NewServiceWithProvider(provider, cfg, operation, logger), nil
}

// NewServiceWithProvider wraps an existing provider, mainly for tests.
func NewServiceWithProvider(provider Provider, cfg *config.OperationAIConfig, operation string, logger *errors.Logger) *Service {
	return &Service{
		Provider:  provider,
		config:    cfg,
		operation: operation,
		logger:    logger,
	}
}

// WithRecorder attaches a metrics recorder and returns s.
func (s *Service) WithRecorder(r UsageRecorder) *Service {
	s.recorder = r
	return s
}

// Generate sends a free-text prompt.
func (s *Service) Generate(ctx context.Context, prompt string, maxOutputTokens int32, temperature float32) (string, error) {
	return s.call(ctx, Request{Prompt: prompt, MaxOutputTokens: maxOutputTokens, Temperature: temperature})
}

// GenerateStructured sends a prompt whose output must match schema.
func (s *Service) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema, maxOutputTokens int32, temperature float32) (string, error) {
	return s.call(ctx, Request{Prompt: prompt, MaxOutputTokens: maxOutputTokens, Temperature: temperature, Schema: schema})
}

func (s *Service) call(ctx context.Context, req Request) (string, error) {
	if s.config != nil && s.config.Timeout != nil && *s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, usage, err := s.Provider.GenerateContent(ctx, req)
	duration := time.Since(start)

	var in, out int64
	if usage != nil {
		in, out = usage.InputTokens, usage.OutputTokens
	}
	if s.recorder != nil {
		s.recorder.RecordAICall(ctx, s.operation, in, out, duration, err)
	}

	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.calls++
	if usage != nil {
		s.usage.InputTokens += usage.InputTokens
		s.usage.OutputTokens += usage.OutputTokens
		s.usage.TotalTokens += usage.TotalTokens
	}
	s.mu.Unlock()

	s.logger.Debug("AI call completed",
		"operation", s.operation,
		"duration_ms", duration.Milliseconds(),
		"structured", req.Schema != nil,
		"input_tokens", in,
		"output_tokens", out)

	return text, nil
}

// Usage returns the token totals and call count accumulated by s.
func (s *Service) Usage() (TokenUsage, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, s.calls
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases the provider.
func (s *Service) Close() error {
	return s.Provider.Close()
}
