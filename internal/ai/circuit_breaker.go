package ai

import (
	"fmt"

	"personasim/internal/config"
	"personasim/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// CircuitBreaker guards calls returning T. A nil breaker runs calls directly.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// AICircuitBreaker guards content generation for one operation
type AICircuitBreaker = CircuitBreaker[*genai.GenerateContentResponse]

// ModelCircuitBreaker guards model info lookups used by health checks
type ModelCircuitBreaker = CircuitBreaker[*genai.Model]

// NewAICircuitBreaker returns nil unless the operation enables its breaker.
func NewAICircuitBreaker(operation string, cfg *config.OperationAIConfig, logger *errors.Logger) *AICircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	cbCfg := cfg.CircuitBreaker
	return newCircuitBreaker[*genai.GenerateContentResponse](fmt.Sprintf("AI-%s", operation), operation, cbCfg,
		func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cbCfg.MinRequests && failureRatio >= cbCfg.FailureThreshold
		}, logger)
}

// NewModelCircuitBreaker returns nil unless the operation enables its breaker.
func NewModelCircuitBreaker(operation string, cfg *config.OperationAIConfig, logger *errors.Logger) *ModelCircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	// model info is only used for health, so trip later
	return newCircuitBreaker[*genai.Model](fmt.Sprintf("AI-Model-%s", operation), operation, cfg.CircuitBreaker,
		func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.8
		}, logger)
}

func newCircuitBreaker[T any](name, operation string, cfg config.CircuitBreakerConfig, readyToTrip func(gobreaker.Counts) bool, logger *errors.Logger) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operation,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn under the breaker.
func (b *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (b *CircuitBreaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy reports whether the breaker is closed. A disabled breaker is healthy.
func (b *CircuitBreaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
