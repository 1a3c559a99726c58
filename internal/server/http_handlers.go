package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime"
	"time"

	"personasim/internal/ai"
	"personasim/internal/config"
	"personasim/internal/errors"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type modelInfoReporter interface {
	GetModelInfo(ctx context.Context) *ai.ModelInfo
}

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.AIModelCheckTimeout <= 0 {
		return 10 * time.Second
	}
	return s.AppConfig.Observability.HealthCheck.AIModelCheckTimeout
}

// healthHandler reports liveness plus the availability of each operation's model
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "personasim",
		"version": s.Version,
	}

	aiStatus, healthy := s.checkAIModelsHealth(r.Context())
	response["ai_models"] = aiStatus

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// checkAIModelsHealth checks the model behind every configured client
func (s *Server) checkAIModelsHealth(ctx context.Context) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.getHealthCheckTimeout())
	defer cancel()

	clients := s.Pipeline.Clients()
	targets := []struct {
		op     string
		client ai.Client
	}{
		{config.OpSimulate, clients.Simulate},
		{config.OpAnalyze, clients.Analyze},
		{config.OpExtract, clients.Extract},
		{config.OpCompare, clients.Compare},
	}

	healthy := true
	aiStatus := make(map[string]any, len(targets))
	for _, t := range targets {
		if t.client == nil {
			aiStatus[t.op] = map[string]any{"configured": false}
			continue
		}
		reporter, ok := t.client.(modelInfoReporter)
		if !ok {
			aiStatus[t.op] = map[string]any{"configured": true}
			continue
		}
		info := reporter.GetModelInfo(ctx)
		if !info.Available {
			healthy = false
		}
		aiStatus[t.op] = info
	}
	return aiStatus, healthy
}

// statsHandler reports rate limiting, store and host statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "personasim",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"watching_files":         s.watcher != nil,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	st := s.Pipeline.Store()
	storeStats := map[string]any{
		"data_dir":  st.Root(),
		"questions": s.storedQuestionCount(),
	}
	if personas, err := st.ListPersonas(); err == nil {
		storeStats["personas"] = len(personas)
	}
	if sets, err := st.ListResponseSets(); err == nil {
		storeStats["response_sets"] = len(sets)
	}
	response["store"] = storeStats
	response["host"] = hostStats(r.Context())

	writeJSON(w, http.StatusOK, response)
}

// hostStats samples CPU and memory usage. Failed probes are left out.
func hostStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"goroutines": runtime.NumGoroutine(),
	}
	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		stats["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats["memory_used_percent"] = vm.UsedPercent
		stats["memory_total_bytes"] = vm.Total
	}
	return stats
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" && ct != "application/json; charset=utf-8" {
		return errors.NewInputError(errors.ErrCodeInvalidRequest, "content-type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewInputError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewInputError(errors.ErrCodeInvalidRequest, "failed to read request body", err)
	}
	defer func() { _ = r.Body.Close() }()

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewInputError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}

	return nil
}

// statusFor maps an application error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.IsNotFound(err):
		return http.StatusNotFound
	}

	if appErr, ok := errors.As(err); ok && appErr.Code == errors.ErrCodePathLocked {
		return http.StatusConflict
	}

	switch errors.TypeOf(err) {
	case errors.ErrorTypeInput:
		return http.StatusBadRequest
	case errors.ErrorTypeParse:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeService:
		return http.StatusBadGateway
	case errors.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError logs err and writes it with the status statusFor picks.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   errors.UserMessage(err),
		RequestID: requestID(r.Context()),
	}
	if appErr, ok := errors.As(err); ok {
		resp.Code = appErr.Code
		resp.Context = appErr.Context
	}

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed",
			"endpoint", r.URL.Path,
			"status", status,
			"request_id", resp.RequestID)
	} else {
		s.Logger.Debug("Request rejected",
			"endpoint", r.URL.Path,
			"status", status,
			"error", err.Error(),
			"request_id", resp.RequestID)
	}
	writeJSON(w, status, resp)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, r *http.Request, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:     error,
		Message:   message,
		RequestID: requestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
