package server

import (
	"sync"
	"time"

	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/observability"
	"personasim/internal/pipeline"
	"personasim/internal/types"
)

// SimulateRequest is the body of POST /simulate. Questions, when set,
// replace the stored question set for this request only.
type SimulateRequest struct {
	Persona   string   `json:"persona"`
	Questions []string `json:"questions,omitempty"`
	// NoOverwrite fails instead of replacing an existing response set.
	NoOverwrite bool `json:"noOverwrite,omitempty"`
}

// AnalyzeRequest is the body of POST /analyze: a stored persona or an
// inline response set.
type AnalyzeRequest struct {
	Persona   string            `json:"persona,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Responses types.ResponseSet `json:"responses,omitempty"`
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	Real      string `json:"real"`
	Simulated string `json:"simulated"`
	Strict    bool   `json:"strict,omitempty"`
	Narrative bool   `json:"narrative,omitempty"`
}

// FrameworkRequest is the body of POST /framework.
type FrameworkRequest struct {
	Persona  string                  `json:"persona,omitempty"`
	Analysis *types.ThematicAnalysis `json:"analysis,omitempty"`
}

// ExtractRequest is the body of the extract endpoints.
type ExtractRequest struct {
	Text    string `json:"text"`
	Counter int    `json:"counter,omitempty"`
	Save    bool   `json:"save,omitempty"`
	Improve bool   `json:"improve,omitempty"`
	Offline bool   `json:"offline,omitempty"`
}

// QuestionsRequest is the body of PUT /questions.
type QuestionsRequest struct {
	Questions []string `json:"questions"`
}

type ErrorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message,omitempty"`
	Code      string         `json:"code,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	Pipeline      *pipeline.Pipeline
	Observability *observability.ObservabilityManager

	TLSConfig config.TLSConfig

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	watchFiles bool
	watcher    *PromptWatcher

	// questionCount caches the size of the stored question set for /stats;
	// the watcher refreshes it when questions.txt changes.
	mu            sync.RWMutex
	questionCount int

	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	WatchFiles     bool
}

// ConfigFromApp lifts the server section of appCfg into a ServerConfig.
func ConfigFromApp(appCfg *config.Config, version string) ServerConfig {
	sc := appCfg.Server
	return ServerConfig{
		Host:           sc.Host,
		Port:           sc.Port,
		Version:        version,
		TLSConfig:      sc.TLS,
		APIKeys:        sc.APIKeys,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		IdleTimeout:    sc.IdleTimeout,
		MaxRequestSize: sc.MaxRequestSize,
		RateLimit:      &sc.RateLimit,
		WatchFiles:     sc.WatchFiles,
	}
}

// NewServer creates a server over p. om may be nil.
func NewServer(appCfg *config.Config, p *pipeline.Pipeline, om *observability.ObservabilityManager, cfg ServerConfig, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.Discard()
	}

	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		Pipeline:       p,
		Observability:  om,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		watchFiles:     cfg.WatchFiles,
		Logger:         logger,
	}
	s.refreshQuestionCount()
	return s
}

func (s *Server) refreshQuestionCount() {
	n := 0
	if questions, err := s.Pipeline.Store().LoadQuestions(); err == nil {
		n = len(questions)
	}
	s.mu.Lock()
	s.questionCount = n
	s.mu.Unlock()
}

func (s *Server) storedQuestionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionCount
}
