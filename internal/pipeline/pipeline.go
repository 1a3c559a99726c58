// Package pipeline wires the store, the generative clients and the stage
// packages into the operations shared by the CLI and the HTTP server.
package pipeline

import (
	"context"
	"time"

	"personasim/internal/ai"
	"personasim/internal/analyzer"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/observability"
	"personasim/internal/simulator"
	"personasim/internal/store"
)

// Clients holds one generative client per operation. A nil client makes the
// operations that need it fail with a configuration error, except question
// extraction which falls back to pattern matching.
type Clients struct {
	Simulate ai.Client
	Analyze  ai.Client
	Extract  ai.Client
	Compare  ai.Client
}

// Options carries per-stage generation settings.
type Options struct {
	Simulate simulator.Options
	Analyze  analyzer.Options

	NarrativeMaxOutputTokens int32
	NarrativeTemperature     float32

	// Prompts holds template overrides for extraction and narratives.
	Prompts *config.PromptSet
}

// OptionsFromConfig resolves stage options from the operation blocks of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	sim := cfg.GetSimulateConfig()
	ana := cfg.GetAnalyzeConfig()
	cmp := cfg.GetCompareConfig()

	return Options{
		Simulate: simulator.Options{
			MaxOutputTokens: deref(sim.MaxOutputTokens),
			Temperature:     deref(sim.Temperature),
			Concurrency:     cfg.Simulate.Concurrency,
			Prompts:         cfg.Prompts(),
		},
		Analyze: analyzer.Options{
			MaxOutputTokens: deref(ana.MaxOutputTokens),
			Temperature:     deref(ana.Temperature),
			Structured:      cfg.Analyze.Structured,
			Prompts:         cfg.Prompts(),
		},
		NarrativeMaxOutputTokens: deref(cmp.MaxOutputTokens),
		NarrativeTemperature:     deref(cmp.Temperature),
		Prompts:                  cfg.Prompts(),
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// NewClient builds the Gemini-backed client for operation. The API key is
// checked here, so a missing key fails before any stage runs.
func NewClient(cfg *config.Config, operation string, recorder ai.UsageRecorder, logger *errors.Logger) (*ai.Service, error) {
	opCfg, err := cfg.GetOperationConfig(operation)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, err.Error(), err)
	}
	svc, err := ai.NewService(&opCfg, operation, cfg.Prompts(), logger)
	if err != nil {
		return nil, err
	}
	if recorder != nil {
		svc = svc.WithRecorder(recorder)
	}
	return svc, nil
}

// NewOptionalClient is NewClient for operations that can run without a
// model. A missing API key yields a nil client and no error.
func NewOptionalClient(cfg *config.Config, operation string, recorder ai.UsageRecorder, logger *errors.Logger) (*ai.Service, error) {
	svc, err := NewClient(cfg, operation, recorder, logger)
	if appErr, ok := errors.As(err); ok && appErr.Code == errors.ErrCodeMissingAPIKey {
		if logger != nil {
			logger.Warn("No API key, operation runs without a model", "operation", operation)
		}
		return nil, nil
	}
	return svc, err
}

// NewClients builds a client for every operation that has an API key.
// Operations without one are left nil and report themselves unconfigured.
func NewClients(cfg *config.Config, recorder ai.UsageRecorder, logger *errors.Logger) (Clients, func() error, error) {
	var (
		clients  Clients
		services []*ai.Service
	)
	targets := []struct {
		op  string
		dst *ai.Client
	}{
		{config.OpSimulate, &clients.Simulate},
		{config.OpAnalyze, &clients.Analyze},
		{config.OpExtract, &clients.Extract},
		{config.OpCompare, &clients.Compare},
	}
	closeAll := func() error {
		var first error
		for _, s := range services {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, t := range targets {
		svc, err := NewOptionalClient(cfg, t.op, recorder, logger)
		if err != nil {
			_ = closeAll()
			return Clients{}, nil, err
		}
		if svc == nil {
			continue
		}
		services = append(services, svc)
		*t.dst = svc
	}
	return clients, closeAll, nil
}

// Pipeline runs the simulate, analyze, compare, extract and export stages
// against one store.
type Pipeline struct {
	store   *store.Store
	clients Clients
	opts    Options
	metrics *observability.ObservabilityManager
	logger  *errors.Logger
}

// New returns a pipeline over st.
func New(st *store.Store, clients Clients, opts Options, logger *errors.Logger) *Pipeline {
	if logger == nil {
		logger = errors.Discard()
	}
	if opts.Simulate.Concurrency < 1 {
		opts.Simulate.Concurrency = 1
	}
	return &Pipeline{store: st, clients: clients, opts: opts, logger: logger}
}

// WithMetrics records stage metrics on om.
func (p *Pipeline) WithMetrics(om *observability.ObservabilityManager) *Pipeline {
	p.metrics = om
	return p
}

// Store returns the underlying store.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Clients returns the configured generative clients.
func (p *Pipeline) Clients() Clients {
	return p.clients
}

func requireClient(c ai.Client, operation string) error {
	if c == nil {
		return errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"no generative client is configured for "+operation, nil)
	}
	return nil
}

type usageReporter interface {
	Usage() (ai.TokenUsage, int)
}

// stageStart snapshots the clock and the client's running usage so a stage
// logs only what it consumed.
type stageStart struct {
	at       time.Time
	reporter usageReporter
	usage    ai.TokenUsage
	calls    int
}

func beginStage(client ai.Client) stageStart {
	s := stageStart{at: time.Now()}
	if u, ok := client.(usageReporter); ok {
		s.reporter = u
		s.usage, s.calls = u.Usage()
	}
	return s
}

// finish logs the outcome of one stage and counts it.
func (p *Pipeline) finish(ctx context.Context, stage string, start stageStart, err error, kv ...any) {
	p.metrics.RecordStage(ctx, stage, err == nil)

	fields := append([]any{"stage", stage, "duration_ms", time.Since(start.at).Milliseconds()}, kv...)
	if start.reporter != nil {
		usage, calls := start.reporter.Usage()
		fields = append(fields,
			"ai_calls", calls-start.calls,
			"input_tokens", usage.InputTokens-start.usage.InputTokens,
			"output_tokens", usage.OutputTokens-start.usage.OutputTokens)
	}

	if err != nil {
		p.logger.LogError(err, "Pipeline stage failed", fields...)
		return
	}
	p.logger.Info("Pipeline stage completed", fields...)
}
