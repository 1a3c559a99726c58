package cli

import (
	"context"
	"time"

	"personasim/internal/ai"
	"personasim/internal/common"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/pipeline"
	"personasim/internal/store"

	"github.com/spf13/cobra"
)

type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "personasim",
	Short: "Simulate persona interviews and analyse them thematically",
	Long: `Personasim interviews synthetic personas with a generative model, codes the
answers with the Gioia method, compares them against real transcripts and
exports the results as documents and framework graphs.

Personas, questions, responses and outputs live as plain files under the
configured data directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree with cfg and logger attached to ctx.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	return ExecuteArgs(ctx, cfg, logger, nil)
}

// ExecuteArgs runs the command tree with explicit arguments; nil means os.Args.
func ExecuteArgs(ctx context.Context, cfg *config.Config, logger *errors.Logger, args []string) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	if args != nil {
		rootCmd.SetArgs(args)
	}
	return rootCmd.ExecuteContext(ctx)
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg, nil
	}
	return nil, errors.NewInternalError(errors.ErrCodeInvalidConfig, "config not found in context", nil)
}

func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok && logger != nil {
		return logger, nil
	}
	return nil, errors.NewInternalError(errors.ErrCodeInvalidConfig, "logger not found in context", nil)
}

// env is what every command needs: config, logger and a pipeline over the
// configured data directory.
type env struct {
	cfg      *config.Config
	logger   *errors.Logger
	pipeline *pipeline.Pipeline
	closers  []func() error
}

// newEnv builds the store and a pipeline with generative clients for ops.
// Commands that never call a model pass no ops and run without an API key.
func newEnv(cmd *cobra.Command, ops ...string) (*env, error) {
	return buildEnv(cmd, pipeline.NewClient, ops)
}

// newFallbackEnv is newEnv for commands with an offline path: a missing API
// key leaves the client unset instead of failing.
func newFallbackEnv(cmd *cobra.Command, ops ...string) (*env, error) {
	return buildEnv(cmd, pipeline.NewOptionalClient, ops)
}

type clientFactory func(*config.Config, string, ai.UsageRecorder, *errors.Logger) (*ai.Service, error)

func buildEnv(cmd *cobra.Command, newClient clientFactory, ops []string) (*env, error) {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger}

	locker, closeLocker, err := store.NewLocker(ctx, cfg.Storage.Lock, logger)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeLocker)

	var clients pipeline.Clients
	for _, op := range ops {
		svc, err := newClient(cfg, op, nil, logger)
		if err != nil {
			e.close()
			return nil, err
		}
		if svc == nil {
			continue
		}
		e.closers = append(e.closers, svc.Close)
		switch op {
		case config.OpSimulate:
			clients.Simulate = svc
		case config.OpAnalyze:
			clients.Analyze = svc
		case config.OpExtract:
			clients.Extract = svc
		case config.OpCompare:
			clients.Compare = svc
		}
	}

	st := store.New(cfg.Storage.DataDir, locker, logger)
	e.pipeline = pipeline.New(st, clients, pipeline.OptionsFromConfig(cfg), logger)
	return e, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("Failed to release resource", "error", err)
		}
	}
	e.closers = nil
}

type usageReporter interface {
	Usage() (ai.TokenUsage, int)
}

// usage sums the token usage of every client the pipeline holds.
func (e *env) usage() (ai.TokenUsage, int) {
	var (
		total ai.TokenUsage
		calls int
	)
	c := e.pipeline.Clients()
	for _, client := range []ai.Client{c.Simulate, c.Analyze, c.Extract, c.Compare} {
		u, ok := client.(usageReporter)
		if !ok {
			continue
		}
		usage, n := u.Usage()
		total.InputTokens += usage.InputTokens
		total.OutputTokens += usage.OutputTokens
		total.TotalTokens += usage.TotalTokens
		calls += n
	}
	return total, calls
}

// run executes op for the named command, logs its start and completion and
// prints the result through the formatter registry.
func run[Output any](cmd *cobra.Command, e *env, out common.CommandConfig, op common.OperationFunc[Output], kv ...any) error {
	defer e.close()

	start := time.Now()
	e.logger.Info("Command started", append([]any{"command", cmd.CommandPath()}, kv...)...)

	handler := common.NewOutputHandlerWithWriter(e.logger, cmd.OutOrStdout())
	if err := common.RunCommand(cmd.Context(), e.logger, handler, out, op, e.usage); err != nil {
		return err
	}

	e.logger.Info("Command completed",
		"command", cmd.CommandPath(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// addOutputFlags registers --output and --format and validates the format
// before the command runs.
func addOutputFlags(cmd *cobra.Command, out *common.CommandConfig) {
	cmd.Flags().StringVarP(&out.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&out.OutputFormat, "format", "", "Output format: json, text, or markdown")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		format := out.OutputFormat
		if format == "" {
			format = cfg.App.DefaultFormat
		}
		out.OutputFormat, err = common.NormalizeOutputFormat(format, cfg.App.SupportedFormats)
		return err
	}

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
}

func init() {
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(frameworkCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(responsesCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
