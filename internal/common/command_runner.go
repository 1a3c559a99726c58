package common

import (
	"context"

	"personasim/internal/ai"
	"personasim/internal/errors"
)

// OperationFunc runs one pipeline operation and returns what should be printed.
type OperationFunc[Output any] func(context.Context) (Output, error)

// UsageFunc reports the token usage accumulated by an operation.
type UsageFunc func() (ai.TokenUsage, int)

// RunCommand runs op, reports token usage and hands the result to the output
// handler. usage may be nil for commands that never call a model.
func RunCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	handler *OutputHandler,
	cmdConfig CommandConfig,
	op OperationFunc[Output],
	usage UsageFunc,
) error {
	if logger == nil {
		logger = errors.Discard()
	}
	if handler == nil {
		handler = NewOutputHandler(logger)
	}

	result, err := op(ctx)
	if err != nil {
		return err
	}

	if usage != nil {
		if tokens, calls := usage(); calls > 0 {
			logger.Info("AI token usage",
				"calls", calls,
				"input_tokens", tokens.InputTokens,
				"output_tokens", tokens.OutputTokens,
				"total_tokens", tokens.TotalTokens)
		}
	}

	return handler.HandleOutput(result, cmdConfig)
}
