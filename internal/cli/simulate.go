package cli

import (
	"context"
	"fmt"

	"personasim/internal/common"
	"personasim/internal/config"
	"personasim/internal/pipeline"
	"personasim/internal/types"

	"github.com/spf13/cobra"
)

var (
	simulateOut         common.CommandConfig
	simulateNoOverwrite bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [NAME...]",
	Short: "Interview personas with the stored question set",
	Long: `Ask every stored question to each named persona, in order, and write the
answers to responses/{slug}_responses.json. Without names every stored
persona is interviewed in turn; a failing persona is reported and the others
still run. A persona's file is only written once all of its answers succeed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, config.OpSimulate)
		if err != nil {
			return err
		}
		sess := pipeline.NewSession()
		sess.NoOverwrite = simulateNoOverwrite

		if len(args) == 1 {
			return run(cmd, e, simulateOut, func(ctx context.Context) (types.SimulationResult, error) {
				result, err := e.pipeline.Simulate(ctx, sess, args[0])
				if err != nil {
					return result, fmt.Errorf("failed to simulate interview: %w", err)
				}
				return result, nil
			}, "persona", args[0], "run_id", sess.RunID())
		}

		// Partial batches still print the interviews that completed.
		var batchErr error
		err = run(cmd, e, simulateOut, func(ctx context.Context) ([]types.SimulationResult, error) {
			results, err := e.pipeline.SimulateBatch(ctx, sess, args)
			if err != nil && len(results) == 0 {
				return nil, fmt.Errorf("failed to simulate interviews: %w", err)
			}
			batchErr = err
			return results, nil
		}, "personas", len(args), "run_id", sess.RunID())
		if err != nil {
			return err
		}
		if batchErr != nil {
			return fmt.Errorf("some interviews failed: %w", batchErr)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateNoOverwrite, "no-overwrite", false, "Fail instead of replacing an existing response file")
	addOutputFlags(simulateCmd, &simulateOut)
}
