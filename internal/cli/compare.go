package cli

import (
	"context"
	"fmt"

	"personasim/internal/common"
	"personasim/internal/config"
	"personasim/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	compareOut       common.CommandConfig
	compareStrict    bool
	compareNarrative bool
)

var compareCmd = &cobra.Command{
	Use:   "compare REAL [SIMULATED]",
	Short: "Compare a real transcript with a simulated interview",
	Long: `Match the real transcript imported as REAL against the simulated responses
of SIMULATED (default: REAL) question by question, and score each pair by
word overlap. Pairs whose questions differ are skipped unless --strict is
set, in which case the first mismatch fails the comparison.

The report is written to outputs/{simulated}_comparison.md. --narrative asks
the model for a short written summary of the differences.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ops []string
		if compareNarrative {
			ops = append(ops, config.OpCompare)
		}
		e, err := newEnv(cmd, ops...)
		if err != nil {
			return err
		}
		real, simulated := args[0], args[0]
		if len(args) == 2 {
			simulated = args[1]
		}
		opts := pipeline.CompareOptions{Strict: compareStrict, Narrative: compareNarrative}

		return run(cmd, e, compareOut, func(ctx context.Context) (pipeline.ComparisonReport, error) {
			report, err := e.pipeline.Compare(ctx, nil, real, simulated, opts)
			if err != nil {
				return report, fmt.Errorf("failed to compare interviews: %w", err)
			}
			return report, nil
		}, "real", real, "simulated", simulated, "strict", compareStrict)
	},
}

func init() {
	compareCmd.Flags().BoolVar(&compareStrict, "strict", false, "Fail on the first pair whose questions differ")
	compareCmd.Flags().BoolVar(&compareNarrative, "narrative", false, "Add a model-written summary")
	addOutputFlags(compareCmd, &compareOut)
}
