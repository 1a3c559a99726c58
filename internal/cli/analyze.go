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
	analyzeOut         common.CommandConfig
	analyzeNoOverwrite bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze NAME",
	Short: "Code a simulated interview with the Gioia method",
	Long: `Analyze the simulated responses of a persona with the Gioia method. The
model groups the answers into first-order concepts, second-order themes and
aggregate dimensions, each backed by quotes from the responses.

The analysis is written to outputs/{slug}_gioia.md. When the model reply
contains a parseable tree it is also written to outputs/{slug}_gioia.json,
which the framework command reads.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, config.OpAnalyze)
		if err != nil {
			return err
		}
		sess := pipeline.NewSession()
		sess.NoOverwrite = analyzeNoOverwrite

		return run(cmd, e, analyzeOut, func(ctx context.Context) (pipeline.AnalysisResult, error) {
			result, err := e.pipeline.Analyze(ctx, sess, args[0])
			if err != nil {
				return result, fmt.Errorf("failed to analyze interview: %w", err)
			}
			return result, nil
		}, "persona", args[0], "run_id", sess.RunID())
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeNoOverwrite, "no-overwrite", false, "Fail instead of replacing an existing analysis")
	addOutputFlags(analyzeCmd, &analyzeOut)
}
