package cli

import (
	"context"
	"fmt"

	"personasim/internal/common"
	"personasim/internal/types"

	"github.com/spf13/cobra"
)

var summaryOut common.CommandConfig

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise every simulated interview",
	Long: `Count the responses, unique questions and personas across every simulated
response set and write the summary to outputs/analysis_summary.txt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		return run(cmd, e, summaryOut, func(ctx context.Context) (types.AnalysisSummary, error) {
			summary, path, err := e.pipeline.Summary(ctx)
			if err != nil {
				return summary, fmt.Errorf("failed to write summary: %w", err)
			}
			e.logger.Info("Summary written", "path", path)
			return summary, nil
		})
	},
}

func init() {
	addOutputFlags(summaryCmd, &summaryOut)
}
