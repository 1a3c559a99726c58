package cli

import (
	"context"
	"fmt"

	"personasim/internal/common"
	"personasim/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	frameworkOut common.CommandConfig
	frameworkPNG bool
)

var frameworkCmd = &cobra.Command{
	Use:   "framework NAME",
	Short: "Render the Gioia framework of an analysis as a graph",
	Long: `Render the stored analysis tree of a persona as a Graphviz graph with
dimensions at the top, themes below them and first-order concepts at the
bottom. The DOT source is written to outputs/{slug}_framework.dot; --png also
renders outputs/{slug}_framework.png with the dot binary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		return run(cmd, e, frameworkOut, func(ctx context.Context) (pipeline.FrameworkResult, error) {
			result, err := e.pipeline.Framework(ctx, args[0], frameworkPNG)
			if err != nil {
				return result, fmt.Errorf("failed to render framework: %w", err)
			}
			return result, nil
		}, "persona", args[0], "png", frameworkPNG)
	},
}

func init() {
	frameworkCmd.Flags().BoolVar(&frameworkPNG, "png", false, "Also render a PNG with Graphviz")
	addOutputFlags(frameworkCmd, &frameworkOut)
}
