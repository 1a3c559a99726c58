package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export NAME",
	Short: "Export a simulated interview as a document",
	Long: `Render the simulated responses of a persona as a Word, PDF, markdown or
plain text document under exports/{slug}_interview.{ext}.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		path, err := e.pipeline.Export(cmd.Context(), args[0], exportFormat)
		if err != nil {
			return fmt.Errorf("failed to export interview: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
		return nil
	},
}

var exportBundleCmd = &cobra.Command{
	Use:   "bundle NAME",
	Short: "Zip every output file of a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		path, err := e.pipeline.Bundle(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to bundle outputs: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Bundled %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "docx", "Document format: docx, pdf, markdown, or text")
	_ = exportCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"docx", "pdf", "markdown", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
	exportCmd.AddCommand(exportBundleCmd)
}
