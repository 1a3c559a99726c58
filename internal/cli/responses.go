package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"personasim/internal/common"

	"github.com/spf13/cobra"
)

var responsesName string

var responsesCmd = &cobra.Command{
	Use:   "responses",
	Short: "Manage real interview responses",
}

var responsesImportCmd = &cobra.Command{
	Use:   "import TRANSCRIPT",
	Short: "Import a real interview transcript for comparison",
	Long: `Parse a transcript made of "Q: question" and "A: answer" blocks, or a JSON
array of {"question", "answer"} objects, and store it as the real side of
comparisons under the given name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		name := responsesName
		if name == "" {
			base := filepath.Base(args[0])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		data, err := common.NewFileProcessor(e.logger).ReadFile(args[0])
		if err != nil {
			return err
		}
		rs, path, err := e.pipeline.ImportTranscript(cmd.Context(), name, []byte(data))
		if err != nil {
			return fmt.Errorf("failed to import transcript: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d response(s) as %s to %s\n", len(rs), name, path)
		return nil
	},
}

var responsesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the personas with simulated responses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		names, err := e.pipeline.Store().ListResponseSets()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No response sets stored.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintf(out, "- %s\n", name)
		}
		return nil
	},
}

func init() {
	responsesImportCmd.Flags().StringVar(&responsesName, "name", "", "Name to store the responses under (default: file name)")
	responsesCmd.AddCommand(responsesImportCmd, responsesListCmd)
}
