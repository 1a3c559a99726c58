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

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the interview question set",
	Long: `The question set is a plain text file with one question per line. Blank
lines are ignored and surrounding whitespace is trimmed. Every simulation
asks the whole set in order.`,
}

var (
	questionsShowOut    common.CommandConfig
	questionsImportOut  common.CommandConfig
	questionsExtractOut common.CommandConfig

	questionsImprove bool
	questionsOffline bool
	questionsNoSave  bool
)

var questionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored question set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		return run(cmd, e, questionsShowOut, func(ctx context.Context) ([]string, error) {
			return e.pipeline.Store().LoadQuestions()
		})
	},
}

var questionsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the question set with the lines of a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		text, err := common.NewFileProcessor(e.logger).ReadFile(args[0])
		if err != nil {
			return err
		}
		return run(cmd, e, questionsImportOut, func(ctx context.Context) ([]string, error) {
			questions, err := e.pipeline.ImportQuestions(ctx, nil, text)
			if err != nil {
				return nil, fmt.Errorf("failed to import questions: %w", err)
			}
			return questions, nil
		}, "file", args[0])
	},
}

var questionsExtractCmd = &cobra.Command{
	Use:   "extract DOCUMENT",
	Short: "Extract interview questions from a document",
	Long: `Pull interview questions out of a text, PDF or Word document and replace
the stored question set with them. The model is asked first; when it is not
configured, fails, or --offline is set, lines that look like questions are
picked by pattern instead. --improve asks the model to reword the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ops []string
		if !questionsOffline {
			ops = append(ops, config.OpExtract)
		}
		e, err := newFallbackEnv(cmd, ops...)
		if err != nil {
			return err
		}
		opts := pipeline.QuestionOptions{
			Improve: questionsImprove,
			Offline: questionsOffline,
			Save:    !questionsNoSave,
		}
		return run(cmd, e, questionsExtractOut, func(ctx context.Context) (types.QuestionExtraction, error) {
			return e.pipeline.ExtractQuestionsDocument(ctx, nil, args[0], opts)
		}, "document", args[0], "offline", questionsOffline, "improve", questionsImprove)
	},
}

func init() {
	addOutputFlags(questionsShowCmd, &questionsShowOut)
	addOutputFlags(questionsImportCmd, &questionsImportOut)

	questionsExtractCmd.Flags().BoolVar(&questionsImprove, "improve", false, "Ask the model to improve the extracted questions")
	questionsExtractCmd.Flags().BoolVar(&questionsOffline, "offline", false, "Use pattern matching only")
	questionsExtractCmd.Flags().BoolVar(&questionsNoSave, "no-save", false, "Print the questions without storing them")
	addOutputFlags(questionsExtractCmd, &questionsExtractOut)

	questionsCmd.AddCommand(questionsShowCmd, questionsImportCmd, questionsExtractCmd)
}
