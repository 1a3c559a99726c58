package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/speech"
	"personasim/internal/utils"

	"github.com/spf13/cobra"
)

var transcribeName string

var transcribeCmd = &cobra.Command{
	Use:   "transcribe AUDIO",
	Short: "Transcribe an interview recording to text",
	Long: `Send a recording of up to about one minute to Google Cloud Speech and write
the transcript to transcripts/{name}.txt. The name defaults to the audio
file name without its extension. Credentials come from Application Default
Credentials; the language, sample rate and encoding from the speech block of
the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		if err := utils.ValidateInputFile(args[0]); err != nil {
			return errors.NewInputError(errors.ErrCodeFileNotFound, err.Error(), err)
		}
		name := transcribeName
		if name == "" {
			base := filepath.Base(args[0])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}

		transcriber, err := speech.New(cmd.Context(), e.cfg.Speech, e.logger)
		if err != nil {
			return err
		}
		defer func() { _ = transcriber.Close() }()

		path, err := e.pipeline.Transcribe(cmd.Context(), transcriber, args[0], name)
		if err != nil {
			return fmt.Errorf("failed to transcribe recording: %w", err)
		}
		e.logger.Info("Recording transcribed", "audio", args[0], "path", path)
		fmt.Fprintf(cmd.OutOrStdout(), "Transcript written to %s\n", path)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeName, "name", "", "Transcript name (default: audio file name)")
}
