package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"personasim/internal/common"
	"personasim/internal/config"
	"personasim/internal/pipeline"
	"personasim/internal/store"
	"personasim/internal/types"

	"github.com/spf13/cobra"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage the stored personas",
	Long: `Create, inspect, import, export and delete personas. Each persona is stored
as personas/{slug}.json under the data directory, where the slug is the
lowercased name with spaces replaced by underscores.`,
}

var (
	personaAddInput types.Persona
	personaAddAI    string
	personaAddWork  string
	personaAddOut   common.CommandConfig
	personaListOut  common.CommandConfig
	personaShowOut  common.CommandConfig
	personaExtOut   common.CommandConfig

	personaExportFormat string
	personaExportFile   string
	personaExtCounter   int
	personaExtNoSave    bool
)

var personaAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or replace a persona",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		p := personaAddInput
		p.Opinions = map[string]string{}
		if personaAddAI != "" {
			p.Opinions[types.OpinionAI] = personaAddAI
		}
		if personaAddWork != "" {
			p.Opinions[types.OpinionRemoteWork] = personaAddWork
		}
		return run(cmd, e, personaAddOut, func(ctx context.Context) (types.Persona, error) {
			saved, _, err := e.pipeline.Store().SavePersona(ctx, p)
			if err != nil {
				return types.Persona{}, fmt.Errorf("failed to save persona: %w", err)
			}
			return saved, nil
		}, "persona", p.Name)
	},
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored personas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		return run(cmd, e, personaListOut, func(ctx context.Context) ([]types.Persona, error) {
			return e.pipeline.Store().ListPersonas()
		})
	},
}

var personaShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		return run(cmd, e, personaShowOut, func(ctx context.Context) (types.Persona, error) {
			return e.pipeline.Store().LoadPersona(args[0])
		}, "persona", args[0])
	},
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a persona; its responses and outputs are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.pipeline.Store().DeletePersona(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete persona: %w", err)
		}
		e.logger.Info("Persona deleted", "persona", args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted persona %s\n", args[0])
		return nil
	},
}

var personaImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import personas from a YAML or JSON file",
	Long: `Import one persona or a list of personas from a YAML or JSON file. Every
persona is validated before any of them is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		data, err := common.NewFileProcessor(e.logger).ReadFile(args[0])
		if err != nil {
			return err
		}
		personas, err := e.pipeline.Store().ImportPersonas(cmd.Context(), []byte(data))
		if err != nil {
			return fmt.Errorf("failed to import personas: %w", err)
		}
		e.logger.Info("Personas imported", "file", args[0], "count", len(personas))
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d persona(s) from %s\n", len(personas), args[0])
		return nil
	},
}

var personaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored persona as YAML or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		personas, err := e.pipeline.Store().ListPersonas()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := store.EncodePersonas(&buf, personas, strings.ToLower(personaExportFormat)); err != nil {
			return err
		}
		if personaExportFile == "" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := common.NewFileProcessor(e.logger).WriteFile(personaExportFile, buf.String()); err != nil {
			return err
		}
		e.logger.Info("Personas exported", "file", personaExportFile, "count", len(personas))
		return nil
	},
}

var personaExtractCmd = &cobra.Command{
	Use:   "extract DOCUMENT",
	Short: "Build a persona from a document and store it",
	Long: `Read a text, PDF or Word document and ask the model for a persona. When
the document names no person the persona is called "Persona N", where N is
--counter. When the model reply cannot be parsed a placeholder persona is
returned and nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, config.OpExtract)
		if err != nil {
			return err
		}
		return run(cmd, e, personaExtOut, func(ctx context.Context) (pipeline.PersonaExtraction, error) {
			return e.pipeline.ExtractPersonaDocument(ctx, nil, args[0], personaExtCounter, !personaExtNoSave)
		}, "document", args[0])
	},
}

func init() {
	f := personaAddCmd.Flags()
	f.StringVar(&personaAddInput.Name, "name", "", "Persona name (required)")
	f.IntVar(&personaAddInput.Age, "age", 0, "Age in years")
	f.StringVar(&personaAddInput.Job, "job", "", "Job title (required)")
	f.StringVar(&personaAddInput.Education, "education", "", "Education")
	f.StringVar(&personaAddInput.Personality, "personality", "", "Personality traits")
	f.StringVar(&personaAddAI, "opinion-ai", "", "Opinion on AI")
	f.StringVar(&personaAddWork, "opinion-remote", "", "Opinion on remote work")
	_ = personaAddCmd.MarkFlagRequired("name")
	_ = personaAddCmd.MarkFlagRequired("job")
	addOutputFlags(personaAddCmd, &personaAddOut)

	addOutputFlags(personaListCmd, &personaListOut)
	addOutputFlags(personaShowCmd, &personaShowOut)

	personaExportCmd.Flags().StringVar(&personaExportFormat, "format", "yaml", "Export format: yaml or json")
	personaExportCmd.Flags().StringVarP(&personaExportFile, "output", "o", "", "Output file path (default: stdout)")

	personaExtractCmd.Flags().IntVar(&personaExtCounter, "counter", 1, "Number used for an unnamed persona")
	personaExtractCmd.Flags().BoolVar(&personaExtNoSave, "no-save", false, "Print the persona without storing it")
	addOutputFlags(personaExtractCmd, &personaExtOut)

	personaCmd.AddCommand(personaAddCmd, personaListCmd, personaShowCmd, personaDeleteCmd,
		personaImportCmd, personaExportCmd, personaExtractCmd)
}
