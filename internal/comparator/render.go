package comparator

import (
	"context"
	"fmt"
	"strings"

	"personasim/internal/ai"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/types"
)

// Markdown renders result with its three labelled sections, followed by the
// narrative when one was generated.
func Markdown(result types.ComparisonResult) string {
	var b strings.Builder

	b.WriteString("# Interview Comparison\n")
	fmt.Fprintf(&b, "Compared %d pairs, skipped %d with mismatched questions, dropped %d unmatched entries.\n",
		result.Evaluated, result.Skipped, result.Truncated)

	b.WriteString("## Similarities\n")
	for _, s := range result.Similarities {
		writePair(&b, s.Question, s.Real, s.Simulated)
	}

	b.WriteString("## Differences\n")
	for _, d := range result.Differences {
		writePair(&b, d.Question, d.Real, d.Simulated)
		if d.Diff != "" {
			b.WriteString("  - Diff:\n\n    ```diff\n")
			for _, line := range strings.Split(d.Diff, "\n") {
				b.WriteString("    " + line + "\n")
			}
			b.WriteString("    ```\n\n")
		}
	}

	b.WriteString("## Emotional Nuance/Missed Points\n")
	for _, d := range result.EmotionalNuance {
		writePair(&b, d.Question, d.Real, d.Simulated)
	}

	if result.Narrative != "" {
		b.WriteString("## Narrative\n")
		b.WriteString(strings.TrimSpace(result.Narrative))
		b.WriteString("\n")
	}

	return b.String()
}

func writePair(b *strings.Builder, question, real, simulated string) {
	fmt.Fprintf(b, "- Q: %s\n  - Real: %s\n  - Simulated: %s\n", question, real, simulated)
}

// Narrator writes a prose summary of a comparison with one model call.
type Narrator struct {
	client          ai.Client
	maxOutputTokens int32
	temperature     float32
	prompts         *config.PromptSet
	logger          *errors.Logger
}

// NewNarrator returns a narrator using client.
func NewNarrator(client ai.Client, maxOutputTokens int32, temperature float32, prompts *config.PromptSet, logger *errors.Logger) *Narrator {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Narrator{
		client:          client,
		maxOutputTokens: maxOutputTokens,
		temperature:     temperature,
		prompts:         prompts,
		logger:          logger,
	}
}

// Narrate returns the narrative for result. Callers treat a failure as a
// warning; the deterministic result stands on its own.
func (n *Narrator) Narrate(ctx context.Context, result types.ComparisonResult) (string, error) {
	if result.Evaluated == 0 {
		return "", errors.NewInputError(errors.ErrCodeInvalidRequest, "no matched pairs to narrate", nil)
	}
	result.Narrative = ""
	prompt := ai.Render(n.prompts, config.OpCompare, ai.PromptNarrative, Markdown(result))

	text, err := n.client.Generate(ctx, prompt, n.maxOutputTokens, n.temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// WithNarrative fills result.Narrative, logging and ignoring any failure.
func (n *Narrator) WithNarrative(ctx context.Context, result types.ComparisonResult) types.ComparisonResult {
	text, err := n.Narrate(ctx, result)
	if err != nil {
		n.logger.LogError(err, "Comparison narrative skipped",
			"evaluated", result.Evaluated)
		return result
	}
	result.Narrative = text
	return result
}
