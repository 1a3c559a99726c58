package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"personasim/internal/ai"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/types"
)

// Fixed sampling per extraction prompt.
const (
	personaTextLimit   = 3000
	personaMaxTokens   = 800
	personaTemperature = 0.2

	questionsTextLimit   = 4000
	questionsMaxTokens   = 1000
	questionsTemperature = 0.1

	improveMaxTokens   = 1500
	improveTemperature = 0.2
)

// Extractor runs the AI-assisted ingestion prompts. A nil client limits it
// to the offline paths.
type Extractor struct {
	client  ai.Client
	prompts *config.PromptSet
	logger  *errors.Logger
}

// New returns an extractor using client, which may be nil.
func New(client ai.Client, prompts *config.PromptSet, logger *errors.Logger) *Extractor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Extractor{client: client, prompts: prompts, logger: logger}
}

// DefaultPersona is the placeholder used when nothing can be extracted.
func DefaultPersona(counter int) types.Persona {
	return types.Persona{
		Name:        fmt.Sprintf("Persona %d", counter),
		Age:         types.DefaultPersonaAge,
		Job:         "Professional",
		Education:   "College Graduate",
		Personality: "Thoughtful and analytical",
		Opinions: map[string]string{
			types.OpinionAI:         "Cautiously optimistic about AI technology",
			types.OpinionRemoteWork: "Appreciates flexibility of remote work",
		},
	}
}

// Persona extracts a persona from document text. Empty text and unparseable
// model output yield DefaultPersona(counter) with Degraded set; only
// generative call failures are returned as errors.
func (e *Extractor) Persona(ctx context.Context, text string, counter int) (types.ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		e.logger.Info("Empty document, using default persona", "counter", counter)
		return types.ExtractionResult{Persona: DefaultPersona(counter), Degraded: true}, nil
	}
	if e.client == nil {
		return types.ExtractionResult{}, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"persona extraction needs a configured AI provider", nil)
	}

	prompt := ai.Render(e.prompts, config.OpExtract, ai.PromptPersona, truncate(text, personaTextLimit))
	reply, err := e.client.Generate(ctx, prompt, personaMaxTokens, personaTemperature)
	if err != nil {
		e.logger.LogError(err, "Persona extraction failed", "counter", counter)
		return types.ExtractionResult{}, err
	}

	persona, err := ParsePersona(reply, counter)
	if err != nil {
		e.logger.LogError(err, "Persona reply unusable, using default persona",
			"counter", counter,
			"reply_length", len(reply))
		return types.ExtractionResult{Persona: DefaultPersona(counter), Degraded: true}, nil
	}

	e.logger.Info("Persona extracted", "name", persona.Name, "age", persona.Age)
	return types.ExtractionResult{Persona: persona}, nil
}

// ParsePersona reads the JSON object in a persona extraction reply. Missing
// fields become types.NotSpecified, an empty name becomes "Persona {counter}",
// and an age that is not a whole number becomes the default age.
func ParsePersona(reply string, counter int) (types.Persona, error) {
	obj := jsonObject(reply)
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return types.Persona{}, errors.NewParseError(errors.ErrCodeAIParseFailed,
			"persona reply is not a JSON object", err)
	}

	p := types.Persona{
		Name:        field(fields, "name"),
		Age:         parseAge(fields["age"]),
		Job:         field(fields, "job"),
		Education:   field(fields, "education"),
		Personality: field(fields, "personality"),
		Opinions: map[string]string{
			types.OpinionAI:         field(fields, "ai_opinion"),
			types.OpinionRemoteWork: field(fields, "remote_work_opinion"),
		},
	}
	if p.Name == types.NotSpecified {
		p.Name = fmt.Sprintf("Persona %d", counter)
	}
	return p, nil
}

// jsonObject returns the outermost {...} in s, so replies wrapped in prose
// or code fences still parse.
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func field(fields map[string]any, key string) string {
	var s string
	switch v := fields[key].(type) {
	case string:
		s = v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		s = strings.Join(parts, ", ")
	case nil:
	default:
		s = fmt.Sprint(v)
	}
	if s = strings.TrimSpace(s); s == "" {
		return types.NotSpecified
	}
	return s
}

func parseAge(v any) int {
	var digits string
	switch a := v.(type) {
	case float64:
		if a != float64(int(a)) {
			return types.DefaultPersonaAge
		}
		digits = strconv.Itoa(int(a))
	case string:
		digits = strings.TrimSpace(a)
	default:
		return types.DefaultPersonaAge
	}

	age, err := strconv.Atoi(digits)
	if err != nil || age < 0 || strings.ContainsAny(digits, "+-") {
		return types.DefaultPersonaAge
	}
	return min(max(age, types.MinPersonaAge), types.MaxPersonaAge)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
