// Package analyzer codes a response set with the Gioia method through one
// model call, returning both the raw text and a dimension/theme/code tree.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"personasim/internal/ai"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/types"

	"google.golang.org/genai"
)

// Options tune one analyzer.
type Options struct {
	MaxOutputTokens int32
	Temperature     float32
	// Structured asks for a JSON tree when the client supports schemas.
	Structured bool
	Prompts    *config.PromptSet
}

// Analyzer runs Gioia coding over response sets.
type Analyzer struct {
	client ai.Client
	opts   Options
	logger *errors.Logger
}

// New returns an analyzer using client.
func New(client ai.Client, opts Options, logger *errors.Logger) *Analyzer {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Analyzer{client: client, opts: opts, logger: logger}
}

// Transcript flattens rs into one "Q: ...\nA: ..." block per response.
func Transcript(rs types.ResponseSet) string {
	blocks := make([]string, len(rs))
	for i, r := range rs {
		blocks[i] = fmt.Sprintf("Q: %s\nA: %s", r.Question, r.Answer)
	}
	return strings.Join(blocks, "\n")
}

// Prompt returns the free-text gioia prompt for rs.
func (a *Analyzer) Prompt(rs types.ResponseSet) string {
	return ai.Render(a.opts.Prompts, config.OpAnalyze, ai.PromptGioia, Transcript(rs))
}

// Analyze codes rs. subject names the analysis (usually the persona).
func (a *Analyzer) Analyze(ctx context.Context, subject string, rs types.ResponseSet) (types.ThematicAnalysis, error) {
	if len(rs) == 0 {
		return types.ThematicAnalysis{}, errors.NewInputError(errors.ErrCodeEmptyQuestions,
			"response set is empty, nothing to analyze", nil)
	}

	start := time.Now()
	prompt := a.Prompt(rs)

	if sc, ok := a.client.(ai.StructuredClient); ok && a.opts.Structured {
		analysis, err := a.analyzeStructured(ctx, sc, prompt)
		switch {
		case err == nil:
			analysis.Subject = subject
			a.logDone(subject, analysis, start)
			return analysis, nil
		case errors.TypeOf(err) != errors.ErrorTypeParse:
			return types.ThematicAnalysis{}, err
		}
		a.logger.LogError(err, "Structured analysis unusable, falling back to free text", "subject", subject)
	}

	raw, err := a.client.Generate(ctx, prompt, a.opts.MaxOutputTokens, a.opts.Temperature)
	if err != nil {
		a.logger.LogError(err, "Thematic analysis failed", "subject", subject)
		return types.ThematicAnalysis{}, err
	}

	analysis := types.ThematicAnalysis{
		Subject:    subject,
		Raw:        raw,
		Dimensions: Parse(raw),
	}
	if len(analysis.Dimensions) == 0 {
		a.logger.Warn("No Gioia structure recognised, keeping raw text only", "subject", subject)
	}
	a.logDone(subject, analysis, start)
	return analysis, nil
}

func (a *Analyzer) analyzeStructured(ctx context.Context, sc ai.StructuredClient, prompt string) (types.ThematicAnalysis, error) {
	out, err := sc.GenerateStructured(ctx, prompt+ai.GioiaStructuredSuffix, Schema(), a.opts.MaxOutputTokens, a.opts.Temperature)
	if err != nil {
		return types.ThematicAnalysis{}, err
	}

	dims, err := DecodeTree(out)
	if err != nil {
		return types.ThematicAnalysis{}, err
	}
	return types.ThematicAnalysis{Raw: RenderText(dims), Dimensions: dims, Structured: true}, nil
}

func (a *Analyzer) logDone(subject string, analysis types.ThematicAnalysis, start time.Time) {
	a.logger.Info("Thematic analysis completed",
		"subject", subject,
		"structured", analysis.Structured,
		"dimensions", len(analysis.Dimensions),
		"raw_length", len(analysis.Raw),
		"duration_ms", time.Since(start).Milliseconds())
}

type tree struct {
	Dimensions []types.Dimension `json:"dimensions"`
}

// DecodeTree parses a structured model reply into dimensions. A reply with
// no named dimension is a ParseError.
func DecodeTree(data string) ([]types.Dimension, error) {
	data = stripCodeFence(data)

	var t tree
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, errors.NewParseError(errors.ErrCodeAIParseFailed,
			"structured analysis is not valid JSON", err)
	}

	dims := make([]types.Dimension, 0, len(t.Dimensions))
	for _, d := range t.Dimensions {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			continue
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, errors.NewParseError(errors.ErrCodeAIParseFailed,
			"structured analysis contains no dimensions", nil)
	}
	return dims, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Schema is the response schema for structured analysis.
func Schema() *genai.Schema {
	code := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label": {Type: genai.TypeString, Description: "first-order code"},
			"quote": {Type: genai.TypeString, Description: "representative quote from the interview"},
		},
		Required: []string{"label", "quote"},
	}
	theme := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":  {Type: genai.TypeString, Description: "second-order theme"},
			"codes": {Type: genai.TypeArray, Items: code},
		},
		Required: []string{"name", "codes"},
	}
	dimension := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":   {Type: genai.TypeString, Description: "aggregate dimension"},
			"themes": {Type: genai.TypeArray, Items: theme},
		},
		Required: []string{"name", "themes"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"dimensions": {Type: genai.TypeArray, Items: dimension},
		},
		Required: []string{"dimensions"},
	}
}
