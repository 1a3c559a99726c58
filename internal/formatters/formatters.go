package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"personasim/internal/pipeline"
	"personasim/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry holds the default formatters.
var GlobalRegistry = NewFormatterRegistry()

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})

	for _, f := range []Formatter{
		&SimulationTextFormatter{},
		&AnalysisTextFormatter{},
		&ComparisonFormatter{},
		&PersonaTextFormatter{},
		&PersonaListTextFormatter{},
		&ExtractionTextFormatter{},
		&QuestionsTextFormatter{},
		&QuestionExtractionTextFormatter{},
		&SummaryTextFormatter{},
		&FrameworkFormatter{},
	} {
		registry.RegisterFormatter("text", f.SupportedType(), f)
	}

	registry.RegisterFormatter("markdown", "SimulationResult", &SimulationMarkdownFormatter{})
	registry.RegisterFormatter("markdown", "AnalysisResult", &AnalysisMarkdownFormatter{})
	registry.RegisterFormatter("markdown", "ComparisonReport", &ComparisonFormatter{})
	registry.RegisterFormatter("markdown", "PersonaList", &PersonaListMarkdownFormatter{})
	registry.RegisterFormatter("markdown", "FrameworkResult", &FrameworkFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter. Markdown falls back
// to the text formatter of the same type, then to JSON.
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	candidates := []string{format}
	if format == "markdown" {
		candidates = append(candidates, "text")
	}
	for _, f := range candidates {
		if formatter, exists := fr.formatters[f][dataType]; exists {
			return formatter.Format(data)
		}
	}
	if _, known := fr.formatters[format]; known {
		return fr.formatters["json"]["any"].Format(data)
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.SimulationResult, []types.SimulationResult:
		return "SimulationResult"
	case pipeline.AnalysisResult, types.ThematicAnalysis:
		return "AnalysisResult"
	case pipeline.ComparisonReport:
		return "ComparisonReport"
	case types.Persona:
		return "Persona"
	case []types.Persona:
		return "PersonaList"
	case pipeline.PersonaExtraction:
		return "PersonaExtraction"
	case []string:
		return "Questions"
	case types.QuestionExtraction:
		return "QuestionExtraction"
	case types.AnalysisSummary:
		return "AnalysisSummary"
	case pipeline.FrameworkResult:
		return "FrameworkResult"
	default:
		return "any"
	}
}

func thematic(data any) (types.ThematicAnalysis, error) {
	switch v := data.(type) {
	case pipeline.AnalysisResult:
		return v.ThematicAnalysis, nil
	case types.ThematicAnalysis:
		return v, nil
	}
	return types.ThematicAnalysis{}, fmt.Errorf("expected AnalysisResult, got %T", data)
}

func simulations(data any) ([]types.SimulationResult, error) {
	switch v := data.(type) {
	case types.SimulationResult:
		return []types.SimulationResult{v}, nil
	case []types.SimulationResult:
		return v, nil
	}
	return nil, fmt.Errorf("expected SimulationResult, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// SimulationTextFormatter prints each interview as Q:/A: blocks
type SimulationTextFormatter struct{}

func (f *SimulationTextFormatter) Format(data any) (string, error) {
	results, err := simulations(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, result := range results {
		fmt.Fprintf(&output, "=== SIMULATED INTERVIEW: %s ===\n", result.Persona)
		if result.OutputPath != "" {
			fmt.Fprintf(&output, "Saved to %s\n", result.OutputPath)
		}
		output.WriteString("\n")
		for _, r := range result.Responses {
			fmt.Fprintf(&output, "Q: %s\nA: %s\n\n", r.Question, r.Answer)
		}
	}
	return output.String(), nil
}

func (f *SimulationTextFormatter) SupportedType() string {
	return "SimulationResult"
}

// SimulationMarkdownFormatter renders interviews with a heading per question
type SimulationMarkdownFormatter struct{}

func (f *SimulationMarkdownFormatter) Format(data any) (string, error) {
	results, err := simulations(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, result := range results {
		fmt.Fprintf(&output, "# Simulated Interview: %s\n\n", result.Persona)
		for _, r := range result.Responses {
			fmt.Fprintf(&output, "## Q: %s\n\n%s\n\n", r.Question, r.Answer)
		}
	}
	return output.String(), nil
}

func (f *SimulationMarkdownFormatter) SupportedType() string {
	return "SimulationResult"
}

// AnalysisTextFormatter prints the raw Gioia text
type AnalysisTextFormatter struct{}

func (f *AnalysisTextFormatter) Format(data any) (string, error) {
	result, err := thematic(data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(result.Raw, "\n") + "\n", nil
}

func (f *AnalysisTextFormatter) SupportedType() string {
	return "AnalysisResult"
}

// AnalysisMarkdownFormatter renders the coded tree as nested headings
type AnalysisMarkdownFormatter struct{}

func (f *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	result, err := thematic(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Gioia Analysis")
	if result.Subject != "" {
		output.WriteString(": " + result.Subject)
	}
	output.WriteString("\n\n")

	if len(result.Dimensions) == 0 {
		output.WriteString(result.Raw)
		output.WriteString("\n")
		return output.String(), nil
	}

	for _, d := range result.Dimensions {
		fmt.Fprintf(&output, "## %s\n\n", d.Name)
		for _, t := range d.Themes {
			fmt.Fprintf(&output, "### %s\n\n", t.Name)
			for _, c := range t.Codes {
				if c.Quote != "" {
					fmt.Fprintf(&output, "- **%s**: \"%s\"\n", c.Label, c.Quote)
				} else {
					fmt.Fprintf(&output, "- **%s**\n", c.Label)
				}
			}
			output.WriteString("\n")
		}
	}
	return output.String(), nil
}

func (f *AnalysisMarkdownFormatter) SupportedType() string {
	return "AnalysisResult"
}

// ComparisonFormatter prints the rendered comparison, which is already markdown
type ComparisonFormatter struct{}

func (f *ComparisonFormatter) Format(data any) (string, error) {
	report, ok := data.(pipeline.ComparisonReport)
	if !ok {
		return "", fmt.Errorf("expected ComparisonReport, got %T", data)
	}
	return report.Markdown, nil
}

func (f *ComparisonFormatter) SupportedType() string {
	return "ComparisonReport"
}

func writePersona(output *strings.Builder, p types.Persona) {
	fmt.Fprintf(output, "Name: %s\n", p.Name)
	fmt.Fprintf(output, "Age: %d\n", p.Age)
	fmt.Fprintf(output, "Job: %s\n", p.Job)
	fmt.Fprintf(output, "Education: %s\n", p.Education)
	fmt.Fprintf(output, "Personality: %s\n", p.Personality)

	topics := make([]string, 0, len(p.Opinions))
	for topic := range p.Opinions {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	if len(topics) > 0 {
		output.WriteString("Opinions:\n")
	}
	for _, topic := range topics {
		fmt.Fprintf(output, "  %s: %s\n", topic, p.Opinions[topic])
	}
}

// PersonaTextFormatter prints one persona
type PersonaTextFormatter struct{}

func (f *PersonaTextFormatter) Format(data any) (string, error) {
	p, ok := data.(types.Persona)
	if !ok {
		return "", fmt.Errorf("expected Persona, got %T", data)
	}
	var output strings.Builder
	writePersona(&output, p)
	return output.String(), nil
}

func (f *PersonaTextFormatter) SupportedType() string {
	return "Persona"
}

// PersonaListTextFormatter prints one line per persona
type PersonaListTextFormatter struct{}

func (f *PersonaListTextFormatter) Format(data any) (string, error) {
	personas, ok := data.([]types.Persona)
	if !ok {
		return "", fmt.Errorf("expected []Persona, got %T", data)
	}
	if len(personas) == 0 {
		return "No personas stored.\n", nil
	}

	var output strings.Builder
	for _, p := range personas {
		fmt.Fprintf(&output, "- %s (%d, %s)\n", p.Name, p.Age, p.Job)
	}
	return output.String(), nil
}

func (f *PersonaListTextFormatter) SupportedType() string {
	return "PersonaList"
}

// PersonaListMarkdownFormatter renders personas as a table
type PersonaListMarkdownFormatter struct{}

func (f *PersonaListMarkdownFormatter) Format(data any) (string, error) {
	personas, ok := data.([]types.Persona)
	if !ok {
		return "", fmt.Errorf("expected []Persona, got %T", data)
	}

	var output strings.Builder
	output.WriteString("| Name | Age | Job | Personality |\n")
	output.WriteString("|---|---|---|---|\n")
	for _, p := range personas {
		fmt.Fprintf(&output, "| %s | %d | %s | %s |\n", p.Name, p.Age, p.Job, p.Personality)
	}
	return output.String(), nil
}

func (f *PersonaListMarkdownFormatter) SupportedType() string {
	return "PersonaList"
}

// ExtractionTextFormatter prints an extracted persona
type ExtractionTextFormatter struct{}

func (f *ExtractionTextFormatter) Format(data any) (string, error) {
	result, ok := data.(pipeline.PersonaExtraction)
	if !ok {
		return "", fmt.Errorf("expected PersonaExtraction, got %T", data)
	}

	var output strings.Builder
	writePersona(&output, result.Persona)
	if result.Degraded {
		output.WriteString("\nNote: the document could not be read as a persona; defaults were used.\n")
	}
	if result.Path != "" {
		fmt.Fprintf(&output, "\nSaved to %s\n", result.Path)
	}
	return output.String(), nil
}

func (f *ExtractionTextFormatter) SupportedType() string {
	return "PersonaExtraction"
}

func writeNumbered(output *strings.Builder, questions []string) {
	for i, q := range questions {
		fmt.Fprintf(output, "%d. %s\n", i+1, q)
	}
}

// QuestionsTextFormatter prints a numbered question list
type QuestionsTextFormatter struct{}

func (f *QuestionsTextFormatter) Format(data any) (string, error) {
	questions, ok := data.([]string)
	if !ok {
		return "", fmt.Errorf("expected []string, got %T", data)
	}
	var output strings.Builder
	writeNumbered(&output, questions)
	return output.String(), nil
}

func (f *QuestionsTextFormatter) SupportedType() string {
	return "Questions"
}

// QuestionExtractionTextFormatter prints extracted questions and their source
type QuestionExtractionTextFormatter struct{}

func (f *QuestionExtractionTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.QuestionExtraction)
	if !ok {
		return "", fmt.Errorf("expected QuestionExtraction, got %T", data)
	}
	if len(result.Questions) == 0 {
		return "No questions found.\n", nil
	}

	var output strings.Builder
	writeNumbered(&output, result.Questions)
	if result.Degraded {
		output.WriteString("\nNote: found by pattern matching, not by the model.\n")
	}
	if result.Improved {
		output.WriteString("\nQuestions were reviewed and improved.\n")
	}
	return output.String(), nil
}

func (f *QuestionExtractionTextFormatter) SupportedType() string {
	return "QuestionExtraction"
}

// SummaryTextFormatter prints the analysis_summary.txt layout
type SummaryTextFormatter struct{}

func (f *SummaryTextFormatter) Format(data any) (string, error) {
	summary, ok := data.(types.AnalysisSummary)
	if !ok {
		return "", fmt.Errorf("expected AnalysisSummary, got %T", data)
	}
	return pipeline.SummaryText(summary), nil
}

func (f *SummaryTextFormatter) SupportedType() string {
	return "AnalysisSummary"
}

// FrameworkFormatter prints the DOT source
type FrameworkFormatter struct{}

func (f *FrameworkFormatter) Format(data any) (string, error) {
	result, ok := data.(pipeline.FrameworkResult)
	if !ok {
		return "", fmt.Errorf("expected FrameworkResult, got %T", data)
	}
	return result.DOT, nil
}

func (f *FrameworkFormatter) SupportedType() string {
	return "FrameworkResult"
}
