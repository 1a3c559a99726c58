package types

// Opinion topics every persona carries.
const (
	OpinionAI         = "AI"
	OpinionRemoteWork = "Remote Work"
)

// NotSpecified fills persona fields that were absent from the source.
const NotSpecified = "Not specified"

const (
	MinPersonaAge     = 18
	MaxPersonaAge     = 99
	DefaultPersonaAge = 30
)

// Persona is a synthetic interviewee profile used to condition generated answers
type Persona struct {
	Name        string            `json:"name" yaml:"name"`
	Age         int               `json:"age" yaml:"age"`
	Job         string            `json:"job" yaml:"job"`
	Education   string            `json:"education" yaml:"education"`
	Personality string            `json:"personality" yaml:"personality"`
	Opinions    map[string]string `json:"opinions" yaml:"opinions"`
}

// Opinion returns the persona's opinion on topic, or NotSpecified.
func (p Persona) Opinion(topic string) string {
	if v, ok := p.Opinions[topic]; ok && v != "" {
		return v
	}
	return NotSpecified
}

// Response is one question/answer pair
type Response struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ResponseSet is the ordered output of one simulated (or transcribed) interview
type ResponseSet []Response

// Questions returns the question column of the set in order.
func (rs ResponseSet) Questions() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Question
	}
	return out
}

// SimulationResult is what a simulate run returns to its caller
type SimulationResult struct {
	Persona    string      `json:"persona"`
	RunID      string      `json:"runId,omitempty"`
	OutputPath string      `json:"outputPath,omitempty"`
	Responses  ResponseSet `json:"responses"`
}

// Code is a first-order code with its representative quote
type Code struct {
	Label string `json:"label"`
	Quote string `json:"quote,omitempty"`
}

// Theme is a second-order theme grouping codes
type Theme struct {
	Name  string `json:"name"`
	Codes []Code `json:"codes"`
}

// Dimension is an aggregate dimension grouping themes
type Dimension struct {
	Name   string  `json:"name"`
	Themes []Theme `json:"themes"`
}

// ThematicAnalysis is a Gioia coding of one response set. Raw is always
// populated; Dimensions is populated when a tree could be recovered.
type ThematicAnalysis struct {
	Subject    string      `json:"subject,omitempty"`
	Raw        string      `json:"raw"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
	Structured bool        `json:"structured"`
}

// Similarity is a matched pair whose trimmed answers are identical
type Similarity struct {
	Question  string `json:"question"`
	Real      string `json:"real"`
	Simulated string `json:"simulated"`
}

// Difference is a matched pair with a line-level unified diff
type Difference struct {
	Question  string `json:"question"`
	Real      string `json:"real"`
	Simulated string `json:"simulated"`
	Diff      string `json:"diff"`
}

// ComparisonResult buckets real vs simulated answers
type ComparisonResult struct {
	Similarities    []Similarity `json:"similarities"`
	Differences     []Difference `json:"differences"`
	EmotionalNuance []Difference `json:"emotional_nuance"`

	Evaluated int `json:"evaluated"`
	Skipped   int `json:"skipped"`
	Truncated int `json:"truncated"`

	Narrative string `json:"narrative,omitempty"`
}

// AnalysisSummary aggregates every stored response set
type AnalysisSummary struct {
	TotalResponses  int      `json:"totalResponses"`
	UniqueQuestions int      `json:"uniqueQuestions"`
	Personas        []string `json:"personas"`
}

// QuestionSet is the ordered list of interview prompts
type QuestionSet struct {
	Questions []string `json:"questions"`
}

// ExtractionResult wraps a persona produced from an uploaded document
type ExtractionResult struct {
	Persona  Persona `json:"persona"`
	Degraded bool    `json:"degraded"`
	Source   string  `json:"source,omitempty"`
}

// QuestionExtraction is the outcome of pulling questions out of a document
type QuestionExtraction struct {
	Questions []string `json:"questions"`
	Improved  bool     `json:"improved"`
	// Degraded is set when the regex fallback produced the questions
	Degraded bool   `json:"degraded"`
	Source   string `json:"source,omitempty"`
}
