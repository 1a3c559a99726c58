package analyzer

import (
	"context"
	"strings"
	"testing"

	"personasim/internal/ai"
	"personasim/internal/ai/aitest"
	appErrors "personasim/internal/errors"
	"personasim/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var interview = types.ResponseSet{
	{Question: "How do you feel about AI?", Answer: "Nervous, honestly."},
	{Question: "Describe your ideal workday.", Answer: "Quiet mornings."},
}

const canonical = `Dimension: Emotional Response
Theme: Anxiety
- Fear of replacement: "I worry AI will take my job."
- Uncertainty
Theme: Curiosity
- Wants to learn: "I'd like to try the new tools."

Dimension: Work Design
Theme: Autonomy
- Quiet focus: "Quiet mornings."
`

func TestTranscript(t *testing.T) {
	assert.Equal(t,
		"Q: How do you feel about AI?\nA: Nervous, honestly.\nQ: Describe your ideal workday.\nA: Quiet mornings.",
		Transcript(interview))
	assert.Empty(t, Transcript(nil))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []types.Dimension
	}{
		{
			name: "canonical prefixes",
			raw:  canonical,
			want: []types.Dimension{
				{Name: "Emotional Response", Themes: []types.Theme{
					{Name: "Anxiety", Codes: []types.Code{
						{Label: "Fear of replacement", Quote: "I worry AI will take my job."},
						{Label: "Uncertainty"},
					}},
					{Name: "Curiosity", Codes: []types.Code{
						{Label: "Wants to learn", Quote: "I'd like to try the new tools."},
					}},
				}},
				{Name: "Work Design", Themes: []types.Theme{
					{Name: "Autonomy", Codes: []types.Code{{Label: "Quiet focus", Quote: "Quiet mornings."}}},
				}},
			},
		},
		{
			name: "markdown decoration",
			raw: `Here is the analysis.

### Aggregate Dimension 1: Emotional Response to Technology
**Theme 1.1: Anxiety about automation**
- Code: Fear of replacement
  Quote: "I worry AI will take my job."
* Uncertainty about skills - "I don't know what to learn next."
1. Skeptical of hype
> "It's all marketing."`,
			want: []types.Dimension{
				{Name: "Emotional Response to Technology", Themes: []types.Theme{
					{Name: "Anxiety about automation", Codes: []types.Code{
						{Label: "Fear of replacement", Quote: "I worry AI will take my job."},
						{Label: "Uncertainty about skills", Quote: "I don't know what to learn next."},
						{Label: "Skeptical of hype", Quote: "It's all marketing."},
					}},
				}},
			},
		},
		{
			name: "orphans attach to unassigned parents",
			raw: `Theme: Orphan theme
- orphan code
Dimension: Real
- code without theme
Theme: T
- c`,
			want: []types.Dimension{
				{Name: Unassigned, Themes: []types.Theme{
					{Name: "Orphan theme", Codes: []types.Code{{Label: "orphan code"}}},
				}},
				{Name: "Real", Themes: []types.Theme{
					{Name: Unassigned, Codes: []types.Code{{Label: "code without theme"}}},
					{Name: "T", Codes: []types.Code{{Label: "c"}}},
				}},
			},
		},
		{
			name: "hyphenated words are not prefixes",
			raw:  "Dimension: D\nTheme: T\n- Theme-based learning",
			want: []types.Dimension{
				{Name: "D", Themes: []types.Theme{{Name: "T", Codes: []types.Code{{Label: "Theme-based learning"}}}}},
			},
		},
		{
			name: "prose only",
			raw:  "The interviewee seems anxious.\nNo structure here.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestRenderTextRoundTrip(t *testing.T) {
	dims := Parse(canonical)
	require.Len(t, dims, 2)
	assert.Equal(t, dims, Parse(RenderText(dims)))
	assert.True(t, strings.HasPrefix(RenderText(dims), "Dimension: Emotional Response\nTheme: Anxiety\n"))
}

func TestAnalyzeFreeText(t *testing.T) {
	fake := aitest.Fixed(canonical)

	// structured mode needs schema support, which the plain client lacks
	analysis, err := New(aitest.Plain(fake), Options{MaxOutputTokens: 4096, Temperature: 0.4, Structured: true}, nil).
		Analyze(context.Background(), "Alex", interview)
	require.NoError(t, err)

	assert.Equal(t, "Alex", analysis.Subject)
	assert.Equal(t, canonical, analysis.Raw)
	assert.False(t, analysis.Structured)
	assert.Len(t, analysis.Dimensions, 2)

	require.Equal(t, 1, fake.CallCount())
	last := fake.Calls()[0]
	assert.False(t, last.Structured)
	assert.Equal(t, int32(4096), last.MaxOutputTokens)
	assert.Equal(t, ai.Render(nil, "analyze", ai.PromptGioia, Transcript(interview)), last.Prompt)
	assert.True(t, strings.HasSuffix(last.Prompt, "Interview Data:\n"+Transcript(interview)))
}

func TestAnalyzeStructured(t *testing.T) {
	var gotSchema *genai.Schema
	fake := &aitest.Fake{
		RespondStructured: func(_ string, schema *genai.Schema) (string, error) {
			gotSchema = schema
			return "```json\n" + `{"dimensions":[{"name":"Trust","themes":[{"name":"Reliance","codes":[{"label":"Double-checks output","quote":"I always verify"}]}]}]}` + "\n```", nil
		},
	}

	analysis, err := New(fake, Options{Structured: true}, nil).Analyze(context.Background(), "Alex", interview)
	require.NoError(t, err)

	assert.True(t, analysis.Structured)
	assert.Equal(t, "Dimension: Trust\nTheme: Reliance\n- Double-checks output: \"I always verify\"\n", analysis.Raw)
	assert.Equal(t, []types.Dimension{{Name: "Trust", Themes: []types.Theme{
		{Name: "Reliance", Codes: []types.Code{{Label: "Double-checks output", Quote: "I always verify"}}},
	}}}, analysis.Dimensions)

	require.Equal(t, 1, fake.CallCount())
	call := fake.Calls()[0]
	assert.True(t, call.Structured)
	assert.True(t, strings.HasSuffix(call.Prompt, ai.GioiaStructuredSuffix))
	require.NotNil(t, gotSchema)
	assert.Contains(t, gotSchema.Properties, "dimensions")
}

func TestAnalyzeStructuredFallsBackOnParseFailure(t *testing.T) {
	for name, reply := range map[string]string{
		"not json":      "Dimension: Trust",
		"no dimensions": `{"dimensions":[{"name":"  "}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			fake := &aitest.Fake{
				RespondStructured: func(string, *genai.Schema) (string, error) { return reply, nil },
				Respond:           func(string) (string, error) { return canonical, nil },
			}

			analysis, err := New(fake, Options{Structured: true}, nil).Analyze(context.Background(), "Alex", interview)
			require.NoError(t, err)
			assert.False(t, analysis.Structured)
			assert.Equal(t, canonical, analysis.Raw)

			calls := fake.Calls()
			require.Len(t, calls, 2)
			assert.True(t, calls[0].Structured)
			assert.False(t, calls[1].Structured)
		})
	}
}

func TestAnalyzeSurfacesServiceErrors(t *testing.T) {
	failure := appErrors.NewServiceError(appErrors.ErrCodeAIServiceFailed, "unauthorized", nil)

	t.Run("structured", func(t *testing.T) {
		fake := aitest.Failing(failure)
		_, err := New(fake, Options{Structured: true}, nil).Analyze(context.Background(), "Alex", interview)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, fake.CallCount(), "no retry and no fallback")
	})

	t.Run("free text", func(t *testing.T) {
		fake := aitest.Failing(failure)
		_, err := New(fake, Options{}, nil).Analyze(context.Background(), "Alex", interview)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, fake.CallCount())
	})
}

func TestAnalyzeKeepsUnstructuredText(t *testing.T) {
	analysis, err := New(aitest.Fixed("The interviewee is anxious."), Options{}, nil).
		Analyze(context.Background(), "Alex", interview)
	require.NoError(t, err)
	assert.Equal(t, "The interviewee is anxious.", analysis.Raw)
	assert.Empty(t, analysis.Dimensions)
}

func TestAnalyzeRejectsEmptySet(t *testing.T) {
	fake := aitest.Fixed(canonical)
	_, err := New(fake, Options{}, nil).Analyze(context.Background(), "Alex", nil)
	assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
	assert.Zero(t, fake.CallCount())
}

func BenchmarkParse(b *testing.B) {
	for b.Loop() {
		Parse(canonical)
	}
}
