package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"personasim/internal/ai/aitest"
	appErrors "personasim/internal/errors"
	"personasim/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonaEmptyInputReturnsDefault(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		fake := aitest.Fixed("{}")
		result, err := New(fake, nil, nil).Persona(context.Background(), text, 4)
		require.NoError(t, err)

		assert.True(t, result.Degraded)
		assert.Equal(t, DefaultPersona(4), result.Persona)
		assert.Equal(t, "Persona 4", result.Persona.Name)
		assert.Zero(t, fake.CallCount())
	}
}

func TestDefaultPersona(t *testing.T) {
	p := DefaultPersona(2)
	assert.Equal(t, types.Persona{
		Name:        "Persona 2",
		Age:         30,
		Job:         "Professional",
		Education:   "College Graduate",
		Personality: "Thoughtful and analytical",
		Opinions: map[string]string{
			"AI":          "Cautiously optimistic about AI technology",
			"Remote Work": "Appreciates flexibility of remote work",
		},
	}, p)
}

func TestPersonaExtraction(t *testing.T) {
	reply := "```json\n" + `{
  "name": "Dana Ruiz",
  "age": 41,
  "job": "Product manager",
  "education": "MBA",
  "personality": ["direct", "curious"],
  "ai_opinion": "Uses it daily",
  "remote_work_opinion": ""
}` + "\n```"
	fake := aitest.Fixed(reply)

	text := strings.Repeat("x", 5000)
	result, err := New(fake, nil, nil).Persona(context.Background(), text, 1)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, types.Persona{
		Name:        "Dana Ruiz",
		Age:         41,
		Job:         "Product manager",
		Education:   "MBA",
		Personality: "direct, curious",
		Opinions: map[string]string{
			"AI":          "Uses it daily",
			"Remote Work": types.NotSpecified,
		},
	}, result.Persona)

	require.Equal(t, 1, fake.CallCount())
	call := fake.Calls()[0]
	assert.Equal(t, int32(800), call.MaxOutputTokens)
	assert.InDelta(t, 0.2, call.Temperature, 1e-6)
	assert.Contains(t, call.Prompt, `"remote_work_opinion": "opinion on remote work"`)
	assert.Contains(t, call.Prompt, strings.Repeat("x", 3000))
	assert.NotContains(t, call.Prompt, strings.Repeat("x", 3001))
}

func TestPersonaMalformedReplyDegrades(t *testing.T) {
	fake := aitest.Fixed("Sorry, I cannot help with that.")
	result, err := New(fake, nil, nil).Persona(context.Background(), "Some bio text", 7)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, DefaultPersona(7), result.Persona)
}

func TestPersonaServiceFailureSurfaces(t *testing.T) {
	failure := appErrors.NewServiceError(appErrors.ErrCodeAIServiceFailed, "rate limited", nil)
	_, err := New(aitest.Failing(failure), nil, nil).Persona(context.Background(), "bio", 1)
	assert.ErrorIs(t, err, failure)

	_, err = New(nil, nil, nil).Persona(context.Background(), "bio", 1)
	assert.Equal(t, appErrors.ErrorTypeConfig, appErrors.TypeOf(err))
}

func TestParsePersonaFields(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantAge int
		check   func(t *testing.T, p types.Persona)
	}{
		{"string age", `{"name":"A","age":"52"}`, 52, nil},
		{"fractional age", `{"name":"A","age":33.5}`, 30, nil},
		{"word age", `{"name":"A","age":"thirty"}`, 30, nil},
		{"missing age", `{"name":"A"}`, 30, nil},
		{"young age clamped", `{"name":"A","age":12}`, 18, nil},
		{"old age clamped", `{"name":"A","age":140}`, 99, nil},
		{"empty name", `{"name":"  ","age":40}`, 40, func(t *testing.T, p types.Persona) {
			assert.Equal(t, "Persona 9", p.Name)
		}},
		{"missing fields", `{"name":"A","age":40}`, 40, func(t *testing.T, p types.Persona) {
			assert.Equal(t, types.NotSpecified, p.Job)
			assert.Equal(t, types.NotSpecified, p.Education)
			assert.Equal(t, types.NotSpecified, p.Opinion(types.OpinionAI))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePersona(tt.reply, 9)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAge, p.Age)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}

	_, err := ParsePersona("not json", 1)
	assert.Equal(t, appErrors.ErrorTypeParse, appErrors.TypeOf(err))
}

func TestParseNumberedList(t *testing.T) {
	got := ParseNumberedList("1. What drew you to nursing?\n\n2.Describe a hard shift.\n3. Why?\n  10. How do you unwind after work?")
	assert.Equal(t, []string{
		"What drew you to nursing?",
		"Describe a hard shift.",
		"How do you unwind after work?",
	}, got)
}

func TestFallbackQuestions(t *testing.T) {
	text := `Welcome to the study. What motivates you at work? We value honesty!
Tell me about your commute. Describe a typical day in detail.
Short? Is this an interview question for the panel. The weather was nice today`

	assert.Equal(t, []string{
		"What motivates you at work?",
		"Tell me about your commute",
		"Describe a typical day in detail",
		"Is this an interview question for the panel",
	}, FallbackQuestions(text))

	assert.Empty(t, FallbackQuestions(""))
}

func TestQuestionsExtraction(t *testing.T) {
	doc := "Interview guide. How do you feel about AI tools at work?"

	t.Run("ai with improvement", func(t *testing.T) {
		fake := aitest.NewFake(func(prompt string) (string, error) {
			if strings.Contains(prompt, "Questions to review:") {
				return "1. How do you feel about the AI tools you use at work?", nil
			}
			return "1. How do you feel about AI tools at work?\n2. Ok", nil
		})

		result, err := New(fake, nil, nil).Questions(context.Background(), doc, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"How do you feel about the AI tools you use at work?"}, result.Questions)
		assert.True(t, result.Improved)
		assert.False(t, result.Degraded)

		calls := fake.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, int32(1000), calls[0].MaxOutputTokens)
		assert.InDelta(t, 0.1, calls[0].Temperature, 1e-6)
		assert.Equal(t, int32(1500), calls[1].MaxOutputTokens)
		assert.Contains(t, calls[1].Prompt, "1. How do you feel about AI tools at work?")
	})

	t.Run("improvement failure keeps originals", func(t *testing.T) {
		fake := aitest.NewFake(func(prompt string) (string, error) {
			if strings.Contains(prompt, "Questions to review:") {
				return "", appErrors.NewServiceError(appErrors.ErrCodeAIServiceFailed, "boom", nil)
			}
			return "1. How do you feel about AI tools at work?", nil
		})

		result, err := New(fake, nil, nil).Questions(context.Background(), doc, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"How do you feel about AI tools at work?"}, result.Questions)
		assert.False(t, result.Improved)
	})

	t.Run("model failure falls back to patterns", func(t *testing.T) {
		fake := aitest.Failing(appErrors.NewServiceError(appErrors.ErrCodeAIServiceFailed, "boom", nil))
		result, err := New(fake, nil, nil).Questions(context.Background(), doc, false)
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, []string{"How do you feel about AI tools at work?"}, result.Questions)
	})

	t.Run("offline", func(t *testing.T) {
		result, err := New(nil, nil, nil).Questions(context.Background(), doc, true)
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.False(t, result.Improved)
		assert.Len(t, result.Questions, 1)
	})

	t.Run("empty text", func(t *testing.T) {
		fake := aitest.Fixed("1. anything at all?")
		result, err := New(fake, nil, nil).Questions(context.Background(), " ", false)
		require.NoError(t, err)
		assert.Empty(t, result.Questions)
		assert.Zero(t, fake.CallCount())
	})
}

func TestParseTranscript(t *testing.T) {
	t.Run("labelled text", func(t *testing.T) {
		text := "Q: How do you feel about AI?\nA: Nervous.\nIt changes fast.\n\nQuestion 2: Describe your\nideal workday.\nAnswer: Quiet mornings.\r\n"
		rs, err := ParseTranscript([]byte(text))
		require.NoError(t, err)
		assert.Equal(t, types.ResponseSet{
			{Question: "How do you feel about AI?", Answer: "Nervous.\nIt changes fast."},
			{Question: "Describe your ideal workday.", Answer: "Quiet mornings."},
		}, rs)
	})

	t.Run("json", func(t *testing.T) {
		rs, err := ParseTranscript([]byte(` [{"question":"Q1","answer":"A1"}]`))
		require.NoError(t, err)
		assert.Equal(t, types.ResponseSet{{Question: "Q1", Answer: "A1"}}, rs)
	})

	for name, input := range map[string]string{
		"empty":    "  ",
		"no label": "just some notes",
		"bad json": "[{",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTranscript([]byte(input))
			assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
		})
	}
}

func writeDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDocuments(t *testing.T) {
	docx := writeDOCX(t,
		`<w:p><w:r><w:t>Dana is 41.</w:t></w:r><w:r><w:t xml:space="preserve"> She manages products.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>What is your role?</w:t></w:r></w:p>`)

	t.Run("docx bytes", func(t *testing.T) {
		text, err := ExtractBytes("bio.DOCX", docx)
		require.NoError(t, err)
		assert.Equal(t, "Dana is 41. She manages products.\nWhat is your role?", text)
	})

	t.Run("docx file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bio.docx")
		require.NoError(t, os.WriteFile(path, docx, 0600))
		text, err := ExtractText(path)
		require.NoError(t, err)
		assert.Contains(t, text, "She manages products.")
	})

	t.Run("text file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.md")
		require.NoError(t, os.WriteFile(path, []byte("\n  hello \n"), 0600))
		text, err := ExtractText(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ExtractBytes("photo.png", []byte{0x89})
		assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
	})

	t.Run("corrupt docx", func(t *testing.T) {
		_, err := ExtractBytes("broken.docx", []byte("not a zip"))
		assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ExtractText(filepath.Join(t.TempDir(), "nope.pdf"))
		assert.Equal(t, appErrors.ErrorTypeIO, appErrors.TypeOf(err))
	})
}
