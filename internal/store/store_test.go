package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"personasim/internal/errors"
	"personasim/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), nil, errors.Discard())
}

func alex() types.Persona {
	return types.Persona{
		Name:        "Alex",
		Age:         29,
		Job:         "Nurse",
		Education:   "BSc Nursing",
		Personality: "calm, detail-oriented",
		Opinions: map[string]string{
			types.OpinionAI:         "Useful for charting",
			types.OpinionRemoteWork: "Not possible on a ward",
		},
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Alex", "alex"},
		{"Mary Jane Watson", "mary_jane_watson"},
		{"  O'Brien / Dev  ", "obrien__dev"},
		{"ops-lead_2", "ops-lead_2"},
		{"../../etc/passwd", "etcpasswd"},
		{"Zoë", "zoë"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.name))
		})
	}
}

func TestValidatePersona(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		p, err := ValidatePersona(types.Persona{Name: " Sam "})
		require.NoError(t, err)
		assert.Equal(t, "Sam", p.Name)
		assert.Equal(t, DefaultJob, p.Job)
		assert.Equal(t, types.DefaultPersonaAge, p.Age)
		assert.Equal(t, types.NotSpecified, p.Education)
		assert.Equal(t, types.NotSpecified, p.Personality)
		assert.Equal(t, types.NotSpecified, p.Opinions[types.OpinionAI])
		assert.Equal(t, types.NotSpecified, p.Opinions[types.OpinionRemoteWork])
	})

	t.Run("missing name", func(t *testing.T) {
		p, err := ValidatePersona(types.Persona{})
		require.NoError(t, err)
		assert.Equal(t, UnnamedPersona, p.Name)
	})

	t.Run("keeps extra opinions", func(t *testing.T) {
		p, err := ValidatePersona(types.Persona{Name: "Kim", Opinions: map[string]string{"Unions": "supportive"}})
		require.NoError(t, err)
		assert.Len(t, p.Opinions, 3)
		assert.Equal(t, "supportive", p.Opinions["Unions"])
	})

	t.Run("does not mutate the caller's opinions", func(t *testing.T) {
		in := types.Persona{Name: "Kim", Opinions: map[string]string{}}
		_, err := ValidatePersona(in)
		require.NoError(t, err)
		assert.Empty(t, in.Opinions)
	})

	for _, age := range []int{17, 100, -1} {
		t.Run("rejects age", func(t *testing.T) {
			_, err := ValidatePersona(types.Persona{Name: "Kim", Age: age})
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))
		})
	}

	t.Run("rejects unusable name", func(t *testing.T) {
		_, err := ValidatePersona(types.Persona{Name: "???"})
		assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))
	})
}

func TestPersonaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, path, err := s.SavePersona(ctx, alex())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "personas", "alex.json"), path)

	loaded, err := s.LoadPersona("ALEX")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	// last write wins
	updated := alex()
	updated.Job = "Charge Nurse"
	_, _, err = s.SavePersona(ctx, updated)
	require.NoError(t, err)
	loaded, err = s.LoadPersona("Alex")
	require.NoError(t, err)
	assert.Equal(t, "Charge Nurse", loaded.Job)
}

func TestListAndDeletePersonas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Zed", "Alex", "Mary Jane"} {
		p := alex()
		p.Name = name
		_, _, err := s.SavePersona(ctx, p)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "personas", "broken.json"), []byte("{"), 0600))

	personas, err := s.ListPersonas()
	require.NoError(t, err)
	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"Alex", "Mary Jane", "Zed"}, names, "broken records are skipped")

	require.NoError(t, s.DeletePersona(ctx, "Mary Jane"))
	err = s.DeletePersona(ctx, "Mary Jane")
	assert.True(t, errors.IsNotFound(err))

	_, err = s.LoadPersona("Nobody")
	assert.True(t, errors.IsNotFound(err))
}

func TestListPersonasEmptyDir(t *testing.T) {
	personas, err := newTestStore(t).ListPersonas()
	require.NoError(t, err)
	assert.Empty(t, personas)
}

func TestQuestions(t *testing.T) {
	assert.Equal(t,
		[]string{"How do you feel about AI?", "Describe your ideal workday.", "How do you feel about AI?"},
		ParseQuestions("  How do you feel about AI?\r\n\n\t\nDescribe your ideal workday.  \nHow do you feel about AI?\n"),
		"blank lines stripped, order and duplicates kept")

	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadQuestions()
	assert.True(t, errors.IsNotFound(err))

	_, err = s.SaveQuestions(ctx, []string{" ", ""})
	assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))

	saved, err := s.SaveQuestions(ctx, []string{" First? ", "", "Second?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"First?", "Second?"}, saved)

	loaded, err := s.LoadQuestions()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	data, err := os.ReadFile(s.QuestionsPath())
	require.NoError(t, err)
	assert.Equal(t, "First?\nSecond?", string(data))
}

func TestResponsesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rs := types.ResponseSet{
		{Question: "How do you feel about AI?", Answer: "I think it helps.\nMostly."},
		{Question: "Describe your ideal workday.", Answer: ""},
		{Question: "How do you feel about AI?", Answer: "Same as before."},
	}

	path, err := s.SaveResponses(ctx, "Alex", rs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "responses", "alex_responses.json"), path)
	assert.True(t, s.ResponsesExist("alex"))

	loaded, err := s.LoadResponses("Alex")
	require.NoError(t, err)
	assert.Equal(t, rs, loaded)

	_, err = s.SaveRealResponses(ctx, "Alex", rs[:1])
	require.NoError(t, err)
	real, err := s.LoadRealResponses("Alex")
	require.NoError(t, err)
	assert.Equal(t, rs[:1], real)

	_, err = s.LoadResponses("Nobody")
	assert.True(t, errors.IsNotFound(err))
}

func TestEncodeEmptyResponses(t *testing.T) {
	data, err := EncodeResponses(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	summary, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisSummary{Personas: []string{}}, summary)

	_, err = s.SaveResponses(ctx, "Alex", types.ResponseSet{{Question: "Q1", Answer: "a"}, {Question: "Q2", Answer: "b"}})
	require.NoError(t, err)
	_, err = s.SaveResponses(ctx, "Bea", types.ResponseSet{{Question: "Q1", Answer: "c"}})
	require.NoError(t, err)

	summary, err = s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalResponses)
	assert.Equal(t, 2, summary.UniqueQuestions)
	assert.Equal(t, []string{"alex", "bea"}, summary.Personas)
}

func TestOutputs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.WriteOutput(ctx, "alex"+GioiaMarkdownSuffix, []byte("analysis"))
	require.NoError(t, err)
	_, err = s.WriteOutput(ctx, "alex"+ComparisonSuffix, []byte("comparison"))
	require.NoError(t, err)
	_, err = s.WriteOutput(ctx, "bea"+GioiaMarkdownSuffix, []byte("other"))
	require.NoError(t, err)

	assert.True(t, s.OutputExists("alex_gioia.md"))
	data, err := s.ReadOutput("alex_gioia.md")
	require.NoError(t, err)
	assert.Equal(t, "analysis", string(data))

	paths, err := s.OutputsFor("alex")
	require.NoError(t, err)
	assert.Equal(t, []string{s.OutputPath("alex_comparison.md"), s.OutputPath("alex_gioia.md")}, paths)

	for _, bad := range []string{"", "../escape.md", "sub/dir.md", ".hidden"} {
		_, err := s.WriteOutput(ctx, bad, nil)
		assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err), bad)
	}
}
