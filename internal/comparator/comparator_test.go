package comparator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"personasim/internal/ai/aitest"
	appErrors "personasim/internal/errors"
	"personasim/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(pairs ...string) types.ResponseSet {
	rs := make(types.ResponseSet, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rs = append(rs, types.Response{Question: pairs[i], Answer: pairs[i+1]})
	}
	return rs
}

func TestCompareBuckets(t *testing.T) {
	real := set(
		"Q1", "Same answer.",
		"Q2", "I think remote work is fine.",
		"Q3", "Mornings are best.",
		"Q4", "Skip me.",
	)
	simulated := set(
		"Q1", "  Same answer.\n",
		"Q2", "Remote work is great.",
		"Q3", "Evenings are best.",
		"Other", "Skip me.",
	)

	result, err := Compare(real, simulated, Options{})
	require.NoError(t, err)

	require.Len(t, result.Similarities, 1)
	assert.Equal(t, types.Similarity{Question: "Q1", Real: "Same answer.", Simulated: "  Same answer.\n"}, result.Similarities[0])

	require.Len(t, result.Differences, 2)
	assert.Equal(t, "Q2", result.Differences[0].Question)
	assert.Equal(t, "Q3", result.Differences[1].Question)
	assert.Equal(t, "--- real\n+++ simulated\n@@ -1 +1 @@\n-I think remote work is fine.\n+Remote work is great.",
		result.Differences[0].Diff)

	require.Len(t, result.EmotionalNuance, 1)
	assert.Equal(t, result.Differences[0], result.EmotionalNuance[0])

	assert.Equal(t, 3, result.Evaluated)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Truncated)
}

func TestCompareTruncation(t *testing.T) {
	real := set("a", "1", "b", "2", "c", "3", "d", "4", "e", "5")
	simulated := set("a", "x", "b", "y", "c", "3")

	result, err := Compare(real, simulated, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Evaluated)
	assert.Equal(t, 2, result.Truncated)
	assert.Len(t, result.Similarities, 1)
	assert.Len(t, result.Differences, 2)

	for _, d := range result.Differences {
		assert.NotContains(t, []string{"d", "e"}, d.Question)
	}
}

func TestCompareStrict(t *testing.T) {
	real := set("a", "1", "b", "2")
	simulated := set("a", "1", "c", "2")

	_, err := Compare(real, simulated, Options{Strict: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
	appErr, _ := appErrors.As(err)
	assert.Equal(t, appErrors.ErrCodeQuestionMismatch, appErr.Code)
	assert.Equal(t, 1, appErr.Context["index"])

	result, err := Compare(real, simulated, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
}

func TestCompareQuestionsTrimmedButCaseSensitive(t *testing.T) {
	real := set("How do you work?", "Remotely.", "what about AI?", "Daily.")
	simulated := set("  How do you work?\n", "Remotely.", "What about AI?", "Daily.")

	result, err := Compare(real, simulated, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Similarities, 1)
	assert.Equal(t, "How do you work?", result.Similarities[0].Question)
}

func TestCompareEmpty(t *testing.T) {
	result, err := Compare(nil, set("a", "1"), Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Evaluated)
	assert.Equal(t, 1, result.Truncated)
	assert.NotNil(t, result.Similarities)
	assert.NotNil(t, result.EmotionalNuance)
}

func TestIsEmotional(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"I FEEL great", true},
		{"Emotionally draining", true},
		{"I believe so", true},
		{"Rethinking it", true},
		{"Nothing to see", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmotional(tt.answer))
		})
	}
}

func TestDiffMultiline(t *testing.T) {
	got := Diff("line one\nline two\nline three\n", "line one\nline 2\nline three")
	assert.Equal(t, "--- real\n+++ simulated\n@@ -1,3 +1,3 @@\n line one\n-line two\n+line 2\n line three", got)
}

func randomSet(r *rand.Rand, n int) types.ResponseSet {
	answers := []string{"Yes.", "No.", "I feel uneasy.", "I think so.", "Maybe later.", "It depends."}
	rs := make(types.ResponseSet, n)
	for i := range rs {
		q := fmt.Sprintf("Q%d", i)
		if r.IntN(6) == 0 {
			q = "different"
		}
		rs[i] = types.Response{Question: q, Answer: answers[r.IntN(len(answers))]}
	}
	return rs
}

func TestCompareProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for i := range 200 {
		real := randomSet(r, r.IntN(8))
		simulated := randomSet(r, r.IntN(8))

		forward, err := Compare(real, simulated, Options{})
		require.NoError(t, err)
		backward, err := Compare(simulated, real, Options{})
		require.NoError(t, err)

		pairs := min(len(real), len(simulated))
		assert.Equal(t, pairs, forward.Evaluated+forward.Skipped, "case %d", i)
		assert.Equal(t, max(len(real), len(simulated))-pairs, forward.Truncated, "case %d", i)
		assert.Equal(t, forward.Evaluated, len(forward.Similarities)+len(forward.Differences), "case %d", i)

		// similarity membership ignores role order
		assert.Equal(t, questions(forward.Similarities), questions(backward.Similarities), "case %d", i)

		// emotional nuance is always drawn from the differences
		for _, e := range forward.EmotionalNuance {
			assert.Contains(t, forward.Differences, e, "case %d", i)
			assert.True(t, IsEmotional(e.Real))
		}
	}
}

func questions(sims []types.Similarity) []string {
	out := make([]string, len(sims))
	for i, s := range sims {
		out[i] = s.Question
	}
	return out
}

func TestCompareIsRoleSensitive(t *testing.T) {
	real := set("Q", "I feel anxious.")
	simulated := set("Q", "All good.")

	forward, _ := Compare(real, simulated, Options{})
	backward, _ := Compare(simulated, real, Options{})
	assert.NotEqual(t, forward, backward)
	assert.Len(t, forward.EmotionalNuance, 1)
	assert.Empty(t, backward.EmotionalNuance)
}

func TestMarkdown(t *testing.T) {
	result, err := Compare(
		set("Same?", "Yes.", "Feel?", "I feel fine."),
		set("Same?", "Yes.", "Feel?", "Fine."),
		Options{})
	require.NoError(t, err)

	md := Markdown(result)
	assert.True(t, strings.HasPrefix(md, "# Interview Comparison\n"))
	assert.Contains(t, md, "## Similarities\n- Q: Same?\n  - Real: Yes.\n  - Simulated: Yes.\n")
	assert.Contains(t, md, "## Differences\n- Q: Feel?\n  - Real: I feel fine.\n  - Simulated: Fine.\n  - Diff:\n")
	assert.Contains(t, md, "    -I feel fine.\n    +Fine.\n")
	assert.Contains(t, md, "## Emotional Nuance/Missed Points\n- Q: Feel?\n")
	assert.NotContains(t, md, "## Narrative")

	result.Narrative = "They diverge on feelings.\n"
	assert.True(t, strings.HasSuffix(Markdown(result), "## Narrative\nThey diverge on feelings.\n"))
}

func TestNarrator(t *testing.T) {
	result, err := Compare(set("Q", "I feel anxious."), set("Q", "All good."), Options{})
	require.NoError(t, err)

	t.Run("adds narrative", func(t *testing.T) {
		fake := aitest.Fixed("  The simulation missed the anxiety.  ")
		got := NewNarrator(fake, 1024, 0.3, nil, nil).WithNarrative(context.Background(), result)

		assert.Equal(t, "The simulation missed the anxiety.", got.Narrative)
		require.Equal(t, 1, fake.CallCount())
		call := fake.Calls()[0]
		assert.Contains(t, call.Prompt, "# Interview Comparison")
		assert.Equal(t, int32(1024), call.MaxOutputTokens)
	})

	t.Run("failure keeps the deterministic result", func(t *testing.T) {
		fake := aitest.Failing(appErrors.NewServiceError(appErrors.ErrCodeAIServiceFailed, "quota", nil))
		got := NewNarrator(fake, 1024, 0.3, nil, nil).WithNarrative(context.Background(), result)
		assert.Equal(t, result, got)
	})

	t.Run("nothing to narrate", func(t *testing.T) {
		fake := aitest.Fixed("x")
		_, err := NewNarrator(fake, 1024, 0.3, nil, nil).Narrate(context.Background(), types.ComparisonResult{})
		assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
		assert.Zero(t, fake.CallCount())
	})
}
