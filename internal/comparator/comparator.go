// Package comparator buckets a real interview against a simulated one. The
// comparison is deterministic; only the optional narrative calls a model.
package comparator

import (
	"fmt"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/types"

	"github.com/pmezard/go-difflib/difflib"
)

// EmotionalKeywords mark a real answer as carrying affect. Matching is a
// case-insensitive substring test.
var EmotionalKeywords = []string{"feel", "emotion", "believe", "think"}

// Options tune a comparison.
type Options struct {
	// Strict fails on the first pair whose questions differ instead of skipping it.
	Strict bool
}

// Compare pairs real and simulated by index over the shorter of the two.
// Entries past the shorter length are dropped and counted as truncated.
func Compare(real, simulated types.ResponseSet, opts Options) (types.ComparisonResult, error) {
	n := min(len(real), len(simulated))
	result := types.ComparisonResult{
		Similarities:    []types.Similarity{},
		Differences:     []types.Difference{},
		EmotionalNuance: []types.Difference{},
		Truncated:       max(len(real), len(simulated)) - n,
	}

	for i := range n {
		r, s := real[i], simulated[i]
		if strings.TrimSpace(r.Question) != strings.TrimSpace(s.Question) {
			if opts.Strict {
				return types.ComparisonResult{}, errors.NewInputError(errors.ErrCodeQuestionMismatch,
					fmt.Sprintf("question %d differs: real %q, simulated %q", i+1, r.Question, s.Question), nil).
					WithContext("index", i)
			}
			result.Skipped++
			continue
		}
		result.Evaluated++

		if strings.TrimSpace(r.Answer) == strings.TrimSpace(s.Answer) {
			result.Similarities = append(result.Similarities, types.Similarity{
				Question:  r.Question,
				Real:      r.Answer,
				Simulated: s.Answer,
			})
			continue
		}

		d := types.Difference{
			Question:  r.Question,
			Real:      r.Answer,
			Simulated: s.Answer,
			Diff:      Diff(r.Answer, s.Answer),
		}
		result.Differences = append(result.Differences, d)
		if IsEmotional(r.Answer) {
			result.EmotionalNuance = append(result.EmotionalNuance, d)
		}
	}

	return result, nil
}

// IsEmotional reports whether answer contains one of EmotionalKeywords.
func IsEmotional(answer string) bool {
	lower := strings.ToLower(answer)
	for _, k := range EmotionalKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Diff returns a unified diff of the real answer's lines against the
// simulated answer's lines, one diff line per output line.
func Diff(real, simulated string) string {
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(real),
		B:        splitLines(simulated),
		FromFile: "real",
		ToFile:   "simulated",
		Context:  3,
	})
	if err != nil {
		// only write errors are possible and the buffer never fails
		return ""
	}
	return strings.TrimSuffix(out, "\n")
}

// splitLines splits s into lines terminated by "\n", dropping a final empty
// line the way text editors do.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i := range lines {
		lines[i] += "\n"
	}
	return lines
}
