package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"personasim/internal/ai"
	"personasim/internal/config"
	"personasim/internal/types"
)

var (
	numberPrefix = regexp.MustCompile(`^\d+\.\s*`)
	sentence     = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// questionStarts open a sentence that asks for a response.
var questionStarts = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"tell me", "describe", "explain", "discuss",
}

// ParseNumberedList strips "1." style prefixes and keeps lines longer than ten characters.
func ParseNumberedList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		q := strings.TrimSpace(numberPrefix.ReplaceAllString(line, ""))
		if len(q) > 10 {
			out = append(out, q)
		}
	}
	return out
}

// FallbackQuestions finds question-like sentences without a model: sentences
// ending in "?", starting with a question word or prompt verb, or mentioning
// "interview question", longer than fifteen characters.
func FallbackQuestions(text string) []string {
	var out []string
	for _, m := range sentence.FindAllString(text, -1) {
		body := strings.TrimRight(m, ".!?")
		terminator := m[len(body):]
		body = strings.TrimSpace(body)
		if len(body) <= 15 {
			continue
		}

		lower := strings.ToLower(body)
		asked := strings.Contains(terminator, "?")
		if !asked && !hasQuestionStart(lower) && !strings.Contains(lower, "interview question") {
			continue
		}
		if asked {
			body += "?"
		}
		out = append(out, body)
	}
	return out
}

func hasQuestionStart(lower string) bool {
	for _, w := range questionStarts {
		if strings.HasPrefix(lower, w) {
			return true
		}
	}
	return false
}

// Questions extracts interview questions from document text. With
// improve set, a second call polishes them. Without a client, or when the
// extraction call fails or finds nothing, the regex fallback is used.
func (e *Extractor) Questions(ctx context.Context, text string, improve bool) (types.QuestionExtraction, error) {
	if strings.TrimSpace(text) == "" {
		return types.QuestionExtraction{Questions: []string{}}, nil
	}
	if e.client == nil {
		return e.fallback(text), nil
	}

	prompt := ai.Render(e.prompts, config.OpExtract, ai.PromptQuestions, truncate(text, questionsTextLimit))
	reply, err := e.client.Generate(ctx, prompt, questionsMaxTokens, questionsTemperature)
	if err != nil {
		if ctx.Err() != nil {
			return types.QuestionExtraction{}, err
		}
		e.logger.LogError(err, "Question extraction failed, using pattern fallback")
		return e.fallback(text), nil
	}

	questions := ParseNumberedList(reply)
	if len(questions) == 0 {
		e.logger.Warn("Model found no questions, using pattern fallback")
		return e.fallback(text), nil
	}

	result := types.QuestionExtraction{Questions: questions, Source: "ai"}
	if improve {
		result.Questions, result.Improved = e.Improve(ctx, questions)
	}
	e.logger.Info("Questions extracted",
		"question_count", len(result.Questions),
		"improved", result.Improved)
	return result, nil
}

// Improve asks the model to polish questions. The originals are returned,
// with false, when the call fails or yields nothing.
func (e *Extractor) Improve(ctx context.Context, questions []string) ([]string, bool) {
	if len(questions) == 0 || e.client == nil {
		return questions, false
	}

	numbered := make([]string, len(questions))
	for i, q := range questions {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, q)
	}
	prompt := ai.Render(e.prompts, config.OpExtract, ai.PromptImprove, strings.Join(numbered, "\n"))

	reply, err := e.client.Generate(ctx, prompt, improveMaxTokens, improveTemperature)
	if err != nil {
		e.logger.LogError(err, "Question improvement failed, keeping originals")
		return questions, false
	}
	improved := ParseNumberedList(reply)
	if len(improved) == 0 {
		return questions, false
	}
	return improved, true
}

func (e *Extractor) fallback(text string) types.QuestionExtraction {
	questions := FallbackQuestions(text)
	if questions == nil {
		questions = []string{}
	}
	return types.QuestionExtraction{Questions: questions, Degraded: true, Source: "pattern"}
}
