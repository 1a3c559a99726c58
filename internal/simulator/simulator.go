// Package simulator runs persona-conditioned interviews against a generative client.
package simulator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"personasim/internal/ai"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/types"

	"golang.org/x/sync/errgroup"
)

// Options tune one simulator.
type Options struct {
	MaxOutputTokens int32
	Temperature     float32
	// Concurrency bounds in-flight model calls per persona; values below 2 run sequentially.
	Concurrency int
	Prompts     *config.PromptSet
}

// Simulator asks a persona each question independently. No conversation
// history is carried between calls, so answers may contradict each other.
type Simulator struct {
	client ai.Client
	opts   Options
	logger *errors.Logger
}

// New returns a simulator using client.
func New(client ai.Client, opts Options, logger *errors.Logger) *Simulator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &Simulator{client: client, opts: opts, logger: logger}
}

// Preamble is the fixed persona description sent with every question.
func Preamble(p types.Persona) string {
	return fmt.Sprintf(ai.PersonaPreamble, p.Name, p.Age, p.Job, p.Personality)
}

// Prompt builds the full prompt for one question.
func (s *Simulator) Prompt(preamble, question string) string {
	return ai.Render(s.opts.Prompts, config.OpSimulate, ai.PromptSimulate, preamble, strings.TrimSpace(question))
}

// Run returns one response per question in input order. The first failure
// aborts the run and cancels outstanding calls; nothing partial is returned.
func (s *Simulator) Run(ctx context.Context, persona types.Persona, questions []string) (types.ResponseSet, error) {
	if strings.TrimSpace(persona.Name) == "" {
		return nil, errors.NewInputError(errors.ErrCodeInvalidPersona, "persona has no name", nil)
	}
	if len(questions) == 0 {
		return nil, errors.NewInputError(errors.ErrCodeEmptyQuestions, "no questions to ask", nil)
	}
	for i, q := range questions {
		if strings.TrimSpace(q) == "" {
			return nil, errors.NewInputError(errors.ErrCodeEmptyQuestions,
				fmt.Sprintf("question %d is empty", i+1), nil)
		}
	}

	start := time.Now()
	preamble := Preamble(persona)
	responses := make(types.ResponseSet, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, q := range questions {
		question := strings.TrimSpace(q)
		prompt := s.Prompt(preamble, question)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			answer, err := s.client.Generate(gctx, prompt, s.opts.MaxOutputTokens, s.opts.Temperature)
			if err != nil {
				return wrapQuestionError(err, i, persona.Name)
			}
			responses[i] = types.Response{Question: question, Answer: strings.TrimSpace(answer)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.LogError(err, "Interview simulation failed",
			"persona", persona.Name,
			"question_count", len(questions))
		return nil, err
	}

	s.logger.Info("Interview simulated",
		"persona", persona.Name,
		"question_count", len(questions),
		"concurrency", s.opts.Concurrency,
		"duration_ms", time.Since(start).Milliseconds())

	return responses, nil
}

func wrapQuestionError(err error, index int, persona string) error {
	if appErr, ok := errors.As(err); ok {
		return appErr.WithContext("question_index", index).WithContext("persona", persona)
	}
	return errors.NewServiceError(errors.ErrCodeAIServiceFailed,
		fmt.Sprintf("generating answer %d for %s", index+1, persona), err).
		WithContext("question_index", index)
}
