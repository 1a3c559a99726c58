package store

import (
	"context"
	"strings"

	"personasim/internal/errors"
)

// ParseQuestions splits text into trimmed non-empty lines, keeping order and duplicates.
func ParseQuestions(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	questions := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			questions = append(questions, line)
		}
	}
	return questions
}

// QuestionsPath returns the location of the question set.
func (s *Store) QuestionsPath() string {
	return s.path(questionsDir, questionsFile)
}

// SaveQuestions replaces the stored question set.
func (s *Store) SaveQuestions(ctx context.Context, questions []string) ([]string, error) {
	cleaned := ParseQuestions(strings.Join(questions, "\n"))
	if len(cleaned) == 0 {
		return nil, errors.NewInputError(errors.ErrCodeEmptyQuestions, "no questions found", nil)
	}

	if err := s.writeLocked(ctx, s.QuestionsPath(), []byte(strings.Join(cleaned, "\n"))); err != nil {
		return nil, err
	}
	s.logger.Info("Question set saved", "question_count", len(cleaned))
	return cleaned, nil
}

// LoadQuestions reads the stored question set. An empty file is an input error.
func (s *Store) LoadQuestions() ([]string, error) {
	data, err := readFile(s.QuestionsPath(), errors.ErrCodeFileNotFound, "question set")
	if err != nil {
		return nil, err
	}
	questions := ParseQuestions(string(data))
	if len(questions) == 0 {
		return nil, errors.NewInputError(errors.ErrCodeEmptyQuestions, "the stored question set is empty", nil)
	}
	return questions, nil
}
