package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/types"
)

// ResponsesPath returns where the simulated response set for name lives.
func (s *Store) ResponsesPath(name string) string {
	return s.path(responsesDir, Slug(name)+responsesSuffix)
}

// RealResponsesPath returns where the imported real transcript for name lives.
func (s *Store) RealResponsesPath(name string) string {
	return s.path(realDir, Slug(name)+responsesSuffix)
}

// EncodeResponses renders rs as the on-disk indented JSON array.
func EncodeResponses(rs types.ResponseSet) ([]byte, error) {
	if rs == nil {
		rs = types.ResponseSet{}
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot encode responses", err)
	}
	return append(data, '\n'), nil
}

// DecodeResponses parses a JSON array of {question, answer}.
func DecodeResponses(data []byte) (types.ResponseSet, error) {
	var rs types.ResponseSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, errors.NewInputError(errors.ErrCodeInvalidFormat, "responses are not a JSON array of {question, answer}", err)
	}
	return rs, nil
}

// SaveResponses overwrites the simulated response set for name.
func (s *Store) SaveResponses(ctx context.Context, name string, rs types.ResponseSet) (string, error) {
	return s.saveResponses(ctx, name, s.ResponsesPath(name), rs)
}

// SaveRealResponses overwrites the real transcript for name.
func (s *Store) SaveRealResponses(ctx context.Context, name string, rs types.ResponseSet) (string, error) {
	return s.saveResponses(ctx, name, s.RealResponsesPath(name), rs)
}

func (s *Store) saveResponses(ctx context.Context, name, path string, rs types.ResponseSet) (string, error) {
	if _, err := requireSlug(name); err != nil {
		return "", err
	}
	data, err := EncodeResponses(rs)
	if err != nil {
		return "", err
	}
	if err := s.writeLocked(ctx, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadResponses reads the simulated response set for name.
func (s *Store) LoadResponses(name string) (types.ResponseSet, error) {
	return s.loadResponses(name, s.ResponsesPath(name))
}

// LoadRealResponses reads the real transcript for name.
func (s *Store) LoadRealResponses(name string) (types.ResponseSet, error) {
	return s.loadResponses(name, s.RealResponsesPath(name))
}

// LoadResponsesFile reads a response set from an arbitrary path.
func LoadResponsesFile(path string) (types.ResponseSet, error) {
	data, err := readFile(path, errors.ErrCodeResponsesNotFound, "responses")
	if err != nil {
		return nil, err
	}
	return DecodeResponses(data)
}

func (s *Store) loadResponses(name, path string) (types.ResponseSet, error) {
	if _, err := requireSlug(name); err != nil {
		return nil, err
	}
	return LoadResponsesFile(path)
}

// ResponsesExist reports whether a simulated response set is stored for name.
func (s *Store) ResponsesExist(name string) bool {
	_, err := LoadResponsesFile(s.ResponsesPath(name))
	return err == nil
}

// ListResponseSets returns the slugs that have a simulated response set, sorted.
func (s *Store) ListResponseSets() ([]string, error) {
	names, err := listFiles(s.path(responsesDir), responsesSuffix)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, len(names))
	for i, n := range names {
		slugs[i] = strings.TrimSuffix(n, responsesSuffix)
	}
	return slugs, nil
}

// Summary aggregates every stored simulated response set.
func (s *Store) Summary() (types.AnalysisSummary, error) {
	slugs, err := s.ListResponseSets()
	if err != nil {
		return types.AnalysisSummary{}, err
	}

	summary := types.AnalysisSummary{Personas: []string{}}
	seen := map[string]struct{}{}
	for _, slug := range slugs {
		rs, err := LoadResponsesFile(s.path(responsesDir, slug+responsesSuffix))
		if err != nil {
			return types.AnalysisSummary{}, fmt.Errorf("summarising %s: %w", slug, err)
		}
		summary.Personas = append(summary.Personas, slug)
		summary.TotalResponses += len(rs)
		for _, r := range rs {
			seen[r.Question] = struct{}{}
		}
	}
	summary.UniqueQuestions = len(seen)
	return summary, nil
}
