package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/utils"
)

// Output file suffixes, appended to a persona slug.
const (
	GioiaMarkdownSuffix = "_gioia.md"
	GioiaTreeSuffix     = "_gioia.json"
	ComparisonSuffix    = "_comparison.md"
	FrameworkDOTSuffix  = "_framework.dot"
	FrameworkPNGSuffix  = "_framework.png"
	SummaryFile         = "analysis_summary.txt"
)

func checkOutputName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return errors.NewInputError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid output file name %q", name), nil)
	}
	return nil
}

// OutputPath returns the location of the named output file.
func (s *Store) OutputPath(name string) string {
	return s.path(outputsDir, name)
}

// OutputExists reports whether the named output file exists.
func (s *Store) OutputExists(name string) bool {
	return utils.FileExists(s.OutputPath(name))
}

// WriteOutput overwrites the named output file.
func (s *Store) WriteOutput(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkOutputName(name); err != nil {
		return "", err
	}
	path := s.OutputPath(name)
	if err := s.writeLocked(ctx, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ReadOutput reads the named output file.
func (s *Store) ReadOutput(name string) ([]byte, error) {
	if err := checkOutputName(name); err != nil {
		return nil, err
	}
	return readFile(s.OutputPath(name), errors.ErrCodeFileNotFound, "output")
}

// OutputsFor returns the paths of every output file whose name contains slug.
func (s *Store) OutputsFor(slug string) ([]string, error) {
	if slug == "" {
		return nil, errors.NewInputError(errors.ErrCodeInvalidRequest, "empty persona slug", nil)
	}
	names, err := listFiles(s.path(outputsDir), "")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range names {
		if strings.Contains(name, slug) {
			paths = append(paths, s.OutputPath(name))
		}
	}
	return paths, nil
}

// TranscriptPath returns where the transcript for name is written.
func (s *Store) TranscriptPath(name string) string {
	return s.path(transcriptsDir, Slug(name)+".txt")
}

// WriteTranscript overwrites the plain-text transcript for name.
func (s *Store) WriteTranscript(ctx context.Context, name, text string) (string, error) {
	if _, err := requireSlug(name); err != nil {
		return "", err
	}
	path := s.TranscriptPath(name)
	if err := s.writeLocked(ctx, path, []byte(text)); err != nil {
		return "", err
	}
	return path, nil
}

// ExportPath returns the location for an export artifact called name.
func (s *Store) ExportPath(name string) string {
	return s.path(exportsDir, name)
}

// WriteExport overwrites the named export artifact.
func (s *Store) WriteExport(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkOutputName(name); err != nil {
		return "", err
	}
	path := s.ExportPath(name)
	if err := s.writeLocked(ctx, path, data); err != nil {
		return "", err
	}
	return path, nil
}
