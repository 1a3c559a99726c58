// Package store persists personas, question sets, response sets and
// generated outputs as flat files under one data directory.
//
// Layout:
//
//	{dataDir}/personas/{slug}.json
//	{dataDir}/questions/questions.txt
//	{dataDir}/responses/{slug}_responses.json
//	{dataDir}/real/{slug}_responses.json
//	{dataDir}/outputs/...
//	{dataDir}/transcripts/{slug}.txt
//	{dataDir}/exports/...
//
// Every write replaces the whole file (last write wins) and is serialised
// per path through the configured Locker.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"personasim/internal/errors"
	"personasim/internal/utils"
)

const (
	personasDir    = "personas"
	questionsDir   = "questions"
	responsesDir   = "responses"
	realDir        = "real"
	outputsDir     = "outputs"
	transcriptsDir = "transcripts"
	exportsDir     = "exports"

	questionsFile   = "questions.txt"
	responsesSuffix = "_responses.json"
)

// Store is a flat-file repository rooted at one data directory.
type Store struct {
	root   string
	locker Locker
	logger *errors.Logger
}

// New returns a store rooted at dataDir. A nil locker means in-process locking only.
func New(dataDir string, locker Locker, logger *errors.Logger) *Store {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &Store{root: filepath.Clean(dataDir), locker: locker, logger: logger}
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// Slug turns a persona name into a filesystem-safe key: lower case, spaces
// become underscores, anything else outside letters, digits, '_' and '-' is dropped.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func requireSlug(name string) (string, error) {
	slug := Slug(name)
	if slug == "" {
		return "", errors.NewInputError(errors.ErrCodeInvalidPersona,
			fmt.Sprintf("persona name %q has no usable characters", name), nil)
	}
	return slug, nil
}

func (s *Store) path(parts ...string) string {
	return filepath.Join(append([]string{s.root}, parts...)...)
}

// writeLocked writes data to path while holding the path lock.
func (s *Store) writeLocked(ctx context.Context, path string, data []byte) error {
	unlock, err := s.locker.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := utils.WriteFileAtomic(path, data); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Cannot write file: %s", path), err)
	}
	s.logger.Debug("File written", "path", path, "bytes", len(data))
	return nil
}

func readFile(path, notFoundCode, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(notFoundCode,
				fmt.Sprintf("%s not found: %s", what, path), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}
	return data, nil
}

// listFiles returns the names in dir ending in suffix, sorted.
func listFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot list directory: %s", dir), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
