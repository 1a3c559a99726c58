package pipeline

import (
	"strings"
	"sync"

	"personasim/internal/errors"
	"personasim/internal/extractor"
	"personasim/internal/store"
	"personasim/internal/types"

	"github.com/google/uuid"
)

// Session carries the per-invocation inputs each operation reads instead of
// process-wide state: personas and a question set that shadow the store, and
// uploaded documents keyed by file name. The zero value reads everything
// from the store. A Session is safe for concurrent use.
type Session struct {
	ID string

	// NoOverwrite makes simulate and analyze fail when their output exists.
	NoOverwrite bool

	mu        sync.RWMutex
	personas  map[string]types.Persona
	questions []string
	uploads   map[string][]byte
}

// NewSession returns an empty session with a fresh run id.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// RunID returns the session id, assigning one on first use.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return s.ID
}

// AddPersona makes p visible to this session under its slug.
func (s *Session) AddPersona(p types.Persona) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.personas == nil {
		s.personas = map[string]types.Persona{}
	}
	s.personas[store.Slug(p.Name)] = p
}

// SetQuestions overrides the stored question set for this session.
func (s *Session) SetQuestions(questions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = store.ParseQuestions(strings.Join(questions, "\n"))
}

// AddUpload attaches a document by file name.
func (s *Session) AddUpload(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[name] = data
}

func (s *Session) persona(name string) (types.Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[store.Slug(name)]
	return p, ok
}

func (s *Session) sessionQuestions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.questions...)
}

func (s *Session) upload(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.uploads[name]
	return data, ok
}

func orNewSession(s *Session) *Session {
	if s == nil {
		return NewSession()
	}
	return s
}

// Persona resolves name from the session, then the store.
func (p *Pipeline) Persona(sess *Session, name string) (types.Persona, error) {
	if sess != nil {
		if persona, ok := sess.persona(name); ok {
			return persona, nil
		}
	}
	return p.store.LoadPersona(name)
}

// Questions resolves the question set from the session, then the store.
func (p *Pipeline) Questions(sess *Session) ([]string, error) {
	if sess != nil {
		if qs := sess.sessionQuestions(); len(qs) > 0 {
			return qs, nil
		}
	}
	return p.store.LoadQuestions()
}

// DocumentText extracts text from an uploaded document, or from a file on
// disk when the session holds no upload of that name.
func (p *Pipeline) DocumentText(sess *Session, name string) (string, error) {
	if sess != nil {
		if data, ok := sess.upload(name); ok {
			return extractor.ExtractBytes(name, data)
		}
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.NewInputError(errors.ErrCodeInvalidRequest, "no document given", nil)
	}
	return extractor.ExtractText(name)
}
