package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/types"
)

// Defaults applied by ValidatePersona to missing fields.
const (
	UnnamedPersona = "Unnamed Persona"
	DefaultJob     = "Professional"
)

// ValidatePersona fills missing fields with defaults and rejects values
// outside the data model: an age outside [18, 99] or a name without a usable slug.
func ValidatePersona(p types.Persona) (types.Persona, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = UnnamedPersona
	}
	if strings.TrimSpace(p.Job) == "" {
		p.Job = DefaultJob
	}
	if strings.TrimSpace(p.Education) == "" {
		p.Education = types.NotSpecified
	}
	if strings.TrimSpace(p.Personality) == "" {
		p.Personality = types.NotSpecified
	}
	if p.Age == 0 {
		p.Age = types.DefaultPersonaAge
	}

	opinions := make(map[string]string, len(p.Opinions)+2)
	for topic, opinion := range p.Opinions {
		opinions[topic] = opinion
	}
	for _, topic := range []string{types.OpinionAI, types.OpinionRemoteWork} {
		if strings.TrimSpace(opinions[topic]) == "" {
			opinions[topic] = types.NotSpecified
		}
	}
	p.Opinions = opinions

	if p.Age < types.MinPersonaAge || p.Age > types.MaxPersonaAge {
		return p, errors.NewInputError(errors.ErrCodeInvalidPersona,
			fmt.Sprintf("age %d for %s is outside %d-%d", p.Age, p.Name, types.MinPersonaAge, types.MaxPersonaAge), nil)
	}
	if _, err := requireSlug(p.Name); err != nil {
		return p, err
	}
	return p, nil
}

// PersonaPath returns where the persona called name is stored.
func (s *Store) PersonaPath(name string) string {
	return s.path(personasDir, Slug(name)+".json")
}

// SavePersona validates p and upserts its record.
func (s *Store) SavePersona(ctx context.Context, p types.Persona) (types.Persona, string, error) {
	p, err := ValidatePersona(p)
	if err != nil {
		return p, "", err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return p, "", errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot encode persona", err)
	}

	path := s.PersonaPath(p.Name)
	if err := s.writeLocked(ctx, path, append(data, '\n')); err != nil {
		return p, "", err
	}
	s.logger.Info("Persona saved", "persona", p.Name, "path", path)
	return p, path, nil
}

// LoadPersona reads the persona stored under name's slug.
func (s *Store) LoadPersona(name string) (types.Persona, error) {
	if _, err := requireSlug(name); err != nil {
		return types.Persona{}, err
	}
	return loadPersonaFile(s.PersonaPath(name))
}

func loadPersonaFile(path string) (types.Persona, error) {
	data, err := readFile(path, errors.ErrCodePersonaNotFound, "persona")
	if err != nil {
		return types.Persona{}, err
	}

	var p types.Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return types.Persona{}, errors.NewInputError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("persona file %s is not valid JSON", path), err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return types.Persona{}, errors.NewInputError(errors.ErrCodeInvalidPersona,
			fmt.Sprintf("persona file %s has no name", path), nil)
	}
	return p, nil
}

// ListPersonas loads every stored persona ordered by slug.
func (s *Store) ListPersonas() ([]types.Persona, error) {
	names, err := listFiles(s.path(personasDir), ".json")
	if err != nil {
		return nil, err
	}

	personas := make([]types.Persona, 0, len(names))
	for _, name := range names {
		p, err := loadPersonaFile(s.path(personasDir, name))
		if err != nil {
			s.logger.LogError(err, "Skipping unreadable persona", "file", name)
			continue
		}
		personas = append(personas, p)
	}
	return personas, nil
}

// DeletePersona removes the persona record. Its responses and outputs stay.
func (s *Store) DeletePersona(ctx context.Context, name string) error {
	if _, err := requireSlug(name); err != nil {
		return err
	}
	path := s.PersonaPath(name)

	unlock, err := s.locker.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodePersonaNotFound,
				fmt.Sprintf("persona not found: %s", name), err)
		}
		return errors.NewIOError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Cannot delete file: %s", path), err)
	}
	s.logger.Info("Persona deleted", "persona", name)
	return nil
}
