package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"personasim/internal/errors"
	"personasim/internal/types"

	"gopkg.in/yaml.v3"
)

// DecodePersonas parses one persona or a list of personas from YAML or JSON.
// JSON documents are valid YAML, so one decoder serves both.
func DecodePersonas(data []byte) ([]types.Persona, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.NewInputError(errors.ErrCodeInvalidFormat, "persona file is not valid YAML or JSON", err)
	}
	if len(root.Content) == 0 {
		return nil, errors.NewInputError(errors.ErrCodeInvalidPersona, "persona file is empty", nil)
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var personas []types.Persona
		if err := doc.Decode(&personas); err != nil {
			return nil, errors.NewInputError(errors.ErrCodeInvalidFormat, "cannot decode persona list", err)
		}
		return personas, nil
	case yaml.MappingNode:
		var p types.Persona
		if err := doc.Decode(&p); err != nil {
			return nil, errors.NewInputError(errors.ErrCodeInvalidFormat, "cannot decode persona", err)
		}
		return []types.Persona{p}, nil
	default:
		return nil, errors.NewInputError(errors.ErrCodeInvalidFormat,
			"persona file must hold a mapping or a list of mappings", nil)
	}
}

// ImportPersonas decodes data and saves every persona, stopping at the first failure.
func (s *Store) ImportPersonas(ctx context.Context, data []byte) ([]types.Persona, error) {
	personas, err := DecodePersonas(data)
	if err != nil {
		return nil, err
	}

	saved := make([]types.Persona, 0, len(personas))
	for i, p := range personas {
		p, _, err := s.SavePersona(ctx, p)
		if err != nil {
			if appErr, ok := errors.As(err); ok {
				appErr.WithContext("index", i)
			}
			return saved, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}

// EncodePersonas writes personas as a YAML list or an indented JSON array.
func EncodePersonas(w io.Writer, personas []types.Persona, format string) error {
	if personas == nil {
		personas = []types.Persona{}
	}

	switch format {
	case "yaml", "yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(personas); err != nil {
			return errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot encode personas as YAML", err)
		}
		if err := enc.Close(); err != nil {
			return errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot encode personas as YAML", err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(personas)
	default:
		return errors.NewInputError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported persona format %q (use yaml or json)", format), nil)
	}
}
