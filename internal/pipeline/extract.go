package pipeline

import (
	"context"
	"path/filepath"

	"personasim/internal/ai"
	"personasim/internal/errors"
	"personasim/internal/extractor"
	"personasim/internal/observability"
	"personasim/internal/store"
	"personasim/internal/types"
)

// PersonaExtraction is an extracted persona and where it was saved.
type PersonaExtraction struct {
	types.ExtractionResult
	Path string `json:"path,omitempty"`
}

// ExtractPersona builds a persona from document text. With save set the
// persona is validated and upserted, and becomes visible to the session.
// Degraded placeholders are never stored.
func (p *Pipeline) ExtractPersona(ctx context.Context, sess *Session, text string, counter int, save bool) (PersonaExtraction, error) {
	sess = orNewSession(sess)
	start := beginStage(p.clients.Extract)
	p.metrics.RecordContentSize(ctx, observability.StageExtract, "persona_text", len(text))

	result, err := extractor.New(p.clients.Extract, p.opts.Prompts, p.logger).Persona(ctx, text, counter)
	out := PersonaExtraction{ExtractionResult: result}
	switch {
	case err != nil || !save:
	case result.Degraded:
		p.logger.Warn("Degraded persona not stored", "persona", result.Persona.Name)
	default:
		out.Persona, out.Path, err = p.store.SavePersona(ctx, result.Persona)
		if err == nil {
			sess.AddPersona(out.Persona)
		}
	}

	p.finish(ctx, observability.StageExtract, start, err,
		"kind", "persona",
		"degraded", result.Degraded,
		"saved", out.Path != "")
	return out, err
}

// ExtractPersonaDocument reads a document (an upload or a file) and extracts
// a persona from it.
func (p *Pipeline) ExtractPersonaDocument(ctx context.Context, sess *Session, document string, counter int, save bool) (PersonaExtraction, error) {
	text, err := p.DocumentText(sess, document)
	if err != nil {
		return PersonaExtraction{}, err
	}
	out, err := p.ExtractPersona(ctx, sess, text, counter, save)
	if err != nil {
		return out, err
	}
	out.Source = filepath.Base(document)
	return out, nil
}

// QuestionOptions tune question extraction.
type QuestionOptions struct {
	Improve bool
	// Offline skips the model and uses pattern matching only.
	Offline bool
	// Save replaces the stored question set with the result.
	Save bool
}

// ExtractQuestions pulls interview questions out of document text.
func (p *Pipeline) ExtractQuestions(ctx context.Context, sess *Session, text string, opts QuestionOptions) (types.QuestionExtraction, error) {
	sess = orNewSession(sess)
	var client ai.Client
	if !opts.Offline {
		client = p.clients.Extract
	}
	start := beginStage(client)
	p.metrics.RecordContentSize(ctx, observability.StageExtract, "questions_text", len(text))

	result, err := extractor.New(client, p.opts.Prompts, p.logger).Questions(ctx, text, opts.Improve)
	if err == nil && opts.Save {
		if len(result.Questions) == 0 {
			err = errors.NewInputError(errors.ErrCodeEmptyQuestions, "no questions found in the document", nil)
		} else {
			result.Questions, err = p.store.SaveQuestions(ctx, result.Questions)
		}
		if err == nil {
			sess.SetQuestions(result.Questions)
		}
	}

	p.finish(ctx, observability.StageExtract, start, err,
		"kind", "questions",
		"question_count", len(result.Questions),
		"source", result.Source,
		"improved", result.Improved)
	return result, err
}

// ExtractQuestionsDocument reads a document and extracts questions from it.
func (p *Pipeline) ExtractQuestionsDocument(ctx context.Context, sess *Session, document string, opts QuestionOptions) (types.QuestionExtraction, error) {
	text, err := p.DocumentText(sess, document)
	if err != nil {
		return types.QuestionExtraction{}, err
	}
	return p.ExtractQuestions(ctx, sess, text, opts)
}

// ImportQuestions replaces the stored question set with the lines of text.
func (p *Pipeline) ImportQuestions(ctx context.Context, sess *Session, text string) ([]string, error) {
	questions, err := p.store.SaveQuestions(ctx, store.ParseQuestions(text))
	if err != nil {
		return nil, err
	}
	if sess != nil {
		sess.SetQuestions(questions)
	}
	return questions, nil
}

// ImportTranscript parses a real interview transcript and stores it as the
// real side of comparisons for name.
func (p *Pipeline) ImportTranscript(ctx context.Context, name string, data []byte) (types.ResponseSet, string, error) {
	rs, err := extractor.ParseTranscript(data)
	if err != nil {
		return nil, "", err
	}
	path, err := p.store.SaveRealResponses(ctx, name, rs)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info("Real transcript imported",
		"name", name,
		"responses", len(rs),
		"path", path)
	return rs, path, nil
}
