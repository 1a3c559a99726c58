package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/pipeline"
	"personasim/internal/store"
	"personasim/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// apiHandler handles one endpoint. Returned errors are written by traced.
type apiHandler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// traced wraps h in a span named api.{operation} and turns its error into a
// JSON error response.
func (s *Server) traced(operation string, h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.Observability.Tracer("personasim.api").Start(r.Context(), "api."+operation)
		defer span.End()
		span.SetAttributes(
			attribute.String("operation", operation),
			attribute.String("request.id", requestID(ctx)),
		)

		if err := h(ctx, w, r.WithContext(ctx)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.type", string(errors.TypeOf(err))))
			s.writeAppError(w, r, err)
			return
		}
		span.SetAttributes(attribute.Bool("success", true))
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewInputError(errors.ErrCodeInvalidRequest, field+" field is required", nil)
	}
	return nil
}

func (s *Server) checkSize(field, value string) error {
	if s.MaxRequestSize > 0 && int64(len(value)) > s.MaxRequestSize {
		return errors.NewInputError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s exceeds the size limit of %d characters", field, s.MaxRequestSize), nil)
	}
	return nil
}

func (s *Server) listPersonas(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	personas, err := s.Pipeline.Store().ListPersonas()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": personas})
	return nil
}

func (s *Server) upsertPersona(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var p types.Persona
	if err := parseJSONRequest(r, &p); err != nil {
		return err
	}
	saved, path, err := s.Pipeline.Store().SavePersona(ctx, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]any{"persona": saved, "path": path})
	return nil
}

func (s *Server) getPersona(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := s.Pipeline.Store().LoadPersona(r.PathValue("name"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *Server) deletePersona(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := s.Pipeline.Store().DeletePersona(ctx, r.PathValue("name")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) extractPersona(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req ExtractRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}
	if err := s.checkSize("text", req.Text); err != nil {
		return err
	}
	counter := req.Counter
	if counter < 1 {
		counter = 1
	}
	result, err := s.Pipeline.ExtractPersona(ctx, pipeline.NewSession(), req.Text, counter, req.Save)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

func (s *Server) getQuestions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	questions, err := s.Pipeline.Store().LoadQuestions()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, types.QuestionSet{Questions: questions})
	return nil
}

func (s *Server) putQuestions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req QuestionsRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}
	questions, err := s.Pipeline.ImportQuestions(ctx, nil, strings.Join(req.Questions, "\n"))
	if err != nil {
		return err
	}
	s.refreshQuestionCount()
	writeJSON(w, http.StatusOK, types.QuestionSet{Questions: questions})
	return nil
}

func (s *Server) extractQuestions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req ExtractRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}
	if err := s.checkSize("text", req.Text); err != nil {
		return err
	}
	result, err := s.Pipeline.ExtractQuestions(ctx, pipeline.NewSession(), req.Text, pipeline.QuestionOptions{
		Improve: req.Improve,
		Offline: req.Offline,
		Save:    req.Save,
	})
	if err != nil {
		return err
	}
	if req.Save {
		s.refreshQuestionCount()
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

func (s *Server) simulate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req SimulateRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}
	if err := required("persona", req.Persona); err != nil {
		return err
	}

	sess := pipeline.NewSession()
	sess.NoOverwrite = req.NoOverwrite
	if len(req.Questions) > 0 {
		sess.SetQuestions(req.Questions)
	}
	result, err := s.Pipeline.Simulate(ctx, sess, req.Persona)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

func (s *Server) analyze(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req AnalyzeRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}

	switch {
	case req.Persona != "":
		result, err := s.Pipeline.Analyze(ctx, pipeline.NewSession(), req.Persona)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, result)
	case len(req.Responses) > 0:
		result, err := s.Pipeline.AnalyzeResponses(ctx, req.Subject, req.Responses)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, result)
	default:
		return errors.NewInputError(errors.ErrCodeInvalidRequest, "persona or responses field is required", nil)
	}
	return nil
}

func (s *Server) compare(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req CompareRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}
	if err := required("real", req.Real); err != nil {
		return err
	}
	if err := required("simulated", req.Simulated); err != nil {
		return err
	}

	report, err := s.Pipeline.Compare(ctx, pipeline.NewSession(), req.Real, req.Simulated, pipeline.CompareOptions{
		Strict:    req.Strict,
		Narrative: req.Narrative,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

func (s *Server) framework(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req FrameworkRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return err
	}

	switch {
	case req.Persona != "":
		result, err := s.Pipeline.Framework(ctx, req.Persona, false)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, result)
	case req.Analysis != nil:
		result := pipeline.RenderFramework(*req.Analysis)
		if len(result.Framework.Nodes) == 0 {
			return errors.NewParseError(errors.ErrCodeAIParseFailed, "the analysis has no dimensions, themes or codes", nil)
		}
		writeJSON(w, http.StatusOK, result)
	default:
		return errors.NewInputError(errors.ErrCodeInvalidRequest, "persona or analysis field is required", nil)
	}
	return nil
}

func (s *Server) exportDocument(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("persona")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}

	doc, err := s.Pipeline.ExportDocument(ctx, name, format)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_interview%s"`, store.Slug(name), doc.Extension))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(doc.Data)
	if err != nil {
		s.Logger.Warn("Failed to write export", "persona", name, "error", err)
	}
	return nil
}
