package pipeline

import (
	"context"
	"encoding/json"

	"personasim/internal/analyzer"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/observability"
	"personasim/internal/store"
	"personasim/internal/types"
)

// AnalysisResult is a thematic analysis plus the files it was written to.
type AnalysisResult struct {
	types.ThematicAnalysis
	MarkdownPath string `json:"markdownPath,omitempty"`
	TreePath     string `json:"treePath,omitempty"`
}

// Analyze codes the stored response set of name and overwrites its
// {slug}_gioia.md, plus {slug}_gioia.json when a tree was recovered.
func (p *Pipeline) Analyze(ctx context.Context, sess *Session, name string) (AnalysisResult, error) {
	sess = orNewSession(sess)
	start := beginStage(p.clients.Analyze)
	result, err := p.analyze(ctx, sess, name)
	p.finish(ctx, observability.StageAnalyze, start, err,
		"persona", name,
		"run_id", sess.RunID(),
		"dimensions", len(result.Dimensions),
		"structured", result.Structured)
	return result, err
}

func (p *Pipeline) analyze(ctx context.Context, sess *Session, name string) (AnalysisResult, error) {
	slug := store.Slug(name)
	if sess.NoOverwrite && p.store.OutputExists(slug+store.GioiaMarkdownSuffix) {
		return AnalysisResult{}, existsError(p.store.OutputPath(slug + store.GioiaMarkdownSuffix))
	}

	responses, err := p.store.LoadResponses(name)
	if err != nil {
		return AnalysisResult{}, err
	}

	analysis, err := p.runAnalyzer(ctx, name, responses)
	if err != nil {
		return AnalysisResult{}, err
	}

	result := AnalysisResult{ThematicAnalysis: analysis}
	result.MarkdownPath, err = p.store.WriteOutput(ctx, slug+store.GioiaMarkdownSuffix, []byte(analysis.Raw))
	if err != nil {
		return AnalysisResult{}, err
	}
	p.metrics.RecordContentSize(ctx, observability.StageAnalyze, "markdown", len(analysis.Raw))

	if len(analysis.Dimensions) > 0 {
		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return AnalysisResult{}, errors.NewInternalError(errors.ErrCodeInvalidFormat, "cannot encode analysis tree", err)
		}
		result.TreePath, err = p.store.WriteOutput(ctx, slug+store.GioiaTreeSuffix, append(data, '\n'))
		if err != nil {
			return AnalysisResult{}, err
		}
	}
	return result, nil
}

// AnalyzeResponses codes rs without persisting anything.
func (p *Pipeline) AnalyzeResponses(ctx context.Context, subject string, rs types.ResponseSet) (types.ThematicAnalysis, error) {
	start := beginStage(p.clients.Analyze)
	analysis, err := p.runAnalyzer(ctx, subject, rs)
	p.finish(ctx, observability.StageAnalyze, start, err,
		"subject", subject,
		"responses", len(rs))
	return analysis, err
}

func (p *Pipeline) runAnalyzer(ctx context.Context, subject string, rs types.ResponseSet) (types.ThematicAnalysis, error) {
	if err := requireClient(p.clients.Analyze, config.OpAnalyze); err != nil {
		return types.ThematicAnalysis{}, err
	}
	return analyzer.New(p.clients.Analyze, p.opts.Analyze, p.logger).Analyze(ctx, subject, rs)
}

// LoadAnalysis reads the stored analysis of name: the JSON tree when present,
// otherwise the markdown run through the line-prefix parser.
func (p *Pipeline) LoadAnalysis(name string) (types.ThematicAnalysis, error) {
	slug := store.Slug(name)
	if data, err := p.store.ReadOutput(slug + store.GioiaTreeSuffix); err == nil {
		var analysis types.ThematicAnalysis
		if err := json.Unmarshal(data, &analysis); err != nil {
			return types.ThematicAnalysis{}, errors.NewParseError(errors.ErrCodeInvalidFormat,
				"stored analysis tree is not valid JSON", err).WithContext("persona", name)
		}
		return analysis, nil
	} else if !errors.IsNotFound(err) {
		return types.ThematicAnalysis{}, err
	}

	raw, err := p.store.ReadOutput(slug + store.GioiaMarkdownSuffix)
	if err != nil {
		return types.ThematicAnalysis{}, err
	}
	return types.ThematicAnalysis{
		Subject:    name,
		Raw:        string(raw),
		Dimensions: analyzer.Parse(string(raw)),
	}, nil
}
