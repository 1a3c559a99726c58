package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/export"
	"personasim/internal/framework"
	"personasim/internal/observability"
	"personasim/internal/store"
	"personasim/internal/types"

	"github.com/google/uuid"
)

// SummaryHeader opens analysis_summary.txt.
const SummaryHeader = "Interview Analysis Summary"

// FrameworkResult is a rendered framework and the files written for it.
type FrameworkResult struct {
	Framework framework.Framework `json:"framework"`
	DOT       string              `json:"dot"`
	DOTPath   string              `json:"dotPath,omitempty"`
	PNGPath   string              `json:"pngPath,omitempty"`
}

// Framework renders the stored analysis of name as {slug}_framework.dot and,
// with png set, {slug}_framework.png through Graphviz.
func (p *Pipeline) Framework(ctx context.Context, name string, png bool) (FrameworkResult, error) {
	start := beginStage(nil)
	result, err := p.framework(ctx, name, png)
	p.finish(ctx, observability.StageFramework, start, err,
		"persona", name,
		"nodes", len(result.Framework.Nodes),
		"png", result.PNGPath != "")
	return result, err
}

func (p *Pipeline) framework(ctx context.Context, name string, png bool) (FrameworkResult, error) {
	analysis, err := p.LoadAnalysis(name)
	if err != nil {
		return FrameworkResult{}, err
	}
	result := RenderFramework(analysis)
	if len(result.Framework.Nodes) == 0 {
		return FrameworkResult{}, errors.NewParseError(errors.ErrCodeAIParseFailed,
			"the stored analysis has no dimensions, themes or codes", nil).WithContext("persona", name)
	}

	slug := store.Slug(name)
	result.DOTPath, err = p.store.WriteOutput(ctx, slug+store.FrameworkDOTSuffix, []byte(result.DOT))
	if err != nil {
		return FrameworkResult{}, err
	}

	if png {
		image, err := framework.RenderPNG(ctx, result.DOT)
		if err != nil {
			return result, err
		}
		result.PNGPath, err = p.store.WriteOutput(ctx, slug+store.FrameworkPNGSuffix, image)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// RenderFramework builds the framework graph of analysis without writing it.
func RenderFramework(analysis types.ThematicAnalysis) FrameworkResult {
	f := framework.Build(analysis.Dimensions)
	return FrameworkResult{Framework: f, DOT: f.DOT()}
}

// ExportDocument renders the simulated response set of name in format.
func (p *Pipeline) ExportDocument(ctx context.Context, name, format string) (export.Document, error) {
	start := beginStage(nil)
	doc, err := p.exportDocument(name, format)
	if err == nil {
		p.metrics.RecordContentSize(ctx, observability.StageExport, doc.Format, len(doc.Data))
	}
	p.finish(ctx, observability.StageExport, start, err,
		"persona", name,
		"format", format,
		"bytes", len(doc.Data))
	return doc, err
}

func (p *Pipeline) exportDocument(name, format string) (export.Document, error) {
	rs, err := p.store.LoadResponses(name)
	if err != nil {
		return export.Document{}, err
	}
	return export.Render(format, rs)
}

// Export renders the simulated response set of name and writes it to
// {dataDir}/exports/{slug}_interview{ext}.
func (p *Pipeline) Export(ctx context.Context, name, format string) (string, error) {
	doc, err := p.ExportDocument(ctx, name, format)
	if err != nil {
		return "", err
	}
	return p.store.WriteExport(ctx, store.Slug(name)+"_interview"+doc.Extension, doc.Data)
}

// Bundle zips every output whose file name contains the slug of name into
// {dataDir}/exports/{slug}_{uuid}.zip.
func (p *Pipeline) Bundle(ctx context.Context, name string) (string, error) {
	slug := store.Slug(name)
	paths, err := p.store.OutputsFor(slug)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := export.Bundle(&buf, paths); err != nil {
		return "", err
	}
	path, err := p.store.WriteExport(ctx, fmt.Sprintf("%s_%s.zip", slug, uuid.NewString()), buf.Bytes())
	if err != nil {
		return "", err
	}
	p.metrics.RecordContentSize(ctx, observability.StageExport, "bundle", buf.Len())
	p.logger.Info("Output bundle written",
		"persona", name,
		"files", len(paths),
		"path", path)
	return path, nil
}

// Summary aggregates every simulated response set and overwrites
// analysis_summary.txt.
func (p *Pipeline) Summary(ctx context.Context) (types.AnalysisSummary, string, error) {
	summary, err := p.store.Summary()
	if err != nil {
		return types.AnalysisSummary{}, "", err
	}
	if len(summary.Personas) == 0 {
		return summary, "", errors.NewInputError(errors.ErrCodeResponsesNotFound, "no response sets to summarise", nil)
	}
	path, err := p.store.WriteOutput(ctx, store.SummaryFile, []byte(SummaryText(summary)))
	if err != nil {
		return types.AnalysisSummary{}, "", err
	}
	return summary, path, nil
}

// SummaryText renders summary in the analysis_summary.txt layout.
func SummaryText(summary types.AnalysisSummary) string {
	var b strings.Builder
	b.WriteString(SummaryHeader + "\n")
	b.WriteString(strings.Repeat("=", 24) + "\n\n")
	fmt.Fprintf(&b, "Total responses: %d\n", summary.TotalResponses)
	fmt.Fprintf(&b, "Unique questions: %d\n", summary.UniqueQuestions)
	fmt.Fprintf(&b, "Personas analyzed: %d\n\n", len(summary.Personas))
	b.WriteString("Personas:\n")
	for _, persona := range summary.Personas {
		fmt.Fprintf(&b, "- %s\n", persona)
	}
	return b.String()
}

// FileTranscriber turns an audio file into text.
type FileTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// Transcribe converts audio into {dataDir}/transcripts/{slug}.txt.
func (p *Pipeline) Transcribe(ctx context.Context, t FileTranscriber, audioPath, name string) (string, error) {
	if t == nil {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig, "no speech transcriber is configured", nil)
	}
	text, err := t.TranscribeFile(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.NewParseError(errors.ErrCodeAIParseFailed, "the recording produced no transcript", nil).
			WithContext("audio", audioPath)
	}
	return p.store.WriteTranscript(ctx, name, text+"\n")
}
