package pipeline

import (
	"context"

	"personasim/internal/ai"
	"personasim/internal/comparator"
	"personasim/internal/config"
	"personasim/internal/observability"
	"personasim/internal/store"
	"personasim/internal/types"
)

// CompareOptions tune a comparison run.
type CompareOptions struct {
	Strict bool
	// Narrative adds a model-written summary; its failure is only logged.
	Narrative bool
}

// ComparisonReport is a comparison result, its markdown rendering and the
// file it was written to.
type ComparisonReport struct {
	Result     types.ComparisonResult `json:"result"`
	Markdown   string                 `json:"markdown"`
	OutputPath string                 `json:"outputPath,omitempty"`
}

// Compare matches the real transcript stored for real against the simulated
// response set of simulated, writing {simulated}_comparison.md.
func (p *Pipeline) Compare(ctx context.Context, sess *Session, real, simulated string, opts CompareOptions) (ComparisonReport, error) {
	sess = orNewSession(sess)
	start := beginStage(p.narrativeClient(opts))
	report, err := p.compare(ctx, real, simulated, opts)
	p.finish(ctx, observability.StageCompare, start, err,
		"real", real,
		"simulated", simulated,
		"run_id", sess.RunID(),
		"evaluated", report.Result.Evaluated,
		"skipped", report.Result.Skipped)
	return report, err
}

func (p *Pipeline) compare(ctx context.Context, real, simulated string, opts CompareOptions) (ComparisonReport, error) {
	realSet, err := p.store.LoadRealResponses(real)
	if err != nil {
		return ComparisonReport{}, err
	}
	simSet, err := p.store.LoadResponses(simulated)
	if err != nil {
		return ComparisonReport{}, err
	}

	report, err := p.compareSets(ctx, realSet, simSet, opts)
	if err != nil {
		return ComparisonReport{}, err
	}

	report.OutputPath, err = p.store.WriteOutput(ctx, store.Slug(simulated)+store.ComparisonSuffix, []byte(report.Markdown))
	if err != nil {
		return ComparisonReport{}, err
	}
	return report, nil
}

// CompareSets compares two response sets without touching the store.
func (p *Pipeline) CompareSets(ctx context.Context, real, simulated types.ResponseSet, opts CompareOptions) (ComparisonReport, error) {
	start := beginStage(p.narrativeClient(opts))
	report, err := p.compareSets(ctx, real, simulated, opts)
	p.finish(ctx, observability.StageCompare, start, err,
		"evaluated", report.Result.Evaluated,
		"skipped", report.Result.Skipped)
	return report, err
}

func (p *Pipeline) compareSets(ctx context.Context, real, simulated types.ResponseSet, opts CompareOptions) (ComparisonReport, error) {
	result, err := comparator.Compare(real, simulated, comparator.Options{Strict: opts.Strict})
	if err != nil {
		return ComparisonReport{}, err
	}

	if opts.Narrative {
		if err := requireClient(p.clients.Compare, config.OpCompare); err != nil {
			p.logger.LogError(err, "Comparison narrative skipped")
		} else {
			narrator := comparator.NewNarrator(p.clients.Compare,
				p.opts.NarrativeMaxOutputTokens, p.opts.NarrativeTemperature, p.opts.Prompts, p.logger)
			result = narrator.WithNarrative(ctx, result)
		}
	}

	return ComparisonReport{Result: result, Markdown: comparator.Markdown(result)}, nil
}

func (p *Pipeline) narrativeClient(opts CompareOptions) ai.Client {
	if !opts.Narrative {
		return nil
	}
	return p.clients.Compare
}
