package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"

	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/observability"
	"personasim/internal/simulator"
	"personasim/internal/types"
)

// Simulate interviews one persona over the session's question set and
// overwrites its response set. Nothing is written unless every answer succeeds.
func (p *Pipeline) Simulate(ctx context.Context, sess *Session, name string) (types.SimulationResult, error) {
	sess = orNewSession(sess)
	start := beginStage(p.clients.Simulate)
	result, err := p.simulate(ctx, sess, name)
	p.finish(ctx, observability.StageSimulate, start, err,
		"persona", name,
		"run_id", sess.RunID(),
		"question_count", len(result.Responses))
	return result, err
}

func (p *Pipeline) simulate(ctx context.Context, sess *Session, name string) (types.SimulationResult, error) {
	if err := requireClient(p.clients.Simulate, config.OpSimulate); err != nil {
		return types.SimulationResult{}, err
	}
	persona, err := p.Persona(sess, name)
	if err != nil {
		return types.SimulationResult{}, err
	}
	questions, err := p.Questions(sess)
	if err != nil {
		return types.SimulationResult{}, err
	}
	if sess.NoOverwrite && p.store.ResponsesExist(persona.Name) {
		return types.SimulationResult{}, existsError(p.store.ResponsesPath(persona.Name))
	}

	sim := simulator.New(p.clients.Simulate, p.opts.Simulate, p.logger)
	responses, err := sim.Run(ctx, persona, questions)
	if err != nil {
		return types.SimulationResult{}, err
	}

	path, err := p.store.SaveResponses(ctx, persona.Name, responses)
	if err != nil {
		return types.SimulationResult{}, err
	}
	p.metrics.RecordResponses(ctx, persona.Name, len(responses))

	return types.SimulationResult{
		Persona:    persona.Name,
		RunID:      sess.RunID(),
		OutputPath: path,
		Responses:  responses,
	}, nil
}

// SimulateBatch runs Simulate for each persona in turn. Every persona that
// succeeds keeps its committed file; the failures are joined into the error.
// An empty names list means every stored persona.
func (p *Pipeline) SimulateBatch(ctx context.Context, sess *Session, names []string) ([]types.SimulationResult, error) {
	sess = orNewSession(sess)
	if len(names) == 0 {
		personas, err := p.store.ListPersonas()
		if err != nil {
			return nil, err
		}
		for _, persona := range personas {
			names = append(names, persona.Name)
		}
	}
	if len(names) == 0 {
		return nil, errors.NewInputError(errors.ErrCodePersonaNotFound, "no personas to simulate", nil)
	}

	var (
		results  []types.SimulationResult
		failures []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		result, err := p.Simulate(ctx, sess, name)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}
		results = append(results, result)
	}

	p.logger.Info("Batch simulation finished",
		"run_id", sess.RunID(),
		"personas", len(names),
		"succeeded", len(results),
		"failed", len(failures))

	return results, stderrors.Join(failures...)
}

func existsError(path string) error {
	return errors.NewInputError(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("%s already exists and overwriting is disabled", path), nil).
		WithContext("path", path)
}
