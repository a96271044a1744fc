package training

import (
	"github.com/rs/zerolog"

	"github.com/aristath/qcompress/internal/domain"
)

// State is a snapshot of one optimization step, delivered to the iteration
// callback and to the cadence logger.
type State struct {
	Iteration int
	Params    []float64
	Loss      float64
}

// ScanPoint pairs one candidate parameter vector with its mean loss.
type ScanPoint struct {
	Params []float64 `json:"params"`
	Loss   float64   `json:"loss"`
}

// Loop runs either training mode over a shared mean-loss pipeline. The
// evaluate function is the only bridge to circuits and backends, so the loop
// itself stays free of execution concerns.
type Loop struct {
	evaluate    Objective
	numParams   int
	optimizer   Optimizer
	reportEvery int
	onIteration func(State)
	log         zerolog.Logger
}

// NewLoop wires a training loop. reportEvery <= 0 disables cadence logging;
// onIteration may be nil.
func NewLoop(evaluate Objective, numParams int, optimizer Optimizer, reportEvery int, onIteration func(State), log zerolog.Logger) (*Loop, error) {
	if evaluate == nil {
		return nil, domain.ConfigErrorf("training", "evaluate function is not set")
	}
	if optimizer == nil {
		return nil, domain.ConfigErrorf("training", "optimizer is not set")
	}
	if numParams < 1 {
		return nil, domain.ConfigErrorf("training", "ansatz exposes %d parameters", numParams)
	}
	return &Loop{
		evaluate:    evaluate,
		numParams:   numParams,
		optimizer:   optimizer,
		reportEvery: reportEvery,
		onIteration: onIteration,
		log:         log.With().Str("component", "training").Logger(),
	}, nil
}

// validateParams rejects malformed vectors before any evaluation happens, so
// a wrong length can never reach the backend.
func (l *Loop) validateParams(params []float64) error {
	if len(params) != l.numParams {
		return domain.ConfigErrorf("training", "parameter vector has length %d, expected %d", len(params), l.numParams)
	}
	return nil
}

// Train runs optimization mode from the given initial parameters.
func (l *Loop) Train(initial []float64) (Result, error) {
	if err := l.validateParams(initial); err != nil {
		return Result{}, err
	}

	l.log.Info().
		Str("optimizer", l.optimizer.Name()).
		Floats64("initial", initial).
		Msg("Training started")

	iteration := 0
	tracked := func(params []float64) (float64, error) {
		iteration++
		value, err := l.evaluate(params)
		if err != nil {
			return 0, domain.ExecErrorf("training", "iteration %d at params %v: %v", iteration, params, err)
		}

		if l.reportEvery > 0 && iteration%l.reportEvery == 0 {
			l.log.Info().
				Int("iteration", iteration).
				Float64("loss", value).
				Msg("Training progress")
		}
		if l.onIteration != nil {
			l.onIteration(State{
				Iteration: iteration,
				Params:    append([]float64(nil), params...),
				Loss:      value,
			})
		}
		return value, nil
	}

	result, err := l.optimizer.Minimize(tracked, initial)
	if err != nil {
		return result, err
	}

	l.log.Info().
		Int("evaluations", result.Evaluations).
		Float64("loss", result.Loss).
		Floats64("params", result.Params).
		Msg("Training finished")
	return result, nil
}

// Scan runs scan mode: every candidate vector is evaluated in input order
// and the (params, loss) pairs are returned in that same order. All vectors
// are validated up front, before the first evaluation.
func (l *Loop) Scan(grid [][]float64) ([]ScanPoint, error) {
	if len(grid) == 0 {
		return nil, domain.ConfigErrorf("training", "empty scan grid")
	}
	for i, params := range grid {
		if err := l.validateParams(params); err != nil {
			return nil, domain.ConfigErrorf("training", "scan point %d: parameter vector has length %d, expected %d", i, len(params), l.numParams)
		}
	}

	points := make([]ScanPoint, len(grid))
	for i, params := range grid {
		value, err := l.evaluate(params)
		if err != nil {
			return nil, domain.ExecErrorf("training", "scan point %d at params %v: %v", i, params, err)
		}
		points[i] = ScanPoint{
			Params: append([]float64(nil), params...),
			Loss:   value,
		}
	}

	l.log.Info().Int("points", len(points)).Msg("Scan finished")
	return points, nil
}
