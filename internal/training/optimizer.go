// Package training drives the parameter search: a pluggable derivative-free
// optimizer in optimization mode, and a fixed-grid evaluator in scan mode.
package training

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/qcompress/internal/domain"
)

// Objective is a scalar loss evaluated at a parameter vector. The surface is
// noisy and generally multi-modal; optimizers must not assume smoothness.
type Objective func(params []float64) (float64, error)

// Result is the outcome of one optimization run.
type Result struct {
	Params      []float64
	Loss        float64
	Evaluations int
}

// Optimizer proposes parameter updates driven only by scalar loss feedback.
type Optimizer interface {
	Name() string
	Minimize(objective Objective, initial []float64) (Result, error)
}

// NelderMead is the default derivative-free optimizer, a thin adapter over
// gonum's simplex implementation.
type NelderMead struct {
	// MaxEvaluations caps the objective-call budget; 0 means 1000.
	MaxEvaluations int
	// Tolerance is the absolute function-convergence threshold; 0 means 1e-6.
	Tolerance float64
}

// Name implements Optimizer.
func (NelderMead) Name() string { return "nelder-mead" }

// Minimize implements Optimizer. Objective failures cannot surface through
// gonum's Func signature, so the first one is captured, the evaluation
// reports +Inf, and the captured error wins over whatever gonum returns.
func (nm NelderMead) Minimize(objective Objective, initial []float64) (Result, error) {
	maxEvals := nm.MaxEvaluations
	if maxEvals <= 0 {
		maxEvals = 1000
	}
	tolerance := nm.Tolerance
	if tolerance <= 0 {
		tolerance = 1e-6
	}

	var objErr error
	evaluations := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if objErr != nil {
				return math.Inf(1)
			}
			v, err := objective(x)
			if err != nil {
				objErr = err
				return math.Inf(1)
			}
			evaluations++
			return v
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   tolerance,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(problem, append([]float64(nil), initial...), settings, &optimize.NelderMead{})
	if objErr != nil {
		return Result{Evaluations: evaluations}, objErr
	}
	if err != nil {
		return Result{Evaluations: evaluations}, domain.ExecErrorf("optimizer", "minimization failed: %v", err)
	}

	// Budget exhaustion is a valid termination, not a failure.
	acceptable := map[optimize.Status]bool{
		optimize.Success:                 true,
		optimize.FunctionConvergence:     true,
		optimize.FunctionEvaluationLimit: true,
		optimize.MethodConverge:          true,
	}
	if !acceptable[result.Status] {
		return Result{Evaluations: evaluations}, domain.ExecErrorf("optimizer", "did not converge: status=%v", result.Status)
	}

	return Result{
		Params:      result.X,
		Loss:        result.F,
		Evaluations: evaluations,
	}, nil
}
