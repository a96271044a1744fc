package training

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qcompress/internal/domain"
)

// stubOptimizer evaluates the objective once at the initial point.
type stubOptimizer struct{}

func (stubOptimizer) Name() string { return "stub" }

func (stubOptimizer) Minimize(objective Objective, initial []float64) (Result, error) {
	v, err := objective(initial)
	if err != nil {
		return Result{}, err
	}
	return Result{Params: initial, Loss: v, Evaluations: 1}, nil
}

// countingObjective records how many times the loss pipeline was reached.
type countingObjective struct {
	calls  int
	losses []float64
}

func (c *countingObjective) evaluate(params []float64) (float64, error) {
	v := c.losses[c.calls%len(c.losses)]
	c.calls++
	return v, nil
}

func TestTrain_WrongLengthRejectedBeforeAnyEvaluation(t *testing.T) {
	obj := &countingObjective{losses: []float64{-0.5}}
	loop, err := NewLoop(obj.evaluate, 1, stubOptimizer{}, 0, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = loop.Train([]float64{0.1, 0.2})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Zero(t, obj.calls, "no evaluation may happen for a malformed vector")
}

func TestTrain_ReportsIterations(t *testing.T) {
	obj := &countingObjective{losses: []float64{-0.25}}

	var states []State
	loop, err := NewLoop(obj.evaluate, 1, stubOptimizer{}, 1, func(s State) {
		states = append(states, s)
	}, zerolog.Nop())
	require.NoError(t, err)

	result, err := loop.Train([]float64{0.3})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Evaluations)
	require.Len(t, states, 1)
	assert.Equal(t, 1, states[0].Iteration)
	assert.Equal(t, -0.25, states[0].Loss)
	assert.Equal(t, []float64{0.3}, states[0].Params)
}

func TestTrain_ErrorNumberingMatchesCallback(t *testing.T) {
	evaluate := func([]float64) (float64, error) {
		return 0, errors.New("backend unreachable")
	}

	loop, err := NewLoop(evaluate, 1, stubOptimizer{}, 0, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = loop.Train([]float64{0.5})
	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
	// The first evaluation is iteration 1, same as the callback numbering.
	assert.Contains(t, err.Error(), "iteration 1")
}

func TestTrain_FindsQuadraticMinimum(t *testing.T) {
	// Smooth stand-in for a loss surface with a single well at 0.7.
	evaluate := func(x []float64) (float64, error) {
		d := x[0] - 0.7
		return d*d - 1, nil
	}

	loop, err := NewLoop(evaluate, 1, NelderMead{MaxEvaluations: 500}, 0, nil, zerolog.Nop())
	require.NoError(t, err)

	result, err := loop.Train([]float64{3})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, result.Params[0], 1e-2)
	assert.InDelta(t, -1.0, result.Loss, 1e-3)
}

func TestScan_PreservesInputOrder(t *testing.T) {
	obj := &countingObjective{losses: []float64{-0.1, -0.9, -0.4}}
	loop, err := NewLoop(obj.evaluate, 1, stubOptimizer{}, 0, nil, zerolog.Nop())
	require.NoError(t, err)

	grid := [][]float64{{-1}, {0}, {1}}
	points, err := loop.Scan(grid)
	require.NoError(t, err)

	require.Len(t, points, 3)
	for i := range grid {
		assert.Equal(t, grid[i], points[i].Params)
	}
	assert.Equal(t, []float64{-0.1, -0.9, -0.4}, []float64{points[0].Loss, points[1].Loss, points[2].Loss})
}

func TestScan_ValidatesAllPointsUpFront(t *testing.T) {
	obj := &countingObjective{losses: []float64{-0.1}}
	loop, err := NewLoop(obj.evaluate, 1, stubOptimizer{}, 0, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = loop.Scan([][]float64{{0.1}, {0.1, 0.2}})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Zero(t, obj.calls)
}

func TestScan_EmptyGrid(t *testing.T) {
	obj := &countingObjective{losses: []float64{0}}
	loop, err := NewLoop(obj.evaluate, 1, stubOptimizer{}, 0, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = loop.Scan(nil)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestNewLoop_Validation(t *testing.T) {
	obj := &countingObjective{losses: []float64{0}}

	_, err := NewLoop(nil, 1, stubOptimizer{}, 0, nil, zerolog.Nop())
	assert.True(t, domain.IsConfiguration(err))

	_, err = NewLoop(obj.evaluate, 1, nil, 0, nil, zerolog.Nop())
	assert.True(t, domain.IsConfiguration(err))

	_, err = NewLoop(obj.evaluate, 0, stubOptimizer{}, 0, nil, zerolog.Nop())
	assert.True(t, domain.IsConfiguration(err))
}
