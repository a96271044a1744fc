package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qcompress/internal/domain"
	"github.com/aristath/qcompress/internal/qubit"
)

func demoMapping(t *testing.T) qubit.Mapping {
	t.Helper()
	m, err := qubit.NewMapping(
		map[string]int{"q0": 0, "q1": 1},
		map[string]int{"q1": 1},
		map[string]int{"q2": 2},
	)
	require.NoError(t, err)
	return m
}

func TestBuilder_WrongThetaLength(t *testing.T) {
	b := NewBuilder(demoMapping(t), RYPrep{}, ControlledRYAnsatz{}, true, false, false)

	_, err := b.Pipeline(0.3, []float64{0.1, 0.2})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))

	_, err = b.Pipeline(0.3, nil)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestPipeline_ResetMode(t *testing.T) {
	b := NewBuilder(demoMapping(t), RYPrep{}, ControlledRYAnsatz{}, true, false, false)

	c, err := b.Pipeline(0.3, []float64{0.5})
	require.NoError(t, err)

	// Reset mode measures the compression register and resets the trash
	// qubit in between the encode and decode halves.
	assert.Equal(t, []int{0, 1}, c.MeasuredQubits())

	var resets []int
	for _, g := range c.Gates {
		if g.Name == GateReset {
			resets = append(resets, g.Qubits...)
		}
	}
	assert.Equal(t, []int{0}, resets)
}

func TestPipeline_NoResetMode(t *testing.T) {
	b := NewBuilder(demoMapping(t), RYPrep{}, ControlledRYAnsatz{}, false, false, false)

	c, err := b.Pipeline(0.3, []float64{0.5})
	require.NoError(t, err)

	// No-reset mode measures the reversed latent+refresh register and
	// contains no reset instruction.
	assert.Equal(t, []int{2, 1}, c.MeasuredQubits())
	for _, g := range c.Gates {
		assert.NotEqual(t, GateReset, g.Name)
	}
}

func TestPipeline_TrashTrainingMode(t *testing.T) {
	b := NewBuilder(demoMapping(t), RYPrep{}, ControlledRYAnsatz{}, true, true, false)

	c, err := b.Pipeline(0.3, []float64{0.5})
	require.NoError(t, err)

	// Trash training measures only the trash register and never builds the
	// decode half.
	assert.Equal(t, []int{0}, c.MeasuredQubits())
	for _, g := range c.Gates {
		assert.NotEqual(t, GateReset, g.Name)
	}
}

func TestPipeline_FourTopologiesShareEncode(t *testing.T) {
	m := demoMapping(t)
	theta := []float64{0.7}

	encodeLen := len(RYPrep{}.Prepare(0.3, m.CompressionIndices(), m.NumQubits()).Gates) +
		len(ControlledRYAnsatz{}.Build(theta, m.CompressionIndices(), m.NumQubits()).Gates)

	for _, tc := range []struct {
		reset, trash bool
	}{
		{true, false}, {false, false}, {true, true}, {false, true},
	} {
		b := NewBuilder(m, RYPrep{}, ControlledRYAnsatz{}, tc.reset, tc.trash, false)
		c, err := b.Pipeline(0.3, theta)
		require.NoError(t, err)

		require.GreaterOrEqual(t, len(c.Gates), encodeLen, "reset=%v trash=%v", tc.reset, tc.trash)
		forward := Concat(
			RYPrep{}.Prepare(0.3, m.CompressionIndices(), m.NumQubits()),
			ControlledRYAnsatz{}.Build(theta, m.CompressionIndices(), m.NumQubits()),
		)
		assert.Equal(t, forward.Gates, c.Gates[:encodeLen], "reset=%v trash=%v", tc.reset, tc.trash)
	}
}

func TestPipeline_DecodeIsDerivedInverse(t *testing.T) {
	m := demoMapping(t)
	b := NewBuilder(m, RYPrep{}, ControlledRYAnsatz{}, true, false, false)

	c, err := b.Pipeline(0.3, []float64{0.5})
	require.NoError(t, err)

	forwardTrain := ControlledRYAnsatz{}.Build([]float64{0.5}, m.CompressionIndices(), m.NumQubits())
	wantDag, err := forwardTrain.Inverse()
	require.NoError(t, err)

	// Locate the decode half right after the reset instruction.
	var start int
	for i, g := range c.Gates {
		if g.Name == GateReset {
			start = i + 1
		}
	}
	assert.Equal(t, wantDag.Gates, c.Gates[start:start+len(wantDag.Gates)])
}

func TestPipeline_CompileSimplifies(t *testing.T) {
	m := demoMapping(t)
	plain := NewBuilder(m, RYPrep{}, ControlledRYAnsatz{}, true, false, false)
	compiled := NewBuilder(m, RYPrep{}, ControlledRYAnsatz{}, true, false, true)

	a, err := plain.Pipeline(0.3, []float64{0})
	require.NoError(t, err)
	b, err := compiled.Pipeline(0.3, []float64{0})
	require.NoError(t, err)

	assert.Equal(t, Simplify(a).Gates, b.Gates)
}

func TestControlledRYAnsatz_SingleQubitDegenerate(t *testing.T) {
	c := ControlledRYAnsatz{}.Build([]float64{0.9}, []int{0}, 1)

	require.Len(t, c.Gates, 1)
	assert.Equal(t, GateRY, c.Gates[0].Name)
	assert.Equal(t, 0.9, c.Gates[0].Params[0])
}

func TestRYPrep_OneRotationPerIndex(t *testing.T) {
	c := RYPrep{}.Prepare(0.4, []int{2, 0}, 3)

	require.Len(t, c.Gates, 2)
	assert.Equal(t, []int{2}, c.Gates[0].Qubits)
	assert.Equal(t, []int{0}, c.Gates[1].Qubits)
	for _, g := range c.Gates {
		assert.Equal(t, GateRY, g.Name)
		assert.Equal(t, 0.4, g.Params[0])
	}
}
