package backend

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qcompress/internal/circuit"
	"github.com/aristath/qcompress/internal/domain"
)

func newTestSimulator(seed int64) *Simulator {
	return NewSimulator(seed, zerolog.Nop())
}

func TestSimulator_ZeroShots(t *testing.T) {
	sim := newTestSimulator(1)
	c := circuit.New(1).Measure(0)

	counts, err := sim.Execute(context.Background(), c, 0)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSimulator_NoMeasurementIsError(t *testing.T) {
	sim := newTestSimulator(1)
	c := circuit.New(1).Append(circuit.Rotation(circuit.GateRY, 0, 0.5))

	_, err := sim.Execute(context.Background(), c, 100)
	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}

func TestSimulator_UnknownGate(t *testing.T) {
	sim := newTestSimulator(1)
	c := circuit.New(1).Append(circuit.Gate{Name: "TOFFOLI", Qubits: []int{0}}).Measure(0)

	_, err := sim.Execute(context.Background(), c, 100)
	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}

func TestSimulator_QubitOutOfRange(t *testing.T) {
	sim := newTestSimulator(1)
	c := circuit.New(1).Append(circuit.Controlled(circuit.GateCX, 0, 3)).Measure(0)

	_, err := sim.Execute(context.Background(), c, 100)
	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}

func TestSimulator_DeterministicForFixedSeed(t *testing.T) {
	c := circuit.New(1).Append(circuit.Gate{Name: circuit.GateH, Qubits: []int{0}}).Measure(0)

	a, err := newTestSimulator(42).Execute(context.Background(), c, 512)
	require.NoError(t, err)
	b, err := newTestSimulator(42).Execute(context.Background(), c, 512)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSimulator_HadamardIsBalanced(t *testing.T) {
	sim := newTestSimulator(7)
	c := circuit.New(1).Append(circuit.Gate{Name: circuit.GateH, Qubits: []int{0}}).Measure(0)

	counts, err := sim.Execute(context.Background(), c, 4096)
	require.NoError(t, err)

	assert.Equal(t, 4096, counts.Total())
	assert.InDelta(t, 2048, counts["0"], 200)
	assert.InDelta(t, 2048, counts["1"], 200)
}

func TestSimulator_ForwardThenInverseIsIdentity(t *testing.T) {
	sim := newTestSimulator(3)

	forward := circuit.New(2).Append(
		circuit.Rotation(circuit.GateRY, 0, 0.83),
		circuit.Controlled(circuit.GateCX, 0, 1),
		circuit.Rotation(circuit.GateRZ, 1, -1.1),
		circuit.Gate{Name: circuit.GateH, Qubits: []int{0}},
	)
	inverse, err := forward.Inverse()
	require.NoError(t, err)

	c := circuit.Concat(forward, inverse).Measure(0, 1)
	counts, err := sim.Execute(context.Background(), c, 1024)
	require.NoError(t, err)

	// The composite is a no-op, so every shot lands on the all-zero outcome.
	assert.Equal(t, 1024, counts[AllZeros(2)])
	assert.Len(t, counts, 1)
}

func TestSimulator_ResetIsChannelNotPostselection(t *testing.T) {
	sim := newTestSimulator(11)

	// Bell pair, then reset the first qubit. A true measure-and-zero reset
	// leaves the second qubit in an even mixture; projecting to |0> would
	// force it to zero as well.
	c := circuit.New(2).Append(
		circuit.Gate{Name: circuit.GateH, Qubits: []int{0}},
		circuit.Controlled(circuit.GateCX, 0, 1),
		circuit.Reset(0),
	).Measure(0, 1)

	counts, err := sim.Execute(context.Background(), c, 4096)
	require.NoError(t, err)

	assert.Zero(t, counts["10"])
	assert.Zero(t, counts["11"])
	assert.InDelta(t, 2048, counts["00"], 200)
	assert.InDelta(t, 2048, counts["01"], 200)
}

func TestSimulator_ResetOnDefiniteOne(t *testing.T) {
	sim := newTestSimulator(5)

	c := circuit.New(1).Append(
		circuit.Rotation(circuit.GateRY, 0, math.Pi),
		circuit.Reset(0),
	).Measure(0)

	counts, err := sim.Execute(context.Background(), c, 256)
	require.NoError(t, err)

	assert.Equal(t, 256, counts["0"])
}

func TestSimulator_MeasurementOrderDrivesBitstring(t *testing.T) {
	sim := newTestSimulator(9)

	// q1 is flipped to |1>; measuring (q1, q0) must place it first.
	c := circuit.New(2).Append(circuit.Gate{Name: circuit.GateX, Qubits: []int{1}}).Measure(1, 0)

	counts, err := sim.Execute(context.Background(), c, 64)
	require.NoError(t, err)

	assert.Equal(t, 64, counts["10"])
}

func TestSimulator_CancelledContext(t *testing.T) {
	sim := newTestSimulator(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := circuit.New(1).Measure(0)
	_, err := sim.Execute(ctx, c, 16)
	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}
