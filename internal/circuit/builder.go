package circuit

import (
	"github.com/aristath/qcompress/internal/domain"
	"github.com/aristath/qcompress/internal/qubit"
)

// StatePrep builds the data-dependent state-preparation circuit over the
// given physical index sequence. Implementations must emit only invertible
// primitives so the daggered form can be derived.
type StatePrep interface {
	Prepare(sample float64, indices []int, numQubits int) Circuit
}

// Ansatz builds the parametrized training circuit over the given physical
// index sequence. NumParams is the length every parameter vector must have.
type Ansatz interface {
	NumParams() int
	Build(theta []float64, indices []int, numQubits int) Circuit
}

// RYPrep is the reference state-preparation family: an RY rotation by the
// data sample on every qubit of the register, producing a product state whose
// angle encodes the classical sample.
type RYPrep struct{}

// Prepare implements StatePrep.
func (RYPrep) Prepare(sample float64, indices []int, numQubits int) Circuit {
	c := New(numQubits)
	for _, q := range indices {
		c = c.Append(Rotation(GateRY, q, sample))
	}
	return c
}

// ControlledRYAnsatz is the reference one-parameter training ansatz: a
// controlled-RY(theta) between the first two qubits of the index sequence,
// decomposed as RY(theta/2), CX, RY(-theta/2), CX on the target. At theta=0
// the two CX gates cancel algebraically and the circuit is the identity.
type ControlledRYAnsatz struct{}

// NumParams implements Ansatz.
func (ControlledRYAnsatz) NumParams() int { return 1 }

// Build implements Ansatz.
func (ControlledRYAnsatz) Build(theta []float64, indices []int, numQubits int) Circuit {
	c := New(numQubits)
	if len(indices) < 2 {
		if len(indices) == 1 {
			// Degenerate single-qubit register: a plain RY rotation.
			return c.Append(Rotation(GateRY, indices[0], theta[0]))
		}
		return c
	}
	control, target := indices[0], indices[1]
	return c.Append(
		Rotation(GateRY, target, theta[0]/2),
		Controlled(GateCX, control, target),
		Rotation(GateRY, target, -theta[0]/2),
		Controlled(GateCX, control, target),
	)
}

// Builder composes full encode-decode pipelines from the state-preparation
// and ansatz primitives, per training mode. Construction is pure: no circuit
// is ever executed here.
type Builder struct {
	mapping       qubit.Mapping
	prep          StatePrep
	ansatz        Ansatz
	reset         bool
	trashTraining bool
	compile       bool

	numQubits   int
	compression []int
	recovery    []int
	trash       []int
}

// NewBuilder resolves the index orderings once and returns a builder for the
// given training mode. The compile flag enables the pass-through peephole
// simplification on every built pipeline.
func NewBuilder(mapping qubit.Mapping, prep StatePrep, ansatz Ansatz, reset, trashTraining, compile bool) *Builder {
	return &Builder{
		mapping:       mapping,
		prep:          prep,
		ansatz:        ansatz,
		reset:         reset,
		trashTraining: trashTraining,
		compile:       compile,
		numQubits:     mapping.NumQubits(),
		compression:   mapping.CompressionIndices(),
		recovery:      mapping.RecoveryIndices(reset),
		trash:         mapping.TrashIndices(),
	}
}

// NumParams returns the parameter count the configured ansatz expects.
func (b *Builder) NumParams() int { return b.ansatz.NumParams() }

// validateTheta rejects mismatched parameter vectors before anything is
// built. A silent truncation here would corrupt the optimizer's view of the
// loss surface, so the mismatch is fatal.
func (b *Builder) validateTheta(theta []float64) error {
	if len(theta) != b.ansatz.NumParams() {
		return domain.ConfigErrorf("circuit", "parameter vector has length %d, ansatz expects %d", len(theta), b.ansatz.NumParams())
	}
	return nil
}

// StatePrep builds the state-preparation circuit for one data sample on the
// compression register.
func (b *Builder) StatePrep(sample float64) Circuit {
	return b.prep.Prepare(sample, b.compression, b.numQubits)
}

// Training builds the ansatz circuit for the given parameters on the
// compression register.
func (b *Builder) Training(theta []float64) (Circuit, error) {
	if err := b.validateTheta(theta); err != nil {
		return Circuit{}, err
	}
	return b.ansatz.Build(theta, b.compression, b.numQubits), nil
}

// Pipeline builds the full forward pass for one (sample, theta) pair and
// returns it together with the measured register. The two mode flags select
// among four topologies, all composed from the same primitives:
//
//	reset=true,  trash=false: encode, reset trash in place, decode on the
//	                          compression register, measure it.
//	reset=false, trash=false: encode, decode on the (reversed) recovery
//	                          register, measure it.
//	trash=true:               encode only; measure the trash register. The
//	                          reset flag selects the measurement ordering,
//	                          mirroring the recovery-index reversal rule.
//
// The target outcome is always the all-zero bitstring over the measured
// register.
func (b *Builder) Pipeline(sample float64, theta []float64) (Circuit, error) {
	if err := b.validateTheta(theta); err != nil {
		return Circuit{}, err
	}

	prep := b.prep.Prepare(sample, b.compression, b.numQubits)
	train := b.ansatz.Build(theta, b.compression, b.numQubits)
	encoded := Concat(prep, train)

	var full Circuit
	switch {
	case b.trashTraining:
		measured := append([]int(nil), b.trash...)
		if !b.reset {
			for i, j := 0, len(measured)-1; i < j; i, j = i+1, j-1 {
				measured[i], measured[j] = measured[j], measured[i]
			}
		}
		full = encoded.Measure(measured...)

	case b.reset:
		c := encoded
		for _, q := range b.trash {
			c = c.Append(Reset(q))
		}
		trainDag, err := train.Inverse()
		if err != nil {
			return Circuit{}, err
		}
		prepDag, err := prep.Inverse()
		if err != nil {
			return Circuit{}, err
		}
		full = Concat(Concat(c, trainDag), prepDag).Measure(b.compression...)

	default:
		// No reset: the decode half runs on the latent+refresh register,
		// with the refresh qubit standing in for the traced-out input.
		trainDag, err := b.ansatz.Build(theta, b.recovery, b.numQubits).Inverse()
		if err != nil {
			return Circuit{}, err
		}
		prepDag, err := b.prep.Prepare(sample, b.recovery, b.numQubits).Inverse()
		if err != nil {
			return Circuit{}, err
		}
		full = Concat(Concat(encoded, trainDag), prepDag).Measure(b.recovery...)
	}

	if b.compile {
		full = Simplify(full)
	}
	return full, nil
}
