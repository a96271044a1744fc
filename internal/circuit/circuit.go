// Package circuit provides the gate-sequence representation used by the
// training engine and the composition of encode/decode pipelines from
// parametrized primitives.
//
// Circuits are value types: builders always return fresh circuits and no
// operation mutates a circuit in place. Concatenation preserves gate order.
package circuit

import (
	"fmt"

	"github.com/aristath/qcompress/internal/domain"
)

// Gate names understood by backends.
const (
	GateH     = "H"
	GateX     = "X"
	GateY     = "Y"
	GateZ     = "Z"
	GateRX    = "RX"
	GateRY    = "RY"
	GateRZ    = "RZ"
	GateCX    = "CX"
	GateCZ    = "CZ"
	GateSWAP  = "SWAP"
	GateReset = "RESET"
	// GateMeasure marks a qubit as part of the measured register. Measured
	// qubits appear in the outcome bitstring in gate order.
	GateMeasure = "MEASURE"
)

// Gate is a single operation referencing physical qubit indices. Params holds
// the continuous rotation angle for RX/RY/RZ and is empty otherwise.
type Gate struct {
	Name   string    `json:"name"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
}

// Circuit is an ordered gate sequence over a fixed-width qubit register.
type Circuit struct {
	NumQubits int    `json:"num_qubits"`
	Gates     []Gate `json:"gates"`
}

// New returns an empty circuit over numQubits qubits.
func New(numQubits int) Circuit {
	return Circuit{NumQubits: numQubits}
}

// Append returns a new circuit with the given gates added after the existing
// sequence. The receiver is not modified.
func (c Circuit) Append(gates ...Gate) Circuit {
	out := make([]Gate, 0, len(c.Gates)+len(gates))
	out = append(out, c.Gates...)
	out = append(out, gates...)
	return Circuit{NumQubits: c.NumQubits, Gates: out}
}

// Concat returns the order-preserving concatenation of two circuits. The
// result spans the wider of the two registers.
func Concat(a, b Circuit) Circuit {
	width := a.NumQubits
	if b.NumQubits > width {
		width = b.NumQubits
	}
	gates := make([]Gate, 0, len(a.Gates)+len(b.Gates))
	gates = append(gates, a.Gates...)
	gates = append(gates, b.Gates...)
	return Circuit{NumQubits: width, Gates: gates}
}

// Measure returns a new circuit with MEASURE gates appended for the given
// qubits, in the given order. Outcome bitstrings index measured qubits in
// this order.
func (c Circuit) Measure(qubits ...int) Circuit {
	gates := make([]Gate, len(qubits))
	for i, q := range qubits {
		gates[i] = Gate{Name: GateMeasure, Qubits: []int{q}}
	}
	return c.Append(gates...)
}

// MeasuredQubits returns the measured qubit indices in measurement order.
func (c Circuit) MeasuredQubits() []int {
	var measured []int
	for _, g := range c.Gates {
		if g.Name == GateMeasure {
			measured = append(measured, g.Qubits...)
		}
	}
	return measured
}

// Inverse returns the daggered circuit: the gate sequence reversed, with
// every primitive replaced by its registered inverse. Composing a circuit
// with its inverse is the identity at the gate-algebra level.
//
// Every parametrized primitive carries its own inverse rule here, so full
// circuit inverses are always derived rather than hand-written; the forward
// and daggered forms cannot drift apart.
func (c Circuit) Inverse() (Circuit, error) {
	gates := make([]Gate, 0, len(c.Gates))
	for i := len(c.Gates) - 1; i >= 0; i-- {
		inv, err := inverseGate(c.Gates[i])
		if err != nil {
			return Circuit{}, err
		}
		gates = append(gates, inv)
	}
	return Circuit{NumQubits: c.NumQubits, Gates: gates}, nil
}

func inverseGate(g Gate) (Gate, error) {
	switch g.Name {
	case GateH, GateX, GateY, GateZ, GateCX, GateCZ, GateSWAP:
		// Self-inverse.
		return Gate{Name: g.Name, Qubits: append([]int(nil), g.Qubits...)}, nil
	case GateRX, GateRY, GateRZ:
		params := make([]float64, len(g.Params))
		for i, p := range g.Params {
			params[i] = -p
		}
		return Gate{Name: g.Name, Qubits: append([]int(nil), g.Qubits...), Params: params}, nil
	case GateReset, GateMeasure:
		return Gate{}, domain.ConfigErrorf("circuit", "gate %s is not invertible", g.Name)
	default:
		return Gate{}, domain.ConfigErrorf("circuit", "unknown gate %q", g.Name)
	}
}

// Simplify performs a single peephole pass cancelling adjacent mutually
// inverse gate pairs on identical qubits. Used for the optional pre-execution
// compilation step; semantics are unchanged.
func Simplify(c Circuit) Circuit {
	var out []Gate
	for _, g := range c.Gates {
		if len(out) > 0 && cancels(out[len(out)-1], g) {
			out = out[:len(out)-1]
			continue
		}
		out = append(out, g)
	}
	return Circuit{NumQubits: c.NumQubits, Gates: out}
}

func cancels(a, b Gate) bool {
	if a.Name != b.Name || len(a.Qubits) != len(b.Qubits) {
		return false
	}
	for i := range a.Qubits {
		if a.Qubits[i] != b.Qubits[i] {
			return false
		}
	}
	switch a.Name {
	case GateH, GateX, GateY, GateZ, GateCX, GateCZ, GateSWAP:
		return true
	case GateRX, GateRY, GateRZ:
		return len(a.Params) == 1 && len(b.Params) == 1 && a.Params[0] == -b.Params[0]
	default:
		return false
	}
}

// Rotation constructs a single-qubit rotation gate.
func Rotation(name string, qubit int, theta float64) Gate {
	return Gate{Name: name, Qubits: []int{qubit}, Params: []float64{theta}}
}

// Controlled constructs a two-qubit controlled gate (control first).
func Controlled(name string, control, target int) Gate {
	return Gate{Name: name, Qubits: []int{control, target}}
}

// Reset constructs a RESET instruction projecting a qubit back to |0>.
func Reset(qubit int) Gate {
	return Gate{Name: GateReset, Qubits: []int{qubit}}
}

// String renders a short human-readable form for logs.
func (g Gate) String() string {
	if len(g.Params) > 0 {
		return fmt.Sprintf("%s%v(%.4f)", g.Name, g.Qubits, g.Params[0])
	}
	return fmt.Sprintf("%s%v", g.Name, g.Qubits)
}
