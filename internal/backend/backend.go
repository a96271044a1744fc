// Package backend executes circuits and returns measurement counts. The local
// statevector simulator is the default target; a remote HTTP backend speaks
// the same contract so the engine never knows which one it is driving.
package backend

import (
	"context"
	"strings"

	"github.com/aristath/qcompress/internal/circuit"
)

// Counts maps outcome bitstrings to occurrence counts. Bitstring position j
// holds the value of the j-th measured qubit, in measurement order.
type Counts map[string]int

// Total returns the number of shots recorded across all outcomes.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// AllZeros returns the bitstring key for the all-zero outcome over width
// measured qubits.
func AllZeros(width int) string {
	return strings.Repeat("0", width)
}

// Backend runs a measured circuit for a shot count. Implementations must be
// safe for concurrent use: per-sample loss evaluations may execute in
// parallel.
type Backend interface {
	Name() string
	Execute(ctx context.Context, c circuit.Circuit, shots int) (Counts, error)
}
