package backend

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/qcompress/internal/circuit"
	"github.com/aristath/qcompress/internal/domain"
)

// Simulator is a local statevector backend. Unitary gates evolve a single
// amplitude vector; RESET instructions split the state into weighted branches
// (measured-0 and measured-1, the latter corrected back to |0>), so the final
// outcome distribution is exact and only the shot sampling is random.
type Simulator struct {
	log zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a simulator seeded for reproducible shot sampling.
func NewSimulator(seed int64, log zerolog.Logger) *Simulator {
	return &Simulator{
		log: log.With().Str("backend", "simulator").Logger(),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Name implements Backend.
func (s *Simulator) Name() string { return "simulator" }

// branch is one weighted statevector in the post-reset mixture.
type branch struct {
	weight float64
	amps   []complex128
}

// Execute implements Backend. With shots <= 0 it returns empty counts rather
// than failing; the loss layer treats that as the zero-signal case.
func (s *Simulator) Execute(ctx context.Context, c circuit.Circuit, shots int) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ExecErrorf("simulator", "execution aborted: %v", err)
	}
	if c.NumQubits <= 0 {
		return nil, domain.ExecErrorf("simulator", "circuit has no qubits")
	}
	if shots <= 0 {
		return Counts{}, nil
	}

	measured := c.MeasuredQubits()
	if len(measured) == 0 {
		return nil, domain.ExecErrorf("simulator", "circuit measures no qubits")
	}

	amps := make([]complex128, 1<<c.NumQubits)
	amps[0] = 1
	branches := []branch{{weight: 1, amps: amps}}

	for _, g := range c.Gates {
		var err error
		branches, err = applyGate(branches, g, c.NumQubits)
		if err != nil {
			return nil, err
		}
	}

	dist := outcomeDistribution(branches, measured)
	counts := s.sample(dist, shots)

	s.log.Debug().
		Int("qubits", c.NumQubits).
		Int("gates", len(c.Gates)).
		Int("shots", shots).
		Int("outcomes", len(counts)).
		Msg("Circuit executed")
	return counts, nil
}

func applyGate(branches []branch, g circuit.Gate, numQubits int) ([]branch, error) {
	for _, q := range g.Qubits {
		if q < 0 || q >= numQubits {
			return nil, domain.ExecErrorf("simulator", "gate %s references qubit %d outside register of %d", g.Name, q, numQubits)
		}
	}

	switch g.Name {
	case circuit.GateMeasure:
		// Terminal read-out marker, no state change.
		return branches, nil

	case circuit.GateReset:
		var out []branch
		for _, b := range branches {
			out = append(out, resetBranches(b, g.Qubits[0])...)
		}
		return out, nil

	case circuit.GateH:
		f := complex(1/math.Sqrt2, 0)
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], f, f, f, -f)
		}), nil
	case circuit.GateX:
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], 0, 1, 1, 0)
		}), nil
	case circuit.GateY:
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], 0, -1i, 1i, 0)
		}), nil
	case circuit.GateZ:
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], 1, 0, 0, -1)
		}), nil

	case circuit.GateRX:
		theta := rotationAngle(g)
		c := complex(math.Cos(theta/2), 0)
		js := complex(0, -math.Sin(theta/2))
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], c, js, js, c)
		}), nil
	case circuit.GateRY:
		theta := rotationAngle(g)
		c := complex(math.Cos(theta/2), 0)
		sn := complex(math.Sin(theta/2), 0)
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], c, -sn, sn, c)
		}), nil
	case circuit.GateRZ:
		theta := rotationAngle(g)
		phase := cmplx.Exp(complex(0, theta/2))
		return mapBranches(branches, func(amps []complex128) {
			applyOneQubit(amps, g.Qubits[0], cmplx.Conj(phase), 0, 0, phase)
		}), nil

	case circuit.GateCX:
		if len(g.Qubits) != 2 {
			return nil, domain.ExecErrorf("simulator", "CX expects 2 qubits, got %d", len(g.Qubits))
		}
		return mapBranches(branches, func(amps []complex128) {
			applyCX(amps, g.Qubits[0], g.Qubits[1])
		}), nil
	case circuit.GateCZ:
		if len(g.Qubits) != 2 {
			return nil, domain.ExecErrorf("simulator", "CZ expects 2 qubits, got %d", len(g.Qubits))
		}
		return mapBranches(branches, func(amps []complex128) {
			applyCZ(amps, g.Qubits[0], g.Qubits[1])
		}), nil
	case circuit.GateSWAP:
		if len(g.Qubits) != 2 {
			return nil, domain.ExecErrorf("simulator", "SWAP expects 2 qubits, got %d", len(g.Qubits))
		}
		return mapBranches(branches, func(amps []complex128) {
			applySWAP(amps, g.Qubits[0], g.Qubits[1])
		}), nil

	default:
		return nil, domain.ExecErrorf("simulator", "unknown gate %q", g.Name)
	}
}

func mapBranches(branches []branch, apply func([]complex128)) []branch {
	for _, b := range branches {
		apply(b.amps)
	}
	return branches
}

func rotationAngle(g circuit.Gate) float64 {
	if len(g.Params) > 0 {
		return g.Params[0]
	}
	return 0
}

// applyOneQubit applies the 2x2 unitary [[a b][c d]] to the target qubit.
func applyOneQubit(amps []complex128, q int, a, b, c, d complex128) {
	bit := 1 << q
	for i := range amps {
		if i&bit == 0 {
			j := i | bit
			lo, hi := amps[i], amps[j]
			amps[i] = a*lo + b*hi
			amps[j] = c*lo + d*hi
		}
	}
}

func applyCX(amps []complex128, control, target int) {
	cBit, tBit := 1<<control, 1<<target
	for i := range amps {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
}

func applyCZ(amps []complex128, control, target int) {
	cBit, tBit := 1<<control, 1<<target
	for i := range amps {
		if i&cBit != 0 && i&tBit != 0 {
			amps[i] *= -1
		}
	}
}

func applySWAP(amps []complex128, q1, q2 int) {
	bit1, bit2 := 1<<q1, 1<<q2
	for i := range amps {
		if i&bit1 != 0 && i&bit2 == 0 {
			j := (i &^ bit1) | bit2
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
}

// resetBranches implements RESET as a measure-then-zero channel: the branch
// splits into the outcome-0 projection and the outcome-1 projection corrected
// back to |0>, each carrying its Born-rule weight. Projecting instead of
// splitting would silently postselect and bias every downstream count.
func resetBranches(b branch, q int) []branch {
	bit := 1 << q

	p0 := 0.0
	for i, amp := range b.amps {
		if i&bit == 0 {
			p0 += real(amp * cmplx.Conj(amp))
		}
	}
	p1 := 1 - p0

	var out []branch
	if p0 > 1e-12 {
		amps := make([]complex128, len(b.amps))
		norm := complex(math.Sqrt(p0), 0)
		for i, amp := range b.amps {
			if i&bit == 0 {
				amps[i] = amp / norm
			}
		}
		out = append(out, branch{weight: b.weight * p0, amps: amps})
	}
	if p1 > 1e-12 {
		amps := make([]complex128, len(b.amps))
		norm := complex(math.Sqrt(p1), 0)
		for i, amp := range b.amps {
			if i&bit != 0 {
				amps[i&^bit] = amp / norm
			}
		}
		out = append(out, branch{weight: b.weight * p1, amps: amps})
	}
	return out
}

// outcomeDistribution folds every branch's amplitudes into probabilities over
// the measured register, keyed by bitstring in measurement order.
func outcomeDistribution(branches []branch, measured []int) map[string]float64 {
	dist := make(map[string]float64)
	key := make([]byte, len(measured))
	for _, b := range branches {
		for i, amp := range b.amps {
			p := real(amp * cmplx.Conj(amp))
			if p == 0 {
				continue
			}
			for j, q := range measured {
				if i&(1<<q) != 0 {
					key[j] = '1'
				} else {
					key[j] = '0'
				}
			}
			dist[string(key)] += b.weight * p
		}
	}
	return dist
}

// sample draws shot outcomes from the distribution. Keys are iterated in
// sorted order so a fixed seed yields identical counts across runs.
func (s *Simulator) sample(dist map[string]float64, shots int) Counts {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(Counts)
	for shot := 0; shot < shots; shot++ {
		r := s.rng.Float64()
		acc := 0.0
		picked := keys[len(keys)-1]
		for _, k := range keys {
			acc += dist[k]
			if r < acc {
				picked = k
				break
			}
		}
		counts[picked]++
	}
	return counts
}
