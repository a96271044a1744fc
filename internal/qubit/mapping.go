// Package qubit resolves abstract qubit labels to ordered physical indices.
//
// Circuits reference qubits positionally (indices[0], indices[1], ...), not
// by label, so the ordering extracted from a mapping is load-bearing: labels
// are sorted lexicographically before their physical indices are read out,
// which makes the ordering deterministic and reproducible across runs.
package qubit

import (
	"sort"

	"github.com/aristath/qcompress/internal/domain"
)

// Role tags a physical qubit with its function in the autoencoder.
type Role string

const (
	// RoleInput marks qubits carrying the state to be compressed.
	RoleInput Role = "input"
	// RoleLatent marks qubits retaining compressed information.
	RoleLatent Role = "latent"
	// RoleRefresh marks fresh qubits reintroduced before decompression.
	RoleRefresh Role = "refresh"
)

// Mapping is an immutable assignment of abstract labels to physical indices,
// scoped per role group. Construct it with NewMapping and treat it as
// read-only afterwards; every engine component shares the same value.
type Mapping struct {
	input   map[string]int
	latent  map[string]int
	refresh map[string]int
}

// NewMapping validates and freezes a qubit mapping. A physical index assigned
// to more than one role is a configuration error: latent qubits are a subset
// of the input register, so they are exempt from the input/latent check, but
// refresh qubits must not collide with anything.
func NewMapping(input, latent, refresh map[string]int) (Mapping, error) {
	if len(input) == 0 {
		return Mapping{}, domain.ConfigErrorf("qubit", "input mapping is empty")
	}

	inputIdx := make(map[int]string, len(input))
	for label, idx := range input {
		if idx < 0 {
			return Mapping{}, domain.ConfigErrorf("qubit", "negative physical index %d for input %q", idx, label)
		}
		if other, ok := inputIdx[idx]; ok {
			return Mapping{}, domain.ConfigErrorf("qubit", "physical index %d assigned to both inputs %q and %q", idx, other, label)
		}
		inputIdx[idx] = label
	}

	latentIdx := make(map[int]string, len(latent))
	for label, idx := range latent {
		if idx < 0 {
			return Mapping{}, domain.ConfigErrorf("qubit", "negative physical index %d for latent %q", idx, label)
		}
		if other, ok := latentIdx[idx]; ok {
			return Mapping{}, domain.ConfigErrorf("qubit", "physical index %d assigned to both latents %q and %q", idx, other, label)
		}
		latentIdx[idx] = label
	}

	for label, idx := range refresh {
		if idx < 0 {
			return Mapping{}, domain.ConfigErrorf("qubit", "negative physical index %d for refresh %q", idx, label)
		}
		if other, ok := inputIdx[idx]; ok {
			return Mapping{}, domain.ConfigErrorf("qubit", "physical index %d assigned to input %q and refresh %q", idx, other, label)
		}
		if other, ok := latentIdx[idx]; ok {
			return Mapping{}, domain.ConfigErrorf("qubit", "physical index %d assigned to latent %q and refresh %q", idx, other, label)
		}
	}

	refreshIdx := make(map[int]string, len(refresh))
	for label, idx := range refresh {
		if other, ok := refreshIdx[idx]; ok {
			return Mapping{}, domain.ConfigErrorf("qubit", "physical index %d assigned to both refresh %q and %q", idx, other, label)
		}
		refreshIdx[idx] = label
	}

	return Mapping{
		input:   copyGroup(input),
		latent:  copyGroup(latent),
		refresh: copyGroup(refresh),
	}, nil
}

// CompressionIndices returns the physical indices of the input qubits in
// label order. The encode half of every pipeline addresses qubits through
// this sequence.
func (m Mapping) CompressionIndices() []int {
	return orderedIndices(m.input)
}

// RecoveryIndices returns the physical indices of the merged latent+refresh
// register in label order. When the training mode skips the reset step the
// sequence is reversed: the refresh qubit then occupies the physical slot
// vacated by the traced-out input qubit, so the positional ordering flips.
func (m Mapping) RecoveryIndices(reset bool) []int {
	merged := make(map[string]int, len(m.latent)+len(m.refresh))
	for label, idx := range m.latent {
		merged[label] = idx
	}
	for label, idx := range m.refresh {
		merged[label] = idx
	}
	indices := orderedIndices(merged)
	if !reset {
		reverse(indices)
	}
	return indices
}

// TrashIndices returns the physical indices of input qubits that are not
// latent, in compression order. These are the qubits traced out (or reset)
// after the encode half.
func (m Mapping) TrashIndices() []int {
	latentSet := make(map[int]bool, len(m.latent))
	for _, idx := range m.latent {
		latentSet[idx] = true
	}

	var trash []int
	for _, idx := range m.CompressionIndices() {
		if !latentSet[idx] {
			trash = append(trash, idx)
		}
	}
	return trash
}

// NumQubits returns one past the highest physical index in the mapping,
// i.e. the register width a circuit over this mapping needs.
func (m Mapping) NumQubits() int {
	maxIdx := -1
	for _, group := range []map[string]int{m.input, m.latent, m.refresh} {
		for _, idx := range group {
			if idx > maxIdx {
				maxIdx = idx
			}
		}
	}
	return maxIdx + 1
}

// InputLabels returns the input labels in sorted order.
func (m Mapping) InputLabels() []string {
	return sortedLabels(m.input)
}

func copyGroup(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for label, idx := range src {
		dst[label] = idx
	}
	return dst
}

func sortedLabels(group map[string]int) []string {
	labels := make([]string, 0, len(group))
	for label := range group {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// orderedIndices extracts physical indices in lexicographic label order.
func orderedIndices(group map[string]int) []int {
	labels := sortedLabels(group)
	indices := make([]int, len(labels))
	for i, label := range labels {
		indices[i] = group[label]
	}
	return indices
}

func reverse(indices []int) {
	for i, j := 0, len(indices)-1; i < j; i, j = i+1, j-1 {
		indices[i], indices[j] = indices[j], indices[i]
	}
}
