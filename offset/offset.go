// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package offset implements the OffsetTable (§4.4, C4): per-component,
// per-mode base offsets into the flat state/derivative/root/Jacobian
// arrays a SolverBackend owns. Grounded on the teacher's dof-numbering
// pass (fem/equations.go-style "Set" over a domain's elements assigning
// each element a block of global equation numbers before assembly) and
// GridDyn's offsetTable, which keeps one such numbering per solverMode
// rather than regenerating it every step.
package offset

import "github.com/LLNL/GridDyn-sub006/simflags"

// ComponentOffsets records one component's base offsets within a single
// mode's flat arrays.
type ComponentOffsets struct {
	State      int // base index into the state array
	Diff       int // base index into the differential-root array
	Algebraic  int // base index into the algebraic-root array
	Jacobian   int // base index into the Jacobian's local numbering
	StateSize  int
	RootSize   int
	JacSize    int
}

// OffsetTable is a per-mode table of ComponentOffsets, indexed by a
// caller-assigned component index (registry.ComponentRegistry handles
// the stable-identifier side of this).
type OffsetTable struct {
	modes      map[simflags.ModeKind][]ComponentOffsets
	totalState map[simflags.ModeKind]int
	totalRoot  map[simflags.ModeKind]int
	totalJac   map[simflags.ModeKind]int
	maxNonZero map[simflags.ModeKind]int
}

// New returns an empty OffsetTable.
func New() *OffsetTable {
	return &OffsetTable{
		modes:      make(map[simflags.ModeKind][]ComponentOffsets),
		totalState: make(map[simflags.ModeKind]int),
		totalRoot:  make(map[simflags.ModeKind]int),
		totalJac:   make(map[simflags.ModeKind]int),
		maxNonZero: make(map[simflags.ModeKind]int),
	}
}

// ComponentSizer is implemented by anything the offset pass can size:
// model.SimulationModel satisfies it directly.
type ComponentSizer interface {
	StateSize(mode simflags.SolverMode) int
	RootSize(mode simflags.SolverMode) int
	JacSize(mode simflags.SolverMode) int
}

// UpdateOffsets walks components in a fixed pre-order (the caller's
// slice order, exactly as GridDyn's updateOffsets walks the object tree
// depth-first) and assigns each one a contiguous block of offsets for
// the given mode. Returns the mode's new totals.
func (t *OffsetTable) UpdateOffsets(kind simflags.ModeKind, components []ComponentSizer) (stateTotal, rootTotal, jacTotal int) {
	mode := simflags.NewMode(kind, 0)
	offs := make([]ComponentOffsets, len(components))
	var s, r, j int
	for i, c := range components {
		ss := c.StateSize(mode)
		rs := c.RootSize(mode)
		js := c.JacSize(mode)
		offs[i] = ComponentOffsets{
			State:     s,
			Diff:      r,
			Algebraic: r + rs/2, // convention: first half differential roots, second half algebraic (§4.4)
			Jacobian:  j,
			StateSize: ss,
			RootSize:  rs,
			JacSize:   js,
		}
		s += ss
		r += rs
		j += js
	}
	t.modes[kind] = offs
	t.totalState[kind] = s
	t.totalRoot[kind] = r
	t.totalJac[kind] = j
	return s, r, j
}

// Get returns the offsets assigned to component index idx for the given
// mode. The second return is false if UpdateOffsets was never called for
// that mode or idx is out of range.
func (t *OffsetTable) Get(kind simflags.ModeKind, idx int) (ComponentOffsets, bool) {
	offs, ok := t.modes[kind]
	if !ok || idx < 0 || idx >= len(offs) {
		return ComponentOffsets{}, false
	}
	return offs[idx], true
}

// Totals returns the mode's cached state/root/jac sizes from the last
// UpdateOffsets call.
func (t *OffsetTable) Totals(kind simflags.ModeKind) (stateTotal, rootTotal, jacTotal int) {
	return t.totalState[kind], t.totalRoot[kind], t.totalJac[kind]
}

// SetMaxNonZeros records the expected Jacobian sparsity for a mode, set
// once per structural change and consumed by the SolverBackend at
// SetMaxNonZeros/SparseReInit time.
func (t *OffsetTable) SetMaxNonZeros(kind simflags.ModeKind, jacSize int) {
	// a modest multiplier over jacSize covers the usual per-row fan-out
	// of component residuals into neighboring states; backends that need
	// a tighter bound recompute it themselves from actual nonzero counts.
	t.maxNonZero[kind] = jacSize * 6
}

// MaxNonZeros returns the value last recorded by SetMaxNonZeros, or 0 if
// none was ever recorded for the mode.
func (t *OffsetTable) MaxNonZeros(kind simflags.ModeKind) int {
	return t.maxNonZero[kind]
}
