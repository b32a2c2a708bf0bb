// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simflags

// SolverMode identifies which subsystem a driver/model/backend call
// refers to (§3 "SolverMode", GLOSSARY). Each mode owns an OffsetIndex
// used to look up per-mode OffsetTable entries (§4.4).
type SolverMode struct {
	Kind        ModeKind
	OffsetIndex int
}

// ModeKind enumerates the five solver modes.
type ModeKind int

const (
	Powerflow ModeKind = iota
	DAE
	DynamicAlgebraic
	DynamicDifferential
	Local
)

func (k ModeKind) String() string {
	switch k {
	case Powerflow:
		return "POWERFLOW"
	case DAE:
		return "DAE"
	case DynamicAlgebraic:
		return "DYNAMIC_ALG"
	case DynamicDifferential:
		return "DYNAMIC_DIFF"
	case Local:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// IsDynamic reports whether this mode participates in time integration.
func (m SolverMode) IsDynamic() bool {
	return m.Kind == DAE || m.Kind == DynamicAlgebraic || m.Kind == DynamicDifferential
}

// IsDifferential reports whether this mode carries differential states.
func (m SolverMode) IsDifferential() bool {
	return m.Kind == DAE || m.Kind == DynamicDifferential
}

// IsAlgebraic reports whether this mode carries algebraic states.
func (m SolverMode) IsAlgebraic() bool {
	return m.Kind == Powerflow || m.Kind == DAE || m.Kind == DynamicAlgebraic
}

// NewMode builds a SolverMode with the given offset index.
func NewMode(kind ModeKind, offsetIndex int) SolverMode {
	return SolverMode{Kind: kind, OffsetIndex: offsetIndex}
}
