// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solver defines the SolverBackend contract (§4.1, §6.2) and ships
// three concrete backends exercising the teacher's linear-algebra and ODE
// dependencies: OdeBackend (gosl/ode, DAE mode), NewtonBackend (gosl/la,
// power-flow / partitioned-algebraic modes) and DenseBackend (gonum/mat,
// the dense_solver option path, §6.5).
package solver

import (
	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// Status codes (§6.2).
const (
	FunctionExecutionSuccess = 0
	FunctionExecutionFailure = -1
	SolverRootFound          = -2
	SolverInvalidStateError  = -3
	HandlerNoReturn          = -4
)

// StepMode selects whether solve should run to completion or report back
// after a single internal step (single_step_mode, §6.5).
type StepMode int

const (
	NormalStep StepMode = iota
	SingleStep
)

// ICMode enumerates calcIC's constraint handling (§4.1).
type ICMode int

const (
	FixedDiff ICMode = iota
	FixedMaskedAndDeriv
)

// ReInitKind enumerates sparseReInit's signal to the linear-algebra layer
// (§4.1).
type ReInitKind int

const (
	ReInitResize ReInitKind = iota
	ReInitRefactor
)

// ResidualFunc, DerivativeFunc, JacobianFunc and RootFunc are the callback
// surfaces the backend invokes back into the driver (§6.1): function
// pointer plus opaque context, never per-element virtual calls — the
// driver batches at component granularity by calling into
// model.SimulationModel once per evaluation, not once per scalar.
type ResidualFunc func(t simtime.Time, state, dState, residOut []float64) error
type DerivativeFunc func(t simtime.Time, state, dStateOut []float64) error
type JacobianFunc func(t simtime.Time, state, dState []float64, cj float64, sink model.JacobianPutter) error
type RootFunc func(t simtime.Time, state, dState, rootsOut []float64) error

// Callbacks bundles the function-pointer surface a SolverBackend calls
// back into, set once via SolverBackend.Set.
type Callbacks struct {
	Residual   ResidualFunc
	Derivative DerivativeFunc
	Jacobian   JacobianFunc
	Root       RootFunc
}

// SolverBackend is the abstract numeric back-end (§4.1, C1): allocates
// state vectors, drives timestep internally between callbacks. Every
// operation is polymorphic over {DAE, partitioned differential,
// partitioned algebraic, power-flow Newton, parallel-in-time} so the
// driver never special-cases a concrete backend (§9 "Deep polymorphism").
type SolverBackend interface {
	// Allocate idempotently (re)sizes the backend's storage.
	Allocate(stateCount, rootCount int) error

	// Initialize finalizes the backend after allocation and sparsity
	// setup; must be called before the first Solve/CalcIC.
	Initialize(t0 simtime.Time) error

	// SetCallbacks wires the driver's residual/derivative/jacobian/root
	// callbacks (§6.1).
	SetCallbacks(cb Callbacks)

	// SetTolerance sets rtol/atol.
	SetTolerance(rtol, atol float64)

	// LinkPartner pairs this backend with another backend, for
	// partitioned differential/algebraic solvers that must round-trip
	// state between two SolverModes each step.
	LinkPartner(partner SolverBackend)

	// CalcIC computes consistent initial conditions.
	CalcIC(t0, probeStep simtime.Time, mode ICMode, constraintsOn bool) (status int, err error)

	// Solve advances from the backend's current time towards tStop,
	// returning the time actually reached. A root stop returns
	// SolverRootFound.
	Solve(tStop simtime.Time, step StepMode) (tReturn simtime.Time, status int, err error)

	// SparseReInit signals that Jacobian structure changed.
	SparseReInit(kind ReInitKind) error

	// SetMaxNonZeros records expected Jacobian sparsity.
	SetMaxNonZeros(nnz int)

	// SetRootFinding (re)sizes root-finding to rootCount roots.
	SetRootFinding(rootCount int)

	// StateData, DerivData and RootsFound give raw array views into the
	// backend's own storage (never copies).
	StateData() []float64
	DerivData() []float64
	RootsFound() []int

	// Mode identifies which SolverMode this backend instance serves.
	Mode() simflags.SolverMode

	// LastErrorString surfaces the backend's own error detail (§6.2).
	LastErrorString() string
}
