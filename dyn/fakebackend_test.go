// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dyn

import (
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

// fakeDynBackend is a scripted solver.SolverBackend: Solve consumes one
// entry from a queue of (time, status) pairs per call, falling back to
// (tStop, FunctionExecutionSuccess) once the queue is drained. This lets
// the driver-loop tests (stagnation, event-driven reset) control exactly
// what the backend reports without depending on Newton convergence from a
// real model, the same isolation rationale as recovery's fakeBackend.
type fakeDynBackend struct {
	mode  simflags.SolverMode
	state []float64
	deriv []float64

	solveScript []scriptedSolve
	solveCalls  int

	calcICStatus int
	calcICErr    error
	calcICCalls  int
}

type scriptedSolve struct {
	t      simtime.Time
	status int
	err    error
}

func (f *fakeDynBackend) Allocate(stateCount, rootCount int) error {
	f.state = make([]float64, stateCount)
	f.deriv = make([]float64, stateCount)
	return nil
}
func (f *fakeDynBackend) Initialize(t0 simtime.Time) error          { return nil }
func (f *fakeDynBackend) SetCallbacks(cb solver.Callbacks)          {}
func (f *fakeDynBackend) SetTolerance(rtol, atol float64)           {}
func (f *fakeDynBackend) LinkPartner(partner solver.SolverBackend)  {}
func (f *fakeDynBackend) SparseReInit(kind solver.ReInitKind) error { return nil }
func (f *fakeDynBackend) SetMaxNonZeros(nnz int)                    {}
func (f *fakeDynBackend) SetRootFinding(rootCount int)              {}
func (f *fakeDynBackend) StateData() []float64                     { return f.state }
func (f *fakeDynBackend) DerivData() []float64                      { return f.deriv }
func (f *fakeDynBackend) RootsFound() []int                         { return nil }
func (f *fakeDynBackend) Mode() simflags.SolverMode                 { return f.mode }
func (f *fakeDynBackend) LastErrorString() string                   { return "" }

func (f *fakeDynBackend) CalcIC(t0, probeStep simtime.Time, mode solver.ICMode, constraintsOn bool) (int, error) {
	f.calcICCalls++
	return f.calcICStatus, f.calcICErr
}

func (f *fakeDynBackend) Solve(tStop simtime.Time, step solver.StepMode) (simtime.Time, int, error) {
	if f.solveCalls < len(f.solveScript) {
		s := f.solveScript[f.solveCalls]
		f.solveCalls++
		return s.t, s.status, s.err
	}
	f.solveCalls++
	return tStop, solver.FunctionExecutionSuccess, nil
}
