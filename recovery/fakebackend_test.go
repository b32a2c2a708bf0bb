// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recovery

import (
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

// fakeBackend is a minimal solver.SolverBackend stand-in used by the
// recovery ladder tests: it never evaluates Residual/Jacobian, so tests
// can exercise AttemptFix's dispatch and control flow without wiring a
// full Newton solve (that's solver's own test responsibility, not
// recovery's).
type fakeBackend struct {
	mode         simflags.SolverMode
	state        []float64
	deriv        []float64
	calcICStatus int
	calcICErr    error
	calcICCalls  int
}

func (f *fakeBackend) Allocate(stateCount, rootCount int) error {
	f.state = make([]float64, stateCount)
	f.deriv = make([]float64, stateCount)
	return nil
}
func (f *fakeBackend) Initialize(t0 simtime.Time) error           { return nil }
func (f *fakeBackend) SetCallbacks(cb solver.Callbacks)           {}
func (f *fakeBackend) SetTolerance(rtol, atol float64)            {}
func (f *fakeBackend) LinkPartner(partner solver.SolverBackend)   {}
func (f *fakeBackend) SparseReInit(kind solver.ReInitKind) error  { return nil }
func (f *fakeBackend) SetMaxNonZeros(nnz int)                     {}
func (f *fakeBackend) SetRootFinding(rootCount int)                {}
func (f *fakeBackend) StateData() []float64                      { return f.state }
func (f *fakeBackend) DerivData() []float64                       { return f.deriv }
func (f *fakeBackend) RootsFound() []int                          { return nil }
func (f *fakeBackend) Mode() simflags.SolverMode                  { return f.mode }
func (f *fakeBackend) LastErrorString() string                    { return "" }

func (f *fakeBackend) CalcIC(t0, probeStep simtime.Time, mode solver.ICMode, constraintsOn bool) (int, error) {
	f.calcICCalls++
	return f.calcICStatus, f.calcICErr
}

func (f *fakeBackend) Solve(tStop simtime.Time, step solver.StepMode) (simtime.Time, int, error) {
	return tStop, f.calcICStatus, f.calcICErr
}
