// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diagnostics implements the audit entry points of §4.10 (C10):
// residualCheck, JacobianCheck, algebraicCheck/derivativeCheck,
// ScalarDerivCheck, and dynamicSolverConvergenceTest. JacobianCheck is
// grounded on gonum's finite-difference Jacobian checker
// (other_examples/soypat-godesim's algorithms.go, which drives
// gonum.org/v1/gonum/diff/fd.Jacobian against a state.Jacobian analytic
// comparison), generalized here from "solve with an FD Jacobian" to
// "audit an analytic Jacobian against an FD one". ScalarDerivCheck is
// grounded on the teacher's own tests/debugKb.go, which spot-checks one
// Kb entry at a time with gosl/num.DerivCentral rather than assembling a
// whole finite-difference matrix.
package diagnostics

import (
	"fmt"
	"math"

	"github.com/cpmech/gosl/num"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// ResidualReport is residualCheck's result: the sum of squared residual
// components and how many components exceed tol.
type ResidualReport struct {
	SumSquares   float64
	CountAboveTol int
	WorstIndex   int
	WorstValue   float64
}

// ResidualCheck sums squared residual components and reports how many
// exceed tol (§4.10).
func ResidualCheck(m model.SimulationModel, t simtime.Time, state, dState []float64, mode simflags.SolverMode, tol float64) (ResidualReport, error) {
	n := m.StateSize(mode)
	resid := make([]float64, n)
	sD := &model.StateData{T: t, State: state, DState: dState}
	if err := m.Residual(sD, resid, mode); err != nil {
		return ResidualReport{}, err
	}
	var rep ResidualReport
	for i, r := range resid {
		rep.SumSquares += r * r
		if math.Abs(r) > tol {
			rep.CountAboveTol++
		}
		if math.Abs(r) > rep.WorstValue {
			rep.WorstValue = math.Abs(r)
			rep.WorstIndex = i
		}
	}
	return rep, nil
}

// JacobianReport is JacobianCheck's result.
type JacobianReport struct {
	MismatchCount int
	MaxAbsDiff    float64
	StateNames    []string // populated only when requested
}

// denseSink adapts a *mat.Dense into model.JacobianPutter so the
// analytic JacobianElements call can populate a plain dense matrix for
// comparison against the finite-difference one.
type denseSink struct{ m *mat.Dense }

func (s denseSink) Put(row, col int, value float64) {
	s.m.Set(row, col, s.m.At(row, col)+value)
}

// JacobianCheck compares the model's analytic Jacobian against a
// gonum/diff/fd finite-difference approximation and reports the number
// of entries differing by more than tol. If stateNames is non-nil, the
// mismatched state names are recorded in the report (§4.10 "optionally
// emit state names").
func JacobianCheck(m model.SimulationModel, t simtime.Time, state, dState []float64, mode simflags.SolverMode, tol float64, stateNames []string) (JacobianReport, error) {
	n := m.StateSize(mode)

	analytic := mat.NewDense(n, n, nil)
	sD := &model.StateData{T: t, State: state, DState: dState, Cj: 1.0}
	if err := m.JacobianElements(sD, denseSink{m: analytic}, mode, 1.0); err != nil {
		return JacobianReport{}, err
	}

	residFn := func(dst, x []float64) {
		sD := &model.StateData{T: t, State: x, DState: dState}
		if err := m.Residual(sD, dst, mode); err != nil {
			for i := range dst {
				dst[i] = math.NaN()
			}
		}
	}
	fdJac := mat.NewDense(n, n, nil)
	fd.Jacobian(fdJac, residFn, state, nil)

	var rep JacobianReport
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := math.Abs(analytic.At(i, j) - fdJac.At(i, j))
			if diff > rep.MaxAbsDiff {
				rep.MaxAbsDiff = diff
			}
			if diff > tol {
				rep.MismatchCount++
				if stateNames != nil && j < len(stateNames) {
					rep.StateNames = append(rep.StateNames, stateNames[j])
				}
			}
		}
	}
	return rep, nil
}

// AlgebraicCheck isolates the algebraic-equation rows of a residual
// check: mask is true at algebraic-state indices (model.SimulationModel
// has no built-in split, so the caller supplies it — typically
// model.GetVoltageStates inverted, or a component-specific mask).
func AlgebraicCheck(m model.SimulationModel, t simtime.Time, state, dState []float64, mode simflags.SolverMode, tol float64, algebraicMask []bool) (ResidualReport, error) {
	full, err := ResidualCheck(m, t, state, dState, mode, tol)
	if err != nil {
		return ResidualReport{}, err
	}
	return maskedReport(m, t, state, dState, mode, tol, algebraicMask, full)
}

// DerivativeCheck isolates the differential-equation rows (the
// complement of AlgebraicCheck's mask).
func DerivativeCheck(m model.SimulationModel, t simtime.Time, state, dState []float64, mode simflags.SolverMode, tol float64, differentialMask []bool) (ResidualReport, error) {
	full, err := ResidualCheck(m, t, state, dState, mode, tol)
	if err != nil {
		return ResidualReport{}, err
	}
	return maskedReport(m, t, state, dState, mode, tol, differentialMask, full)
}

func maskedReport(m model.SimulationModel, t simtime.Time, state, dState []float64, mode simflags.SolverMode, tol float64, mask []bool, full ResidualReport) (ResidualReport, error) {
	n := m.StateSize(mode)
	resid := make([]float64, n)
	sD := &model.StateData{T: t, State: state, DState: dState}
	if err := m.Residual(sD, resid, mode); err != nil {
		return ResidualReport{}, err
	}
	var rep ResidualReport
	for i, r := range resid {
		if i >= len(mask) || !mask[i] {
			continue
		}
		rep.SumSquares += r * r
		if math.Abs(r) > tol {
			rep.CountAboveTol++
		}
		if math.Abs(r) > rep.WorstValue {
			rep.WorstValue = math.Abs(r)
			rep.WorstIndex = i
		}
	}
	return rep, nil
}

// scalarSink isolates a single (row, col) Jacobian entry out of a
// JacobianElements call, the way denseSink isolates a whole matrix but
// cheaper when only one entry is wanted.
type scalarSink struct {
	row, col int
	value    float64
}

func (s *scalarSink) Put(row, col int, value float64) {
	if row == s.row && col == s.col {
		s.value += value
	}
}

// ScalarDerivCheck spot-checks one analytic Jacobian entry against a
// central-difference scalar derivative computed with
// github.com/cpmech/gosl/num.DerivCentral, the same routine the
// teacher's own tests/debugKb.go Kb-checking debug code drives over a
// single residual component to sanity-check one column of a Jacobian
// without building the whole finite-difference matrix that JacobianCheck
// assembles. h is the step passed to DerivCentral (§4.10 "step size").
func ScalarDerivCheck(m model.SimulationModel, t simtime.Time, state, dState []float64, mode simflags.SolverMode, residIndex, stateIndex int, h float64) (numeric, analytic float64, err error) {
	n := m.StateSize(mode)
	work := make([]float64, n)
	copy(work, state)

	eval := func(x float64, args ...interface{}) float64 {
		orig := work[stateIndex]
		work[stateIndex] = x
		resid := make([]float64, n)
		sD := &model.StateData{T: t, State: work, DState: dState}
		if e := m.Residual(sD, resid, mode); e != nil {
			work[stateIndex] = orig
			return math.NaN()
		}
		work[stateIndex] = orig
		return resid[residIndex]
	}

	numeric, err = num.DerivCentral(eval, state[stateIndex], h)
	if err != nil {
		return 0, 0, err
	}

	sink := &scalarSink{row: residIndex, col: stateIndex}
	sD := &model.StateData{T: t, State: state, DState: dState, Cj: 0}
	if err = m.JacobianElements(sD, sink, mode, 0); err != nil {
		return numeric, 0, err
	}
	return numeric, sink.value, nil
}

// ConvergencePoint is one sample from DynamicSolverConvergenceTest.
type ConvergencePoint struct {
	T           simtime.Time
	Converged   bool
	Iterations  int
	ResidualRMS float64
}

// SolveFunc abstracts the single call DynamicSolverConvergenceTest needs
// from a SolverBackend: attempt IC at t, report success and an
// iteration-equivalent cost.
type SolveFunc func(t simtime.Time) (converged bool, iterations int, residualRMS float64)

// DynamicSolverConvergenceTest sweeps solve over a set of time points
// and measures the convergence rate (§4.10), returning one
// ConvergencePoint per sample. The caller is responsible for persisting
// the result to a file; this keeps diagnostics free of any I/O
// dependency the way the teacher's own chk-based tests are.
func DynamicSolverConvergenceTest(points []simtime.Time, solve SolveFunc) []ConvergencePoint {
	out := make([]ConvergencePoint, len(points))
	for i, t := range points {
		converged, iters, rms := solve(t)
		out[i] = ConvergencePoint{T: t, Converged: converged, Iterations: iters, ResidualRMS: rms}
	}
	return out
}

// Summary renders a ConvergencePoint slice as a human-readable table,
// the shape a caller would write to disk for dynamicSolverConvergenceTest.
func Summary(points []ConvergencePoint) string {
	s := "t(s)\tconverged\titers\tresidRMS\n"
	for _, p := range points {
		s += fmt.Sprintf("%.6f\t%v\t%d\t%.3e\n", p.T.ToSeconds(), p.Converged, p.Iterations, p.ResidualRMS)
	}
	return s
}
