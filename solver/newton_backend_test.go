// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// wireRefnet builds the Residual/Jacobian closures the same shape
// pf.Driver.callbacks builds, over the backend's own state/deriv arrays.
func wireRefnet(net *refnet.Network, mode simflags.SolverMode) Callbacks {
	return Callbacks{
		Residual: func(t simtime.Time, state, dState, residOut []float64) error {
			sD := &model.StateData{T: t, State: state, DState: dState}
			return net.Residual(sD, residOut, mode)
		},
		Jacobian: func(t simtime.Time, state, dState []float64, cj float64, sink model.JacobianPutter) error {
			sD := &model.StateData{T: t, State: state, DState: dState, Cj: cj}
			return net.JacobianElements(sD, sink, mode, cj)
		},
	}
}

func Test_newton01(tst *testing.T) {

	chk.PrintTitle("newton01. NewtonBackend converges the reference two-bus network")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	b := NewNewtonBackend(mode)

	if err := b.Allocate(net.StateSize(mode), net.RootSize(mode)); err != nil {
		tst.Fatalf("Allocate error: %v", err)
	}
	b.SetCallbacks(wireRefnet(net, mode))
	b.SetTolerance(1e-6, 1e-10)
	if err := b.Initialize(simtime.Zero()); err != nil {
		tst.Fatalf("Initialize error: %v", err)
	}

	state := b.StateData()
	state[0], state[1] = 0.05, 0.97

	tStop, status, err := b.Solve(simtime.Zero(), NormalStep)
	if err != nil {
		tst.Fatalf("Solve error: %v", err)
	}
	if status != FunctionExecutionSuccess {
		tst.Fatalf("expected FunctionExecutionSuccess, got %d", status)
	}
	if tStop != simtime.Zero() {
		tst.Fatal("Solve must report back the target time")
	}

	if b.ResidualNorm() >= 1.0 {
		tst.Fatalf("ResidualNorm must be below 1.0 after a converged solve, got %v", b.ResidualNorm())
	}

	// the converged residual itself must be near zero component-wise, not
	// just below the RMS-weighted convergence threshold.
	r := b.Residual()
	chk.Float64(tst, "converged residual[0]", 1e-4, r[0], 0)
	chk.Float64(tst, "converged residual[1]", 1e-4, r[1], 0)
}

func Test_newton02(tst *testing.T) {

	chk.PrintTitle("newton02. Triplet/Residual/ResidualNorm expose the backend's own storage")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	b := NewNewtonBackend(mode)

	if math.IsInf(b.ResidualNorm(), 0) == false {
		tst.Fatal("ResidualNorm before any Residual evaluation must report +Inf")
	}

	if err := b.Allocate(net.StateSize(mode), net.RootSize(mode)); err != nil {
		tst.Fatalf("Allocate error: %v", err)
	}
	if b.Triplet() == nil {
		tst.Fatal("Allocate must initialize the sparse triplet")
	}

	b.SetMaxNonZeros(64)
	if b.Triplet().Len() != 0 {
		tst.Fatal("SetMaxNonZeros must reset the triplet to empty")
	}
}

func Test_newton03(tst *testing.T) {

	chk.PrintTitle("newton03. SparseReInit clears factorized state without discarding the triplet")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	b := NewNewtonBackend(mode)
	if err := b.Allocate(net.StateSize(mode), net.RootSize(mode)); err != nil {
		tst.Fatalf("Allocate error: %v", err)
	}
	if err := b.SparseReInit(ReInitResize); err != nil {
		tst.Fatalf("SparseReInit error: %v", err)
	}
	if b.Triplet() == nil {
		tst.Fatal("SparseReInit(ReInitResize) must keep the triplet allocated")
	}
	if err := b.SparseReInit(ReInitRefactor); err != nil {
		tst.Fatalf("SparseReInit error: %v", err)
	}
}
