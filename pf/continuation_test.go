// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pf

import (
	"errors"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/config"
	"github.com/LLNL/GridDyn-sub006/event"
	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

func Test_continuation01(tst *testing.T) {

	chk.PrintTitle("continuation01. RunContinuation sweeps a load multiplier and records every point")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	basePload, baseQload := net.Pload, net.Qload
	backend := solver.NewNewtonBackend(mode)
	driver := NewDriver(net, backend, event.NewQueue(), nil, config.Default(), nil)

	steps := []float64{0.25, 0.5, 0.75, 1.0}
	points, err := driver.RunContinuation(simtime.Zero(), mode, steps, func(scale float64) {
		net.Pload = basePload * scale
		net.Qload = baseQload * scale
	})
	if err != nil {
		tst.Fatalf("RunContinuation error: %v", err)
	}
	chk.IntAssert(len(points), len(steps))
	for i, p := range points {
		if !p.Result.Converged {
			tst.Fatalf("expected step %v (index %d) to converge", p.Step, i)
		}
		if p.Step != steps[i] {
			tst.Fatalf("point %d: expected step %v, got %v", i, steps[i], p.Step)
		}
	}

	last, ok := LastConverged(points)
	if !ok {
		tst.Fatal("LastConverged must report a converged point when the whole sweep converged")
	}
	chk.Float64(tst, "last converged step", 1e-12, last.Step, 1.0)
}

// flakyModel wraps refnet.Network, failing Residual on demand so a
// continuation sweep's divergence point is deterministic rather than
// dependent on exactly how many Newton iterations a given load scale
// takes to either converge or exhaust.
type flakyModel struct {
	*refnet.Network
	shouldFail bool
}

func (f *flakyModel) Residual(sD *model.StateData, residOut []float64, mode simflags.SolverMode) error {
	if f.shouldFail {
		return errors.New("simulated divergence")
	}
	return f.Network.Residual(sD, residOut, mode)
}

func Test_continuation02(tst *testing.T) {

	chk.PrintTitle("continuation02. RunContinuation stops at the first diverged step and surfaces its error")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := &flakyModel{Network: refnet.New()}
	backend := solver.NewNewtonBackend(mode)
	driver := NewDriver(net, backend, event.NewQueue(), nil, config.Default(), nil)

	steps := []float64{1.0, 2.0, 3.0}
	points, err := driver.RunContinuation(simtime.Zero(), mode, steps, func(scale float64) {
		net.shouldFail = scale >= 2.0
	})
	if err == nil {
		tst.Fatal("expected RunContinuation to surface the 2nd step's Residual error")
	}
	if len(points) != 1 {
		tst.Fatalf("expected exactly the 1st (converged) step recorded before the failure, got %d points", len(points))
	}
	if !points[0].Result.Converged || points[0].Step != 1.0 {
		tst.Fatalf("unexpected 1st point: %+v", points[0])
	}

	last, ok := LastConverged(points)
	if !ok {
		tst.Fatal("expected the 1st step to have converged")
	}
	chk.Float64(tst, "last converged step", 1e-12, last.Step, 1.0)
}
