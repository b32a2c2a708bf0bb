// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package refnet

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// arraySink is a 2x2 dense JacobianPutter for tests that need to read
// individual entries back, unlike the sparse-triplet-backed
// model.JacobianSink which is write-only from the model's perspective.
type arraySink struct{ vals [2][2]float64 }

func (s *arraySink) Put(row, col int, value float64) { s.vals[row][col] = value }

func Test_refnet01(tst *testing.T) {

	chk.PrintTitle("refnet01. Residual and central-difference JacobianElements agree")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := New()
	sD := &model.StateData{T: simtime.Zero(), State: []float64{0.05, 0.97}}

	resid := make([]float64, 2)
	if err := net.Residual(sD, resid, mode); err != nil {
		tst.Fatalf("Residual error: %v", err)
	}

	sink := &arraySink{}
	if err := net.JacobianElements(sD, sink, mode, 0); err != nil {
		tst.Fatalf("JacobianElements error: %v", err)
	}

	// perturb theta by a small step and confirm the Jacobian's column 0
	// predicts the residual change to first order.
	const h = 1e-6
	perturbed := &model.StateData{T: sD.T, State: []float64{sD.State[0] + h, sD.State[1]}}
	residP := make([]float64, 2)
	net.Residual(perturbed, residP, mode)
	predicted := resid[0] + sink.vals[0][0]*h
	chk.Float64(tst, "dR0/dtheta prediction", 1e-9, predicted, residP[0])
}

func Test_refnet02(tst *testing.T) {

	chk.PrintTitle("refnet02. CloneModel returns an independent copy")

	net := New()
	net.SetAll("bus", "lowvdisconnect", 0.2)

	cloned := net.CloneModel().(*Network)
	if cloned == net {
		tst.Fatal("CloneModel must not return the same pointer")
	}
	cloned.SetAll("gen", "custom", 42.0)
	if _, ok := net.objType["gen.custom"]; ok {
		tst.Fatal("mutating the clone's objType map must not affect the original")
	}
	if cloned.LowVDisconnect != 0.2 {
		tst.Fatal("CloneModel must copy scalar fields forward")
	}
}

func Test_refnet03(tst *testing.T) {

	chk.PrintTitle("refnet03. SetAll/Reset bookkeeping and GetVoltage tracks the last SetState")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := New()

	net.SetAll("load", "pqlowvlimit", 0.8)
	if net.PQLowVLimit != 0.8 {
		tst.Fatal("SetAll must route the pqlowvlimit key to the named field")
	}
	net.SetAll("load", "lowvdisconnect", 0.1)
	if net.LowVDisconnect != 0.1 {
		tst.Fatal("SetAll must route the lowvdisconnect key to the named field")
	}

	chk.IntAssert(net.ResetCount(), 0)
	net.Reset(model.LowVoltageDyn0)
	net.Reset(model.LowVoltageDyn1)
	chk.IntAssert(net.ResetCount(), 2)

	net.SetState(simtime.Zero(), []float64{0.01, 0.95}, []float64{0, 0}, mode)
	v := net.GetVoltage(mode)
	chk.Float64(tst, "slack voltage", 1e-12, v[0], 1.0)
	chk.Float64(tst, "load voltage", 1e-12, v[1], 0.95)

	states := net.GetVoltageStates(mode)
	if states[0] || !states[1] {
		tst.Fatal("GetVoltageStates must report theta=false, v=true")
	}
}

func Test_refnet04(tst *testing.T) {

	chk.PrintTitle("refnet04. DynamicCheckAndReset applies a pending lowvdisconnect sweep")

	mode := simflags.NewMode(simflags.DAE, 0)
	net := New()

	if net.DynamicCheckAndReset(mode, simflags.ObjectChange) {
		tst.Fatal("no pending disconnect: nothing to reconcile")
	}

	net.SetAll("bus", "lowvdisconnect", 0.03)
	net.SetState(simtime.Zero(), []float64{0, 0.02}, nil, mode) // collapsed bus

	if net.DynamicCheckAndReset(mode, simflags.ParameterChange) {
		tst.Fatal("sub-object-change codes must not trigger the sweep")
	}
	if !net.DynamicCheckAndReset(mode, simflags.ObjectChange) {
		tst.Fatal("an object-change code with a collapsed bus must trip the load off-line")
	}
	if net.DynamicCheckAndReset(mode, simflags.ObjectChange) {
		tst.Fatal("a second pass has nothing left to reconcile")
	}

	// with the load off-line the residual at the flat start is just the
	// line's own flow terms
	resid := make([]float64, 2)
	sD := &model.StateData{T: simtime.Zero(), State: []float64{0, 1.0}}
	if err := net.Residual(sD, resid, mode); err != nil {
		tst.Fatalf("Residual error: %v", err)
	}
	chk.Float64(tst, "P residual without load", 1e-12, resid[0], 0.0)
}
