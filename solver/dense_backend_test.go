// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

func Test_dense01(tst *testing.T) {

	chk.PrintTitle("dense01. DenseBackend converges the reference two-bus network")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	b := NewDenseBackend(mode)

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

	_, status, err := b.Solve(simtime.Zero(), NormalStep)
	if err != nil {
		tst.Fatalf("Solve error: %v", err)
	}
	if status != FunctionExecutionSuccess {
		tst.Fatalf("expected FunctionExecutionSuccess, got %d", status)
	}

	if b.Dense() == nil {
		tst.Fatal("Allocate must initialize the dense Jacobian")
	}
	r, c := b.Dense().Dims()
	chk.IntAssert(r, 2)
	chk.IntAssert(c, 2)
}

func Test_dense02(tst *testing.T) {

	chk.PrintTitle("dense02. Jacobian entries accumulate on duplicate Put, same as the sparse sink")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	b := NewDenseBackend(mode)
	if err := b.Allocate(net.StateSize(mode), net.RootSize(mode)); err != nil {
		tst.Fatalf("Allocate error: %v", err)
	}

	sink := denseJacobianSink{m: b.Dense()}
	sink.Put(0, 0, 1.5)
	sink.Put(0, 0, 2.5)
	chk.Float64(tst, "accumulated Put", 1e-12, b.Dense().At(0, 0), 4.0)
}
