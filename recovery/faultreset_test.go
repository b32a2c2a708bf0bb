// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recovery

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

func Test_faultreset01(tst *testing.T) {

	chk.PrintTitle("faultreset01. checkResetVoltages rejects a collapsed previously-energized bus")

	mode := simflags.NewMode(simflags.DAE, 0)
	ctx := Context{Model: refnet.New(), Mode: mode}
	r := NewFaultResetRecovery(ctx) // records initV = {1.0, 1.0}

	if !r.checkResetVoltages([]float64{1.0, 1.0}) {
		tst.Fatal("an unchanged voltage vector must pass the sanity check")
	}
	if r.checkResetVoltages([]float64{0.0005, 1.0}) {
		tst.Fatal("a collapsed previously-energized bus (1.0 -> 0.0005) must be rejected")
	}
}

func Test_faultreset02(tst *testing.T) {

	chk.PrintTitle("faultreset02. ladder exhausts after exactly 7 stages, including the rv1 sweep")

	mode := simflags.NewMode(simflags.DAE, 0)
	net := refnet.New()
	backend := &fakeBackend{mode: mode, calcICStatus: solver.FunctionExecutionSuccess}
	backend.Allocate(net.StateSize(mode), net.RootSize(mode))

	ctx := Context{Model: net, Backend: backend, Mode: mode}
	ladder := NewFaultResetRecovery(ctx)

	calls := 0
	for ladder.HasMoreFixes() && calls < 200 {
		if _, err := ladder.AttemptFix(simtime.Zero()); err != nil {
			tst.Fatalf("AttemptFix error at call %d: %v", calls, err)
		}
		calls++
	}
	if ladder.HasMoreFixes() {
		tst.Fatal("ladder did not exhaust within 200 attempts")
	}
	chk.IntAssert(ladder.Attempts(), 7)
	if net.ResetCount() == 0 {
		tst.Fatal("the first four stages must each call Model.Reset")
	}

	ladder.Reset()
	chk.IntAssert(ladder.Attempts(), 0)
	if !ladder.HasMoreFixes() {
		tst.Fatal("Reset must re-arm the ladder")
	}
}
