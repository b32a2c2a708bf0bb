// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pf

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/config"
	"github.com/LLNL/GridDyn-sub006/event"
	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

func Test_powerflow01(tst *testing.T) {

	chk.PrintTitle("powerflow01. two-bus reference network converges")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	backend := solver.NewNewtonBackend(mode)
	driver := NewDriver(net, backend, event.NewQueue(), nil, config.Default(), nil)

	res, err := driver.Run(simtime.Zero(), mode)
	if err != nil {
		tst.Fatalf("Run error: %v", err)
	}
	if !res.Converged {
		tst.Fatalf("expected convergence, got state=%v", res.State)
	}
	if res.Iterations == 0 {
		tst.Fatal("expected at least one Newton iteration to have run")
	}
}

func Test_powerflow02(tst *testing.T) {

	chk.PrintTitle("powerflow02. NoPowerflowAdjustments short-circuits the outer loop after one convergence")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	backend := solver.NewNewtonBackend(mode)
	cfg := config.Default()
	cfg.Options.NoPowerflowAdjustments = true
	driver := NewDriver(net, backend, event.NewQueue(), nil, cfg, nil)

	res, err := driver.Run(simtime.Zero(), mode)
	if err != nil {
		tst.Fatalf("Run error: %v", err)
	}
	if !res.Converged || res.OuterPasses != 1 {
		tst.Fatalf("expected single-pass convergence, got converged=%v passes=%d", res.Converged, res.OuterPasses)
	}
}

func Test_powerflow03(tst *testing.T) {

	chk.PrintTitle("powerflow03. non-finite state detection forces the recovery path")

	if finiteState([]float64{1, math.NaN()}) {
		tst.Fatal("a NaN entry must be rejected")
	}
	if finiteState([]float64{1, math.Inf(1)}) {
		tst.Fatal("an infinite entry must be rejected")
	}
	if !finiteState([]float64{0, 1}) {
		tst.Fatal("a finite vector must pass")
	}
	chk.IntAssert(statusNonFinite, -30)
}
