// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recovery

import (
	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

// PowerFlowRecovery implements the five-stage ladder from
// powerFlowErrorRecovery.cpp (§4.7). Stage 5 is reserved and always
// fails — GridDyn's original ships a fifth slot it never filled in,
// preserved here rather than "fixed" since the driver only needs
// hasMoreFixes to eventually return false.
type PowerFlowRecovery struct {
	ctx   Context
	stage int
}

// NewPowerFlowRecovery returns a fresh ladder bound to ctx.
func NewPowerFlowRecovery(ctx Context) *PowerFlowRecovery {
	return &PowerFlowRecovery{ctx: ctx}
}

func (r *PowerFlowRecovery) HasMoreFixes() bool { return r.stage < 5 }
func (r *PowerFlowRecovery) Attempts() int      { return r.stage }
func (r *PowerFlowRecovery) Reset()             { r.stage = 0 }

// AttemptFix runs the next stage in the ladder and reports whether it
// changed anything; the caller (pf.Driver) re-solves after any stage
// that returns changed == true.
func (r *PowerFlowRecovery) AttemptFix(t simtime.Time) (changed bool, err error) {
	r.stage++
	switch r.stage {
	case 1:
		return r.nonReversibleAdjustments()
	case 2:
		return r.blockRelaxation(t)
	case 3:
		return r.lowVoltagePQConversion(t)
	case 4:
		return r.lowVoltageDisconnect()
	default:
		return false, nil
	}
}

func (r *PowerFlowRecovery) nonReversibleAdjustments() (bool, error) {
	code := r.ctx.Model.PowerFlowAdjust(simflags.FlagSet{}, model.FullCheck)
	if code == simflags.NoChange {
		return false, nil
	}
	if err := r.ctx.Model.CheckNetwork(model.SimplifiedCheck); err != nil {
		return false, err
	}
	return true, r.reInitpFlow(code)
}

func (r *PowerFlowRecovery) blockRelaxation(t simtime.Time) (bool, error) {
	state := r.ctx.Backend.StateData()
	if err := r.ctx.Model.Converge(t, state, nil, r.ctx.Mode, model.BlockIteration, 0.1); err != nil {
		return false, err
	}
	code := r.ctx.Model.PowerFlowAdjust(simflags.FlagSet{}, model.ReversableOnly)
	if code == simflags.NoChange {
		return true, nil
	}
	return true, r.reInitpFlow(code)
}

func (r *PowerFlowRecovery) lowVoltagePQConversion(t simtime.Time) (bool, error) {
	if r.ctx.Flags != nil && r.ctx.Flags.Has(simflags.PrevSetallPqvlimit) {
		return false, nil
	}
	voltages := r.ctx.Model.GetVoltage(r.ctx.Mode)
	anyLow := false
	for _, v := range voltages {
		if v < 0.7 {
			anyLow = true
			break
		}
	}
	if !anyLow {
		return false, nil
	}
	r.ctx.Model.SetAll("load", "pqlowvlimit", 1.0)
	flags := simflags.FlagSet{}
	flags.Set(simflags.VoltageConstraintsFlag)
	if r.ctx.Flags != nil {
		r.ctx.Flags.Set(simflags.PrevSetallPqvlimit)
		r.ctx.Flags.Set(simflags.VoltageConstraintsFlag)
	}
	for {
		state := r.ctx.Backend.StateData()
		if err := r.ctx.Model.Converge(t, state, nil, r.ctx.Mode, model.BlockIteration, 0.1); err != nil {
			return true, err
		}
		code := r.ctx.Model.PowerFlowAdjust(flags, model.ReversableOnly)
		if code == simflags.NoChange {
			break
		}
	}
	return true, nil
}

func (r *PowerFlowRecovery) lowVoltageDisconnect() (bool, error) {
	voltages := r.ctx.Model.GetVoltage(r.ctx.Mode)
	anyVeryLow := false
	for _, v := range voltages {
		if v < 0.1 {
			anyVeryLow = true
			break
		}
	}
	if !anyVeryLow {
		return false, nil
	}
	r.ctx.Model.SetAll("bus", "lowvdisconnect", 0.03)
	return true, r.reInitpFlow(simflags.ObjectChange)
}

func (r *PowerFlowRecovery) reInitpFlow(code simflags.ChangeCode) error {
	if code >= simflags.StateCountChange {
		n := r.ctx.Model.StateSize(r.ctx.Mode)
		rootN := r.ctx.Model.RootSize(r.ctx.Mode)
		return r.ctx.Backend.Allocate(n, rootN)
	}
	if code >= simflags.JacobianChange {
		return r.ctx.Backend.SparseReInit(solver.ReInitRefactor)
	}
	return nil
}

// LowVoltageFix is the pre-step branch run directly on
// SOLVER_INVALID_STATE_ERROR, before the numbered ladder is consulted.
func (r *PowerFlowRecovery) LowVoltageFix() (bool, error) {
	code := r.ctx.Model.PowerFlowAdjust(simflags.FlagSet{}, model.LowVoltageCheck)
	if code == simflags.NoChange {
		return false, nil
	}
	if err := r.ctx.Model.CheckNetwork(model.SimplifiedCheck); err != nil {
		return false, err
	}
	return true, r.reInitpFlow(code)
}
