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

// ResetFn is the driver-supplied hook DynamicICRecovery calls back into
// for dynamicCheckAndReset (stages 2 through 4), since that dispatcher lives on
// dyn.Driver, one layer above this package.
type ResetFn func(changeCode simflags.ChangeCode) bool

// DynamicICRecovery implements the six-stage ladder from
// dynamicInitialConditionRecovery.cpp (§4.7). Stage 6 is reserved.
type DynamicICRecovery struct {
	ctx               Context
	stage             int
	prevSetallPqvlimit bool
	dynamicCheckReset ResetFn
}

// NewDynamicICRecovery returns a ladder bound to ctx; dynamicCheckReset
// is invoked by stages 2 through 4 exactly where the original calls back
// into dynamicCheckAndReset.
func NewDynamicICRecovery(ctx Context, dynamicCheckReset ResetFn) *DynamicICRecovery {
	return &DynamicICRecovery{ctx: ctx, dynamicCheckReset: dynamicCheckReset}
}

func (r *DynamicICRecovery) HasMoreFixes() bool { return r.stage < 6 }
func (r *DynamicICRecovery) Attempts() int      { return r.stage }
func (r *DynamicICRecovery) Reset()             { r.stage = 0; r.prevSetallPqvlimit = false }

func (r *DynamicICRecovery) calcIC(t simtime.Time) (int, error) {
	return r.ctx.Backend.CalcIC(t, simtime.ProbeStepTime, solver.FixedDiff, true)
}

// lowVoltageCheck runs after any failing calcIC that returned
// SOLVER_INVALID_STATE_ERROR: rootCheck(low_voltage_check), then a
// calcIC retry. No Jacobian audit is run here, and
// cfg.Options.JacCheckEnabled is not consulted.
func (r *DynamicICRecovery) lowVoltageCheck(t simtime.Time) (int, error) {
	r.ctx.Model.RootCheck(nil, r.ctx.Mode, model.LowVoltageCheck)
	return r.calcIC(t)
}

// AttemptFix runs the next ladder stage.
func (r *DynamicICRecovery) AttemptFix(t simtime.Time) (bool, error) {
	r.stage++
	var status int
	var err error
	switch r.stage {
	case 1:
		status, err = r.stage1(t)
	case 2:
		status, err = r.stage2(t)
	case 3:
		status, err = r.stage3(t)
	case 4:
		status, err = r.stage4(t)
	case 5:
		status, err = r.stage5(t)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if status == solver.SolverInvalidStateError {
		status, err = r.lowVoltageCheck(t)
		if err != nil {
			return false, err
		}
	}
	return status == solver.FunctionExecutionSuccess, nil
}

func (r *DynamicICRecovery) stage1(t simtime.Time) (int, error) {
	if err := r.ctx.Model.CheckNetwork(model.SimplifiedCheck); err != nil {
		return solver.FunctionExecutionFailure, err
	}
	if err := r.ctx.Model.Converge(t, r.ctx.Backend.StateData(), r.ctx.Backend.DerivData(), r.ctx.Mode, model.BlockIteration, 3.0); err != nil {
		return solver.FunctionExecutionFailure, err
	}
	return r.calcIC(t)
}

func (r *DynamicICRecovery) stage2(t simtime.Time) (int, error) {
	if err := r.ctx.Model.Converge(t, r.ctx.Backend.StateData(), r.ctx.Backend.DerivData(), r.ctx.Mode, model.BlockIteration, 3.0); err != nil {
		return solver.FunctionExecutionFailure, err
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
		if err := r.ctx.Model.Converge(t, r.ctx.Backend.StateData(), r.ctx.Backend.DerivData(), r.ctx.Mode, model.BlockIteration, 0.01); err != nil {
			return solver.FunctionExecutionFailure, err
		}
		return r.calcIC(t)
	}
	if !r.prevSetallPqvlimit {
		r.prevSetallPqvlimit = true
		r.ctx.Model.SetAll("load", "pqlowvlimit", 0.9)
		if r.ctx.Flags != nil {
			r.ctx.Flags.Set(simflags.PrevSetallPqvlimit)
			r.ctx.Flags.Set(simflags.ResetVoltageFlag)
			r.ctx.Flags.Set(simflags.DisableFlagUpdates)
		}
		code := r.ctx.Model.RootCheck(nil, r.ctx.Mode, model.CompleteStateCheck)
		if code != simflags.NoChange && r.dynamicCheckReset != nil {
			r.dynamicCheckReset(code)
		}
		return r.calcIC(t)
	}
	// the PQ set is already active from an earlier attempt: a reversible
	// root scan decides between a structural reset and a plain re-guess
	code := r.ctx.Model.RootCheck(nil, r.ctx.Mode, model.ReversableOnly)
	if code > simflags.NonStateChange {
		if r.dynamicCheckReset != nil {
			r.dynamicCheckReset(code)
		}
		return r.calcIC(t)
	}
	r.ctx.Model.GuessState(t, r.ctx.Backend.StateData(), r.ctx.Backend.DerivData(), r.ctx.Mode)
	return r.calcIC(t)
}

func (r *DynamicICRecovery) stage3(t simtime.Time) (int, error) {
	tNext := t.Add(simtime.FromSeconds(1e-3))
	if r.dynamicCheckReset != nil {
		r.dynamicCheckReset(simflags.NonStateChange)
	}
	return r.calcIC(tNext)
}

func (r *DynamicICRecovery) stage4(t simtime.Time) (int, error) {
	voltages := r.ctx.Model.GetVoltage(r.ctx.Mode)
	anyVeryLow := false
	for _, v := range voltages {
		if v < 0.1 {
			anyVeryLow = true
			break
		}
	}
	if anyVeryLow {
		r.ctx.Model.SetAll("bus", "lowvdisconnect", 0.03)
		// the disconnect is an object-change-class edit: the backend must
		// be resized before the retry
		if r.dynamicCheckReset != nil {
			r.dynamicCheckReset(simflags.ObjectChange)
		}
	}
	if err := r.ctx.Model.Converge(t, r.ctx.Backend.StateData(), r.ctx.Backend.DerivData(), r.ctx.Mode, model.BlockIteration, 0.01); err != nil {
		return solver.FunctionExecutionFailure, err
	}
	return r.calcIC(t)
}

func (r *DynamicICRecovery) stage5(t simtime.Time) (int, error) {
	if err := r.ctx.Model.Converge(t, r.ctx.Backend.StateData(), r.ctx.Backend.DerivData(), r.ctx.Mode, model.BlockIteration, 0.01); err != nil {
		return solver.FunctionExecutionFailure, err
	}
	return r.calcIC(t)
}
