// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recovery

import (
	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

// FaultResetRecovery implements the seven-stage ladder from
// faultResetRecovery.cpp (§4.7). Stages 6 and 7 are reserved and always
// fail, same as the original.
type FaultResetRecovery struct {
	ctx    Context
	stage  int
	initV  []float64
	sweepI int // index into the 0.1..0.9 rv1 sweep used by stage 5
}

// NewFaultResetRecovery returns a ladder bound to ctx, recording the
// model's voltages at construction time for the sanity check every
// stage runs before accepting a reset.
func NewFaultResetRecovery(ctx Context) *FaultResetRecovery {
	v := ctx.Model.GetVoltage(ctx.Mode)
	initV := make([]float64, len(v))
	copy(initV, v)
	return &FaultResetRecovery{ctx: ctx, initV: initV}
}

func (r *FaultResetRecovery) HasMoreFixes() bool { return r.stage < 7 }
func (r *FaultResetRecovery) Attempts() int      { return r.stage }
func (r *FaultResetRecovery) Reset()             { r.stage = 0; r.sweepI = 0 }

// checkResetVoltages rejects a candidate reset if any previously
// energized bus (v > 0.1 in initV) has collapsed (v < 0.001), or more
// than one newly energized bus appears (v > 0.1 where initV < 0.001).
func (r *FaultResetRecovery) checkResetVoltages(v []float64) bool {
	newlyEnergized := 0
	for i := range v {
		if i >= len(r.initV) {
			break
		}
		if r.initV[i] > 0.1 && v[i] < 0.001 {
			return false
		}
		if r.initV[i] < 0.001 && v[i] > 0.1 {
			newlyEnergized++
		}
	}
	return newlyEnergized <= 1
}

// AttemptFix runs the next stage and reports whether it produced an
// accepted reset (changed) after passing the sanity check.
func (r *FaultResetRecovery) AttemptFix(t simtime.Time) (changed bool, err error) {
	r.stage++
	switch r.stage {
	case 1:
		return r.stageReset(model.LowVoltageDyn0, true)
	case 2:
		return r.stageReset(model.LowVoltageDyn0, false)
	case 3:
		return r.stageReset(model.LowVoltageDyn1, false)
	case 4:
		return r.stageReset(model.LowVoltageDyn2, false)
	case 5:
		return r.sweepStage()
	default:
		return false, nil
	}
}

// stageReset runs reset(level); clampVoltage guards whether voltage
// states below 0.9 get clamped to 1.0 before calcIC (only stage 1 does
// this, per the original).
func (r *FaultResetRecovery) stageReset(level model.ResetLevel, clampVoltage bool) (bool, error) {
	r.ctx.Model.Reset(level)
	n := r.ctx.Model.StateSize(r.ctx.Mode)
	state := make([]float64, n)
	r.ctx.Model.GuessState(0, state, nil, r.ctx.Mode)
	if clampVoltage {
		isV := r.ctx.Model.GetVoltageStates(r.ctx.Mode)
		for i, v := range state {
			if i < len(isV) && isV[i] && v < 0.9 {
				state[i] = 1.0
			}
		}
	}
	r.ctx.Model.SetState(0, state, nil, r.ctx.Mode)
	status, err := r.ctx.Backend.CalcIC(0, simtime.ProbeStepTime, solver.FixedDiff, true)
	if err != nil || status != solver.FunctionExecutionSuccess {
		if !clampVoltage {
			// "add a voltage-only local converge round and retry"
			if cerr := r.ctx.Model.Converge(0, r.ctx.Backend.StateData(), nil, r.ctx.Mode, model.VoltageOnly, 0.1); cerr == nil {
				status, err = r.ctx.Backend.CalcIC(0, simtime.ProbeStepTime, solver.FixedDiff, true)
			}
		}
		if err != nil || status != solver.FunctionExecutionSuccess {
			return false, err
		}
	}
	if !r.checkResetVoltages(r.ctx.Model.GetVoltage(r.ctx.Mode)) {
		return false, nil
	}
	return true, nil
}

// sweepStage is stage 5: sweep rv1 in {0.1, 0.2, ..., 0.9}, resetting
// voltage states to rv1 + (1-rv1)*initV and retrying calcIC; on failure,
// block-iterate once and retry before moving to the next rv1.
func (r *FaultResetRecovery) sweepStage() (bool, error) {
	rv1 := 0.1 + 0.1*float64(r.sweepI)
	r.sweepI++
	if rv1 > 0.9+1e-9 {
		return false, nil
	}
	isV := r.ctx.Model.GetVoltageStates(r.ctx.Mode)
	state := r.ctx.Backend.StateData()
	for i, isVoltage := range isV {
		if isVoltage && i < len(state) {
			state[i] = rv1 + (1-rv1)*r.initV[i]
		}
	}
	status, err := r.ctx.Backend.CalcIC(0, simtime.ProbeStepTime, solver.FixedDiff, true)
	if err != nil || status != solver.FunctionExecutionSuccess {
		if cerr := r.ctx.Model.Converge(0, state, nil, r.ctx.Mode, model.BlockIteration, 0.1); cerr == nil {
			status, err = r.ctx.Backend.CalcIC(0, simtime.ProbeStepTime, solver.FixedDiff, true)
		}
	}
	// keep retrying this stage across the whole rv1 sweep, whether this
	// rv1 succeeded or not, until sweepI runs past 0.9
	r.stage--
	if err != nil || status != solver.FunctionExecutionSuccess {
		return false, err
	}
	if !r.checkResetVoltages(r.ctx.Model.GetVoltage(r.ctx.Mode)) {
		return false, nil
	}
	return true, nil
}
