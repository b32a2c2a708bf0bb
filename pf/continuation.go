// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pf

import (
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// ContinuationPoint records one step of a continuation sweep (§9,
// grounded on original_source/gridDyn/simulation/continuation.h): the
// step's parameter value and the power-flow result obtained at it.
type ContinuationPoint struct {
	Step   float64
	Result Result
}

// RunContinuation sweeps a caller-defined parameter across steps,
// calling apply(step) to push the parameter onto the model and then
// rerunning Run at that point, the way continuation.h reruns powerflow()
// after each increment of its sweep variable (typically a load
// multiplier) rather than solving the target point directly. The sweep
// stops at the first step that fails to converge — continuation.h's own
// contract is to report the last converged solution, not push a result
// through a diverged point — and the points collected up to and
// including that failure are all returned so the caller can see where
// the sweep broke down.
func (d *Driver) RunContinuation(t simtime.Time, mode simflags.SolverMode, steps []float64, apply func(step float64)) ([]ContinuationPoint, error) {
	points := make([]ContinuationPoint, 0, len(steps))
	for _, step := range steps {
		apply(step)
		res, err := d.Run(t, mode)
		if err != nil {
			return points, err
		}
		points = append(points, ContinuationPoint{Step: step, Result: res})
		if !res.Converged {
			d.Log.Warnf("continuation: diverged at step=%v after %d point(s)", step, len(points)-1)
			break
		}
	}
	return points, nil
}

// LastConverged returns the last point in a continuation sweep that
// converged, and whether any point did.
func LastConverged(points []ContinuationPoint) (ContinuationPoint, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Result.Converged {
			return points[i], true
		}
	}
	return ContinuationPoint{}, false
}
