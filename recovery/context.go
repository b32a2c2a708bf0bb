// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package recovery implements the three fallback ladders (§4.7, C7):
// PowerFlowRecovery, FaultResetRecovery and DynamicICRecovery. Each is a
// monotone sequence of increasingly aggressive strategies the pf and dyn
// drivers fall back to when a normal solve fails, grounded line-by-line
// on GridDyn's original_source/gridDyn/simulation/
// powerFlowErrorRecovery.cpp, faultResetRecovery.cpp and
// dynamicInitialConditionRecovery.cpp — the teacher has no equivalent
// fallback-ladder concept (fem's Newton loop either converges within
// NmaxIt or the whole run fails), so these are built directly from the
// original rather than adapted from teacher code.
package recovery

import (
	"github.com/LLNL/GridDyn-sub006/config"
	"github.com/LLNL/GridDyn-sub006/logx"
	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/offset"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/solver"
)

// Context bundles the references every ladder needs to act on the
// running simulation: the model, its backend, the offset table, config
// and logger. Built once by the owning driver (pf.Driver / dyn.Driver)
// and shared across all three ladders.
type Context struct {
	Model   model.SimulationModel
	Backend solver.SolverBackend
	Offsets *offset.OffsetTable
	Cfg     config.Config
	Log     *logx.Logger
	Mode    simflags.SolverMode

	// Flags points at the owning driver's opFlags bitset, so stages that
	// install a persistent policy (prev_setall_pqvlimit) survive across
	// fresh ladder constructions within one run. May be nil when the
	// caller has no flag set to share.
	Flags *simflags.FlagSet
}

// ladder is the common shape every recovery ladder implements (§4.7):
// "Each exposes hasMoreFixes(), attemptFix(), attempts(), reset()."
type ladder interface {
	HasMoreFixes() bool
	Attempts() int
	Reset()
}
