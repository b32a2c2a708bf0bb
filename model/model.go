// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// CheckLevel enumerates rootCheck's audit depth (§4.2).
type CheckLevel int

const (
	LowVoltageCheck CheckLevel = iota
	ReversableOnly
	CompleteStateCheck
	FullCheck
)

// ConvergeMode enumerates converge's relaxation strategy (§4.2), used by
// the recovery ladders (§4.7): block_iteration, single_iteration,
// voltage_only.
type ConvergeMode int

const (
	BlockIteration ConvergeMode = iota
	SingleIteration
	VoltageOnly
)

// NetworkCheckLevel enumerates checkNetwork's depth (§4.2).
type NetworkCheckLevel int

const (
	SimplifiedCheck NetworkCheckLevel = iota
	FullNetworkCheck
)

// ResetLevel enumerates FaultResetRecovery's reset (§4.7, grounded on
// GridDyn's reset_levels enum: low_voltage_dyn0/1/2).
type ResetLevel int

const (
	LowVoltageDyn0 ResetLevel = iota
	LowVoltageDyn1
	LowVoltageDyn2
)

// SimulationModel is the polymorphic view of the network the driver
// consumes (§4.2, C2). Implemented by the (out-of-scope) component
// library; model/refnet provides a minimal reference implementation used
// only by this repository's own tests.
type SimulationModel interface {
	// sizes
	StateSize(mode simflags.SolverMode) int
	RootSize(mode simflags.SolverMode) int
	JacSize(mode simflags.SolverMode) int

	// initial guess / state absorption
	GuessState(t simtime.Time, stateOut, derivOut []float64, mode simflags.SolverMode)
	SetState(t simtime.Time, stateIn, derivIn []float64, mode simflags.SolverMode)

	// pointwise evaluation (§6.1 callback protocol)
	Residual(sD *StateData, residOut []float64, mode simflags.SolverMode) error
	Derivative(sD *StateData, dOut []float64, mode simflags.SolverMode) error
	JacobianElements(sD *StateData, sink JacobianPutter, mode simflags.SolverMode, cj float64) error
	AlgebraicUpdate(sD *StateData, updateOut []float64, mode simflags.SolverMode, alpha float64) error

	// roots
	RootTest(sD *StateData, rootsOut []float64, mode simflags.SolverMode) error
	RootCheck(sD *StateData, mode simflags.SolverMode, level CheckLevel) simflags.ChangeCode
	RootTrigger(t simtime.Time, rootsFound []int, mode simflags.SolverMode)

	// recovery-assist
	Converge(t simtime.Time, state, deriv []float64, mode simflags.SolverMode, convMode ConvergeMode, tolerance float64) error
	CheckNetwork(level NetworkCheckLevel) error
	PowerFlowAdjust(flags simflags.FlagSet, level CheckLevel) simflags.ChangeCode
	DynamicCheckAndReset(mode simflags.SolverMode, changeCode simflags.ChangeCode) bool

	// slack-balance outer loop (§4.5 step 2/4, power_adjust_enabled)
	SlackRealPower(mode simflags.SolverMode) float64
	LoadBalance(mode simflags.SolverMode, slkBase float64) float64

	// voltage introspection used by the recovery ladders
	GetVoltage(mode simflags.SolverMode) []float64
	GetVoltageStates(mode simflags.SolverMode) []bool // true at indices whose state is a voltage magnitude
	SetAll(objType, param string, value float64)

	// fault reset
	Reset(level ResetLevel)
}
