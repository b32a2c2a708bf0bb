// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the tolerances and options recognized by the core
// (§6.5), shaped after the teacher's inp.Solver struct (referenced
// throughout fem/s_implicit.go as Global.Sim.Solver.Rtol, .FbTol, .NmaxIt,
// .DvgCtrl, etc.) and inp.Data (Global.Sim.Data.Steady, .CteTg, .ShowR).
package config

// Tolerances mirrors inp.Solver's convergence knobs.
type Tolerances struct {
	Rtol    float64 // relative tolerance, used by VecRmsErr-style checks
	Atol    float64 // absolute tolerance
	FbTol   float64 // residual tolerance relative to largFb0
	FbMin   float64 // absolute residual floor
	Itol    float64 // increment (δu) tolerance
	NmaxIt  int     // max Newton iterations per step
	NdvgMax int     // max consecutive divergent steps before giving up
	DtMin   float64 // minimum time increment
}

// DefaultTolerances returns sane defaults, the values fem's inp package
// ships when a .sim file omits the Solver block.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Rtol:    1e-4,
		Atol:    1e-8,
		FbTol:   1e-10,
		FbMin:   1e-10,
		Itol:    1e-6,
		NmaxIt:  20,
		NdvgMax: 10,
		DtMin:   1e-6,
	}
}

// Options holds every option recognized by the core, enumerated in §6.5.
type Options struct {
	PrintLevel                  int
	PowerAdjustEnabled          bool
	NoPowerflowErrorRecovery    bool
	NoPowerflowAdjustments      bool
	FirstRunLimitsOnly          bool
	VoltageConstraintsFlag      bool
	ConstraintsDisabled         bool
	RootsDisabled               bool
	DenseSolver                 bool
	DaeInitializationForPart    bool
	SingleStepMode              bool
	SavePowerFlowData           bool
	ForcePowerFlow               bool
	StateRecordPeriod           float64 // seconds; 0 disables periodic state dumps

	MaxVadjustIterations int // max_Vadjust_iterations
	MaxPadjustIterations int // max_Padjust_iterations
	PowerAdjustThreshold float64

	JacCheckEnabled bool // dyn.Driver logs a debug line on an invalid-state return; no ladder reads it
}

// DefaultOptions returns the defaults used when a config file doesn't set
// an option explicitly.
func DefaultOptions() Options {
	return Options{
		PrintLevel:            4, // "normal"
		MaxVadjustIterations:  10,
		MaxPadjustIterations:  10,
		PowerAdjustThreshold:  1e-3,
	}
}

// Config bundles Tolerances and Options, the way inp.Solver bundles both
// concerns in a single struct that DynCoefs.Init and the Newton loop both
// read from.
type Config struct {
	Tol     Tolerances
	Options Options
}

// Default returns a Config with default tolerances and options.
func Default() Config {
	return Config{Tol: DefaultTolerances(), Options: DefaultOptions()}
}
