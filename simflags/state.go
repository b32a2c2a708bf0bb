// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simflags

// ProcessState is the simulation's top-level state machine (§3 "Simulation
// state machine"). Values are ordered; the driver advances pState
// monotonically except when events force a downgrade.
type ProcessState int

const (
	Startup ProcessState = iota
	Initialized
	PowerflowComplete
	DynamicInitialized
	DynamicPartial
	DynamicComplete
	GDError
)

func (s ProcessState) String() string {
	switch s {
	case Startup:
		return "STARTUP"
	case Initialized:
		return "INITIALIZED"
	case PowerflowComplete:
		return "POWERFLOW_COMPLETE"
	case DynamicInitialized:
		return "DYNAMIC_INITIALIZED"
	case DynamicPartial:
		return "DYNAMIC_PARTIAL"
	case DynamicComplete:
		return "DYNAMIC_COMPLETE"
	case GDError:
		return "GD_ERROR"
	default:
		return "UNKNOWN"
	}
}

// transitions enumerates, for each state, the states reachable from it in
// one documented step (§8 invariant 5). GDError is reachable from any
// state (resource exhaustion, solver construction failure); Initialized is
// reachable from any post-Initialized state (event-forced reset);
// DynamicPartial is reachable from any dynamic state (event-forced
// downgrade mid-run).
var transitions = map[ProcessState]map[ProcessState]bool{
	Startup:             {Initialized: true, GDError: true},
	Initialized:         {PowerflowComplete: true, GDError: true},
	PowerflowComplete:   {DynamicInitialized: true, Initialized: true, PowerflowComplete: true, GDError: true},
	DynamicInitialized:  {DynamicPartial: true, DynamicComplete: true, Initialized: true, GDError: true},
	DynamicPartial:      {DynamicPartial: true, DynamicComplete: true, Initialized: true, GDError: true},
	DynamicComplete:     {DynamicPartial: true, Initialized: true, DynamicComplete: true, GDError: true},
	GDError:             {Initialized: true, GDError: true},
}

// CanTransition reports whether "to" is reachable from "from" by one
// documented transition.
func CanTransition(from, to ProcessState) bool {
	if from == to {
		return true
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}
