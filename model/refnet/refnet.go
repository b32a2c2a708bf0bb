// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package refnet is a minimal reference SimulationModel (§4.2, C2): a
// two-bus network (one slack bus, one PQ load bus joined by a line),
// enough to exercise pf.Driver, dyn.Driver, recovery, contingency and
// diagnostics in this repository's own tests. A real component library
// is explicitly out of scope (§1 "deliberately out of scope") — this
// package exists only as test scaffolding, the way the teacher's own
// tests build a small concrete ele.Element/mdl.Model pair (e.g.
// tests/porous/solid-liquid_test.go) rather than exercising the full
// material-model catalog.
package refnet

import (
	"math"

	"github.com/LLNL/GridDyn-sub006/model"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// Network is the reference two-bus model. State layout (power-flow
// mode): [0]=theta (load bus angle, rad), [1]=v (load bus voltage
// magnitude, pu). The slack bus is fixed at v=1, theta=0.
type Network struct {
	G, B       float64 // line conductance/susceptance, pu
	Pload, Qload float64 // constant-power load at the PQ bus, pu
	PQLowVLimit  float64 // 0 disables; set by recovery.lowVoltagePQConversion
	LowVDisconnect float64 // 0 disables; set by recovery.lowVoltageDisconnect
	RatingA      float64 // line MVA rating-A limit, pu; 0 disables flow checks
	loadOffline  bool    // set by DynamicCheckAndReset's lowvdisconnect sweep
	resetCount   int
	objType      map[string]float64 // SetAll target bookkeeping, keyed "objType.param"
	lastState    [2]float64         // last value SetState recorded, read back by GetVoltage
}

// New returns a reference network with a typical short line.
func New() *Network {
	return &Network{G: 5.0, B: -15.0, Pload: 0.8, Qload: 0.3, objType: make(map[string]float64), lastState: [2]float64{0, 1.0}}
}

// CloneModel returns an independent copy, satisfying
// contingency.ModelCloner (§9 "Clone must not alias the original").
func (n *Network) CloneModel() model.SimulationModel {
	cp := *n
	cp.objType = make(map[string]float64, len(n.objType))
	for k, v := range n.objType {
		cp.objType[k] = v
	}
	return &cp
}

func (n *Network) StateSize(mode simflags.SolverMode) int { return 2 }
func (n *Network) RootSize(mode simflags.SolverMode) int  { return 0 }
func (n *Network) JacSize(mode simflags.SolverMode) int   { return 4 }

func (n *Network) GuessState(t simtime.Time, stateOut, derivOut []float64, mode simflags.SolverMode) {
	stateOut[0] = 0
	stateOut[1] = 1.0
	for i := range derivOut {
		derivOut[i] = 0
	}
}

func (n *Network) SetState(t simtime.Time, stateIn, derivIn []float64, mode simflags.SolverMode) {
	n.lastState[0], n.lastState[1] = stateIn[0], stateIn[1]
}

// power mismatch at the PQ bus, for a slack bus fixed at (v=1, theta=0):
//   P(theta,v) = v*(G*cos(theta) + B*sin(theta)) - G*v^2
//   Q(theta,v) = v*(G*sin(theta) - B*cos(theta)) + B*v^2  (a simplified two-bus flow)
// kept deliberately small: this is test scaffolding, not a power-flow
// library.
func (n *Network) flows(theta, v float64) (p, q float64) {
	vs := 1.0
	p = v*vs*(n.G*math.Cos(theta)+n.B*math.Sin(theta)) - n.G*v*v
	q = v*vs*(n.G*math.Sin(theta)-n.B*math.Cos(theta)) + n.B*v*v
	return
}

func (n *Network) Residual(sD *model.StateData, residOut []float64, mode simflags.SolverMode) error {
	theta, v := sD.State[0], sD.State[1]
	p, q := n.flows(theta, v)
	pload, qload := n.Pload, n.Qload
	if n.loadOffline {
		pload, qload = 0, 0
	}
	if n.PQLowVLimit > 0 && v < n.PQLowVLimit {
		scale := v / n.PQLowVLimit
		pload *= scale
		qload *= scale
	}
	residOut[0] = p + pload
	residOut[1] = q + qload
	return nil
}

func (n *Network) Derivative(sD *model.StateData, dOut []float64, mode simflags.SolverMode) error {
	for i := range dOut {
		dOut[i] = 0
	}
	return nil
}

func (n *Network) JacobianElements(sD *model.StateData, sink model.JacobianPutter, mode simflags.SolverMode, cj float64) error {
	theta, v := sD.State[0], sD.State[1]
	const h = 1e-6
	base := make([]float64, 2)
	n.Residual(sD, base, mode)

	for j, delta := range [][2]float64{{h, 0}, {0, h}} {
		perturbed := &model.StateData{T: sD.T, State: []float64{theta + delta[0], v + delta[1]}, DState: sD.DState}
		r := make([]float64, 2)
		n.Residual(perturbed, r, mode)
		for i := 0; i < 2; i++ {
			sink.Put(i, j, (r[i]-base[i])/h)
		}
	}
	return nil
}

func (n *Network) AlgebraicUpdate(sD *model.StateData, updateOut []float64, mode simflags.SolverMode, alpha float64) error {
	copy(updateOut, sD.State)
	return nil
}

func (n *Network) RootTest(sD *model.StateData, rootsOut []float64, mode simflags.SolverMode) error { return nil }
func (n *Network) RootCheck(sD *model.StateData, mode simflags.SolverMode, level model.CheckLevel) simflags.ChangeCode {
	return simflags.NoChange
}
func (n *Network) RootTrigger(t simtime.Time, rootsFound []int, mode simflags.SolverMode) {}

func (n *Network) Converge(t simtime.Time, state, deriv []float64, mode simflags.SolverMode, convMode model.ConvergeMode, tolerance float64) error {
	sD := &model.StateData{T: t, State: state, DState: deriv}
	resid := make([]float64, 2)
	n.Residual(sD, resid, mode)
	switch convMode {
	case model.VoltageOnly:
		state[1] -= resid[1] * 0.1
	case model.SingleIteration:
		state[0] -= resid[0] * 0.1
		state[1] -= resid[1] * 0.1
	default: // BlockIteration
		state[0] -= resid[0] * 0.2
		state[1] -= resid[1] * 0.2
	}
	return nil
}

func (n *Network) CheckNetwork(level model.NetworkCheckLevel) error { return nil }

func (n *Network) PowerFlowAdjust(flags simflags.FlagSet, level model.CheckLevel) simflags.ChangeCode {
	return simflags.NoChange
}

// DynamicCheckAndReset reconciles component-side structure after an
// event: a pending lowvdisconnect sweep trips the load off-line when the
// bus voltage sits below the threshold. Returns true when the model
// changed itself and the caller must refresh its view of the state.
func (n *Network) DynamicCheckAndReset(mode simflags.SolverMode, changeCode simflags.ChangeCode) bool {
	if changeCode < simflags.ObjectChange {
		return false
	}
	if n.LowVDisconnect > 0 && n.lastState[1] < n.LowVDisconnect && !n.loadOffline {
		n.loadOffline = true
		return true
	}
	return false
}

func (n *Network) GetVoltage(mode simflags.SolverMode) []float64 {
	return []float64{1.0, n.lastState[1]} // slack bus fixed at 1.0, load bus from the last SetState
}

// GetAngles reports bus angles (rad), satisfying
// contingency.AngleReporter.
func (n *Network) GetAngles(mode simflags.SolverMode) []float64 {
	return []float64{0, n.lastState[0]}
}

// GetLineFlows reports the line's apparent-power loading, satisfying
// contingency.FlowReporter.
func (n *Network) GetLineFlows(mode simflags.SolverMode) []float64 {
	p, q := n.flows(n.lastState[0], n.lastState[1])
	return []float64{math.Hypot(p, q)}
}

// LineRatings reports the rating-A limit per line (0 disables).
func (n *Network) LineRatings() []float64 {
	return []float64{n.RatingA}
}

func (n *Network) GetVoltageStates(mode simflags.SolverMode) []bool {
	return []bool{false, true} // state[0]=theta, state[1]=v
}

func (n *Network) SetAll(objType, param string, value float64) {
	switch {
	case param == "pqlowvlimit":
		n.PQLowVLimit = value
	case param == "lowvdisconnect":
		n.LowVDisconnect = value
	default:
		n.objType[objType+"."+param] = value
	}
}

func (n *Network) Reset(level model.ResetLevel) {
	n.resetCount++
}

// SlackRealPower returns the slack bus's current real-power injection,
// the negative of the power this two-bus network's single load bus
// draws onto the line (§4.5 step 2 "slkBase").
func (n *Network) SlackRealPower(mode simflags.SolverMode) float64 {
	p, _ := n.flows(n.lastState[0], n.lastState[1])
	return -p
}

// LoadBalance reports how far the slack bus's real power has drifted
// from slkBase (§4.5 step 4). This reference network has no secondary
// generator participation to redistribute onto — it exists only to
// exercise pf.Driver's outer loop, not to model real load-balancing — so
// it never moves state; it only reports the residual the driver's loop
// compares against PowerAdjustThreshold.
func (n *Network) LoadBalance(mode simflags.SolverMode, slkBase float64) float64 {
	return math.Abs(n.SlackRealPower(mode) - slkBase)
}

// ResetCount reports how many times Reset has been called, for tests
// asserting a recovery ladder actually invoked it.
func (n *Network) ResetCount() int { return n.resetCount }
