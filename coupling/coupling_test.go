// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coupling

import (
	"errors"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/simtime"
)

func Test_coupling01(tst *testing.T) {

	chk.PrintTitle("coupling01. Step sends a voltage vector and blocks on the matched current")

	c := NewCoordinator()
	id := c.RegisterTask(func(v VoltageMessage) (CurrentMessage, error) {
		var resp CurrentMessage
		for i := 0; i < v.NumThreePhase; i++ {
			resp.Currents[i].Real[0] = v.Voltages[i].Real[0] / 10.0
		}
		resp.NumThreePhase = v.NumThreePhase
		return resp, nil
	}, nil)

	chk.IntAssert(c.TaskCount(), 1)

	var vmsg VoltageMessage
	vmsg.NumThreePhase = 1
	vmsg.Voltages[0].Real[0] = 2.0
	vmsg.DeltaTime = simtime.FromSeconds(1e-3)

	currents, errs := c.Step(map[TaskID]VoltageMessage{id: vmsg})
	if len(errs) != 0 {
		tst.Fatalf("unexpected per-task errors: %v", errs)
	}
	resp, ok := currents[id]
	if !ok {
		tst.Fatal("expected a matched current response for the registered task")
	}
	chk.Float64(tst, "current response", 1e-12, resp.Currents[0].Real[0], 0.2)
}

func Test_coupling02(tst *testing.T) {

	chk.PrintTitle("coupling02. a failing task reports an error without blocking the others")

	c := NewCoordinator()
	failID := c.RegisterTask(func(v VoltageMessage) (CurrentMessage, error) {
		return CurrentMessage{}, errors.New("distribution solve diverged")
	}, nil)
	okID := c.RegisterTask(func(v VoltageMessage) (CurrentMessage, error) {
		return CurrentMessage{NumThreePhase: 1}, nil
	}, nil)

	voltages := map[TaskID]VoltageMessage{
		failID: {NumThreePhase: 1},
		okID:   {NumThreePhase: 1},
	}
	currents, errs := c.Step(voltages)

	if _, ok := errs[failID]; !ok {
		tst.Fatal("expected an error recorded for the failing task")
	}
	if _, ok := currents[failID]; ok {
		tst.Fatal("a failing task must not produce a current response")
	}
	if _, ok := currents[okID]; !ok {
		tst.Fatal("the healthy task must still produce a current response")
	}
}

func Test_coupling03(tst *testing.T) {

	chk.PrintTitle("coupling03. StopAll runs every task's teardown hook and clears the registry")

	c := NewCoordinator()
	stopped := map[TaskID]bool{}
	for i := 0; i < 3; i++ {
		id := c.RegisterTask(func(v VoltageMessage) (CurrentMessage, error) {
			return CurrentMessage{}, nil
		}, nil)
		id2 := id
		c.tasks[id2].stop = func() { stopped[id2] = true }
	}

	if c.TaskCount() != 3 {
		tst.Fatalf("expected 3 registered tasks, got %d", c.TaskCount())
	}
	c.StopAll()
	if c.TaskCount() != 0 {
		tst.Fatal("StopAll must clear the registry")
	}
	if len(stopped) != 3 {
		tst.Fatalf("expected all 3 stop hooks to run, got %d", len(stopped))
	}
}

func Test_coupling04(tst *testing.T) {

	chk.PrintTitle("coupling04. AggregateLoad sums per-task load with MPI inactive")

	c := NewCoordinator()
	total := c.AggregateLoad(map[TaskID]float64{0: 1.5, 1: 2.5, 2: 3.0})
	chk.Float64(tst, "aggregate load", 1e-12, total, 7.0)
}
