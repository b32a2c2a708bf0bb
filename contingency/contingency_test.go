// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contingency

import (
	"strings"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/LLNL/GridDyn-sub006/config"
	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/offset"
	"github.com/LLNL/GridDyn-sub006/registry"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/solver"
	"github.com/LLNL/GridDyn-sub006/workqueue"
)

func testSim(net *refnet.Network, mode simflags.SolverMode) Simulation {
	reg := registry.New()
	reg.Register("net", net)
	return Simulation{
		Model:          net,
		Registry:       reg,
		Offsets:        offset.New(),
		BackendFactory: func() solver.SolverBackend { return solver.NewNewtonBackend(mode) },
		Cfg:            config.Default(),
		Mode:           mode,
	}
}

func Test_contingency01(tst *testing.T) {

	chk.PrintTitle("contingency01. Clone produces a fully independent copy")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	sim := testSim(net, mode)
	c := New(sim, "line-5-outage", nil)

	clone := c.Clone()
	if clone.ID == c.ID {
		tst.Fatal("a clone must carry its own stable ID, not the parent's")
	}
	clonedNet, ok := clone.sim.Model.(*refnet.Network)
	if !ok {
		tst.Fatal("clone's Model must still satisfy ModelCloner/*refnet.Network")
	}
	if clonedNet == net {
		tst.Fatal("Clone must not alias the parent's model instance")
	}

	clonedNet.SetAll("load", "pqlowvlimit", 0.5)
	if net.PQLowVLimit == 0.5 {
		tst.Fatal("mutating the clone must never affect the parent model")
	}
}

func Test_contingency02(tst *testing.T) {

	chk.PrintTitle("contingency02. Execute runs a power flow on the clone and fulfills the future")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	sim := testSim(net, mode)
	c := New(sim, "no-op outage", nil)

	if c.IsFinished() {
		tst.Fatal("a fresh contingency must not report finished before Execute")
	}
	c.Execute()
	if !c.IsFinished() {
		tst.Fatal("Execute must mark the contingency completed")
	}
	n := c.Wait()
	if n != len(c.Result.Violations) {
		tst.Fatalf("Wait() must return the final violation count, got %d want %d", n, len(c.Result.Violations))
	}
	if len(c.Result.BusVoltages) == 0 {
		tst.Fatal("a converged contingency must record bus voltages")
	}
}

func Test_contingency03(tst *testing.T) {

	chk.PrintTitle("contingency03. buildContingencyList(N-1) fan-out through a 4-worker WorkQueue completes independently")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	sim := testSim(net, mode)

	elements := []string{"line1", "line2", "line3", "line4", "line5"}
	contingencies := BuildContingencyList(sim, NMinus1, elements)
	if len(contingencies) != 5 {
		tst.Fatalf("buildContingencyList(N-1) over %d elements must yield exactly %d contingencies, got %d", len(elements), len(elements), len(contingencies))
	}

	q := workqueue.New(4, 0)
	for _, c := range contingencies {
		q.AddWorkBlock(c, workqueue.High)
	}
	for _, c := range contingencies {
		c.Wait()
	}
	q.DestroyWorkerQueue()

	for _, c := range contingencies {
		if !c.IsFinished() {
			tst.Fatalf("contingency %s did not finish", c.Name)
		}
		if len(c.Result.BusVoltages) == 0 {
			tst.Fatalf("contingency %s recorded no bus voltages", c.Name)
		}
	}
	if sim.Registry.Len() != 1 {
		tst.Fatal("the parent simulation's registry must be untouched by any clone's execution")
	}
}

func Test_contingency04(tst *testing.T) {

	chk.PrintTitle("contingency04. buildContingencyList stage composition for N-1-1 and N-2")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	sim := testSim(net, mode)

	elements := []string{"line1", "line2", "line3"}

	n11 := BuildContingencyList(sim, NMinus1Minus1, elements)
	if len(n11) != 6 { // 3*2 ordered pairs, i != j
		tst.Fatalf("N-1-1 over 3 elements must yield 6 staged contingencies, got %d", len(n11))
	}
	for _, c := range n11 {
		if len(c.EventList) != 2 {
			tst.Fatalf("N-1-1 contingency %s must carry exactly two stages, got %d", c.Name, len(c.EventList))
		}
	}

	n2 := BuildContingencyList(sim, NMinus2, elements)
	if len(n2) != 3 { // C(3,2)
		tst.Fatalf("N-2 over 3 elements must yield 3 contingencies, got %d", len(n2))
	}
	for _, c := range n2 {
		if len(c.EventList) != 1 || len(c.EventList[0]) != 2 {
			tst.Fatalf("N-2 contingency %s must trip both elements within a single stage", c.Name)
		}
	}

	if out := BuildContingencyList(sim, Custom, elements); out != nil {
		tst.Fatal("Custom must leave list construction to the caller")
	}
}

func Test_contingency05(tst *testing.T) {

	chk.PrintTitle("contingency05. ContingencyRunner submits through a WorkQueue and persists through a ResultSink")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	sim := testSim(net, mode)

	list := BuildContingencyList(sim, NMinus1, []string{"line1", "line2"})
	q := workqueue.New(2, 0)
	sink := NewMemorySink()
	runner := NewContingencyRunner(q, sink)

	runner.RunContingencyAnalysis(list, "case1")
	q.DestroyWorkerQueue()

	if len(sink.ByPrefix["case1"]) != len(list) {
		tst.Fatalf("sink must record one entry per contingency under the given prefix, got %d want %d", len(sink.ByPrefix["case1"]), len(list))
	}
	for _, c := range sink.ByPrefix["case1"] {
		if !c.IsFinished() {
			tst.Fatalf("contingency %s reached the sink before completing", c.Name)
		}
	}
}

func Test_contingency06(tst *testing.T) {

	chk.PrintTitle("contingency06. rating-A flow violations and the CSV row format")

	mode := simflags.NewMode(simflags.Powerflow, 0)
	net := refnet.New()
	net.RatingA = 0.5 // converged line loading (~0.85 pu) exceeds rating A
	sim := testSim(net, mode)

	list := BuildContingencyList(sim, NMinus1, []string{"line1"})
	list[0].Execute()

	found := false
	for _, v := range list[0].Result.Violations {
		if v.Code == simflags.MVAExceedRatingA {
			found = true
		}
	}
	if !found {
		tst.Fatal("the overloaded line must record an MVA_EXCEED_RATING_A violation")
	}
	if len(list[0].Result.BusAngles) == 0 || len(list[0].Result.LineFlows) == 0 {
		tst.Fatal("a converged contingency must collect angles and line flows")
	}

	row := list[0].CSVRow(false)
	if !strings.Contains(row, list[0].ID) || !strings.Contains(row, "MVA_EXCEED_RATING_A") {
		tst.Fatalf("CSV row missing id or violation block: %s", row)
	}
	compact := list[0].CSVRow(true)
	if len(compact) >= len(row) {
		tst.Fatal("the compact row must omit the voltage/angle/flow block")
	}

	header := CSVHeader([]string{"slack", "load"}, []string{"line1"}, false)
	for _, want := range []string{"busV_slack", "busA_load", "lineFlow_line1", "violations"} {
		if !strings.Contains(header, want) {
			tst.Fatalf("CSV header missing column %q: %s", want, header)
		}
	}
}
