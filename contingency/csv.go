// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contingency

import (
	"strings"

	"github.com/cpmech/gosl/io"

	"github.com/LLNL/GridDyn-sub006/simflags"
)

// AngleReporter and FlowReporter are optional model capabilities Execute
// probes for when collecting a converged contingency's result vectors
// and flow-limit violations; the base SimulationModel contract (§4.2)
// carries neither, since bus angles and line flows are component-library
// quantities.
type AngleReporter interface {
	GetAngles(mode simflags.SolverMode) []float64
}

// FlowReporter reports per-line apparent-power flows and the matching
// rating-A limits (0 disables the check for that line).
type FlowReporter interface {
	GetLineFlows(mode simflags.SolverMode) []float64
	LineRatings() []float64
}

// CSVHeader builds the violation-output header row from bus and link
// names (§6.4, "header generated from bus and link names at first
// write"). compact omits the voltage/angle/flow block.
func CSVHeader(busNames, linkNames []string, compact bool) string {
	cols := []string{"id", "name", "events"}
	if !compact {
		for _, b := range busNames {
			cols = append(cols, "busV_"+b)
		}
		for _, b := range busNames {
			cols = append(cols, "busA_"+b)
		}
		for _, l := range linkNames {
			cols = append(cols, "lineFlow_"+l)
		}
	}
	cols = append(cols, "violations")
	return strings.Join(cols, ", ")
}

// CSVRow formats one contingency's result row (§6.4):
//
//	id, name, "event1;event2;…", busV…, busA…, lineFlow…, "violation1;…"
//
// compact omits the voltage/angle/flow block, same as CSVHeader.
func (c *Contingency) CSVRow(compact bool) string {
	var events []string
	for _, stage := range c.EventList {
		for _, a := range stage {
			events = append(events, a.Name)
		}
	}
	fields := []string{c.ID, c.Name, `"` + strings.Join(events, ";") + `"`}
	if !compact {
		for _, v := range c.Result.BusVoltages {
			fields = append(fields, io.Sf("%.6f", v))
		}
		for _, a := range c.Result.BusAngles {
			fields = append(fields, io.Sf("%.6f", a))
		}
		for _, f := range c.Result.LineFlows {
			fields = append(fields, io.Sf("%.6f", f))
		}
	}
	var viols []string
	for _, v := range c.Result.Violations {
		viols = append(viols, io.Sf("%s:%s", v.Code.String(), v.ObjectName))
	}
	fields = append(fields, `"`+strings.Join(viols, ";")+`"`)
	return strings.Join(fields, ", ")
}
