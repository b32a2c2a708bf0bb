// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/mpi"

	"github.com/LLNL/GridDyn-sub006/config"
	"github.com/LLNL/GridDyn-sub006/event"
	"github.com/LLNL/GridDyn-sub006/logx"
	"github.com/LLNL/GridDyn-sub006/model/refnet"
	"github.com/LLNL/GridDyn-sub006/offset"
	"github.com/LLNL/GridDyn-sub006/pf"
	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
	"github.com/LLNL/GridDyn-sub006/solver"
)

func main() {

	// catch errors, same mpi.Rank()==0-gated panic report the teacher's
	// own entrypoint used
	defer func() {
		if err := recover(); err != nil {
			if mpi.Rank() == 0 {
				chk.Verbose = true
				for i := 8; i > 3; i-- {
					chk.CallerInfo(i)
				}
				io.PfRed("ERROR: %v\n", err)
			}
		}
		mpi.Stop(false)
	}()
	mpi.Start(false)

	if mpi.Rank() == 0 {
		io.PfWhite("\nGridDyn-sub006 -- power-system dynamics and power-flow core\n\n")
	}

	// printLevel (§6.5) maps onto logx.Level the way fem's -verbose flag
	// used to map onto a single bool.
	printLevel := flag.Int("printlevel", int(logx.Summary), "verbosity: 0=none .. 6=trace")
	dense := flag.Bool("dense", false, "use the dense_solver option instead of the sparse Newton backend")
	flag.Parse()

	log := logx.New(logx.Level(*printLevel))

	// a real network input parser is out of scope (§1 "component models");
	// this entrypoint exercises the full driver stack against the
	// reference two-bus network it ships for its own tests.
	net := refnet.New()
	mode := simflags.NewMode(simflags.Powerflow, 0)

	var backend solver.SolverBackend
	if *dense {
		backend = solver.NewDenseBackend(mode)
	} else {
		backend = solver.NewNewtonBackend(mode)
	}

	cfg := config.Default()
	driver := pf.NewDriver(net, backend, event.NewQueue(), offset.New(), cfg, log)

	res, err := driver.Run(simtime.Zero(), mode)
	if err != nil {
		chk.Panic("power-flow run failed: %v", err)
	}

	if res.Converged {
		log.Success("> Success: converged in %d outer passes / %d Newton iterations\n", res.OuterPasses, res.Iterations)
	} else {
		log.Failure("> Failed: did not converge (state=%v)\n", res.State)
	}

	v := net.GetVoltage(mode)
	log.Summaryf("bus voltages: slack=%.6f load=%.6f\n", v[0], v[1])
}
