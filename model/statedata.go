// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model defines the polymorphic SimulationModel contract (§4.2)
// consumed by the drivers and implemented by the (out-of-scope) component
// library, plus the StateData record shared by every callback (§6.1). The
// shape follows the teacher's ele.Element / ele.Solution split: Element is
// the capability interface the domain owns, Solution is the plain record
// passed by reference into every AddToRhs/AddToKb/Update call.
package model

import "github.com/LLNL/GridDyn-sub006/simtime"

// StateData is the record passed by reference to every model callback
// (§6.1): {t, state, dState, seqId, cj}. Grounded on ele.Solution's
// {T, Y, Dydt, D2ydt2} shape, generalized to the driver's raw
// backend-owned arrays instead of per-dof named fields.
type StateData struct {
	T      simtime.Time // current time
	State  []float64    // backend-owned state array (read-only to callbacks)
	DState []float64    // backend-owned derivative array (nil in algebraic-only modes)
	SeqID  int64        // monotonically increasing sequence id, bumped each time State/DState are swapped for a new backend buffer
	Cj     float64      // DAE scalar multiplier for dState-dependent Jacobian entries
}
