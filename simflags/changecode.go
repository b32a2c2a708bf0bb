// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simflags

// ChangeCode is an ordered enum (§4.2): the driver branches on
// inequalities, never equality, so the ordering below is load-bearing.
type ChangeCode int

const (
	NoChange ChangeCode = iota
	NonStateChange
	ParameterChange
	ObjectChange
	JacobianChange
	StateCountChange
)

func (c ChangeCode) String() string {
	switch c {
	case NoChange:
		return "no_change"
	case NonStateChange:
		return "non_state_change"
	case ParameterChange:
		return "parameter_change"
	case ObjectChange:
		return "object_change"
	case JacobianChange:
		return "jacobian_change"
	case StateCountChange:
		return "state_count_change"
	default:
		return "unknown"
	}
}

// Max returns the larger (later in the ordering) of two ChangeCodes, used
// by EventQueue.ExecuteEvents to fold A-phase return codes (§4.3).
func Max(a, b ChangeCode) ChangeCode {
	if b > a {
		return b
	}
	return a
}
