// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package simtime implements the fixed-point simulation clock used by the
// dynamic and power-flow driver. A Time carries a base unit of 1e-9 s
// (nanoseconds) packed into a signed 64-bit tick count, so that arithmetic
// performed over long-running dynamic runs stays exact instead of
// accumulating float64 rounding the way a plain "t float64" seconds scalar
// would.
package simtime

import "math"

// tickPerSecond is the resolution of one Time unit: 1e-9 s.
const tickPerSecond = 1e9

// Time is a signed count of 1e-9 s ticks.
type Time int64

// Zero, Max and Min are the distinguished sentinel values used throughout
// the driver: Max/Min stand in for "unset" / "in the past, before time
// began".
func Zero() Time { return Time(0) }
func Max() Time  { return Time(math.MaxInt64) }
func Min() Time  { return Time(math.MinInt64) }

// ProbeStepTime is the fixed IC-probe step used by calcIC across a run
// (§3 "Lifecycle"): a small positive duration, here 1 microsecond.
const ProbeStepTime Time = 1000 // 1e-6 s in 1e-9 s ticks

// FromSeconds converts a float64 seconds value to a Time, rounding to the
// nearest tick.
func FromSeconds(s float64) Time {
	return Time(math.Round(s * tickPerSecond))
}

// ToSeconds converts a Time to a float64 seconds value. This conversion is
// explicit (never implicit) per §9 "Time type".
func (t Time) ToSeconds() float64 {
	return float64(t) / tickPerSecond
}

// Add, Sub implement Time arithmetic directly on the tick count: lossless
// within the tick resolution.
func (t Time) Add(o Time) Time { return t + o }
func (t Time) Sub(o Time) Time { return t - o }

// Scale multiplies a Time by a dimensionless float64 factor (e.g. halving a
// step during divergence control).
func (t Time) Scale(factor float64) Time {
	return Time(math.Round(float64(t) * factor))
}

// Div divides two Time values, returning a dimensionless ratio.
func (t Time) Div(o Time) float64 {
	return float64(t) / float64(o)
}

// Less, LessEq, Greater, GreaterEq, Equal are explicit comparisons so that
// callers never compare Time values with raw relational operators against
// a float64 by mistake.
func (t Time) Less(o Time) bool      { return t < o }
func (t Time) LessEq(o Time) bool    { return t <= o }
func (t Time) Greater(o Time) bool   { return t > o }
func (t Time) GreaterEq(o Time) bool { return t >= o }
func (t Time) Equal(o Time) bool     { return t == o }

// IsMax, IsMin report whether t is one of the "unset" sentinels.
func (t Time) IsMax() bool { return t == Max() }
func (t Time) IsMin() bool { return t == Min() }

// WithinTol reports whether t and o differ by no more than tol.
func (t Time) WithinTol(o, tol Time) bool {
	d := t - o
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// DefaultTimeTol is the stagnation-detection tolerance used by the dynamic
// driver's progress guards (§5 "Cancellation and timeouts").
const DefaultTimeTol Time = 1 // one tick: the numerics cannot resolve finer
