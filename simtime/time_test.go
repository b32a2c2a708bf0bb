// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simtime

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

// Test_time01 checks the round-trip and arithmetic invariants of scenario
// S6: t1 = 1.5e-6 s, t2 = 1.0 s.
func Test_time01(tst *testing.T) {

	chk.PrintTitle("time01. Time arithmetic (scenario S6)")

	t1 := FromSeconds(1.5e-6)
	t2 := FromSeconds(1.0)

	sum := t1.Add(t2)
	chk.Float64(tst, "t1+t2", 1e-9, sum.ToSeconds(), 1.0000015)

	ratio := t2.Div(t1)
	chk.AnaNum(tst, "t2/t1", 1.0, ratio, 666666.6666666666, chk.Verbose)

	diff := t2.Sub(t1)
	chk.Float64(tst, "t2-t1", 1e-9, diff.ToSeconds(), 0.9999985)
}

func Test_time02(tst *testing.T) {

	chk.PrintTitle("time02. round-trip conversion")

	for _, s := range []float64{0, 1, 0.5, 123.456789, 1e-6, -3.25} {
		x := FromSeconds(s)
		y := FromSeconds(x.ToSeconds())
		if x != y {
			tst.Fatalf("round-trip failed for s=%v: x=%v y=%v", s, x, y)
		}
	}
}

func Test_time03(tst *testing.T) {

	chk.PrintTitle("time03. sentinels")

	if !Max().IsMax() {
		tst.Fatal("Max() must report IsMax()")
	}
	if !Min().IsMin() {
		tst.Fatal("Min() must report IsMin()")
	}
	if Zero() != 0 {
		tst.Fatal("Zero() must be 0")
	}
}
