// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import "github.com/cpmech/gosl/la"

// JacobianPutter is the minimal sink surface jacobianElements writes
// through; JacobianSink (sparse, gosl/la-backed) and the solver
// package's dense equivalent both satisfy it.
type JacobianPutter interface {
	Put(row, col int, value float64)
}

// JacobianSink is the opaque triplet sink models populate by (row, col,
// value) during jacobianElements (§4.2). Backed directly by gosl/la's
// sparse triplet, exactly as ele.Element.AddToKb populates a *la.Triplet
// in the teacher (fem/s_implicit.go: "e.AddToKb(d.Kb, d.Sol, it == 0)").
type JacobianSink struct {
	Triplet *la.Triplet
}

// Put adds one (row, col, value) entry, following la.Triplet.Put's
// accumulate-on-duplicate semantics.
func (s *JacobianSink) Put(row, col int, value float64) {
	s.Triplet.Put(row, col, value)
}

// NewJacobianSink allocates a sink over a fresh Triplet sized for n x n
// with maxNnz expected nonzeros.
func NewJacobianSink(n, maxNnz int) *JacobianSink {
	t := new(la.Triplet)
	t.Init(n, n, maxNnz)
	return &JacobianSink{Triplet: t}
}

// Start resets the triplet for a new assembly pass (la.Triplet.Start).
func (s *JacobianSink) Start() { s.Triplet.Start() }
