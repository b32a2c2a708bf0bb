// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package simflags holds the small, closed set of value types shared by
// every driver package: Index, SolverMode, ProcessState, ChangeCode, the
// opFlags/controlFlags bitsets and Violation (the §6.5 configuration
// Options live in package config). Kept deliberately tiny and dependency-free (plain enums and a
// bitset), the way the teacher's fem/keycodes.go holds a handful of named
// dof-key constants rather than a generated enum package.
package simflags

// Index is the unsigned counting/indexing type used for state, root and
// Jacobian offsets (§3 "Indexing").
type Index uint64

// Sentinels for "no location" and "invalid location".
const (
	NullLocation    Index = ^Index(0)
	InvalidLocation Index = ^Index(0) - 1
)
