// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simflags

// FlagBit names the positions enumerated in §3 "Flag set".
type FlagBit int

const (
	ResetVoltageFlag FlagBit = iota
	LowBusVoltage
	StateChangeFlag
	ObjectChangeFlag
	RootChangeFlag
	JacobianCountChangeFlag
	ConnectivityChangeFlag
	SlackBusChange
	HasRoots
	HasAlgRoots
	PrevSetallPqvlimit
	PowerflowSaved
	InvalidStateFlag
	DisableFlagUpdates
	VoltageConstraintsFlag
	ConstraintsDisabled
	RootsDisabled
	numFlagBits
)

// RESET_CHANGE_FLAG_MASK (§3): the set of opFlags bits squashed after every
// successful step, to clear transient change markers while preserving
// policy flags (controlFlags are a separate bitset entirely and are never
// touched by the mask).
var resetChangeMask = map[FlagBit]bool{
	StateChangeFlag:         true,
	ObjectChangeFlag:        true,
	RootChangeFlag:          true,
	JacobianCountChangeFlag: true,
	ConnectivityChangeFlag:  true,
	SlackBusChange:          true,
	InvalidStateFlag:        true,
}

// FlagSet is a small fixed bitset, used for both opFlags (numerics) and
// controlFlags (user policy) — two independently owned FlagSet values per
// §3.
type FlagSet struct {
	bits uint64
}

// Set sets the given bit.
func (f *FlagSet) Set(b FlagBit) { f.bits |= 1 << uint(b) }

// Reset clears the given bit.
func (f *FlagSet) Reset(b FlagBit) { f.bits &^= 1 << uint(b) }

// Has reports whether the given bit is set.
func (f FlagSet) Has(b FlagBit) bool { return f.bits&(1<<uint(b)) != 0 }

// Assign sets or clears the bit depending on v.
func (f *FlagSet) Assign(b FlagBit, v bool) {
	if v {
		f.Set(b)
	} else {
		f.Reset(b)
	}
}

// ApplyResetChangeMask clears every transient opFlags bit named by
// RESET_CHANGE_FLAG_MASK (§3), leaving policy-only bits untouched. Call
// this on opFlags after every successful step; never call it on
// controlFlags.
func (f *FlagSet) ApplyResetChangeMask() {
	for b, in := range resetChangeMask {
		if in {
			f.Reset(b)
		}
	}
}

// AnySet reports whether any of the given bits is set.
func (f FlagSet) AnySet(bits ...FlagBit) bool {
	for _, b := range bits {
		if f.Has(b) {
			return true
		}
	}
	return false
}
