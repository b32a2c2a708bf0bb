// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry implements a stable-identifier component lookup
// (§9 "Cyclic references") so events and contingencies can bind to a
// component by name instead of holding a pointer that a contingency
// clone would otherwise invalidate. Grounded on the teacher's
// domain-wide object lookup in fem/domain.go (the Domain keeps every
// ele.Element reachable by a stable numeric Tag rather than letting
// element code hold raw pointers to each other) generalized to
// string identifiers since the spec's events/contingencies name
// components by string, not integer tag.
package registry

import "github.com/cpmech/gosl/chk"

// Registry maps stable string identifiers to opaque component handles.
// The concrete component type is left as interface{} deliberately: the
// registry only needs to support lookup and rebinding, never to act on
// the component itself.
type Registry struct {
	byName map[string]interface{}
	order  []string // insertion order, preserved for deterministic cloning
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]interface{})}
}

// Register binds name to component, overwriting any prior binding.
func (r *Registry) Register(name string, component interface{}) {
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = component
}

// Unregister removes name's binding, if any.
func (r *Registry) Unregister(name string) {
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the component bound to name and whether it was found.
func (r *Registry) Lookup(name string) (interface{}, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// MustLookup panics (via chk.Panic) if name is unbound, for call sites
// that have already validated the name exists — mirroring the teacher's
// chk.Panic use for invariant violations rather than recoverable errors.
func (r *Registry) MustLookup(name string) interface{} {
	c, ok := r.byName[name]
	if !ok {
		chk.Panic("registry: no component bound to identifier %q", name)
	}
	return c
}

// Names returns every registered identifier in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Clone returns an independent Registry bound to the same identifiers,
// with each component replaced by the result of applying remap. This is
// the hook contingency.Contingency.Clone uses to produce a registry over
// freshly cloned components instead of sharing the original's component
// pointers (§9's resolved "Clone must not alias the original" decision).
func (r *Registry) Clone(remap func(name string, component interface{}) interface{}) *Registry {
	out := New()
	for _, name := range r.order {
		out.Register(name, remap(name, r.byName[name]))
	}
	return out
}

// Len reports the number of registered identifiers.
func (r *Registry) Len() int { return len(r.byName) }
