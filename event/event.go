// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package event implements the EventQueue (§4.3, C3): time-stamped and
// condition-triggered adapters executed in two phases per trigger.
// Grounded on the teacher's inp.Simulation event handling being entirely
// static (boundary conditions fixed at parse time, fem/bcs_dist.go,
// fem/bcs_facet.go), generalized here into GridDyn's actual runtime
// event model (eventQueue.cpp / eventAdapter.h), since the teacher has
// no runtime event scheduler of its own to adapt.
package event

import (
	"sort"

	"github.com/cpmech/gosl/fun"

	"github.com/LLNL/GridDyn-sub006/simflags"
	"github.com/LLNL/GridDyn-sub006/simtime"
)

// MatchMode controls how UpdateObject resolves an event's stored target
// reference against a live registry (registry.ComponentRegistry), used
// by contingency cloning to rebind events onto cloned components.
type MatchMode int

const (
	MatchByIdentifier MatchMode = iota
	MatchByIndex
)

// Adapter is one schedulable event: either time-triggered (Time set) or
// condition-triggered (Condition set), executed in two phases —
// ExecuteA runs first for every event due at the trigger time,
// ExecuteB runs second for all of them, so that A-phase side effects
// from one event are visible to every other event's B-phase in the same
// batch (mirrors GridDyn's two-phase eventAdapter::trigger contract).
type Adapter struct {
	Name       string
	Time       simtime.Time // trigger time; not consulted by Trigger when Condition is set
	Period     simtime.Time // if nonzero, event reschedules itself every Period after firing
	PeriodFunc fun.Func      // if non-nil, takes precedence over Period and is re-evaluated at t on each firing
	Condition  func(t simtime.Time) bool
	ExecuteA   func(t simtime.Time) simflags.ChangeCode
	ExecuteB   func(t simtime.Time) simflags.ChangeCode
	Target     string // stable identifier bound by a registry.ComponentRegistry
	armed      bool
	fired      bool
}

// Schedule builds a periodic Adapter whose inter-fire period is produced
// by a github.com/cpmech/gosl/fun.Func of time instead of a fixed
// simtime.Time step, the way GridDyn's own event scheduling can drive a
// recorder or a staged load ramp off an arbitrary time function rather
// than a constant. periodFcn is evaluated (in seconds) at each firing
// time to obtain the next period; a periodFcn that is a fun.Cte recovers
// a plain fixed-period adapter.
func Schedule(name string, start simtime.Time, periodFcn fun.Func, executeB func(t simtime.Time) simflags.ChangeCode) *Adapter {
	return &Adapter{
		Name:       name,
		Time:       start,
		PeriodFunc: periodFcn,
		ExecuteB:   executeB,
	}
}

// Trigger reports whether the adapter is due at time t: either its
// scheduled Time has arrived, or its Condition evaluates true.
func (a *Adapter) Trigger(t simtime.Time) bool {
	if a.Condition != nil {
		return a.Condition(t)
	}
	return !a.Time.Greater(t)
}

// UpdateObject rebinds the adapter's Target after a contingency clone or
// registry rename, per the chosen match mode.
func (a *Adapter) UpdateObject(newTarget string, mode MatchMode) {
	a.Target = newTarget
}

// Queue is a time-ordered set of Adapters. Not safe for concurrent
// mutation; the drivers (pf, dyn) own a Queue exclusively during a run.
type Queue struct {
	adapters []*Adapter
}

// NewQueue returns an empty event queue.
func NewQueue() *Queue { return &Queue{} }

// Add inserts an adapter, keeping the queue sorted by Time (condition-
// triggered adapters, with zero Time, sort first so they're always
// considered).
func (q *Queue) Add(a *Adapter) {
	q.adapters = append(q.adapters, a)
	sort.SliceStable(q.adapters, func(i, j int) bool {
		return q.adapters[i].Time.Less(q.adapters[j].Time)
	})
}

// Remove drops the named adapter from the queue, if present.
func (q *Queue) Remove(name string) {
	out := q.adapters[:0]
	for _, a := range q.adapters {
		if a.Name != name {
			out = append(out, a)
		}
	}
	q.adapters = out
}

// NextTime returns the earliest time at which any queued, not-yet-fired
// time adapter is due, and whether any such adapter exists. Condition-
// triggered adapters are excluded since they have no fixed schedule.
func (q *Queue) NextTime() (simtime.Time, bool) {
	best := simtime.Max()
	found := false
	for _, a := range q.adapters {
		if a.Condition != nil || a.fired {
			continue
		}
		if a.Time.Less(best) {
			best = a.Time
			found = true
		}
	}
	return best, found
}

// NullEventTime rounds t up to the next multiple of period, GridDyn's
// convention for aligning periodic recorder/event checks to a grid
// (period == 0 returns t unchanged).
func NullEventTime(t, period simtime.Time) simtime.Time {
	if period <= 0 {
		return t
	}
	n := int64(t) / int64(period)
	if int64(t)%int64(period) != 0 {
		n++
	}
	return simtime.Time(n * int64(period))
}

// ExecuteEvents runs every adapter due at time t in two phases (all
// ExecuteA calls, then all ExecuteB calls) and returns the maximum
// ChangeCode reported by any of them, per simflags.ChangeCode's ordered
// severity. Adapters with a nonzero Period reschedule themselves by
// advancing Time by Period; others are marked fired and skipped on
// subsequent calls.
func (q *Queue) ExecuteEvents(t simtime.Time) simflags.ChangeCode {
	due := make([]*Adapter, 0, len(q.adapters))
	for _, a := range q.adapters {
		if !a.fired && a.Trigger(t) {
			due = append(due, a)
		}
	}
	code := simflags.NoChange
	for _, a := range due {
		if a.ExecuteA != nil {
			code = simflags.Max(code, a.ExecuteA(t))
		}
	}
	for _, a := range due {
		if a.ExecuteB != nil {
			code = simflags.Max(code, a.ExecuteB(t))
		}
		if a.PeriodFunc != nil {
			a.Time = a.Time.Add(simtime.FromSeconds(a.PeriodFunc.F(t.ToSeconds(), nil)))
		} else if a.Period > 0 {
			a.Time = a.Time.Add(a.Period)
		} else {
			a.fired = true
		}
	}
	return code
}

// Len reports the number of adapters currently queued (fired or not).
func (q *Queue) Len() int { return len(q.adapters) }
