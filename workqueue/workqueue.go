// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workqueue implements WorkQueue (§4.9, C9): a priority-tiered
// (high/medium/low) worker pool with a fairness ratio between medium and
// low priority work, used by contingency.ContingencyRunner and
// optionally by diagnostics. Grounded on
// other_examples/flyingrobots-go-redis-work-queue's policy-simulator.go
// for the "mutex-guarded shared state, goroutine workers drained by a
// condition variable" shape (the teacher itself has no runtime worker
// pool — fem's MPI-based parallelism in fem/fem.go partitions work at
// process start, it never dispatches work blocks at runtime).
package workqueue

import (
	"sync"

	"github.com/google/uuid"
)

// Priority selects one of the three queues (§4.9).
type Priority int

const (
	High Priority = iota
	Medium
	Low
)

// Block is a unit of work: Execute runs it, IsFinished reports whether
// it already ran.
type Block interface {
	Execute()
	IsFinished() bool
}

// FuncBlock is a generic adapter wrapping any callable, exposing a
// future for its return value and supporting re-arming via Reset /
// UpdateWorkFunction (§4.9 "A generic adapter wraps any callable").
type FuncBlock struct {
	mu       sync.Mutex
	fn       func() (interface{}, error)
	done     chan struct{}
	result   interface{}
	err      error
	finished bool
	id       string
}

// NewFuncBlock wraps fn as a Block. id is stable across Reset calls.
func NewFuncBlock(fn func() (interface{}, error)) *FuncBlock {
	return &FuncBlock{fn: fn, done: make(chan struct{}), id: uuid.New().String()}
}

// ID returns the block's stable identifier.
func (b *FuncBlock) ID() string { return b.id }

// Execute runs fn and signals Wait. Safe to call exactly once per arming
// (use Reset to re-arm).
func (b *FuncBlock) Execute() {
	result, err := b.fn()
	b.mu.Lock()
	b.result, b.err, b.finished = result, err, true
	b.mu.Unlock()
	close(b.done)
}

// IsFinished reports whether Execute has completed.
func (b *FuncBlock) IsFinished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

// Wait blocks until Execute completes and returns its result.
func (b *FuncBlock) Wait() (interface{}, error) {
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result, b.err
}

// Reset re-arms the block for another Execute call with a fresh future.
func (b *FuncBlock) Reset() {
	b.mu.Lock()
	b.finished = false
	b.result, b.err = nil, nil
	b.done = make(chan struct{})
	b.mu.Unlock()
}

// UpdateWorkFunction replaces the callable a reset block will run next.
func (b *FuncBlock) UpdateWorkFunction(fn func() (interface{}, error)) {
	b.mu.Lock()
	b.fn = fn
	b.mu.Unlock()
}

// Queue is the process-wide priority-tiered worker pool. Construct with
// New; there is no package-level singleton enforced here (the caller —
// typically a single contingency.ContingencyRunner per process — owns
// the one instance it needs), but Queue's own state is safe for the
// construct-once-under-first-use pattern §4.9 calls for.
type Queue struct {
	mu           sync.Mutex
	cond         *sync.Cond
	high         []Block
	medium       []Block
	low          []Block
	mediumServed int
	priorityRatio int
	workers      int
	wg           sync.WaitGroup
	closed       bool
}

// New returns a Queue with the given worker count (0 means every
// AddWorkBlock executes inline/synchronously) and priority ratio
// (medium items served per low item; 0 or negative defaults to 4).
func New(workers, priorityRatio int) *Queue {
	if priorityRatio <= 0 {
		priorityRatio = 4
	}
	q := &Queue{workers: workers, priorityRatio: priorityRatio}
	q.cond = sync.NewCond(&q.mu)
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.workerLoop()
	}
	return q
}

// AddWorkBlock enqueues block at the given priority. With zero workers
// it executes block inline and returns only once Execute has completed.
func (q *Queue) AddWorkBlock(block Block, priority Priority) {
	if q.workers == 0 {
		block.Execute()
		return
	}
	q.mu.Lock()
	switch priority {
	case High:
		q.high = append(q.high, block)
	case Medium:
		q.medium = append(q.medium, block)
	default:
		q.low = append(q.low, block)
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// AddWorkBlocks is the vector overload of AddWorkBlock (§4.9).
func (q *Queue) AddWorkBlocks(blocks []Block, priority Priority) {
	for _, b := range blocks {
		q.AddWorkBlock(b, priority)
	}
}

// getWorkBlock pops the next block to run under the fairness policy:
// high priority always wins; otherwise every priorityRatio medium items
// served, schedule one low item. Caller must hold q.mu.
func (q *Queue) getWorkBlock() Block {
	if len(q.high) > 0 {
		b := q.high[0]
		q.high = q.high[1:]
		return b
	}
	if q.mediumServed >= q.priorityRatio && len(q.low) > 0 {
		b := q.low[0]
		q.low = q.low[1:]
		q.mediumServed = 0
		return b
	}
	if len(q.medium) > 0 {
		b := q.medium[0]
		q.medium = q.medium[1:]
		q.mediumServed++
		return b
	}
	if len(q.low) > 0 {
		b := q.low[0]
		q.low = q.low[1:]
		q.mediumServed = 0
		return b
	}
	return nil
}

func (q *Queue) workerLoop() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for !q.closed && len(q.high) == 0 && len(q.medium) == 0 && len(q.low) == 0 {
			q.cond.Wait()
		}
		if q.closed && len(q.high) == 0 && len(q.medium) == 0 && len(q.low) == 0 {
			q.mu.Unlock()
			return
		}
		block := q.getWorkBlock()
		q.mu.Unlock()
		if block != nil {
			block.Execute()
		}
	}
}

// DestroyWorkerQueue signals every worker to exit once its queues drain
// and waits for them to stop (§4.9 "defined teardown").
func (q *Queue) DestroyWorkerQueue() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.wg.Wait()
}
