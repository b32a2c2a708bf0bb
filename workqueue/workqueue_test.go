// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/cpmech/gosl/chk"
)

func Test_workqueue01(tst *testing.T) {

	chk.PrintTitle("workqueue01. synchronous mode (0 workers) executes inline")

	q := New(0, 4)
	ran := false
	b := NewFuncBlock(func() (interface{}, error) {
		ran = true
		return 42, nil
	})
	q.AddWorkBlock(b, High)
	if !ran {
		tst.Fatal("synchronous queue must execute the block before AddWorkBlock returns")
	}
	result, err := b.Wait()
	if err != nil || result.(int) != 42 {
		tst.Fatalf("unexpected result=%v err=%v", result, err)
	}
}

func Test_workqueue02(tst *testing.T) {

	chk.PrintTitle("workqueue02. worker pool drains high and low blocks and DestroyWorkerQueue joins cleanly")

	q := New(2, 4)
	var mu sync.Mutex
	var order []string
	record := func(name string) func() (interface{}, error) {
		return func() (interface{}, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	var blocks []*FuncBlock
	for i := 0; i < 5; i++ {
		b := NewFuncBlock(record("low"))
		blocks = append(blocks, b)
		q.AddWorkBlock(b, Low)
	}
	hi := NewFuncBlock(record("high"))
	blocks = append(blocks, hi)
	q.AddWorkBlock(hi, High)

	for _, b := range blocks {
		b.Wait()
	}
	q.DestroyWorkerQueue()

	chk.IntAssert(len(order), 6)
}

func Test_workqueue03(tst *testing.T) {

	chk.PrintTitle("workqueue03. Reset / UpdateWorkFunction re-arm a block")

	calls := 0
	b := NewFuncBlock(func() (interface{}, error) {
		calls++
		return "first", nil
	})
	b.Execute()
	r, _ := b.Wait()
	if r.(string) != "first" {
		tst.Fatalf("expected first result, got %v", r)
	}

	b.Reset()
	b.UpdateWorkFunction(func() (interface{}, error) {
		calls++
		return "second", nil
	})
	b.Execute()
	r, _ = b.Wait()
	if r.(string) != "second" {
		tst.Fatalf("expected second result after re-arming, got %v", r)
	}
	chk.IntAssert(calls, 2)
}

func Test_workqueue04(tst *testing.T) {

	chk.PrintTitle("workqueue04. a single-worker pool executes a queued medium block in time")

	q := New(1, 4)
	done := make(chan struct{})
	b := NewFuncBlock(func() (interface{}, error) {
		close(done)
		return nil, nil
	})
	q.AddWorkBlock(b, Medium)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		tst.Fatal("worker pool did not execute the queued block in time")
	}
	q.DestroyWorkerQueue()
}
