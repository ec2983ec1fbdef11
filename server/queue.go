// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package server

import (
	"sync"

	"github.com/diffeo/go-rte/rte"
)

// idQueue is an unbounded, thread-safe FIFO of task IDs.  It backs
// the server's "unassigned ids" queue: pushes and non-blocking pops
// are independently safe without the server's main mutex, per
// spec.md's shared-resource policy.
type idQueue struct {
	mu    sync.Mutex
	items []uint64
}

// push appends id to the back of the queue.
func (q *idQueue) push(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, id)
}

// pop removes and returns the id at the front of the queue, or
// (0, false) if the queue is empty.
func (q *idQueue) pop() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// drain removes and returns every id currently queued, in order.
func (q *idQueue) drain() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// taskItem is a queued task queue entry.  A nil Task is the "release"
// sentinel: it tells one blocked GetTask caller to wake up empty-
// handed because release_waiting_workers was called.
type taskItem struct {
	Task *rte.Task
}

// taskQueue is an unbounded, thread-safe, blocking FIFO of tasks (or
// release sentinels).  Pop blocks until an item is available, which
// is how Server.GetTask blocks per spec.md's contract.
type taskQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []taskItem
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends an item and wakes one blocked popper, if any.
func (q *taskQueue) push(item taskItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an item is available, then removes and returns it.
func (q *taskQueue) pop() taskItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}
