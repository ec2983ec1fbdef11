// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package server implements the Remote Task Executor's coordination
// engine: task ID allocation, the task queue, the results table, the
// cancellation set, and the heartbeat-based timeout subsystem
// described in spec.md §4.3.  A single concrete *Server satisfies
// both ClientInterface and WorkerInterface; the split exists so each
// driver (client.Client, worker.Worker) only sees the methods
// relevant to its role, mirroring how coordinate.Coordinate exposes
// Namespace/WorkSpec/Worker as distinct narrow interfaces instead of
// one God object.
package server

import "github.com/diffeo/go-rte/rte"

// WorkerInterface is the facet of Server that a worker.Worker drives.
type WorkerInterface interface {
	// GetTask blocks until a task is available, returning it, or
	// returns nil if the worker was released by
	// ReleaseWaitingWorkers.
	GetTask() *rte.Task

	// SetResult records the outcome of a task.  It is tolerated to
	// call this for an id the server never dispatched; the result is
	// stored like any other.  A result for an id that already has one
	// is silently ignored (see the "late result" resolution in
	// DESIGN.md).
	SetResult(result rte.Result)

	// IsTaskCanceled renews id's heartbeat and reports whether
	// cancellation was requested.  If it was, the cancellation is
	// consumed (cleared) and true is returned exactly once.
	IsTaskCanceled(id uint64) bool
}

// ClientInterface is the facet of Server that a client.Client drives.
type ClientInterface interface {
	// GetNextID dequeues one available task id, or returns
	// (0, false) if none is available.
	GetNextID() (uint64, bool)

	// ReturnID returns a previously reserved id to the available
	// pool. Returning an id that was never reserved is tolerated.
	ReturnID(id uint64)

	// AddTask submits a task for execution.
	AddTask(task rte.Task)

	// GetResults retrieves and consumes the results for the given
	// ids. The returned slice is parallel to ids; an entry is nil
	// if no result is present (yet) for the corresponding id.
	GetResults(ids []uint64) []*rte.Result

	// CancelTask requests cancellation of a task. It is tolerated
	// to cancel an id that is unknown or already finished.
	CancelTask(id uint64)
}
