// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package rte defines the core data types of the Remote Task
// Executor: opaque tasks submitted by clients, and the results
// workers produce for them.  The system does not interpret Data in
// either type; it is an opaque byte blob to everything except the
// application-supplied client and worker callbacks.
package rte

// Task is a single unit of work.  ID is assigned by the server and is
// unique for the lifetime of the server process; it is never reused.
type Task struct {
	ID   uint64
	Data []byte
}

// Result is the outcome of executing a Task.  On failure, Data is
// empty; Success distinguishes success from failure, while the "no
// result yet" case is represented as a nil *Result rather than a
// Result with some sentinel field.
type Result struct {
	TaskID  uint64
	Success bool
	Data    []byte
}
