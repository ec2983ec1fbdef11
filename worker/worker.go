// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package worker provides a library framework for processes that
// execute tasks fetched from a Remote Task Executor server.
package worker

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-rte/heartbeat"
	"github.com/diffeo/go-rte/rte"
	"github.com/diffeo/go-rte/server"
)

// Worker repeatedly fetches a task from Server, executes it via
// ExecuteTask while a background Heart polls IsTaskCanceled every
// RefreshTime, and reports the outcome back to Server. This is the
// Go-idiomatic replacement for the Python original's abstract Worker
// base class (spec.md §9 "Polymorphism over handlers"): inject
// ExecuteTask and OnCancel as function fields instead of subclassing.
type Worker struct {
	Server      server.WorkerInterface
	RefreshTime time.Duration

	// ExecuteTask runs one task's payload and returns the result
	// payload. A non-nil error is reported to the server as a failed
	// Result, matching the Python original's catch-all except clause.
	ExecuteTask func(task []byte) ([]byte, error)

	// OnCancel is invoked, if non-nil, when the in-flight task is
	// found to have been canceled. ExecuteTask keeps running to
	// completion regardless: Worker has no way to preempt it, the
	// same limitation the Python original has.
	OnCancel func()

	// Clock defaults to the real wall clock; tests should inject
	// clock.NewMock() for deterministic refresh timing.
	Clock clock.Clock

	// Log defaults to a discard logger if nil.
	Log *logrus.Logger
}

func (w *Worker) setDefaults() {
	if w.Clock == nil {
		w.Clock = clock.New()
	}
	if w.Log == nil {
		w.Log = logrus.New()
		w.Log.SetLevel(logrus.PanicLevel)
	}
}

// Run fetches and executes tasks until the server releases waiting
// workers (GetTask returns nil) or numTasks tasks have been completed.
// A non-positive numTasks means no limit, matching the Python
// original's `num_tasks: Optional[int] = None`.
func (w *Worker) Run(numTasks int) {
	w.setDefaults()

	unlimited := numTasks <= 0
	for unlimited || numTasks > 0 {
		task := w.Server.GetTask()
		if task == nil {
			w.Log.Debug("worker received no task, stopping")
			return
		}
		w.Log.WithField("task_id", task.ID).Info("worker received task")

		w.runOne(task)

		if !unlimited {
			numTasks--
		}
	}
}

// runOne executes a single task under a refresher Heart that polls
// cancellation and renews the task's heartbeat every RefreshTime.
func (w *Worker) runOne(task *rte.Task) {
	var refresher *heartbeat.Heart
	checkTask := func() {
		w.Log.WithField("task_id", task.ID).Debug("worker is checking task")
		if w.Server.IsTaskCanceled(task.ID) {
			w.Log.WithField("task_id", task.ID).Info("task was canceled")
			refresher.Stop()
			if w.OnCancel != nil {
				w.OnCancel()
			}
		}
	}
	refresher = heartbeat.NewHeart(w.Clock, w.RefreshTime, checkTask)

	result := w.execute(task)

	refresher.Stop()
	refresher.Join()
	w.Server.SetResult(result)
}

// execute runs ExecuteTask, converting both returned errors and
// recovered panics into a failed Result, matching the Python
// original's bare `except Exception`.
func (w *Worker) execute(task *rte.Task) (result rte.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.Log.WithField("task_id", task.ID).WithField("panic", r).Info("worker task panicked")
			result = rte.Result{TaskID: task.ID, Success: false}
		}
	}()

	w.Log.WithField("task_id", task.ID).Debug("worker is executing task")
	data, err := w.ExecuteTask(task.Data)
	if err != nil {
		w.Log.WithField("task_id", task.ID).WithField("error", err).Info("worker failed task")
		return rte.Result{TaskID: task.ID, Success: false}
	}
	w.Log.WithField("task_id", task.ID).Info("worker finished task")
	return rte.Result{TaskID: task.ID, Success: true, Data: data}
}
