// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package client provides a library framework for processes that
// submit tasks to a Remote Task Executor server and collect their
// results.
package client

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-rte/rte"
	"github.com/diffeo/go-rte/server"
)

// Handler supplies the three behaviors a Client needs from its
// caller. This is the Go-idiomatic replacement for the Python
// original's abstract-base-class overrides (spec.md §9
// "Polymorphism over handlers"): inject a Handler at construction
// instead of subclassing Client.
type Handler interface {
	// OnRequest is called with a freshly reserved task id and
	// should return a Task to submit under it, or nil to decline
	// (in which case the Client returns the id to the server).
	OnRequest(taskID uint64) *rte.Task

	// OnResult is called once per completed result.
	OnResult(result rte.Result)

	// IsFinished reports whether the client has no more work to
	// submit or collect. Client.Run exits once this is true.
	IsFinished() bool
}

// Client polls a server.ClientInterface, reserving and submitting
// tasks and collecting their results, sleeping RefreshTime between
// polls when neither produced progress. It is the generic driver;
// BatchClient is the canonical Handler implementation.
type Client struct {
	Server      server.ClientInterface
	RefreshTime time.Duration
	Handler     Handler

	// Clock defaults to the real wall clock; tests should inject
	// clock.NewMock() for deterministic sleeps.
	Clock clock.Clock

	// Log defaults to a discard logger if nil.
	Log *logrus.Logger

	pendingTaskIDs map[uint64]struct{}
}

func (c *Client) setDefaults() {
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Log == nil {
		c.Log = logrus.New()
		c.Log.SetLevel(logrus.PanicLevel)
	}
	if c.pendingTaskIDs == nil {
		c.pendingTaskIDs = make(map[uint64]struct{})
	}
}

// Run drives the client loop until Handler.IsFinished returns true or
// ctx is canceled.
func (c *Client) Run(ctx context.Context) {
	c.setDefaults()
	for !c.Handler.IsFinished() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		madeProgress := c.processTasks()
		madeProgress = c.processResults() || madeProgress

		if !madeProgress {
			select {
			case <-ctx.Done():
				return
			case <-c.Clock.After(c.RefreshTime):
			}
		}
	}
}

// processTasks tries to reserve and submit one task. It reports
// whether it made progress (reserved an id at all), matching the
// Python original's "attempt, possibly a no-op" loop step.
func (c *Client) processTasks() bool {
	taskID, ok := c.Server.GetNextID()
	c.Log.WithField("task_id", taskID).Debug("client received task id")
	if !ok {
		return false
	}

	task := c.Handler.OnRequest(taskID)
	if task == nil {
		c.Log.WithField("task_id", taskID).Debug("client is returning task id")
		c.Server.ReturnID(taskID)
		return true
	}

	c.Log.WithField("task_id", task.ID).Debug("client is adding task")
	c.Server.AddTask(*task)
	c.pendingTaskIDs[task.ID] = struct{}{}
	return true
}

// processResults polls for results of all outstanding ids. It reports
// whether it received at least one result.
func (c *Client) processResults() bool {
	if len(c.pendingTaskIDs) == 0 {
		return false
	}
	ids := make([]uint64, 0, len(c.pendingTaskIDs))
	for id := range c.pendingTaskIDs {
		ids = append(ids, id)
	}

	results := c.Server.GetResults(ids)
	c.Log.WithField("results", results).Debug("client received results")

	progress := false
	for _, result := range results {
		if result == nil {
			continue
		}
		c.Handler.OnResult(*result)
		delete(c.pendingTaskIDs, result.TaskID)
		progress = true
	}
	return progress
}

// CancelTask requests cancellation of a task, forwarding to the
// server. It exists as a convenience so callers driving a Client
// don't need a separate handle to the server.
func (c *Client) CancelTask(taskID uint64) {
	c.Log.WithField("task_id", taskID).Debug("client is canceling task")
	c.Server.CancelTask(taskID)
}
