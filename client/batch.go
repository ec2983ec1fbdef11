// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package client

import (
	"context"

	"github.com/diffeo/go-rte/rte"
)

// BatchClient is the canonical Client.Handler: given an ordered list
// of task byte-blobs, it solves them all and returns an ordered list
// of result byte-blobs (nil per failed task), with output order
// mirroring input order regardless of completion order.
type BatchClient struct {
	client *Client

	tasks   [][]byte
	results map[uint64][]byte
	taskIDs []uint64
}

// NewBatchClient creates a BatchClient driven by c, installing itself
// as c's Handler.
func NewBatchClient(c *Client) *BatchClient {
	bc := &BatchClient{client: c}
	c.Handler = bc
	return bc
}

// Solve submits tasks in order and blocks until every one has a
// result (success or failure), returning the results in input order.
// A failed task's slot is nil.
func (bc *BatchClient) Solve(ctx context.Context, tasks [][]byte) [][]byte {
	bc.tasks = tasks
	bc.results = make(map[uint64][]byte, len(tasks))
	bc.taskIDs = nil

	bc.client.Run(ctx)

	out := make([][]byte, len(bc.taskIDs))
	for i, id := range bc.taskIDs {
		out[i] = bc.results[id]
	}
	return out
}

// OnRequest implements Handler: it pops the next pending task byte
// blob and maps it onto the reserved id so output order can be
// reconstructed regardless of completion order.
func (bc *BatchClient) OnRequest(taskID uint64) *rte.Task {
	if len(bc.tasks) == 0 {
		return nil
	}
	data := bc.tasks[0]
	bc.tasks = bc.tasks[1:]
	bc.taskIDs = append(bc.taskIDs, taskID)
	return &rte.Task{ID: taskID, Data: data}
}

// OnResult implements Handler.
func (bc *BatchClient) OnResult(result rte.Result) {
	if result.Success {
		bc.results[result.TaskID] = result.Data
	} else {
		bc.results[result.TaskID] = nil
	}
}

// IsFinished implements Handler: done once every submitted task has
// produced a result.
func (bc *BatchClient) IsFinished() bool {
	return len(bc.tasks) == 0 && len(bc.results) == len(bc.taskIDs)
}
