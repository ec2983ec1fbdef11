// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package wire defines the JSON request/response shapes exchanged
// between transport/rpcclient and transport/rpcserver. It replaces
// the teacher's CBOR-RPC Python-compatibility encoding (cborrpc,
// restdata) with plain JSON, since RTE has no legacy Python peer to
// stay wire-compatible with; see DESIGN.md for the redesign rationale.
//
// Fields carry both `codec` tags (read by github.com/ugorji/go/codec,
// used by transport/rpcclient and transport/rpcserver for encoding)
// and `json` tags (so the same types also encode with encoding/json
// without a codec.Handle on hand).
package wire

import "github.com/diffeo/go-rte/rte"

// TaskMessage is the wire shape of rte.Task.
type TaskMessage struct {
	ID   uint64 `codec:"id" json:"id"`
	Data []byte `codec:"data" json:"data"`
}

// FromTask converts an rte.Task to its wire shape.
func FromTask(t rte.Task) TaskMessage {
	return TaskMessage{ID: t.ID, Data: t.Data}
}

// ToTask converts a wire TaskMessage back to an rte.Task.
func (m TaskMessage) ToTask() rte.Task {
	return rte.Task{ID: m.ID, Data: m.Data}
}

// ResultMessage is the wire shape of rte.Result.
type ResultMessage struct {
	TaskID  uint64 `codec:"task_id" json:"task_id"`
	Success bool   `codec:"success" json:"success"`
	Data    []byte `codec:"data,omitempty" json:"data,omitempty"`
}

// FromResult converts an rte.Result to its wire shape.
func FromResult(r rte.Result) ResultMessage {
	return ResultMessage{TaskID: r.TaskID, Success: r.Success, Data: r.Data}
}

// ToResult converts a wire ResultMessage back to an rte.Result.
func (m ResultMessage) ToResult() rte.Result {
	return rte.Result{TaskID: m.TaskID, Success: m.Success, Data: m.Data}
}

// NextIDResponse is GetNextId's response body. Available is false when
// the server had no id to hand out.
type NextIDResponse struct {
	ID        uint64 `codec:"id" json:"id"`
	Available bool   `codec:"available" json:"available"`
}

// GetTaskResponse is GetTask's response body. Task is nil when the
// long poll resolved because the worker was released rather than
// because a task arrived.
type GetTaskResponse struct {
	Task *TaskMessage `codec:"task" json:"task"`
}

// GetResultsRequest is GetResults' request body.
type GetResultsRequest struct {
	TaskIDs []uint64 `codec:"task_ids" json:"task_ids"`
}

// GetResultsResponse is GetResults' response body, parallel to the
// request's TaskIDs; an entry is nil where no result is available.
type GetResultsResponse struct {
	Results []*ResultMessage `codec:"results" json:"results"`
}

// IsTaskCanceledResponse is IsTaskCanceled's response body.
type IsTaskCanceledResponse struct {
	Canceled bool `codec:"canceled" json:"canceled"`
}

// ErrorResponse is the body returned alongside any non-2xx HTTP status
// from transport/rpcserver.
type ErrorResponse struct {
	Error string `codec:"error" json:"error"`
}
