// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package rpcclient implements server.ClientInterface and
// server.WorkerInterface against a remote transport/rpcserver over
// HTTP. It is grounded on the teacher's restclient package (URL
// templating via github.com/jtacoma/uritemplates, JSON encoding via
// github.com/ugorji/go/codec) generalized from Coordinate's resource
// model down to RTE's nine flat RPCs.
package rpcclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"

	"github.com/diffeo/go-rte/rte"
	"github.com/diffeo/go-rte/server"
	"github.com/diffeo/go-rte/wire"
)

var jsonHandle = &codec.JsonHandle{}

// TransportError wraps a transport-layer failure (couldn't reach the
// server, or it returned something undecodable), distinguishing this
// from a well-formed server response per spec.md §7's TransportFailure
// category. The Python original has no such distinction, since a plain
// method call simply raises whatever the HTTP library raised.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpcclient: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is a remote server.ClientInterface / server.WorkerInterface
// backed by HTTP calls to a transport/rpcserver.
type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client

	// ErrorHandler, if non-nil, is called with every TransportError
	// this Client produces. Neither ClientInterface nor
	// WorkerInterface has a way to return an error (a worker calling
	// GetTask can't tell "released" from "couldn't reach the server"
	// otherwise), so this is the seam cmd/rteworker uses to log
	// transport failures, grounded
	// on the teacher worker package's ErrorHandler func(error) field.
	ErrorHandler func(err error)
}

// New creates a Client whose requests are relative to baseURL, e.g.
// "http://localhost:5934/". A nil http.Client means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: u, HTTPClient: httpClient}, nil
}

func (c *Client) resolve(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return c.BaseURL.Parse(expanded)
}

// do issues method against the resolved URL, encoding in (if
// non-nil) as the JSON body and decoding the response into out (if
// non-nil). ctx governs the request's lifetime, used by GetTask to
// let callers bound or cancel the long poll. Any resulting
// TransportError is also reported to ErrorHandler, if set.
func (c *Client) do(ctx context.Context, op, method string, u *url.URL, in, out interface{}) error {
	err := c.doRaw(ctx, op, method, u, in, out)
	if err != nil && c.ErrorHandler != nil {
		c.ErrorHandler(err)
	}
	return err
}

func (c *Client) doRaw(ctx context.Context, op, method string, u *url.URL, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		var buf []byte
		enc := codec.NewEncoderBytes(&buf, jsonHandle)
		if err := enc.Encode(in); err != nil {
			return &TransportError{Op: op, Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp wire.ErrorResponse
		_ = codec.NewDecoder(resp.Body, jsonHandle).Decode(&errResp)
		if errResp.Error != "" {
			return &TransportError{Op: op, Err: fmt.Errorf("server: %s", errResp.Error)}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if out != nil {
		if err := codec.NewDecoder(resp.Body, jsonHandle).Decode(out); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}
	return nil
}

// GetNextID implements server.ClientInterface.
func (c *Client) GetNextID() (uint64, bool) {
	u, _ := c.BaseURL.Parse("v1/next-id")
	var resp wire.NextIDResponse
	if err := c.do(context.Background(), "GetNextID", "GET", u, nil, &resp); err != nil {
		return 0, false
	}
	return resp.ID, resp.Available
}

// ReturnID implements server.ClientInterface.
func (c *Client) ReturnID(id uint64) {
	u, err := c.resolve("v1/next-id/{id}", map[string]interface{}{"id": id})
	if err != nil {
		return
	}
	_ = c.do(context.Background(), "ReturnID", "POST", u, nil, nil)
}

// AddTask implements server.ClientInterface.
func (c *Client) AddTask(task rte.Task) {
	u, _ := c.BaseURL.Parse("v1/tasks")
	_ = c.do(context.Background(), "AddTask", "POST", u, wire.FromTask(task), nil)
}

// GetResults implements server.ClientInterface.
func (c *Client) GetResults(ids []uint64) []*rte.Result {
	u, _ := c.BaseURL.Parse("v1/results/query")
	var resp wire.GetResultsResponse
	err := c.do(context.Background(), "GetResults", "POST", u, wire.GetResultsRequest{TaskIDs: ids}, &resp)
	if err != nil {
		return make([]*rte.Result, len(ids))
	}
	out := make([]*rte.Result, len(resp.Results))
	for i, m := range resp.Results {
		if m == nil {
			continue
		}
		r := m.ToResult()
		out[i] = &r
	}
	return out
}

// CancelTask implements server.ClientInterface.
func (c *Client) CancelTask(id uint64) {
	u, err := c.resolve("v1/tasks/{id}/cancel", map[string]interface{}{"id": id})
	if err != nil {
		return
	}
	_ = c.do(context.Background(), "CancelTask", "POST", u, nil, nil)
}

// GetTask implements server.WorkerInterface. It issues the long poll
// without a client-side timeout, per spec.md §6: callers that want a
// bound should wrap a context with a deadline and use GetTaskContext.
func (c *Client) GetTask() *rte.Task {
	return c.GetTaskContext(context.Background())
}

// GetTaskContext is GetTask with an explicit context, letting a caller
// bound or cancel the long poll.
func (c *Client) GetTaskContext(ctx context.Context) *rte.Task {
	u, _ := c.BaseURL.Parse("v1/tasks/next")
	var resp wire.GetTaskResponse
	if err := c.do(ctx, "GetTask", "GET", u, nil, &resp); err != nil {
		return nil
	}
	if resp.Task == nil {
		return nil
	}
	task := resp.Task.ToTask()
	return &task
}

// SetResult implements server.WorkerInterface.
func (c *Client) SetResult(result rte.Result) {
	u, _ := c.BaseURL.Parse("v1/results")
	_ = c.do(context.Background(), "SetResult", "POST", u, wire.FromResult(result), nil)
}

// IsTaskCanceled implements server.WorkerInterface.
func (c *Client) IsTaskCanceled(id uint64) bool {
	u, err := c.resolve("v1/tasks/{id}/poll", map[string]interface{}{"id": id})
	if err != nil {
		return false
	}
	var resp wire.IsTaskCanceledResponse
	if err := c.do(context.Background(), "IsTaskCanceled", "POST", u, nil, &resp); err != nil {
		return false
	}
	return resp.Canceled
}

// ReleaseWaitingWorkers asks the remote server to wake every worker
// currently blocked in GetTask. It is not part of either narrow
// interface (it is an operator action, not something a client or
// worker calls on itself) but is exposed here so a remote caller, such
// as this package's tests, can trigger it.
func (c *Client) ReleaseWaitingWorkers() {
	u, _ := c.BaseURL.Parse("v1/release")
	_ = c.do(context.Background(), "ReleaseWaitingWorkers", "POST", u, nil, nil)
}

var (
	_ server.ClientInterface = (*Client)(nil)
	_ server.WorkerInterface = (*Client)(nil)
)
