// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package client

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-rte/rte"
	"github.com/diffeo/go-rte/server"
)

func TestBatchClientSingleSuccess(t *testing.T) {
	clk := clock.NewMock()
	srv := server.NewWithClock(time.Second, clk, nil)
	defer srv.Stop()

	c := &Client{Server: srv, RefreshTime: time.Millisecond, Clock: clk}
	bc := NewBatchClient(c)
	defer tickMock(clk)()

	done := make(chan [][]byte, 1)
	go func() {
		done <- bc.Solve(context.Background(), [][]byte{[]byte("hello")})
	}()

	// Act as the only worker: acquire the task and echo it back.
	task := srv.GetTask()
	require.NotNil(t, task)
	srv.SetResult(rte.Result{TaskID: task.ID, Success: true, Data: task.Data})

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Equal(t, []byte("hello"), results[0])
	case <-time.After(time.Second):
		t.Fatal("Solve never returned")
	}
}

func TestBatchClientFailedTask(t *testing.T) {
	clk := clock.NewMock()
	srv := server.NewWithClock(time.Second, clk, nil)
	defer srv.Stop()

	c := &Client{Server: srv, RefreshTime: time.Millisecond, Clock: clk}
	bc := NewBatchClient(c)
	defer tickMock(clk)()

	done := make(chan [][]byte, 1)
	go func() {
		done <- bc.Solve(context.Background(), [][]byte{[]byte("x")})
	}()

	task := srv.GetTask()
	require.NotNil(t, task)
	srv.SetResult(rte.Result{TaskID: task.ID, Success: false})

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Nil(t, results[0])
	case <-time.After(time.Second):
		t.Fatal("Solve never returned")
	}
}

func TestBatchClientPreservesInputOrder(t *testing.T) {
	clk := clock.NewMock()
	srv := server.NewWithClock(time.Second, clk, nil)
	defer srv.Stop()

	c := &Client{Server: srv, RefreshTime: time.Millisecond, Clock: clk}
	bc := NewBatchClient(c)
	defer tickMock(clk)()

	inputs := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	done := make(chan [][]byte, 1)
	go func() {
		done <- bc.Solve(context.Background(), inputs)
	}()

	// Acquire and finish tasks out of submission order: c, a, b.
	var tasks []*rte.Task
	for i := 0; i < 3; i++ {
		task := srv.GetTask()
		require.NotNil(t, task)
		tasks = append(tasks, task)
	}
	order := []int{2, 0, 1}
	for _, i := range order {
		srv.SetResult(rte.Result{TaskID: tasks[i].ID, Success: true, Data: tasks[i].Data})
	}

	select {
	case results := <-done:
		require.Len(t, results, 3)
		assert.Equal(t, inputs, results)
	case <-time.After(time.Second):
		t.Fatal("Solve never returned")
	}
}

// tickMock advances clk by a millisecond every real millisecond until
// the returned stop function is called, so a Client idling on the mock
// clock between polls keeps polling.
func tickMock(clk *clock.Mock) (stop func()) {
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-quit:
				return
			case <-time.After(time.Millisecond):
				clk.Add(time.Millisecond)
			}
		}
	}()
	return func() { close(quit) }
}
