// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package rpcclient_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-rte/rte"
	"github.com/diffeo/go-rte/server"
	"github.com/diffeo/go-rte/transport/rpcclient"
	"github.com/diffeo/go-rte/transport/rpcserver"
)

func newTestPair(t *testing.T) (*rpcclient.Client, func()) {
	t.Helper()
	clk := clock.NewMock()
	core := server.NewWithClock(time.Minute, clk, nil)

	ts := httptest.NewServer(rpcserver.NewRouter(core, nil))
	c, err := rpcclient.New(ts.URL+"/", nil)
	require.NoError(t, err)

	return c, func() {
		ts.Close()
		core.Stop()
	}
}

func TestRemoteNextIDAndTaskRoundTrip(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	taskCh := make(chan *rte.Task, 1)
	go func() { taskCh <- c.GetTask() }()

	var id uint64
	var ok bool
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		id, ok = c.GetNextID()
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, ok)

	c.AddTask(rte.Task{ID: id, Data: []byte("hi")})

	select {
	case task := <-taskCh:
		require.NotNil(t, task)
		assert.Equal(t, id, task.ID)
		assert.Equal(t, []byte("hi"), task.Data)
	case <-time.After(time.Second):
		t.Fatal("GetTask never returned")
	}

	c.SetResult(rte.Result{TaskID: id, Success: true, Data: []byte("done")})

	var results []*rte.Result
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		results = c.GetResults([]uint64{id})
		if results[0] != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.NotNil(t, results[0])
	assert.True(t, results[0].Success)
	assert.Equal(t, []byte("done"), results[0].Data)
}

func TestRemoteCancelTaskConsumedOnce(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.CancelTask(99)
	assert.True(t, c.IsTaskCanceled(99))
	assert.False(t, c.IsTaskCanceled(99))
}

func TestRemoteReleaseWaitingWorkers(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	done := make(chan *rte.Task, 1)
	go func() { done <- c.GetTask() }()

	time.Sleep(20 * time.Millisecond)
	c.ReleaseWaitingWorkers()

	select {
	case task := <-done:
		assert.Nil(t, task)
	case <-time.After(time.Second):
		t.Fatal("GetTask never returned after release")
	}
}
