// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-rte/rte"
)

func newTestServer(clk clock.Clock, taskTimeout time.Duration) *Server {
	return NewWithClock(taskTimeout, clk, nil)
}

// waitFor polls cond until it returns true or the deadline passes,
// failing the test in the latter case. Used instead of a fixed sleep
// so tests don't flake under load but also don't run needlessly slow.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition did not become true in time")
}

// TestWorkerArrivalAdvertisement exercises the linchpin protocol:
// GetTask mints and advertises an id before blocking, and a client
// reserving+submitting under that id is what wakes the worker.
func TestWorkerArrivalAdvertisement(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	taskCh := make(chan *rte.Task, 1)
	go func() {
		taskCh <- s.GetTask()
	}()

	// Give the worker goroutine a chance to advertise its id.
	var id uint64
	waitFor(t, func() bool {
		var ok bool
		id, ok = s.GetNextID()
		return ok
	})

	s.AddTask(rte.Task{ID: id, Data: []byte("hello")})

	select {
	case task := <-taskCh:
		require.NotNil(t, task)
		assert.Equal(t, id, task.ID)
		assert.Equal(t, []byte("hello"), task.Data)
	case <-time.After(time.Second):
		t.Fatal("GetTask never returned")
	}
}

func TestReturnIDMakesIDAvailableAgainFIFO(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	s.unassignedIDs.push(1)
	s.unassignedIDs.push(2)

	id, ok := s.GetNextID()
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)

	s.ReturnID(id)

	// FIFO: the returned id goes to the back, behind the other pre-existing one.
	next, ok := s.GetNextID()
	require.True(t, ok)
	assert.Equal(t, uint64(2), next)

	next, ok = s.GetNextID()
	require.True(t, ok)
	assert.Equal(t, uint64(1), next)
}

func TestSetResultThenGetResultsConsumesOnce(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	s.SetResult(rte.Result{TaskID: 42, Success: true, Data: []byte("ok")})

	results := s.GetResults([]uint64{42})
	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	assert.Equal(t, []byte("ok"), results[0].Data)

	// Second call sees nothing: results are consumed on first read.
	results = s.GetResults([]uint64{42})
	require.Len(t, results, 1)
	assert.Nil(t, results[0])
}

func TestCancelThenIsTaskCanceledConsumesOnce(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	s.CancelTask(7)
	assert.True(t, s.IsTaskCanceled(7))
	assert.False(t, s.IsTaskCanceled(7), "cancellation should be consumed on first observation")
}

func TestTimeoutSynthesizesFailedResult(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, 100*time.Millisecond)
	defer s.Stop()

	// Simulate a worker that acquired task 5 but never beats again.
	s.mu.Lock()
	s.monitor.Add(5)
	s.mu.Unlock()

	clk.Add(300 * time.Millisecond)

	var last *rte.Result
	waitFor(t, func() bool {
		results := s.GetResults([]uint64{5})
		last = results[0]
		return last != nil
	})
	assert.False(t, last.Success)
	assert.Empty(t, last.Data)
}

func TestTimeoutFiresOnlyOnce(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, 100*time.Millisecond)
	defer s.Stop()

	s.mu.Lock()
	s.monitor.Add(9)
	s.mu.Unlock()
	clk.Add(1 * time.Second)
	waitFor(t, func() bool {
		return !s.monitor.IsAlive(9)
	})

	results := s.GetResults([]uint64{9})
	require.NotNil(t, results[0])
	assert.False(t, results[0].Success)
}

func TestReleaseWaitingWorkersWakesAllBlocked(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	const n = 3
	done := make(chan *rte.Task, n)
	for i := 0; i < n; i++ {
		go func() { done <- s.GetTask() }()
	}

	waitFor(t, func() bool {
		s.unassignedIDs.mu.Lock()
		defer s.unassignedIDs.mu.Unlock()
		return len(s.unassignedIDs.items) == n
	})

	s.ReleaseWaitingWorkers()

	for i := 0; i < n; i++ {
		select {
		case task := <-done:
			assert.Nil(t, task)
		case <-time.After(time.Second):
			t.Fatal("a worker never woke up after release")
		}
	}
}

func TestLateResultAfterTimeoutIsIgnored(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, 100*time.Millisecond)
	defer s.Stop()

	s.mu.Lock()
	s.monitor.Add(11)
	s.mu.Unlock()
	clk.Add(300 * time.Millisecond)

	waitFor(t, func() bool {
		s.mu.Lock()
		_, exists := s.results[11]
		s.mu.Unlock()
		return exists
	})

	// Worker finally calls SetResult; the synthesized failure wins.
	s.SetResult(rte.Result{TaskID: 11, Success: true, Data: []byte("too late")})

	results := s.GetResults([]uint64{11})
	require.NotNil(t, results[0])
	assert.False(t, results[0].Success, "late result must not overwrite the synthesized failure")
}

// TestFIFOTaskDeliveryOrder exercises spec.md §8 property 3: with a
// single client and single worker, tasks come out of GetTask in the
// same order AddTask put them in.
func TestFIFOTaskDeliveryOrder(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	const n = 5
	for i := 0; i < n; i++ {
		s.AddTask(rte.Task{ID: uint64(i), Data: []byte(fmt.Sprintf("task-%d", i))})
	}

	for i := 0; i < n; i++ {
		task := s.GetTask()
		require.NotNil(t, task)
		assert.Equal(t, uint64(i), task.ID)
		assert.Equal(t, []byte(fmt.Sprintf("task-%d", i)), task.Data)
	}
}

func TestGetResultsParallelToIDsWithMissingEntries(t *testing.T) {
	clk := clock.NewMock()
	s := newTestServer(clk, time.Minute)
	defer s.Stop()

	s.SetResult(rte.Result{TaskID: 1, Success: true, Data: []byte("a")})
	results := s.GetResults([]uint64{1, 2, 3})
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.Nil(t, results[2])
}
