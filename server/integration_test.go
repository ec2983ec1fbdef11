// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package server_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-rte/client"
	"github.com/diffeo/go-rte/server"
	"github.com/diffeo/go-rte/worker"
)

// TestManyWorkersManyProducers is the "n-n test mayhem" scenario
// spec.md §8 calls out (many clients, many workers, one in-process
// server) and original_source/tests/test_system.py names
// test_many_workers_many_producers: 10 clients each submitting 10
// tasks, 10 workers racing for them, every client collecting all 10
// of its own results intact.
func TestManyWorkersManyProducers(t *testing.T) {
	const numClients = 10
	const numWorkers = 10
	const tasksPerClient = 10

	srv := server.New(2 * time.Second)
	defer srv.Stop()

	var workerWG sync.WaitGroup
	workerWG.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		w := &worker.Worker{
			Server:      srv,
			RefreshTime: 10 * time.Millisecond,
			ExecuteTask: func(task []byte) ([]byte, error) {
				return task, nil
			},
		}
		go func() {
			defer workerWG.Done()
			w.Run(0)
		}()
	}

	results := make([][][]byte, numClients)
	var clientWG sync.WaitGroup
	clientWG.Add(numClients)
	for i := 0; i < numClients; i++ {
		i := i
		tasks := make([][]byte, tasksPerClient)
		for j := range tasks {
			tasks[j] = []byte(fmt.Sprintf("client-%d-task-%d", i, j))
		}
		go func() {
			defer clientWG.Done()
			c := &client.Client{Server: srv, RefreshTime: 10 * time.Millisecond}
			bc := client.NewBatchClient(c)
			results[i] = bc.Solve(context.Background(), tasks)
		}()
	}

	done := make(chan struct{})
	go func() {
		clientWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("clients never finished")
	}

	srv.ReleaseWaitingWorkers()
	workerWG.Wait()

	for i := 0; i < numClients; i++ {
		require.Len(t, results[i], tasksPerClient, "client %d", i)
		for j, data := range results[i] {
			assert.Equal(t, []byte(fmt.Sprintf("client-%d-task-%d", i, j)), data)
		}
	}
}
