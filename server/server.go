// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package server

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-rte/idgen"
	"github.com/diffeo/go-rte/heartbeat"
	"github.com/diffeo/go-rte/rte"
)

// Server is the in-memory coordination engine described in
// spec.md §4.3.  It owns the unassigned-id queue, the pending-task
// queue, the results table, the cancellation set, and a
// MultiHeartbeatMonitor keyed by task id.  A single Server value
// satisfies both ClientInterface and WorkerInterface.
//
// There is no persistence: all state is lost if the process exits,
// which is an explicit Non-goal (spec.md §1), not an oversight.
type Server struct {
	log *logrus.Logger

	idGen         idgen.Generator
	unassignedIDs idQueue
	tasks         *taskQueue
	monitor       *heartbeat.MultiHeartbeatMonitor

	// mu guards results and canceled. The queues above are
	// independently thread-safe and are deliberately not guarded
	// by mu, per spec.md §5's shared-resource policy.
	mu       sync.Mutex
	results  map[uint64]rte.Result
	canceled map[uint64]struct{}

	// OnTimeout, if non-nil, is called whenever a task times out
	// after onTaskTimeout has already recorded its synthesized
	// failure. metrics.Observe has no way to count timeout events
	// from Stats polling alone (it only sees instantaneous queue
	// depths), so cmd/rted wires this to metrics.CountTimeout.
	OnTimeout func(id uint64)
}

// New creates a Server whose heartbeat threshold is taskTimeout, using
// the real wall clock.
func New(taskTimeout time.Duration) *Server {
	return NewWithClock(taskTimeout, clock.New(), nil)
}

// NewWithClock creates a Server with an explicit time source and
// logger, for deterministic tests. A nil logger gets a discard-level
// default logger so tests don't need to care about log output.
func NewWithClock(taskTimeout time.Duration, clk clock.Clock, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	s := &Server{
		log:      log,
		tasks:    newTaskQueue(),
		results:  make(map[uint64]rte.Result),
		canceled: make(map[uint64]struct{}),
	}
	s.monitor = heartbeat.NewMultiHeartbeatMonitor(taskTimeout, s.onTaskTimeout, clk)
	return s
}

// onTaskTimeout is the MultiHeartbeatMonitor death callback: it
// synthesizes a failed Result for the timed-out task and clears any
// pending cancellation for it, per spec.md's timeout path.
func (s *Server) onTaskTimeout(id uint64) {
	s.mu.Lock()
	s.log.WithField("task_id", id).Info("task timed out")
	if _, exists := s.results[id]; !exists {
		s.results[id] = rte.Result{TaskID: id, Success: false}
	}
	delete(s.canceled, id)
	s.mu.Unlock()

	if s.OnTimeout != nil {
		s.OnTimeout(id)
	}
}

// GetNextID implements ClientInterface.
func (s *Server) GetNextID() (uint64, bool) {
	id, ok := s.unassignedIDs.pop()
	if ok {
		s.log.WithField("task_id", id).Info("server sends task id")
	} else {
		s.log.Debug("server has no task ids")
	}
	return id, ok
}

// ReturnID implements ClientInterface.
func (s *Server) ReturnID(id uint64) {
	s.log.WithField("task_id", id).Debug("server received returned task id")
	s.unassignedIDs.push(id)
}

// AddTask implements ClientInterface.
func (s *Server) AddTask(task rte.Task) {
	s.log.WithField("task_id", task.ID).Info("server received task")
	t := task
	s.tasks.push(taskItem{Task: &t})
}

// GetResults implements ClientInterface.
func (s *Server) GetResults(ids []uint64) []*rte.Result {
	s.log.WithField("task_ids", ids).Debug("server received results request")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rte.Result, len(ids))
	for i, id := range ids {
		if r, ok := s.results[id]; ok {
			rCopy := r
			out[i] = &rCopy
			delete(s.results, id)
		}
	}
	return out
}

// CancelTask implements ClientInterface.
func (s *Server) CancelTask(id uint64) {
	s.log.WithField("task_id", id).Info("server cancels task")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor.Remove(id)
	s.canceled[id] = struct{}{}
}

// GetTask implements WorkerInterface. It first advertises a freshly
// minted id on the unassigned-ids queue -- telling some client "a
// worker is waiting; here is the id it will receive" -- then blocks
// for a task to arrive. This ordering is the worker-availability
// advertisement protocol spec.md §4.3/§9 calls out as the linchpin of
// the whole design; it must happen before blocking, not after.
func (s *Server) GetTask() *rte.Task {
	s.log.Debug("server received task request")
	s.unassignedIDs.push(s.idGen.Next())

	item := s.tasks.pop()
	if item.Task == nil {
		s.log.Debug("server has no tasks")
		return nil
	}

	s.mu.Lock()
	s.monitor.Add(item.Task.ID)
	s.mu.Unlock()

	s.log.WithField("task_id", item.Task.ID).Info("server sends task")
	return item.Task
}

// SetResult implements WorkerInterface. A result for an id that
// already has one (the timeout path beat it there) is ignored: the
// already-stored result is presumed authoritative. See DESIGN.md's
// resolution of spec.md §9's "late result" open question.
func (s *Server) SetResult(result rte.Result) {
	s.log.WithField("task_id", result.TaskID).Info("server received result for task")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor.Remove(result.TaskID)
	if _, exists := s.results[result.TaskID]; !exists {
		s.results[result.TaskID] = result
	}
	delete(s.canceled, result.TaskID)
}

// IsTaskCanceled implements WorkerInterface. This single call does
// double duty as the heartbeat renewal point for id; splitting it
// into two RPCs would break the dual effect spec.md §9 requires stay
// atomic.
func (s *Server) IsTaskCanceled(id uint64) bool {
	s.log.WithField("task_id", id).Debug("server checks if task is canceled")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor.Beat(id)
	if _, ok := s.canceled[id]; ok {
		delete(s.canceled, id)
		s.log.WithField("task_id", id).Info("server confirms task is canceled")
		return true
	}
	return false
}

// ReleaseWaitingWorkers drains the unassigned-ids queue and pushes
// one release sentinel into the task queue per drained id, so every
// worker currently blocked in GetTask wakes up with a nil task.
func (s *Server) ReleaseWaitingWorkers() {
	ids := s.unassignedIDs.drain()
	for range ids {
		s.log.Info("server releases a waiting worker")
		s.tasks.push(taskItem{})
	}
}

// Stop halts the heartbeat supervisor. It does not drain outstanding
// workers; call ReleaseWaitingWorkers first if that is desired.
func (s *Server) Stop() {
	s.log.Debug("server stops")
	s.monitor.Stop()
}

// Stats is a point-in-time snapshot of server queue depths, used by
// the metrics package to populate Prometheus gauges.
type Stats struct {
	UnassignedIDs int
	PendingTasks  int
	Results       int
	Canceled      int
}

// Stats returns a snapshot of the server's internal queue depths.
func (s *Server) Stats() Stats {
	s.tasks.mu.Lock()
	pending := len(s.tasks.items)
	s.tasks.mu.Unlock()

	s.unassignedIDs.mu.Lock()
	unassigned := len(s.unassignedIDs.items)
	s.unassignedIDs.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		UnassignedIDs: unassigned,
		PendingTasks:  pending,
		Results:       len(s.results),
		Canceled:      len(s.canceled),
	}
}

var (
	_ ClientInterface = (*Server)(nil)
	_ WorkerInterface = (*Server)(nil)
)
