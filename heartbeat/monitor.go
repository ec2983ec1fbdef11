// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package heartbeat

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// MultiHeartbeatMonitor tracks liveness for a set of uint64-keyed
// tokens and calls onDeath(id) at most once per Add, the first time a
// supervisor scan finds the token's Heartbeat no longer alive.  The
// supervisor runs at period threshold/2, which bounds detection
// latency to between threshold/2 and 3*threshold/2.
type MultiHeartbeatMonitor struct {
	threshold time.Duration
	onDeath   func(id uint64)
	clk       clock.Clock

	mu         sync.Mutex
	heartbeats map[uint64]*Heartbeat

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMultiHeartbeatMonitor starts a monitor with the given threshold
// and death callback.  If clk is nil, clock.New() (real wall time) is
// used; tests should pass clock.NewMock() to control time
// deterministically.
func NewMultiHeartbeatMonitor(threshold time.Duration, onDeath func(id uint64), clk clock.Clock) *MultiHeartbeatMonitor {
	if clk == nil {
		clk = clock.New()
	}
	m := &MultiHeartbeatMonitor{
		threshold:  threshold,
		onDeath:    onDeath,
		clk:        clk,
		heartbeats: make(map[uint64]*Heartbeat),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	ticker := clk.Ticker(threshold / 2)
	go m.supervise(ticker)
	return m
}

func (m *MultiHeartbeatMonitor) supervise(ticker *clock.Ticker) {
	defer close(m.done)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *MultiHeartbeatMonitor) scan() {
	var dead []uint64
	m.mu.Lock()
	for id, hb := range m.heartbeats {
		if !hb.IsAlive() {
			dead = append(dead, id)
			delete(m.heartbeats, id)
		}
	}
	m.mu.Unlock()

	for _, id := range dead {
		m.onDeath(id)
	}
}

// Add registers a new, freshly-alive Heartbeat for id.  If id is
// already registered, it is replaced.
func (m *MultiHeartbeatMonitor) Add(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats[id] = newHeartbeat(m.clk, m.threshold)
}

// Remove unregisters id, if present.  After Remove, Beat(id) is a
// no-op and IsAlive(id) is false, preventing a removed id from being
// resurrected by a stray late beat.
func (m *MultiHeartbeatMonitor) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.heartbeats, id)
}

// Beat renews id's heartbeat.  No-op if id is not registered.
func (m *MultiHeartbeatMonitor) Beat(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hb, ok := m.heartbeats[id]; ok {
		hb.Beat()
	}
}

// IsAlive reports whether id is registered and its heartbeat has not
// aged past the threshold.  Returns false for an unregistered id.
func (m *MultiHeartbeatMonitor) IsAlive(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	hb, ok := m.heartbeats[id]
	if !ok {
		return false
	}
	return hb.IsAlive()
}

// Stop halts the supervisor goroutine.  Idempotent.
func (m *MultiHeartbeatMonitor) Stop() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}
