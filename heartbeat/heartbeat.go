// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package heartbeat

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Heartbeat is a passive liveness token: it records the last time it
// was beaten and reports whether that was recent enough, relative to
// a fixed threshold.  Beat and IsAlive are mutually exclusive.
type Heartbeat struct {
	clk       clock.Clock
	threshold time.Duration

	mu       sync.Mutex
	lastBeat time.Time
}

// newHeartbeat creates a Heartbeat already alive as of clk.Now().
func newHeartbeat(clk clock.Clock, threshold time.Duration) *Heartbeat {
	return &Heartbeat{
		clk:       clk,
		threshold: threshold,
		lastBeat:  clk.Now(),
	}
}

// Beat records the current time as the last beat.
func (h *Heartbeat) Beat() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBeat = h.clk.Now()
}

// IsAlive reports whether less than threshold has elapsed since the
// last Beat.
func (h *Heartbeat) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clk.Now().Sub(h.lastBeat) < h.threshold
}
