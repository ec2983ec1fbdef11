// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package heartbeat provides the liveness-tracking primitives RTE
// uses to detect dead workers: an active periodic ticker (Heart), a
// passive aging timestamp (Heartbeat), and a keyed table of the
// latter with a single supervisor goroutine (MultiHeartbeatMonitor).
package heartbeat

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Heart is a periodic ticker that invokes a callback every period
// until stopped.  Stop is idempotent and, once it and a following
// Join return, no further callback invocations will occur.
type Heart struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHeart starts a new Heart on clk, invoking onBeat every period
// until Stop is called.  onBeat runs on the Heart's own goroutine; it
// must not block for longer than period or beats will be skipped.
func NewHeart(clk clock.Clock, period time.Duration, onBeat func()) *Heart {
	h := &Heart{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	ticker := clk.Ticker(period)
	go func() {
		defer close(h.done)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				onBeat()
			}
		}
	}()
	return h
}

// Stop signals the Heart's goroutine to exit.  It does not wait for
// the goroutine to actually exit; call Join for that.  Safe to call
// more than once.
func (h *Heart) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// Join blocks until the Heart's goroutine has exited.  Must be called
// after Stop to observe the stop synchronously, matching the Python
// original's stop()+join() pairing.
func (h *Heart) Join() {
	<-h.done
}
