// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestHeartBeatsUntilStopped(t *testing.T) {
	clk := clock.NewMock()
	var beats int32
	h := NewHeart(clk, time.Second, func() {
		atomic.AddInt32(&beats, 1)
	})

	clk.Add(3 * time.Second)
	// Give the heart's goroutine a moment to process the advanced
	// mock clock before asserting.
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&beats), int32(3))

	h.Stop()
	h.Join()

	before := atomic.LoadInt32(&beats)
	clk.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt32(&beats), "no beats after Stop")
}

func TestHeartStopIdempotent(t *testing.T) {
	clk := clock.NewMock()
	h := NewHeart(clk, time.Second, func() {})
	h.Stop()
	h.Stop()
	h.Join()
}
