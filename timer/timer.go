// Package timer implements a monotonic, millisecond-resolution counter
// driven by a 1ms realtime.RealtimeThread.
package timer

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/tve/rtcore/realtime"
	"github.com/tve/rtcore/thread"
)

// Timer is a saturating, start/stop/reset millisecond counter.
type Timer struct {
	time    atomic.Uint32
	running atomic.Bool
	rt      *realtime.RealtimeThread
}

// New creates a Timer and immediately starts its internal 1ms tick thread;
// the counter itself is stopped until Start is called.
func New() *Timer {
	t := &Timer{}
	t.rt = realtime.New("timer", time.Millisecond, thread.MinPriority, t.tick)
	t.rt.Start()
	return t
}

func (t *Timer) tick() {
	if !t.running.Load() {
		return
	}
	for {
		cur := t.time.Load()
		if cur == math.MaxUint32 {
			return
		}
		if t.time.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// Start sets running to true; ticks resume incrementing the counter.
func (t *Timer) Start() { t.running.Store(true) }

// Stop sets running to false without zeroing the counter.
func (t *Timer) Stop() { t.running.Store(false) }

// Reset zeroes the counter.
func (t *Timer) Reset() { t.time.Store(0) }

// Read returns the current counter value.
func (t *Timer) Read() uint32 { return t.time.Load() }

// Close stops the internal tick thread for good. A Timer that is no longer
// referenced but never Closed will keep its tick thread running.
func (t *Timer) Close() {
	t.rt.Stop()
}
