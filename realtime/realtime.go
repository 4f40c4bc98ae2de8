// Package realtime provides RealtimeThread, a periodic thread that runs a
// tick function at a fixed period and exposes a WaitForNextPeriod barrier.
// Its only job is to deliver evenly spaced ticks, built on top of
// thread.Thread.
package realtime

import (
	"time"

	"github.com/tve/rtcore/thread"
)

// RealtimeThread runs fn once per period, on its own thread.Thread at the
// given priority, until Stop is called.
type RealtimeThread struct {
	period time.Duration
	fn     func()
	th     *thread.Thread
	tick   chan struct{}
	stop   chan struct{}
}

// New creates an inert RealtimeThread. Start must be called to begin
// ticking.
func New(name string, period time.Duration, priority int, fn func()) *RealtimeThread {
	rt := &RealtimeThread{
		period: period,
		fn:     fn,
		tick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	rt.th = thread.New(name, rt.loop)
	rt.th.SetPriority(priority)
	return rt
}

func (rt *RealtimeThread) loop() {
	ticker := time.NewTicker(rt.period)
	defer ticker.Stop()
	for {
		select {
		case <-rt.stop:
			return
		case <-ticker.C:
			if rt.fn != nil {
				rt.fn()
			}
			select {
			case rt.tick <- struct{}{}:
			default:
			}
		}
	}
}

// Start begins the periodic ticking.
func (rt *RealtimeThread) Start() error {
	return rt.th.Start()
}

// Stop ends the periodic ticking; it does not wait for the thread to exit,
// call Join for that.
func (rt *RealtimeThread) Stop() {
	close(rt.stop)
}

// Join blocks until the thread has exited.
func (rt *RealtimeThread) Join() {
	rt.th.Join()
}

// WaitForNextPeriod blocks until the next tick has been delivered.
func (rt *RealtimeThread) WaitForNextPeriod() {
	<-rt.tick
}
