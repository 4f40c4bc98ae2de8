// Package thread implements named background threads with a priority and a
// start/alive/join lifecycle, on top of a goroutine pinned to its own kernel
// thread. It generalizes the single Realtime helper that earlier drivers in
// this tree used to call directly: lock the goroutine to an OS thread, then
// ask the kernel scheduler for round-robin scheduling at an elevated
// priority.
package thread

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Clamped priority range, derived once from the platform's SCHED_RR limits.
// MinPriority sits one above the platform round-robin floor so that priority
// 0 is never handed to the kernel (some schedulers reserve it); MaxPriority
// is the midpoint of the platform's [min,max] range, leaving headroom above
// user threads for whatever hosts a true hard real-time task.
var (
	MinPriority int
	MaxPriority int

	schedOnce sync.Once
)

func initSchedRange() {
	lo, err := unix.SchedGetPriorityMin(unix.SCHED_RR)
	if err != nil {
		lo = 1
	}
	hi, err := unix.SchedGetPriorityMax(unix.SCHED_RR)
	if err != nil {
		hi = 99
	}
	MinPriority = lo + 1
	MaxPriority = lo + (hi-lo)/2
}

func clampPriority(p int) int {
	schedOnce.Do(initSchedRange)
	switch {
	case p < MinPriority:
		return MinPriority
	case p > MaxPriority:
		return MaxPriority
	default:
		return p
	}
}

// platformMinStackSize approximates PTHREAD_STACK_MIN on linux/amd64. Go
// goroutines grow their own stack dynamically; this only bounds the stack
// size hint stored on the Thread so callers mirroring the embedded-systems
// API (fixed worker stacks) get a realistic clamp.
const platformMinStackSize = 16 * 1024

// Thread is a named background thread with a priority and a lifecycle.
// Construction is inert: nothing runs until Start is called.
type Thread struct {
	mu        sync.Mutex
	name      string
	stackSize int
	priority  int
	run       func()

	alive atomic.Bool
	done  chan struct{}
}

// New creates an inert Thread that will invoke run when started.
func New(name string, run func()) *Thread {
	schedOnce.Do(initSchedRange)
	return &Thread{
		name:      name,
		stackSize: platformMinStackSize,
		priority:  MinPriority,
		run:       run,
	}
}

// SetName sets the thread's name.
func (t *Thread) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

// GetName returns the thread's name.
func (t *Thread) GetName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetStackSize requests a stack size in bytes, clamped up to the platform
// minimum. It returns 0 on success and a non-zero status if bytes is
// negative.
func (t *Thread) SetStackSize(bytes int) int {
	if bytes < 0 {
		return -1
	}
	if bytes < platformMinStackSize {
		bytes = platformMinStackSize
	}
	t.mu.Lock()
	t.stackSize = bytes
	t.mu.Unlock()
	return 0
}

// GetStackSize returns the effective (clamped) stack size in bytes.
func (t *Thread) GetStackSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stackSize
}

// SetPriority sets the thread's priority, clamped to [MinPriority,MaxPriority].
func (t *Thread) SetPriority(p int) {
	t.mu.Lock()
	t.priority = clampPriority(p)
	t.mu.Unlock()
}

// GetPriority returns the thread's current (clamped) priority.
func (t *Thread) GetPriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// Start spawns the thread body. alive is true from the point Start returns
// until the run body returns.
func (t *Thread) Start() error {
	if t.alive.Load() {
		return fmt.Errorf("thread %q: already started", t.GetName())
	}
	t.done = make(chan struct{})
	t.alive.Store(true)
	priority := t.GetPriority()
	go func() {
		defer close(t.done)
		defer t.alive.Store(false)
		runtime.LockOSThread()
		if err := setRealtimePriority(priority); err != nil {
			// Degrade silently: not every host grants CAP_SYS_NICE. The
			// thread still runs, just without elevated scheduling.
			_ = err
		}
		if t.run != nil {
			t.run()
		}
	}()
	return nil
}

// setRealtimePriority applies round-robin scheduling at the given priority
// to the calling (already OS-thread-locked) goroutine.
func setRealtimePriority(priority int) error {
	return unix.SchedSetscheduler(unix.Gettid(), unix.SCHED_RR, &unix.SchedParam{Priority: int32(priority)})
}

// IsAlive reports whether the run body has not yet returned.
func (t *Thread) IsAlive() bool {
	return t.alive.Load()
}

// Join blocks until the run body returns.
func (t *Thread) Join() {
	if t.done == nil {
		return
	}
	<-t.done
}

// JoinTimeout blocks until the run body returns or timeout elapses,
// reporting whether the thread had finished.
func (t *Thread) JoinTimeout(timeout time.Duration) bool {
	if t.done == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Sleep blocks the calling goroutine for the given number of milliseconds.
// Go's runtime timers are not subject to EINTR the way a blocking OS sleep
// call is, so unlike a thin syscall wrapper this never needs to resume a
// partially-elapsed sleep.
func Sleep(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// CurrentTimeMillis returns the wall-clock time in milliseconds, truncated
// to a signed 32-bit value.
func CurrentTimeMillis() int32 {
	return int32(time.Now().UnixMilli())
}

// CurrentTimeMicros returns the wall-clock time in microseconds, truncated
// to a signed 32-bit value.
func CurrentTimeMicros() int32 {
	return int32(time.Now().UnixMicro())
}
