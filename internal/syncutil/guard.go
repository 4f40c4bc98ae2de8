// Package syncutil provides small concurrency helpers shared by the driver
// packages, which all need the same shape: a mutex guarding a state struct
// plus a condition variable so a handler thread can block until demand
// changes instead of polling.
package syncutil

import "sync"

// Guard is a mutex with an attached condition variable. Embed it in a state
// struct, call Init once, then use Lock/Unlock/Wait/Broadcast like a normal
// sync.Mutex plus sync.Cond pair without having to wire the Locker up by
// hand.
type Guard struct {
	sync.Mutex
	cond *sync.Cond
}

// Init must be called once, after the Guard's final address is known
// (typically right after constructing the struct that embeds it).
func (g *Guard) Init() {
	g.cond = sync.NewCond(&g.Mutex)
}

// Wait blocks on the condition variable; the Guard must be locked.
func (g *Guard) Wait() { g.cond.Wait() }

// Broadcast wakes every goroutine blocked in Wait; the Guard must be locked.
func (g *Guard) Broadcast() { g.cond.Broadcast() }
