// Package embdmodule implements module.Module on top of
// github.com/kidoman/embd's generic GPIO/analog pin drivers, for boards
// where periph.io has no native driver. Channel indices map to embd pin
// names given at construction, and the Configure* calls open the
// underlying embd pin lazily on first use.
package embdmodule

import (
	"sync"

	"github.com/kidoman/embd"

	"github.com/tve/rtcore/module"
)

// Module adapts a set of named embd GPIO/analog pins to module.Module.
// The digitalPins and analogPins maps given to New map a channel index to
// the embd pin key (e.g. "GPIO17", "P9_40") the board's embd host driver
// expects; a Configure* call for an index missing from them logs an error
// and leaves that channel unopened.
type Module struct {
	module.Base

	mu          sync.Mutex
	digitalPins map[uint16]string
	analogPins  map[uint16]string

	digital map[uint16]embd.DigitalPin
	analog  map[uint16]embd.AnalogPin

	log func(format string, v ...interface{})
}

// New creates an embd-backed Module. digitalPins and analogPins map
// channel index to embd pin key; either may be nil if that channel type
// is unused. log receives non-fatal driver errors (embd's Configure*
// calls cannot themselves return an error, per the module.Module
// interface, so failures are logged and the channel silently reads back
// its zero value).
func New(digitalPins, analogPins map[uint16]string, log func(string, ...interface{})) *Module {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Module{
		digitalPins: digitalPins,
		analogPins:  analogPins,
		digital:     make(map[uint16]embd.DigitalPin),
		analog:      make(map[uint16]embd.AnalogPin),
		log:         log,
	}
}

func (m *Module) ConfigureDigitalIn(index uint16) { m.openDigital(index, embd.In) }
func (m *Module) ConfigureDigitalOut(index uint16) { m.openDigital(index, embd.Out) }

func (m *Module) openDigital(index uint16, dir embd.Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.digital[index]; ok {
		return
	}
	name, ok := m.digitalPins[index]
	if !ok {
		m.log("embdmodule: no pin name configured for digital channel %d", index)
		return
	}
	pin, err := embd.NewDigitalPin(name)
	if err != nil {
		m.log("embdmodule: open digital pin %q: %v", name, err)
		return
	}
	if err := pin.SetDirection(dir); err != nil {
		m.log("embdmodule: set direction on pin %q: %v", name, err)
	}
	m.digital[index] = pin
}

func (m *Module) ReadDigitalIn(index uint16) bool {
	m.mu.Lock()
	pin := m.digital[index]
	m.mu.Unlock()
	if pin == nil {
		return false
	}
	v, err := pin.Read()
	if err != nil {
		m.log("embdmodule: read digital pin %d: %v", index, err)
		return false
	}
	return v != 0
}

func (m *Module) WriteDigitalOut(index uint16, value bool) {
	m.mu.Lock()
	pin := m.digital[index]
	m.mu.Unlock()
	if pin == nil {
		return
	}
	level := 0
	if value {
		level = 1
	}
	if err := pin.Write(level); err != nil {
		m.log("embdmodule: write digital pin %d: %v", index, err)
	}
}

func (m *Module) ConfigureAnalogIn(index uint16)  { m.openAnalog(index) }
func (m *Module) ConfigureAnalogOut(index uint16) { m.openAnalog(index) }

func (m *Module) openAnalog(index uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analog[index]; ok {
		return
	}
	name, ok := m.analogPins[index]
	if !ok {
		m.log("embdmodule: no pin name configured for analog channel %d", index)
		return
	}
	pin, err := embd.NewAnalogPin(name)
	if err != nil {
		m.log("embdmodule: open analog pin %q: %v", name, err)
		return
	}
	m.analog[index] = pin
}

func (m *Module) ReadAnalogIn(index uint16) float64 {
	m.mu.Lock()
	pin := m.analog[index]
	m.mu.Unlock()
	if pin == nil {
		return 0
	}
	v, err := pin.Read()
	if err != nil {
		m.log("embdmodule: read analog pin %d: %v", index, err)
		return 0
	}
	return float64(v)
}

func (m *Module) WriteAnalogOut(index uint16, value float64) {
	m.mu.Lock()
	pin := m.analog[index]
	m.mu.Unlock()
	if pin == nil {
		return
	}
	if err := pin.Write(int(value)); err != nil {
		m.log("embdmodule: write analog pin %d: %v", index, err)
	}
}

var _ module.Module = (*Module)(nil)
