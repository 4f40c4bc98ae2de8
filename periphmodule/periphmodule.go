// Package periphmodule implements module.Module on top of
// periph.io/x/conn/v3's gpio.PinIO and periph.io/x/host/v3's platform
// driver registry, for boards periph.io has a native driver for. periph.io
// has no generic analog-pin abstraction of its own (ADC/DAC access is
// board-specific), so analog channels are backed by an injected conn.Conn
// talking to an external ADC/DAC chip over whatever bus periph.io has a
// driver for (SPI, I2C); a board with no such chip wired up can simply not
// configure any analog channels, falling through to module.Base's
// zero-value pass-through.
package periphmodule

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/tve/rtcore/module"
)

// AnalogConn is a single-channel ADC/DAC reachable over an injected
// periph.io conn.Conn (e.g. a SPI ADC like the MCP3008 family): Read
// returns one sample scaled to [0,1] (SPIAnalogConn: a 10-bit result
// divided by 1023); Write sends v to the chip, or returns an error for a
// read-only chip such as SPIAnalogConn.
type AnalogConn interface {
	Read() (float64, error)
	Write(v float64) error
}

// SPIAnalogConn adapts a raw periph.io conn.Conn to AnalogConn for a
// MCP3008-style ADC: write a 3-byte start/single-ended/channel command,
// read back 3 bytes, and take the low 10 bits of the last two as the
// sample.
type SPIAnalogConn struct {
	Conn    conn.Conn
	Channel int
}

func (c SPIAnalogConn) Read() (float64, error) {
	cmd := []byte{0x01, byte(0x80 | (c.Channel << 4)), 0x00}
	resp := make([]byte, 3)
	if err := c.Conn.Tx(cmd, resp); err != nil {
		return 0, fmt.Errorf("periphmodule: ADC read: %w", err)
	}
	raw := (uint16(resp[1]&0x03) << 8) | uint16(resp[2])
	return float64(raw) / 1023.0, nil
}

func (c SPIAnalogConn) Write(float64) error {
	return fmt.Errorf("periphmodule: SPIAnalogConn is read-only")
}

// Module adapts a set of named periph.io GPIO pins, plus optional
// per-channel AnalogConn devices, to module.Module. The pinNames map given
// to New maps a digital channel index to the pin name periph.io's gpioreg
// registry knows it by (e.g. "GPIO17", "P1_11"); the analogConns map maps
// an analog channel index to its backing AnalogConn.
type Module struct {
	module.Base

	mu          sync.Mutex
	pinNames    map[uint16]string
	pins        map[uint16]gpio.PinIO
	analogConns map[uint16]AnalogConn

	log func(format string, v ...interface{})
}

// New initializes the periph.io host drivers and returns a Module backed
// by pinNames and analogConns (either may be nil). log receives
// non-fatal errors; it may be nil.
func New(pinNames map[uint16]string, analogConns map[uint16]AnalogConn, log func(string, ...interface{})) (*Module, error) {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periphmodule: host.Init: %w", err)
	}
	return &Module{
		pinNames:    pinNames,
		pins:        make(map[uint16]gpio.PinIO),
		analogConns: analogConns,
		log:         log,
	}, nil
}

func (m *Module) ConfigureAnalogIn(index uint16) {
	if _, ok := m.analogConns[index]; !ok {
		m.log("periphmodule: no AnalogConn configured for analog channel %d", index)
	}
}

func (m *Module) ConfigureAnalogOut(index uint16) {
	if _, ok := m.analogConns[index]; !ok {
		m.log("periphmodule: no AnalogConn configured for analog channel %d", index)
	}
}

func (m *Module) ReadAnalogIn(index uint16) float64 {
	conn, ok := m.analogConns[index]
	if !ok {
		return 0
	}
	v, err := conn.Read()
	if err != nil {
		m.log("periphmodule: read analog channel %d: %v", index, err)
		return 0
	}
	return v
}

func (m *Module) WriteAnalogOut(index uint16, value float64) {
	conn, ok := m.analogConns[index]
	if !ok {
		return
	}
	if err := conn.Write(value); err != nil {
		m.log("periphmodule: write analog channel %d: %v", index, err)
	}
}

func (m *Module) ConfigureDigitalIn(index uint16) {
	pin := m.open(index)
	if pin == nil {
		return
	}
	if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		m.log("periphmodule: configure digital in %d: %v", index, err)
	}
}

func (m *Module) ConfigureDigitalOut(index uint16) {
	pin := m.open(index)
	if pin == nil {
		return
	}
	if err := pin.Out(gpio.Low); err != nil {
		m.log("periphmodule: configure digital out %d: %v", index, err)
	}
}

func (m *Module) open(index uint16) gpio.PinIO {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pin, ok := m.pins[index]; ok {
		return pin
	}
	name, ok := m.pinNames[index]
	if !ok {
		m.log("periphmodule: no pin name configured for channel %d", index)
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		m.log("periphmodule: unknown pin %q", name)
		return nil
	}
	m.pins[index] = pin
	return pin
}

func (m *Module) ReadDigitalIn(index uint16) bool {
	m.mu.Lock()
	pin := m.pins[index]
	m.mu.Unlock()
	if pin == nil {
		return false
	}
	return pin.Read() == gpio.High
}

func (m *Module) WriteDigitalOut(index uint16, value bool) {
	m.mu.Lock()
	pin := m.pins[index]
	m.mu.Unlock()
	if pin == nil {
		return
	}
	level := gpio.Low
	if value {
		level = gpio.High
	}
	if err := pin.Out(level); err != nil {
		m.log("periphmodule: write digital out %d: %v", index, err)
	}
}

var _ module.Module = (*Module)(nil)
