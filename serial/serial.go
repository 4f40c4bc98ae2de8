// Package serial defines the Port contract the LIDAR drivers need from a
// serial line -- blocking byte I/O plus the DTR control line used to power
// the RPLidar's motor -- and a concrete implementation backed by
// github.com/tarm/serial supporting 8-N-1 or 7-E-1/7-O-1 framing, hardware
// flow control disabled, a 1s read timeout (VMIN=0 semantics).
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Parity selects among the three supported framings.
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityEven Parity = 'E'
	ParityOdd  Parity = 'O'
)

// Port is the external Serial collaborator's contract: blocking byte I/O
// plus the DTR control line the RPLidar drivers toggle to power the motor
// on and off, and a non-blocking Readable check the A2 driver uses in its
// SCAN state and when draining input, so its run loop does not block on a
// read.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
	// SetDTR asserts or clears the DTR control line.
	SetDTR(on bool) error
	// Readable reports whether a read would return data without blocking.
	Readable() (bool, error)
}

// Config describes how to open a serial line.
type Config struct {
	Name     string
	Baud     int
	WordLen  byte // 7 or 8
	Parity   Parity
	StopBits byte // 1 or 2
}

// PortSerial is a Port backed by github.com/tarm/serial.
type PortSerial struct {
	port *serial.Port
	file interface {
		Fd() uintptr
	}
}

// Open opens the named serial device per cfg, with hardware flow control
// disabled and a 1s read timeout (VMIN=0 semantics).
func Open(cfg Config) (*PortSerial, error) {
	size := serial.Byte8
	if cfg.WordLen == 7 {
		size = serial.Byte7
	}
	parity := serial.ParityNone
	switch cfg.Parity {
	case ParityEven:
		parity = serial.ParityEven
	case ParityOdd:
		parity = serial.ParityOdd
	}
	stop := serial.Stop1
	if cfg.StopBits == 2 {
		stop = serial.Stop2
	}
	sc := &serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		Size:        size,
		Parity:      parity,
		StopBits:    stop,
		ReadTimeout: time.Second,
	}
	p, err := serial.OpenPort(sc)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Name, err)
	}
	return &PortSerial{port: p}, nil
}

func (p *PortSerial) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *PortSerial) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *PortSerial) Close() error                { return p.port.Close() }

// SetDTR asserts or clears the DTR control line.
func (p *PortSerial) SetDTR(on bool) error {
	return p.port.SetDTR(on)
}

// Readable always reports true: github.com/tarm/serial has no portable
// non-blocking peek, so callers relying on Readable for a non-blocking read
// (the A2 driver's SCAN polling and input drain) should instead set a short read
// deadline, which the 1s ReadTimeout above already approximates.
func (p *PortSerial) Readable() (bool, error) {
	return true, nil
}

var errClosed = errors.New("serial: port closed")
