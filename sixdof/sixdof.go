// Package sixdof drives a USB 6-DOF input device (a 3Dconnexion-style
// SpaceMouse): a background thread polls HID reports and decodes them
// into translation, rotation and button events for a delegate. USB
// enumeration and HID report descriptor parsing are out of scope -- an
// application supplies an already-opened Reader to New. Grounded on the
// button-polling/event-dispatch loop shape of seedhammer-seedhammer's
// driver/wshat, adapted from its edge-triggered GPIO polling to a HID
// report-stream read loop, and kept per-instance rather than as package
// globals so more than one device can be driven at once.
package sixdof

import (
	"encoding/binary"
	"fmt"

	"github.com/tve/rtcore/internal/syncutil"
	"github.com/tve/rtcore/thread"
)

// HID report IDs used by the common 3Dconnexion SpaceMouse protocol.
const (
	reportTranslation = 1
	reportRotation    = 2
	reportButtons     = 3
)

// Reader is the HID report stream a concrete USB backend supplies; Read
// blocks until one report is available, returning its report ID in
// buf[0] followed by the payload, matching a raw USB HID interrupt
// transfer. This package owns no USB transport of its own.
type Reader interface {
	Read(buf []byte) (int, error)
	Close() error
}

// Delegate receives decoded 6-DOF events. All three methods are called
// from the driver's own poll thread; registration (SetDelegate) is
// thread-safe against it.
type Delegate interface {
	ReceiveTranslation(x, y, z int16)
	ReceiveRotation(rx, ry, rz int16)
	ReceiveButtons(mask uint32)
}

// LogPrintf matches the logging callback convention used throughout this
// tree's drivers.
type LogPrintf func(format string, v ...interface{})

type mutexState struct {
	syncutil.Guard
	delegate      Delegate
	stopRequested bool
}

// Driver polls reader on its own thread and dispatches decoded reports to
// the delegate.
type Driver struct {
	reader Reader
	log    LogPrintf

	mu mutexState
	th *thread.Thread

	fatalErr error
}

// New starts polling reader immediately on a new background thread.
func New(reader Reader, delegate Delegate, log LogPrintf) (*Driver, error) {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	d := &Driver{reader: reader, log: log}
	d.mu.delegate = delegate
	d.mu.Init()
	d.th = thread.New("sixdof", d.run)
	if err := d.th.Start(); err != nil {
		return nil, fmt.Errorf("sixdof: start poll thread: %w", err)
	}
	return d, nil
}

// SetDelegate atomically swaps the delegate.
func (d *Driver) SetDelegate(delegate Delegate) {
	d.mu.Lock()
	d.mu.delegate = delegate
	d.mu.Unlock()
}

// Err returns the fatal error that stopped the poll thread, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatalErr
}

// Close cooperatively stops the poll thread and closes the reader.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.mu.stopRequested = true
	d.mu.Unlock()
	err := d.reader.Close() // unblocks a pending blocking Read
	d.th.Join()
	return err
}

func (d *Driver) run() {
	var buf [16]byte
	for {
		d.mu.Lock()
		stop := d.mu.stopRequested
		d.mu.Unlock()
		if stop {
			return
		}

		n, err := d.reader.Read(buf[:])
		if err != nil {
			d.log("sixdof: %v", err)
			d.mu.Lock()
			d.fatalErr = fmt.Errorf("read HID report: %w", err)
			d.mu.Unlock()
			return
		}
		if n < 1 {
			continue
		}
		d.decodeAndDispatch(buf[:n])
	}
}

// decodeAndDispatch decodes one HID report and dispatches it to the
// delegate. Translation and rotation reports carry three little-endian
// int16 axis values; button reports carry a bitmask.
func (d *Driver) decodeAndDispatch(report []byte) {
	d.mu.Lock()
	delegate := d.mu.delegate
	d.mu.Unlock()
	if delegate == nil {
		return
	}

	id, payload := report[0], report[1:]
	switch id {
	case reportTranslation:
		if len(payload) < 6 {
			return
		}
		x := int16(binary.LittleEndian.Uint16(payload[0:]))
		y := int16(binary.LittleEndian.Uint16(payload[2:]))
		z := int16(binary.LittleEndian.Uint16(payload[4:]))
		delegate.ReceiveTranslation(x, y, z)
	case reportRotation:
		if len(payload) < 6 {
			return
		}
		rx := int16(binary.LittleEndian.Uint16(payload[0:]))
		ry := int16(binary.LittleEndian.Uint16(payload[2:]))
		rz := int16(binary.LittleEndian.Uint16(payload[4:]))
		delegate.ReceiveRotation(rx, ry, rz)
	case reportButtons:
		if len(payload) < 4 {
			return
		}
		mask := binary.LittleEndian.Uint32(payload[0:])
		delegate.ReceiveButtons(mask)
	}
}
