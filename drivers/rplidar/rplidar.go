// Package rplidar drives the Slamtec RPLidar A1, a serial framed-protocol
// scanning LIDAR: a run loop blocks on serial I/O, decodes fixed-size
// frames, and dispatches decoded samples to a swappable delegate under a
// mutex.
package rplidar

import (
	"fmt"

	"github.com/tve/rtcore/internal/syncutil"
	"github.com/tve/rtcore/serial"
	"github.com/tve/rtcore/thread"
)

// Thresholds below which a decoded sample is dropped.
const (
	QualityThreshold = 10
	DistanceThreshold = 0.01
)

// Delegate receives decoded measurements. Registration (SetDelegate) is
// thread-safe against the driver's internal producer thread.
type Delegate interface {
	ReceiveMeasurement(quality, angleDeg, distanceMeters float64)
}

// DelegateFunc adapts a plain function to Delegate.
type DelegateFunc func(quality, angleDeg, distanceMeters float64)

func (f DelegateFunc) ReceiveMeasurement(quality, angleDeg, distanceMeters float64) {
	f(quality, angleDeg, distanceMeters)
}

// State is the driver's two-state lifecycle: STOP (motor off, idle) or SCAN
// (motor on, streaming measurements).
type State int

const (
	StateStop State = iota
	StateScan
)

func (s State) String() string {
	if s == StateScan {
		return "SCAN"
	}
	return "STOP"
}

// LogPrintf matches the logging callback convention used throughout this
// tree's drivers, so this package carries no logging-backend dependency
// of its own.
type LogPrintf func(format string, v ...interface{})

// Driver is an RPLidar A1 state machine: one handler thread owns all serial
// I/O; external callers only set demand, swap the delegate, or close it.
type Driver struct {
	port serial.Port
	log  LogPrintf

	mu       mutexState
	th       *thread.Thread
	fatalErr error

	header      [7]byte
	headerCount int
	data        [5]byte
	dataCount   int
}

// mutexState bundles every field the run loop and external callers
// contend on, guarded by its own embedded mutex plus a condition variable
// used to wake the loop immediately on a demand or delegate change.
type mutexState struct {
	syncutil.Guard
	state, demand State
	delegate      Delegate
	stopRequested bool
}

// New opens the A1 state machine on port: it asserts DTR (motor off),
// leaves state and demand at STOP, and starts the handler thread at the
// maximum thread priority.
func New(port serial.Port, delegate Delegate, log LogPrintf) (*Driver, error) {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	if err := port.SetDTR(true); err != nil {
		return nil, fmt.Errorf("rplidar: set DTR: %w", err)
	}
	d := &Driver{port: port, log: log}
	d.mu.delegate = delegate
	d.mu.Init()
	d.th = thread.New("rplidar-a1", d.run)
	d.th.SetPriority(thread.MaxPriority)
	if err := d.th.Start(); err != nil {
		return nil, fmt.Errorf("rplidar: start handler: %w", err)
	}
	return d, nil
}

// StartScan demands the SCAN state.
func (d *Driver) StartScan() {
	d.mu.Lock()
	d.mu.demand = StateScan
	d.mu.Broadcast()
	d.mu.Unlock()
}

// StopScan demands the STOP state.
func (d *Driver) StopScan() {
	d.mu.Lock()
	d.mu.demand = StateStop
	d.mu.Broadcast()
	d.mu.Unlock()
}

// SetDelegate atomically swaps the delegate.
func (d *Driver) SetDelegate(delegate Delegate) {
	d.mu.Lock()
	d.mu.delegate = delegate
	d.mu.Unlock()
}

// State returns the driver's current (not demanded) state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.state
}

// Err returns the fatal error that stopped the handler thread, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatalErr
}

// Close cooperatively stops the handler thread and closes the serial port.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.mu.stopRequested = true
	d.mu.Broadcast()
	d.mu.Unlock()
	err := d.port.Close() // unblocks a pending blocking Read
	d.th.Join()
	return err
}

func (d *Driver) run() {
	for {
		d.mu.Lock()
		for d.mu.state == StateStop && d.mu.demand == StateStop && !d.mu.stopRequested {
			d.mu.Wait()
		}
		if d.mu.stopRequested {
			d.mu.Unlock()
			return
		}
		state, demand := d.mu.state, d.mu.demand
		d.mu.Unlock()

		switch {
		case state == StateStop && demand == StateScan:
			d.transitionToScan()
		case state == StateScan && demand == StateStop:
			d.transitionToStop()
		case state == StateScan && demand == StateScan:
			if err := d.readAndProcess(); err != nil {
				d.log("rplidar: %v", err)
				d.mu.Lock()
				d.fatalErr = err
				d.mu.state = StateStop
				d.mu.Unlock()
			}
		}
	}
}

// transitionToScan implements the STOP -> SCAN transition: clear DTR
// (motor on), drain buffered input, reset counters, send the start
// command.
func (d *Driver) transitionToScan() {
	d.port.SetDTR(false)
	drain(d.port)
	d.headerCount, d.dataCount = 0, 0
	d.port.Write([]byte{0xA5, 0x20})
	d.mu.Lock()
	d.mu.state = StateScan
	d.mu.Unlock()
}

// transitionToStop implements the SCAN -> STOP transition: send the stop
// command, set DTR (motor off).
func (d *Driver) transitionToStop() {
	d.port.Write([]byte{0xA5, 0x25})
	d.port.SetDTR(true)
	d.mu.Lock()
	d.mu.state = StateStop
	d.mu.Unlock()
}

// readAndProcess blocks for one byte and feeds the header/data
// accumulators, dispatching a decoded measurement once a full 5-byte data
// packet has arrived.
func (d *Driver) readAndProcess() error {
	var b [1]byte
	n, err := d.port.Read(b[:])
	if err != nil {
		return fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		return nil
	}
	if d.headerCount < 7 {
		d.header[d.headerCount] = b[0]
		d.headerCount++
		return nil
	}
	d.data[d.dataCount] = b[0]
	d.dataCount++
	if d.dataCount < 5 {
		return nil
	}
	d.dataCount = 0
	d.decodeAndDispatch()
	return nil
}

// decodeAndDispatch decodes a 5-byte measurement packet and dispatches it
// to the delegate unless it fails the quality/distance thresholds, in
// which case it is silently dropped.
func (d *Driver) decodeAndDispatch() {
	quality := float64(d.data[0] >> 2)
	angleRaw := uint16(d.data[1]) | uint16(d.data[2])<<8
	angle := 360.0 - float64(angleRaw>>1)/64.0
	distRaw := uint16(d.data[3]) | uint16(d.data[4])<<8
	distance := float64(distRaw) / 4000.0

	if quality < QualityThreshold || distance < DistanceThreshold {
		return
	}

	d.mu.Lock()
	delegate := d.mu.delegate
	d.mu.Unlock()
	if delegate != nil {
		delegate.ReceiveMeasurement(quality, angle, distance)
	}
}

// drain discards any bytes currently buffered on port without blocking.
func drain(port serial.Port) {
	for {
		readable, err := port.Readable()
		if err != nil || !readable {
			return
		}
		var b [64]byte
		n, err := port.Read(b[:])
		if n == 0 || err != nil {
			return
		}
	}
}
