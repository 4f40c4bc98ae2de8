// Package rplidara2 drives the Slamtec RPLidar A2, the motor-PWM variant of
// the A1 (see github.com/tve/rtcore/drivers/rplidar) with an extra pair of
// timed states for spinning the motor up and down.
package rplidara2

import (
	"fmt"

	"github.com/tve/rtcore/drivers/rplidar"
	"github.com/tve/rtcore/internal/syncutil"
	"github.com/tve/rtcore/serial"
	"github.com/tve/rtcore/thread"
	"github.com/tve/rtcore/timer"
)

// Re-exported so callers can share one Delegate/threshold vocabulary
// between the A1 and A2 drivers.
type (
	Delegate     = rplidar.Delegate
	DelegateFunc = rplidar.DelegateFunc
	LogPrintf    = rplidar.LogPrintf
)

const (
	QualityThreshold  = rplidar.QualityThreshold
	DistanceThreshold = rplidar.DistanceThreshold

	defaultMotorPWM = 200
	spinTimeoutMs   = 500
	pollInterval    = 2 // ms, between non-blocking polls
)

// State is the A2's four-state lifecycle.
type State int

const (
	StateOff State = iota
	StateStart
	StateScan
	StateStop
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateScan:
		return "SCAN"
	case StateStop:
		return "STOP"
	default:
		return "OFF"
	}
}

type mutexState struct {
	syncutil.Guard
	state, demand State
	delegate      Delegate
	stopRequested bool
}

// Driver is an RPLidar A2 state machine.
type Driver struct {
	port serial.Port
	log  LogPrintf
	tm   *timer.Timer
	pwm  uint16

	mu       mutexState
	th       *thread.Thread
	fatalErr error

	header      [7]byte
	headerCount int
	data        [5]byte
	dataCount   int
}

// New opens the A2 state machine on port with demand and state at OFF, and
// starts the handler thread at the maximum thread priority. The motor PWM
// duty cycle defaults to 200.
func New(port serial.Port, delegate Delegate, log LogPrintf) (*Driver, error) {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	d := &Driver{port: port, log: log, tm: timer.New(), pwm: defaultMotorPWM}
	d.tm.Start()
	d.mu.delegate = delegate
	d.mu.Init()
	d.th = thread.New("rplidar-a2", d.run)
	d.th.SetPriority(thread.MaxPriority)
	if err := d.th.Start(); err != nil {
		return nil, fmt.Errorf("rplidara2: start handler: %w", err)
	}
	return d, nil
}

// StartScan demands the SCAN state (driving the driver through START).
func (d *Driver) StartScan() {
	d.mu.Lock()
	d.mu.demand = StateScan
	d.mu.Unlock()
}

// StopScan demands the OFF state (driving the driver through STOP).
func (d *Driver) StopScan() {
	d.mu.Lock()
	d.mu.demand = StateOff
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

// Close cooperatively stops the handler thread and the internal timer.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.mu.stopRequested = true
	d.mu.Unlock()
	d.th.Join()
	d.tm.Close()
	return d.port.Close()
}

func (d *Driver) run() {
	for {
		d.mu.Lock()
		if d.mu.stopRequested {
			d.mu.Unlock()
			return
		}
		state, demand := d.mu.state, d.mu.demand
		d.mu.Unlock()

		switch state {
		case StateOff:
			if demand == StateScan {
				d.offToStart()
			} else {
				thread.Sleep(pollInterval)
			}
		case StateStart:
			switch {
			case demand == StateOff:
				d.startToStop()
			case d.tm.Read() >= spinTimeoutMs:
				d.startToScan()
			default:
				thread.Sleep(pollInterval)
			}
		case StateScan:
			if demand == StateOff {
				d.scanToStop()
			} else if err := d.scanReadOnce(); err != nil {
				d.log("rplidara2: %v", err)
				d.mu.Lock()
				d.fatalErr = err
				d.mu.state = StateStop
				d.mu.Unlock()
				d.tm.Reset()
			}
		case StateStop:
			if d.tm.Read() >= spinTimeoutMs {
				d.stopToOff()
			} else {
				thread.Sleep(pollInterval)
			}
		}
	}
}

// sendMotorPWM writes the SET_MOTOR_PWM command with the given duty cycle
// and an XOR checksum of the preceding bytes.
func (d *Driver) sendMotorPWM(pwm uint16) {
	cmd := []byte{0xA5, 0xF0, 0x02, byte(pwm), byte(pwm >> 8)}
	var checksum byte
	for _, b := range cmd {
		checksum ^= b
	}
	d.port.Write(append(cmd, checksum))
}

// offToStart implements OFF -> START: send the motor PWM command at the
// configured duty cycle, reset the spin-up timer.
func (d *Driver) offToStart() {
	d.sendMotorPWM(d.pwm)
	d.tm.Reset()
	d.mu.Lock()
	d.mu.state = StateStart
	d.mu.Unlock()
}

// startToScan implements START -> SCAN: drain buffered input, reset frame
// counters, send the scan start command.
func (d *Driver) startToScan() {
	drain(d.port)
	d.headerCount, d.dataCount = 0, 0
	d.port.Write([]byte{0xA5, 0x20})
	d.mu.Lock()
	d.mu.state = StateScan
	d.mu.Unlock()
}

// startToStop implements START -> STOP: send the motor-off PWM command and
// reset the spin-down timer. This path does not also send the
// measurement-stop command -- the motor was never scanning, so there is
// no scan to stop.
func (d *Driver) startToStop() {
	d.sendMotorPWM(0)
	d.tm.Reset()
	d.mu.Lock()
	d.mu.state = StateStop
	d.mu.Unlock()
}

// scanToStop implements SCAN -> STOP: send the measurement-stop command,
// then the motor-off PWM command, reset the spin-down timer.
func (d *Driver) scanToStop() {
	d.port.Write([]byte{0xA5, 0x25})
	d.sendMotorPWM(0)
	d.tm.Reset()
	d.mu.Lock()
	d.mu.state = StateStop
	d.mu.Unlock()
}

// stopToOff implements STOP -> OFF: set DTR.
func (d *Driver) stopToOff() {
	d.port.SetDTR(true)
	d.mu.Lock()
	d.mu.state = StateOff
	d.mu.Unlock()
}

// scanReadOnce performs one non-blocking serial read and feeds the
// header/data accumulators, dispatching a decoded measurement once a full
// 5-byte data packet has arrived.
func (d *Driver) scanReadOnce() error {
	readable, err := d.port.Readable()
	if err != nil {
		return fmt.Errorf("serial readable: %w", err)
	}
	if !readable {
		thread.Sleep(pollInterval)
		return nil
	}
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
