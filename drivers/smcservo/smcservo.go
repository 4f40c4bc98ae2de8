// Package smcservo drives an SMC JXCE1 electric actuator over EtherCAT:
// slave bring-up through the application-layer state machine, cyclic PDO
// packing, and a target-position command/feedback state machine ticked
// once per cycle from the EtherCAT collaborator. The bring-up/PDO naming
// follows gocanopen-style CiA 402 state conventions, wired to a
// mutex-guarded Module adapter.
package smcservo

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tve/rtcore/ethercat"
	"github.com/tve/rtcore/module"
	"github.com/tve/rtcore/timer"
)

// State is the driver's target-position command state machine.
type State int

const (
	StateOff State = iota
	StateResetAlarm
	StateServoOn
	StateSetup
	StateIdle
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateResetAlarm:
		return "RESET_ALARM"
	case StateServoOn:
		return "SERVO_ON"
	case StateSetup:
		return "SETUP"
	case StateIdle:
		return "IDLE"
	case StateBusy:
		return "BUSY"
	default:
		return "OFF"
	}
}

// Demand is the externally requested target of the state machine: either
// OFF or IDLE (readying the device). BUSY is entered automatically from
// IDLE on a pending target, never demanded directly.
type Demand int

const (
	DemandOff Demand = iota
	DemandIdle
)

// Input-port status bits.
const (
	StatusBusy  uint16 = 0x0100
	StatusSVRE  uint16 = 0x0200
	StatusINP   uint16 = 0x0800
	StatusEStop uint16 = 0x4000
	StatusAlarm uint16 = 0x8000
)

// Output-port command words written during bring-up.
const (
	outputReset     uint16 = 0x0800
	outputSVON      uint16 = 0x0200
	outputSetupSVON uint16 = 0x1200
	numericalReady  uint16 = 0xFFF0
)

// timeoutMs is the TIMEOUT guard on every state transition, measured by
// the driver's own millisecond Timer, reset on every transition.
const timeoutMs = 100

// RX-PDO is 36 bytes, command fields start at byte 10; TX-PDO is 20 bytes,
// feedback fields start at byte 10.
const (
	rxpdoLen = 36
	txpdoLen = 20
	fieldOff = 10
)

// command is the JXCE1 command word set, packed into the RX-PDO.
type command struct {
	outputPort        uint16
	numericalDataFlag uint16
	startFlag         byte
	movementMode      byte
	speed             uint16
	targetPosition    int32
	acceleration      uint16
	deceleration      uint16
	pushingForce      uint16
	triggerLV         uint16
	pushingSpeed      uint16
	movingForce       uint16
	area1             int32
	area2             int32
	inPosition        int32
}

// feedback is the JXCE1 feedback word set, unpacked from the TX-PDO.
type feedback struct {
	inputPort            uint16
	controllerInputFlag  uint16
	currentPosition      int32
	currentSpeed         uint16
	currentPushingForce  uint16
	targetPositionEcho   int32
	alarm                [4]byte
}

// Driver is an SMCServoJXCE1 state machine and EtherCAT slave device. It
// implements module.Module so its ready/demand signal can be addressed as
// a digital channel at index 0.
type Driver struct {
	module.Base

	mu    sync.Mutex
	state State
	demand Demand
	tm    *timer.Timer

	cmd command
	fb  feedback

	pendingTarget int32
	pendingDirty  bool
}

// New brings t through INIT -> OP, configuring the four SM blocks and
// registering the RX/TX-PDO datagrams, then returns a Driver ready to
// accept demand and position commands. Bring-up failure is returned to
// the caller, who is expected to treat it as fatal.
func New(t ethercat.Transport, log ethercat.LogPrintf) (*Driver, error) {
	d := &Driver{tm: timer.New()}
	d.tm.Start()

	sms := [4]ethercat.SMConfig{
		{Address: 0x1000, Length: 128, Direction: ethercat.SMWrite, PDIIRQ: true, Control: 0x26},
		{Address: 0x1200, Length: 128, Direction: ethercat.SMRead, PDIIRQ: true, Control: 0x22},
		{Address: 0x1400, Length: rxpdoLen, Direction: ethercat.SMWrite, PDIIRQ: true, Control: 0x24},
		{Address: 0x1600, Length: txpdoLen, Direction: ethercat.SMRead, PDIIRQ: true, Control: 0x20},
	}
	rxpdo := ethercat.Datagram{Mode: ethercat.ModeAutoIncPhysicalWrite, Address: 0x1400, Length: rxpdoLen}
	txpdo := ethercat.Datagram{Mode: ethercat.ModeAutoIncPhysicalRead, Address: 0x1600, Length: txpdoLen}

	if err := ethercat.BringUp(t, d, sms, rxpdo, txpdo, log); err != nil {
		d.tm.Close()
		return nil, fmt.Errorf("smcservo: %w", err)
	}
	return d, nil
}

// SetDemand requests the driver proceed to OFF or (readying) IDLE.
func (d *Driver) SetDemand(demand Demand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.demand = demand
}

// State returns the driver's current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// WritePosition sets the pending target position (0.01mm units); it takes
// effect on the next IDLE tick, moving the driver to BUSY.
func (d *Driver) WritePosition(p int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingTarget = p
	d.pendingDirty = true
}

// ReadPosition returns the latest current position received from the
// device.
func (d *Driver) ReadPosition() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fb.currentPosition
}

// ReadDigitalIn implements the "ready" signal at index 0: true while the
// state is IDLE or BUSY.
func (d *Driver) ReadDigitalIn(index uint16) bool {
	if index != 0 {
		return d.Base.ReadDigitalIn(index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateIdle || d.state == StateBusy
}

// WriteDigitalOut implements the demand signal at index 0: true demands
// IDLE, false demands OFF.
func (d *Driver) WriteDigitalOut(index uint16, v bool) {
	if index != 0 {
		d.Base.WriteDigitalOut(index, v)
		return
	}
	if v {
		d.SetDemand(DemandIdle)
	} else {
		d.SetDemand(DemandOff)
	}
}

// WriteDatagram implements ethercat.SlaveDevice: it advances the state
// machine one tick, then serialises the command set into buf (the RX-PDO
// buffer, owned by the collaborator for the duration of this call).
func (d *Driver) WriteDatagram(buf []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.step()
	packCommand(buf, &d.cmd)
}

// ReadDatagram implements ethercat.SlaveDevice: it deserialises the
// feedback set from buf (the TX-PDO buffer).
func (d *Driver) ReadDatagram(buf []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	unpackFeedback(buf, &d.fb)
}

// step advances the command state machine by one cycle. Must be called
// with d.mu held.
func (d *Driver) step() {
	elapsed := d.tm.Read() >= timeoutMs
	switch d.state {
	case StateOff:
		if elapsed && d.demand == DemandIdle {
			d.pendingDirty = false
			d.cmd.targetPosition = 0
			d.cmd.outputPort = outputReset
			d.enter(StateResetAlarm)
		}
	case StateResetAlarm:
		if elapsed {
			d.cmd.numericalDataFlag = numericalReady
			d.cmd.outputPort = outputSVON
			d.enter(StateServoOn)
		}
	case StateServoOn:
		if elapsed {
			d.cmd.outputPort = outputSetupSVON
			d.enter(StateSetup)
		}
	case StateSetup:
		if elapsed && d.fb.inputPort&StatusBusy == 0 {
			d.cmd.outputPort = outputSVON
			d.cmd.startFlag = 1
			d.enter(StateIdle)
		}
	case StateIdle:
		if !elapsed {
			return
		}
		if d.demand == DemandOff {
			d.cmd.outputPort = 0
			d.cmd.startFlag = 0
			d.enter(StateOff)
		} else if d.pendingDirty {
			d.cmd.targetPosition = d.pendingTarget
			d.pendingDirty = false
			d.enter(StateBusy)
		}
	case StateBusy:
		if elapsed && d.fb.inputPort&StatusBusy == 0 {
			d.enter(StateIdle)
		}
	}
}

// enter transitions to s and restarts the TIMEOUT guard.
func (d *Driver) enter(s State) {
	d.state = s
	d.tm.Reset()
}

// Close stops the driver's internal timer thread.
func (d *Driver) Close() {
	d.tm.Close()
}

// packCommand serialises c into buf at fieldOff, little-endian, in the
// JXCE1 RX-PDO field order.
func packCommand(buf []byte, c *command) {
	if len(buf) < fieldOff+36 {
		return
	}
	le := binary.LittleEndian
	o := fieldOff
	le.PutUint16(buf[o:], c.outputPort)
	le.PutUint16(buf[o+2:], c.numericalDataFlag)
	buf[o+4] = c.startFlag
	buf[o+5] = c.movementMode
	le.PutUint16(buf[o+6:], c.speed)
	le.PutUint32(buf[o+8:], uint32(c.targetPosition))
	le.PutUint16(buf[o+12:], c.acceleration)
	le.PutUint16(buf[o+14:], c.deceleration)
	le.PutUint16(buf[o+16:], c.pushingForce)
	le.PutUint16(buf[o+18:], c.triggerLV)
	le.PutUint16(buf[o+20:], c.pushingSpeed)
	le.PutUint16(buf[o+22:], c.movingForce)
	le.PutUint32(buf[o+24:], uint32(c.area1))
	le.PutUint32(buf[o+28:], uint32(c.area2))
	le.PutUint32(buf[o+32:], uint32(c.inPosition))
}

// unpackFeedback deserialises buf at fieldOff into f, little-endian, in
// the JXCE1 TX-PDO field order.
func unpackFeedback(buf []byte, f *feedback) {
	if len(buf) < fieldOff+20 {
		return
	}
	le := binary.LittleEndian
	o := fieldOff
	f.inputPort = le.Uint16(buf[o:])
	f.controllerInputFlag = le.Uint16(buf[o+2:])
	f.currentPosition = int32(le.Uint32(buf[o+4:]))
	f.currentSpeed = le.Uint16(buf[o+8:])
	f.currentPushingForce = le.Uint16(buf[o+10:])
	f.targetPositionEcho = int32(le.Uint32(buf[o+12:]))
	copy(f.alarm[:], buf[o+16:o+20])
}

var _ ethercat.SlaveDevice = (*Driver)(nil)
var _ module.Module = (*Driver)(nil)
