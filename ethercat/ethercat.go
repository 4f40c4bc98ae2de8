// Package ethercat is the minimal EtherCAT/CoE collaborator contract the
// servo driver bring-up needs: application-layer state transitions, sync
// manager configuration, and cyclic datagram registration. The raw wire
// transport is out of scope; this package supplies the interfaces and
// state machine a transport must satisfy, grounded on the gocanopen
// state-naming idiom -- a CANopen application-layer state machine with
// the same INIT/PRE-OP/error-ack shape as EtherCAT's.
package ethercat

import (
	"fmt"

	"github.com/tve/rtcore/thread"
)

// State is an EtherCAT application-layer state. The low nibble is the
// defined state; StateError is ORed in on top of the current state to flag
// an error condition (EtherCAT standard AL status encoding).
type State uint16

const (
	StateInit   State = 0x01
	StatePreOp  State = 0x02
	StateBoot   State = 0x03
	StateSafeOp State = 0x04
	StateOp     State = 0x08
	StateError  State = 0x10
	StateMask   State = 0x0F
)

func (s State) String() string {
	switch s & StateMask {
	case StateInit:
		return "INIT"
	case StatePreOp:
		return "PRE-OP"
	case StateBoot:
		return "BOOT"
	case StateSafeOp:
		return "SAFE-OP"
	case StateOp:
		return "OP"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint16(s))
	}
}

// SMDirection is a sync manager's data direction from the master's view.
type SMDirection int

const (
	SMWrite SMDirection = iota
	SMRead
)

// SMConfig configures one of the slave's four sync managers.
type SMConfig struct {
	Address   uint16
	Length    uint16
	Direction SMDirection
	PDIIRQ    bool
	Control   byte
}

// DatagramMode selects the addressing/access mode of a cyclic datagram.
type DatagramMode int

const (
	ModeAutoIncPhysicalWrite DatagramMode = iota
	ModeAutoIncPhysicalRead
)

// Datagram describes one cyclic PDO exchange registered with the
// collaborator: a fixed slave address and length, read or written on every
// frame.
type Datagram struct {
	Mode    DatagramMode
	Address uint16
	Length  int
}

// SlaveDevice is implemented by a driver that wants its PDO buffers packed
// and unpacked on every EtherCAT frame. WriteDatagram is called with an
// RX-PDO-sized buffer to fill before transmit; ReadDatagram is called with
// a TX-PDO-sized buffer just received. Both run on the collaborator's
// cycle thread, not the driver's own handler thread.
type SlaveDevice interface {
	WriteDatagram(buf []byte)
	ReadDatagram(buf []byte)
}

// LogPrintf matches the logging callback convention used throughout this
// tree's drivers.
type LogPrintf func(format string, v ...interface{})

// Transport is the collaborator's register-level contract. A real
// implementation backs it with a NIC and the EtherCAT wire protocol; Mock
// backs it with in-memory state for tests.
type Transport interface {
	ReadALStatus() (State, error)
	ReadALStatusCode() (uint16, error)
	WriteALControl(State) error
	ConfigureSM(index int, cfg SMConfig) error
	RegisterDatagram(name string, d Datagram) error
	RegisterSlaveDevice(dev SlaveDevice) error
}

const maxAttempts = 100

// BringUp drives t through INIT -> PRE-OP -> SAFE-OP -> OP, configuring
// the four sync managers between INIT and PRE-OP and registering rxpdo,
// txpdo and dev once PRE-OP is reached.
func BringUp(t Transport, dev SlaveDevice, sms [4]SMConfig, rxpdo, txpdo Datagram, log LogPrintf) error {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	if err := requestState(t, StateInit, log); err != nil {
		return fmt.Errorf("ethercat: bring-up: %w", err)
	}
	for i, cfg := range sms {
		if err := t.ConfigureSM(i, cfg); err != nil {
			return fmt.Errorf("ethercat: configure SM%d: %w", i, err)
		}
	}
	if err := requestState(t, StatePreOp, log); err != nil {
		return fmt.Errorf("ethercat: bring-up: %w", err)
	}
	if err := t.RegisterDatagram("rxpdo", rxpdo); err != nil {
		return fmt.Errorf("ethercat: register RX-PDO: %w", err)
	}
	if err := t.RegisterDatagram("txpdo", txpdo); err != nil {
		return fmt.Errorf("ethercat: register TX-PDO: %w", err)
	}
	if err := t.RegisterSlaveDevice(dev); err != nil {
		return fmt.Errorf("ethercat: register slave device: %w", err)
	}
	if err := requestState(t, StateSafeOp, log); err != nil {
		return fmt.Errorf("ethercat: bring-up: %w", err)
	}
	if err := requestState(t, StateOp, log); err != nil {
		return fmt.Errorf("ethercat: bring-up: %w", err)
	}
	return nil
}

// requestState polls the application-layer status register up to 100
// times, 10ms apart, acknowledging errors and stepping unexpectedly-higher
// states down, until the target state is reached.
func requestState(t Transport, target State, log LogPrintf) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := t.ReadALStatus()
		if err != nil {
			return fmt.Errorf("read AL status: %w", err)
		}
		if status&StateError != 0 {
			code, _ := t.ReadALStatusCode()
			log("ethercat: AL status error 0x%x, code 0x%x", uint16(status), code)
			t.WriteALControl(status & StateMask)
			t.WriteALControl(status)
			thread.Sleep(10)
			continue
		}
		cur := status & StateMask
		if cur == target {
			return nil
		}
		next := target
		if cur > target {
			next = stepDown(cur)
		}
		if err := t.WriteALControl(next); err != nil {
			return fmt.Errorf("write AL control: %w", err)
		}
		thread.Sleep(10)
	}
	return fmt.Errorf("timed out reaching state %v", target)
}

// stepDown returns the next lower defined state on the way back to target,
// for a slave found unexpectedly in a higher state than desired.
func stepDown(cur State) State {
	switch cur {
	case StateOp:
		return StateSafeOp
	case StateSafeOp:
		return StatePreOp
	default:
		return StateInit
	}
}
