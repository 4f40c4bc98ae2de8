// Package module defines Module, an abstract peripheral adapter, and the
// typed Channel family composed on top of it: AnalogIn, AnalogOut,
// DigitalIn, DigitalOut and EncoderCounter. A Module
// has no identity or lifecycle management of its own -- that is the
// embedding application's responsibility -- it merely answers
// configure/read/write calls per channel index.
package module

// Module is the capability interface a device driver or physical I/O board
// implements. The Base type below supplies pass-through zero defaults for
// every method, so a concrete Module only needs to override what it
// actually supports.
type Module interface {
	ConfigureAnalogIn(index uint16)
	ConfigureAnalogOut(index uint16)
	ConfigureDigitalIn(index uint16)
	ConfigureDigitalOut(index uint16)
	ConfigureEncoderCounter(index uint16)

	ReadAnalogIn(index uint16) float64
	WriteAnalogOut(index uint16, value float64)
	ReadDigitalIn(index uint16) bool
	WriteDigitalOut(index uint16, value bool)
	ReadEncoderCounter(index uint16) int32
}

// Base is an embeddable no-op Module: every operation is a pass-through
// returning the zero value. Concrete modules embed Base and override only
// the channel types they support.
type Base struct{}

func (Base) ConfigureAnalogIn(uint16)          {}
func (Base) ConfigureAnalogOut(uint16)         {}
func (Base) ConfigureDigitalIn(uint16)         {}
func (Base) ConfigureDigitalOut(uint16)        {}
func (Base) ConfigureEncoderCounter(uint16)    {}
func (Base) ReadAnalogIn(uint16) float64       { return 0 }
func (Base) WriteAnalogOut(uint16, float64)    {}
func (Base) ReadDigitalIn(uint16) bool         { return false }
func (Base) WriteDigitalOut(uint16, bool)      {}
func (Base) ReadEncoderCounter(uint16) int32   { return 0 }

var _ Module = Base{}
