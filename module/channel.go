package module

// channel holds the common back-reference to an owning Module plus the
// channel index on that module and an optional human-readable name. A
// Channel holds a non-owning reference: modules outlive channels.
type channel struct {
	mod  Module
	idx  uint16
	name string
}

// Name returns the channel's human-readable name, if any was set.
func (c *channel) Name() string { return c.name }

// SetName sets the channel's human-readable name.
func (c *channel) SetName(name string) { c.name = name }

// AnalogIn is a read-only analog input channel with an affine transform:
// read() = module.ReadAnalogIn(index)*Gain + Offset.
type AnalogIn struct {
	channel
	Gain   float64
	Offset float64
}

// NewAnalogIn constructs an AnalogIn channel on mod at index, configuring
// the module once, with the default gain of 1 and offset of 0.
func NewAnalogIn(mod Module, index uint16) *AnalogIn {
	mod.ConfigureAnalogIn(index)
	return &AnalogIn{channel: channel{mod: mod, idx: index}, Gain: 1, Offset: 0}
}

// Read returns the affine-transformed module reading.
func (a *AnalogIn) Read() float64 {
	return a.mod.ReadAnalogIn(a.idx)*a.Gain + a.Offset
}

// AnalogOut is a write analog output channel with an affine transform on
// write and a last-write cache for Read.
type AnalogOut struct {
	channel
	Gain   float64
	Offset float64
	value  float64
}

// NewAnalogOut constructs an AnalogOut channel on mod at index, configuring
// the module once, with the default gain of 1 and offset of 0.
func NewAnalogOut(mod Module, index uint16) *AnalogOut {
	mod.ConfigureAnalogOut(index)
	return &AnalogOut{channel: channel{mod: mod, idx: index}, Gain: 1, Offset: 0}
}

// Write stores v and sends v*Gain+Offset to the module.
func (a *AnalogOut) Write(v float64) {
	a.value = v
	a.mod.WriteAnalogOut(a.idx, v*a.Gain+a.Offset)
}

// Read returns the last value written, unscaled -- not what is currently
// on the physical output.
func (a *AnalogOut) Read() float64 {
	return a.value
}

// DigitalIn is a read-only digital input channel that applies an XOR
// polarity to the module's reading.
type DigitalIn struct {
	channel
	Polarity bool
}

// NewDigitalIn constructs a DigitalIn channel on mod at index, configuring
// the module once.
func NewDigitalIn(mod Module, index uint16) *DigitalIn {
	mod.ConfigureDigitalIn(index)
	return &DigitalIn{channel: channel{mod: mod, idx: index}}
}

// Read returns Polarity XOR module.ReadDigitalIn(index).
func (d *DigitalIn) Read() bool {
	return d.Polarity != d.mod.ReadDigitalIn(d.idx)
}

// DigitalOut is a digital output channel that applies an XOR polarity on
// write and caches the last unscaled value written.
type DigitalOut struct {
	channel
	Polarity bool
	value    bool
}

// NewDigitalOut constructs a DigitalOut channel on mod at index, configuring
// the module once.
func NewDigitalOut(mod Module, index uint16) *DigitalOut {
	mod.ConfigureDigitalOut(index)
	return &DigitalOut{channel: channel{mod: mod, idx: index}}
}

// Write stores v and sends Polarity XOR v to the module.
func (d *DigitalOut) Write(v bool) {
	d.value = v
	d.mod.WriteDigitalOut(d.idx, d.Polarity != v)
}

// Read returns the last value written, unscaled.
func (d *DigitalOut) Read() bool {
	return d.value
}

// EncoderCounter is a read-only counter channel with a signed additive
// offset, used to rezero a free-running hardware counter.
type EncoderCounter struct {
	channel
	offset int32
}

// NewEncoderCounter constructs an EncoderCounter channel on mod at index,
// configuring the module once.
func NewEncoderCounter(mod Module, index uint16) *EncoderCounter {
	mod.ConfigureEncoderCounter(index)
	return &EncoderCounter{channel: channel{mod: mod, idx: index}}
}

// Read returns module.ReadEncoderCounter(index) + offset.
func (e *EncoderCounter) Read() int32 {
	return e.mod.ReadEncoderCounter(e.idx) + e.offset
}

// Reset sets the offset so that Read returns 0.
func (e *EncoderCounter) Reset() {
	e.offset = -e.mod.ReadEncoderCounter(e.idx)
}

// ResetTo sets the offset so that Read returns v.
func (e *EncoderCounter) ResetTo(v int32) {
	e.offset = v - e.mod.ReadEncoderCounter(e.idx)
}
