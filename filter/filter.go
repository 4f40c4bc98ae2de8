// Package filter implements second-order IIR low-pass and high-pass
// filters, discretized from a continuous double-pole response at angular
// cutoff frequency omega with sample period h.
package filter

import (
	"math"
	"sync"
)

const (
	defaultLowpassFrequency  = 1000 // rad/s
	defaultHighpassFrequency = 10   // rad/s
	defaultPeriod            = 1.0  // s
)

// coeffs holds the six coefficients derived from (omega, period). They must
// never be observed half-updated by a concurrent filter() call; recompute
// swaps them in as one struct value.
type coeffs struct {
	a11, a12, a21, a22, b1, b2 float64
}

func computeCoeffs(omega, h float64) coeffs {
	e := math.Exp(-omega * h)
	return coeffs{
		a11: (1 + omega*h) * e,
		a12: h * e,
		a21: -omega * omega * h * e,
		a22: (1 - omega*h) * e,
		b1:  (1 - (1+omega*h)*e) / (omega * omega),
		b2:  h * e,
	}
}

// Lowpass is a second-order low-pass filter. The zero value is not usable;
// construct with NewLowpass.
type Lowpass struct {
	mu     sync.Mutex
	omega  float64
	period float64
	c      coeffs
	x1, x2 float64
}

// NewLowpass creates a Lowpass filter with the default cutoff of 1000 rad/s
// and a 1s sample period.
func NewLowpass() *Lowpass {
	f := &Lowpass{omega: defaultLowpassFrequency, period: defaultPeriod}
	f.c = computeCoeffs(f.omega, f.period)
	return f
}

// SetFrequency retunes the cutoff frequency in rad/s, recomputing
// coefficients atomically with respect to Filter.
func (f *Lowpass) SetFrequency(omega float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omega = omega
	f.c = computeCoeffs(f.omega, f.period)
}

// SetPeriod retunes the sample period in seconds, recomputing coefficients
// atomically with respect to Filter.
func (f *Lowpass) SetPeriod(h float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.period = h
	f.c = computeCoeffs(f.omega, f.period)
}

// GetFrequency returns the current cutoff frequency in rad/s.
func (f *Lowpass) GetFrequency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.omega
}

// Reset zeroes the filter's internal state.
func (f *Lowpass) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x1, f.x2 = 0, 0
}

// ResetTo seeds internal state to represent steady-state output v.
func (f *Lowpass) ResetTo(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x1 = v / (f.omega * f.omega)
	f.x2 = 0
}

// Filter runs one sample through the filter and returns the filtered
// output.
func (f *Lowpass) Filter(u float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.c
	x1 := c.a11*f.x1 + c.a12*f.x2 + c.b1*u
	x2 := c.a21*f.x1 + c.a22*f.x2 + c.b2*u
	f.x1, f.x2 = x1, x2
	return f.omega * f.omega * x1
}

// Highpass is a second-order high-pass filter. The zero value is not
// usable; construct with NewHighpass.
type Highpass struct {
	mu     sync.Mutex
	omega  float64
	period float64
	c      coeffs
	x1, x2 float64
}

// NewHighpass creates a Highpass filter with the default cutoff of 10 rad/s
// and a 1s sample period.
func NewHighpass() *Highpass {
	f := &Highpass{omega: defaultHighpassFrequency, period: defaultPeriod}
	f.c = computeCoeffs(f.omega, f.period)
	return f
}

// SetFrequency retunes the cutoff frequency in rad/s.
func (f *Highpass) SetFrequency(omega float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omega = omega
	f.c = computeCoeffs(f.omega, f.period)
}

// SetPeriod retunes the sample period in seconds.
func (f *Highpass) SetPeriod(h float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.period = h
	f.c = computeCoeffs(f.omega, f.period)
}

// GetFrequency returns the current cutoff frequency in rad/s.
func (f *Highpass) GetFrequency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.omega
}

// Reset zeroes the filter's internal state.
func (f *Highpass) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x1, f.x2 = 0, 0
}

// ResetTo seeds internal state with x1 = -v/omega^2 and x2 = 0.
func (f *Highpass) ResetTo(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x1 = -v / (f.omega * f.omega)
	f.x2 = 0
}

// Filter runs one sample through the filter and returns the filtered
// output.
func (f *Highpass) Filter(u float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.c
	x1 := c.a11*f.x1 + c.a12*f.x2 + c.b1*u
	x2 := c.a21*f.x1 + c.a22*f.x2 + c.b2*u
	f.x1, f.x2 = x1, x2
	return -f.omega*f.omega*x1 - 2*f.omega*x2 + u
}
