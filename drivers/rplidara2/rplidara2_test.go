package rplidara2

import (
	"sync"
	"testing"
	"time"

	"github.com/tve/rtcore/serial"
)

type recorder struct {
	mu    sync.Mutex
	calls [][3]float64
}

func (r *recorder) ReceiveMeasurement(quality, angle, distance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, [3]float64{quality, angle, distance})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

// Drives the full OFF -> START -> SCAN -> STOP -> OFF cycle and checks the
// motor PWM and scan start/stop commands that gate each transition.
func TestFullCycle(t *testing.T) {
	port := serial.NewMock()
	rec := &recorder{}
	d, err := New(port, rec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if d.State() != StateOff {
		t.Fatalf("initial state = %v, want OFF", d.State())
	}

	d.StartScan()
	waitFor(t, func() bool { return d.State() == StateStart })

	// OFF -> START must have written the motor-on PWM command.
	foundMotorOn := false
	for _, w := range port.Written() {
		if len(w) == 6 && w[0] == 0xA5 && w[1] == 0xF0 && w[2] == 0x02 {
			pwm := uint16(w[3]) | uint16(w[4])<<8
			if pwm == defaultMotorPWM {
				var checksum byte
				for _, b := range w[:5] {
					checksum ^= b
				}
				if checksum == w[5] {
					foundMotorOn = true
				}
			}
		}
	}
	if !foundMotorOn {
		t.Fatalf("expected a valid motor-on PWM command, got %v", port.Written())
	}

	// START holds until the spin-up timer reaches 500ms; it must not jump
	// to SCAN immediately.
	time.Sleep(20 * time.Millisecond)
	if d.State() != StateStart {
		t.Fatalf("state = %v, want to still be in START before the spin-up timeout", d.State())
	}

	waitFor(t, func() bool { return d.State() == StateScan })

	foundScanStart := false
	for _, w := range port.Written() {
		if len(w) == 2 && w[0] == 0xA5 && w[1] == 0x20 {
			foundScanStart = true
		}
	}
	if !foundScanStart {
		t.Fatal("expected scan-start command 0xA5 0x20 after entering SCAN")
	}

	port.Feed([]byte{0, 0, 0, 0, 0, 0, 0}) // header
	port.Feed([]byte{0xFE, 0x01, 0x10, 0x40, 0x3E})
	waitFor(t, func() bool { return rec.count() == 1 })

	d.StopScan()
	waitFor(t, func() bool { return d.State() == StateStop })

	foundScanStop, foundMotorOff := false, false
	for _, w := range port.Written() {
		if len(w) == 2 && w[0] == 0xA5 && w[1] == 0x25 {
			foundScanStop = true
		}
		if len(w) == 6 && w[0] == 0xA5 && w[1] == 0xF0 && w[2] == 0x02 && w[3] == 0 && w[4] == 0 {
			foundMotorOff = true
		}
	}
	if !foundScanStop || !foundMotorOff {
		t.Fatalf("expected scan-stop and motor-off commands, got %v", port.Written())
	}

	waitFor(t, func() bool { return d.State() == StateOff })
	if !port.DTR() {
		t.Fatal("DTR should be asserted once back at OFF")
	}
}

// Demanding OFF while still in START must skip straight to STOP without
// waiting out the spin-up timer, and must not send the measurement-stop
// command (the scan never started).
func TestAbortDuringStart(t *testing.T) {
	port := serial.NewMock()
	d, err := New(port, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	d.StartScan()
	waitFor(t, func() bool { return d.State() == StateStart })

	d.StopScan()
	waitFor(t, func() bool { return d.State() == StateStop })

	for _, w := range port.Written() {
		if len(w) == 2 && w[0] == 0xA5 && w[1] == 0x25 {
			t.Fatal("measurement-stop command must not be sent when aborting from START")
		}
	}
}

// Quality-threshold drop: a low-quality sample must not reach the delegate.
func TestQualityDrop(t *testing.T) {
	port := serial.NewMock()
	rec := &recorder{}
	d, err := New(port, rec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	d.StartScan()
	waitFor(t, func() bool { return d.State() == StateScan })

	port.Feed([]byte{0, 0, 0, 0, 0, 0, 0})
	port.Feed([]byte{0x04, 0, 0, 0x40, 0x3E}) // quality = 1 < 10

	port.Feed([]byte{0xFE, 0x01, 0x10, 0x40, 0x3E})
	waitFor(t, func() bool { return rec.count() == 1 })

	if rec.count() != 1 {
		t.Fatalf("delegate called %d times, want exactly 1 (dropped sample must not count)", rec.count())
	}
}
