package smcservo

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/tve/rtcore/ethercat"
)

func waitForState(t *testing.T, d *Driver, want State, deadline time.Duration) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if d.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, last seen %v", want, d.State())
}

func setFeedback(m *ethercat.Mock, inputPort uint16, currentPosition int32) {
	buf := make([]byte, 30)
	binary.LittleEndian.PutUint16(buf[10:], inputPort)
	binary.LittleEndian.PutUint32(buf[14:], uint32(currentPosition))
	m.SetTxPDO(buf)
}

// S6 — servo position round-trip with a mock EtherCAT.
func TestServoPositionRoundTrip(t *testing.T) {
	m := ethercat.NewMock()
	d, err := New(m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.Cycle()
			}
		}
	}()
	defer close(stop)

	d.SetDemand(DemandIdle)
	waitForState(t, d, StateIdle, 2*time.Second)

	d.WritePosition(500)
	waitForState(t, d, StateBusy, time.Second)

	rx := m.RxPDO()
	if got := int32(binary.LittleEndian.Uint32(rx[18:22])); got != 500 {
		t.Fatalf("outgoing targetPosition = %d, want 500", got)
	}

	setFeedback(m, StatusBusy, 500)
	time.Sleep(200 * time.Millisecond)
	setFeedback(m, 0, 500)

	waitForState(t, d, StateIdle, time.Second)
	if got := d.ReadPosition(); got != 500 {
		t.Fatalf("ReadPosition() = %d, want 500", got)
	}
}

// Property 7 — servo state liveness: from OFF, demand=IDLE with no BUSY
// bit ever observed during SETUP reaches IDLE within the expected budget
// of four 100ms transitions.
func TestStateLiveness(t *testing.T) {
	m := ethercat.NewMock()
	d, err := New(m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.Cycle()
			}
		}
	}()
	defer close(stop)

	d.SetDemand(DemandIdle)
	waitForState(t, d, StateIdle, 2*time.Second)
}

func TestReadyDigitalChannel(t *testing.T) {
	m := ethercat.NewMock()
	d, err := New(m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if d.ReadDigitalIn(0) {
		t.Fatal("ready should be false while OFF")
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.Cycle()
			}
		}
	}()
	defer close(stop)

	d.WriteDigitalOut(0, true) // demand IDLE
	waitForState(t, d, StateIdle, 2*time.Second)
	if !d.ReadDigitalIn(0) {
		t.Fatal("ready should be true once IDLE")
	}
}
