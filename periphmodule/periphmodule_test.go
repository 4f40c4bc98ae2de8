package periphmodule

import "testing"

type fakeAnalogConn struct {
	value float64
	err   error
}

func (f *fakeAnalogConn) Read() (float64, error)  { return f.value, f.err }
func (f *fakeAnalogConn) Write(v float64) error   { f.value = v; return nil }

func TestAnalogChannelRoundTrip(t *testing.T) {
	conn := &fakeAnalogConn{value: 0.25}
	m, err := New(nil, map[uint16]AnalogConn{0: conn}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.ConfigureAnalogIn(0)

	if got := m.ReadAnalogIn(0); got != 0.25 {
		t.Fatalf("ReadAnalogIn(0) = %v, want 0.25", got)
	}

	m.WriteAnalogOut(0, 0.75)
	if conn.value != 0.75 {
		t.Fatalf("conn.value = %v, want 0.75 after WriteAnalogOut", conn.value)
	}
}

func TestUnconfiguredAnalogChannelReadsZero(t *testing.T) {
	m, err := New(nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.ConfigureAnalogIn(5)
	if got := m.ReadAnalogIn(5); got != 0 {
		t.Fatalf("ReadAnalogIn(5) = %v, want 0 for unconfigured channel", got)
	}
}

func TestUnconfiguredDigitalChannelReadsFalse(t *testing.T) {
	m, err := New(nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.ConfigureDigitalIn(0)
	if m.ReadDigitalIn(0) {
		t.Fatal("ReadDigitalIn(0) should be false for an unconfigured pin")
	}
}
