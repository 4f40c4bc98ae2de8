package module

import "testing"

// stubModule is a test double for Module that returns canned values and
// records the last write per channel type, so tests can verify the
// physical-layer side of the affine transforms.
type stubModule struct {
	Base
	analogIn      float64
	analogOutLast map[uint16]float64
	digitalIn     bool
	digitalOutLast map[uint16]bool
	encoder       int32
}

func newStubModule() *stubModule {
	return &stubModule{
		analogOutLast:  map[uint16]float64{},
		digitalOutLast: map[uint16]bool{},
	}
}

func (s *stubModule) ReadAnalogIn(uint16) float64 { return s.analogIn }
func (s *stubModule) WriteAnalogOut(idx uint16, v float64) {
	s.analogOutLast[idx] = v
}
func (s *stubModule) ReadDigitalIn(uint16) bool { return s.digitalIn }
func (s *stubModule) WriteDigitalOut(idx uint16, v bool) {
	s.digitalOutLast[idx] = v
}
func (s *stubModule) ReadEncoderCounter(uint16) int32 { return s.encoder }

var _ Module = (*stubModule)(nil)

// S3 — EncoderCounter offsetting.
func TestEncoderCounterOffsetting(t *testing.T) {
	s := newStubModule()
	s.encoder = 1000
	e := NewEncoderCounter(s, 0)

	if got := e.Read(); got != 1000 {
		t.Fatalf("Read() = %d, want 1000", got)
	}
	e.Reset()
	if got := e.Read(); got != 0 {
		t.Fatalf("Read() after Reset() = %d, want 0", got)
	}
	e.ResetTo(42)
	if got := e.Read(); got != 42 {
		t.Fatalf("Read() after ResetTo(42) = %d, want 42", got)
	}
}

func TestEncoderCounterOffsettingAnyInitialReading(t *testing.T) {
	for _, initial := range []int32{0, -500, 123456} {
		s := newStubModule()
		s.encoder = initial
		e := NewEncoderCounter(s, 0)
		e.Reset()
		if got := e.Read(); got != 0 {
			t.Fatalf("initial=%d: Read() after Reset() = %d, want 0", initial, got)
		}
		e.ResetTo(7)
		if got := e.Read(); got != 7 {
			t.Fatalf("initial=%d: Read() after ResetTo(7) = %d, want 7", initial, got)
		}
	}
}

func TestAnalogInAffineLaw(t *testing.T) {
	s := newStubModule()
	a := NewAnalogIn(s, 0)
	a.Gain, a.Offset = 2.5, 1.0
	for _, x := range []float64{0, 1, -3.5, 100} {
		s.analogIn = x
		want := x*a.Gain + a.Offset
		if got := a.Read(); got != want {
			t.Fatalf("x=%v: Read() = %v, want %v", x, got, want)
		}
	}
}

func TestAnalogOutAffineLawAndCache(t *testing.T) {
	s := newStubModule()
	a := NewAnalogOut(s, 3)
	a.Gain, a.Offset = 4.0, -2.0
	a.Write(10)
	if got := a.Read(); got != 10 {
		t.Fatalf("Read() after Write(10) = %v, want unscaled 10", got)
	}
	want := 10*a.Gain + a.Offset
	if got := s.analogOutLast[3]; got != want {
		t.Fatalf("physical write = %v, want %v", got, want)
	}
}

func TestDigitalInPolarity(t *testing.T) {
	s := newStubModule()
	d := NewDigitalIn(s, 0)
	for _, tc := range []struct{ polarity, module, want bool }{
		{false, false, false},
		{false, true, true},
		{true, false, true},
		{true, true, false},
	} {
		d.Polarity = tc.polarity
		s.digitalIn = tc.module
		if got := d.Read(); got != tc.want {
			t.Fatalf("polarity=%v module=%v: Read() = %v, want %v", tc.polarity, tc.module, got, tc.want)
		}
	}
}

func TestDigitalOutPolarityAndCache(t *testing.T) {
	s := newStubModule()
	d := NewDigitalOut(s, 1)
	d.Polarity = true
	d.Write(true)
	if got := d.Read(); got != true {
		t.Fatal("Read() after Write(true) should return unscaled true")
	}
	if got := s.digitalOutLast[1]; got != false {
		t.Fatalf("physical write = %v, want polarity XOR true = false", got)
	}
}

func TestChannelName(t *testing.T) {
	s := newStubModule()
	a := NewAnalogIn(s, 0)
	if got := a.Name(); got != "" {
		t.Fatalf("fresh channel Name() = %q, want empty", got)
	}
	a.SetName("pressure")
	if got := a.Name(); got != "pressure" {
		t.Fatalf("Name() = %q, want pressure", got)
	}
}
