package sixdof

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

type fakeReader struct {
	mu     sync.Mutex
	cond   sync.Cond
	reports [][]byte
	closed bool
}

func newFakeReader() *fakeReader {
	r := &fakeReader{}
	r.cond.L = &r.mu
	return r
}

func (r *fakeReader) Feed(report []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	r.cond.Broadcast()
}

func (r *fakeReader) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.reports) == 0 && !r.closed {
		r.cond.Wait()
	}
	if len(r.reports) == 0 {
		return 0, io.EOF
	}
	report := r.reports[0]
	r.reports = r.reports[1:]
	return copy(buf, report), nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
	return nil
}

type recorder struct {
	mu           sync.Mutex
	translations [][3]int16
	rotations    [][3]int16
	buttons      []uint32
}

func (r *recorder) ReceiveTranslation(x, y, z int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translations = append(r.translations, [3]int16{x, y, z})
}

func (r *recorder) ReceiveRotation(rx, ry, rz int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations = append(r.rotations, [3]int16{rx, ry, rz})
}

func (r *recorder) ReceiveButtons(mask uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons = append(r.buttons, mask)
}

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.translations), len(r.rotations), len(r.buttons)
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

func translationReport(x, y, z int16) []byte {
	buf := make([]byte, 7)
	buf[0] = reportTranslation
	binary.LittleEndian.PutUint16(buf[1:], uint16(x))
	binary.LittleEndian.PutUint16(buf[3:], uint16(y))
	binary.LittleEndian.PutUint16(buf[5:], uint16(z))
	return buf
}

func rotationReport(rx, ry, rz int16) []byte {
	buf := make([]byte, 7)
	buf[0] = reportRotation
	binary.LittleEndian.PutUint16(buf[1:], uint16(rx))
	binary.LittleEndian.PutUint16(buf[3:], uint16(ry))
	binary.LittleEndian.PutUint16(buf[5:], uint16(rz))
	return buf
}

func buttonReport(mask uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = reportButtons
	binary.LittleEndian.PutUint32(buf[1:], mask)
	return buf
}

func TestDecodeAndDispatch(t *testing.T) {
	reader := newFakeReader()
	rec := &recorder{}
	d, err := New(reader, rec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	reader.Feed(translationReport(100, -200, 300))
	reader.Feed(rotationReport(-50, 60, -70))
	reader.Feed(buttonReport(0x3))

	waitFor(t, func() bool {
		tc, rc, bc := rec.counts()
		return tc == 1 && rc == 1 && bc == 1
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.translations[0] != ([3]int16{100, -200, 300}) {
		t.Fatalf("translation = %v", rec.translations[0])
	}
	if rec.rotations[0] != ([3]int16{-50, 60, -70}) {
		t.Fatalf("rotation = %v", rec.rotations[0])
	}
	if rec.buttons[0] != 0x3 {
		t.Fatalf("buttons = %#x, want 0x3", rec.buttons[0])
	}
}

func TestReadErrorSetsFatal(t *testing.T) {
	reader := newFakeReader()
	d, err := New(reader, &recorder{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reader.Close()
	waitFor(t, func() bool { return d.Err() != nil })
	if !errors.Is(d.Err(), io.EOF) {
		t.Fatalf("Err() = %v, want wrapped io.EOF", d.Err())
	}
}
