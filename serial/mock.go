package serial

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Mock is an in-memory Port for driver tests. Writes are recorded;
// injected bytes via Feed become readable. Read blocks until data is fed,
// the port is closed, or readTimeout passes with nothing to read (then it
// returns 0, nil), like the 1s read timeout of a port opened by Open.
type Mock struct {
	mu      sync.Mutex
	cond    sync.Cond
	rx      bytes.Buffer
	written [][]byte
	dtr     bool
	closed  bool
}

// NewMock creates an empty Mock port.
func NewMock() *Mock {
	m := &Mock{}
	m.cond.L = &m.mu
	return m
}

// Feed appends bytes that a subsequent Read will return.
func (m *Mock) Feed(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx.Write(b)
	m.cond.Broadcast()
}

// Written returns every byte slice passed to Write, in order.
func (m *Mock) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

// DTR reports the last value set via SetDTR.
func (m *Mock) DTR() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dtr
}

// readTimeout matches the ReadTimeout that Open configures.
const readTimeout = time.Second

func (m *Mock) Read(b []byte) (int, error) {
	deadline := time.Now().Add(readTimeout)
	wake := time.AfterFunc(readTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer wake.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.rx.Len() == 0 && !m.closed {
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		m.cond.Wait()
	}
	if m.rx.Len() == 0 && m.closed {
		return 0, io.EOF
	}
	return m.rx.Read(b)
}

func (m *Mock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	m.written = append(m.written, cp)
	return len(b), nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

func (m *Mock) SetDTR(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dtr = on
	return nil
}

func (m *Mock) Readable() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.Len() > 0, nil
}

var _ Port = (*Mock)(nil)
