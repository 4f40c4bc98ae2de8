package ethercat

import "sync"

// Mock is an in-memory Transport for driver tests: it acts as a
// cooperative slave that accepts whatever state is requested (no induced
// errors unless the test sets one via InjectError) and runs the
// registered SlaveDevice's datagram hooks on each Cycle call.
type Mock struct {
	mu sync.Mutex

	status      State
	statusCode  uint16
	errorOnce   bool
	sms         [4]SMConfig
	datagrams   map[string]Datagram
	dev         SlaveDevice
	rxpdo, txpdo []byte
	controlLog  []State
}

// NewMock returns a Mock transport starting in INIT.
func NewMock() *Mock {
	return &Mock{status: StateInit, datagrams: make(map[string]Datagram)}
}

// InjectError makes the next ReadALStatus report StateError with code,
// staying at the slave's current state until acknowledged.
func (m *Mock) InjectError(code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = code
	m.errorOnce = true
}

func (m *Mock) ReadALStatus() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errorOnce {
		return m.status | StateError, nil
	}
	return m.status, nil
}

func (m *Mock) ReadALStatusCode() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCode, nil
}

func (m *Mock) WriteALControl(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controlLog = append(m.controlLog, s)
	if m.errorOnce {
		// First write acks with (status & mask); accept it as clearing the
		// error. Second write (the full status) re-requests the state.
		m.errorOnce = false
		m.status = s & StateMask
		return nil
	}
	m.status = s & StateMask
	return nil
}

func (m *Mock) ConfigureSM(index int, cfg SMConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.sms) {
		return nil
	}
	m.sms[index] = cfg
	return nil
}

func (m *Mock) RegisterDatagram(name string, d Datagram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datagrams[name] = d
	// The buffer handed to WriteDatagram/ReadDatagram is the full process
	// image segment, which includes a leading header region ahead of this
	// slave's mapped data -- d.Length covers only the mapped portion,
	// which starts at byte 10.
	switch d.Mode {
	case ModeAutoIncPhysicalWrite:
		m.rxpdo = make([]byte, 10+int(d.Length))
	case ModeAutoIncPhysicalRead:
		m.txpdo = make([]byte, 10+int(d.Length))
	}
	return nil
}

func (m *Mock) RegisterSlaveDevice(dev SlaveDevice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dev = dev
	return nil
}

// Cycle runs one simulated EtherCAT frame: WriteDatagram fills the RX-PDO
// buffer, the test's injected simulation (via SetTxPDO, typically) is
// visible to the next ReadDatagram call.
func (m *Mock) Cycle() {
	m.mu.Lock()
	dev := m.dev
	rx := m.rxpdo
	tx := m.txpdo
	m.mu.Unlock()
	if dev == nil {
		return
	}
	dev.WriteDatagram(rx)
	dev.ReadDatagram(tx)
}

// SetTxPDO lets a test stage the slave's next TX-PDO payload (simulating
// device feedback) before the next Cycle.
func (m *Mock) SetTxPDO(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.txpdo, b)
}

// RxPDO returns a copy of the buffer most recently filled by WriteDatagram.
func (m *Mock) RxPDO() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.rxpdo))
	copy(out, m.rxpdo)
	return out
}

var _ Transport = (*Mock)(nil)
