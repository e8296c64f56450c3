package vfb

import (
	"fmt"
	"sync"
)

// Mock is an in-memory Device. It records calls and can inject failures.
type Mock struct {
	mu    sync.Mutex
	calls []string
	next  int
	open  map[int]bool
	conn  map[int]bool

	OpenErr       error
	NilHandle     bool
	ConnectErr    error
	DisconnectErr error
	CloseErr      error

	// DamageRects is reported by every Damage call
	DamageRects []Rect

	// Hook, if set, runs after each call is recorded and before it returns
	Hook func(op string)
}

type mockHandle struct{ id int }

var (
	_ Device         = (*Mock)(nil)
	_ DamageReporter = (*Mock)(nil)
)

// NewMock creates a mock device
func NewMock() *Mock {
	return &Mock{open: make(map[int]bool), conn: make(map[int]bool)}
}

func (m *Mock) record(op string) {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	hook := m.Hook
	m.mu.Unlock()
	if hook != nil {
		hook(op)
	}
}

func (m *Mock) id(h Handle) (int, error) {
	mh, ok := h.(*mockHandle)
	if !ok || mh == nil {
		return 0, fmt.Errorf("mock: foreign handle %T", h)
	}
	return mh.id, nil
}

func (m *Mock) Open() (Handle, error) {
	m.record("open")
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.NilHandle {
		return nil, nil
	}
	m.next++
	m.open[m.next] = true
	return &mockHandle{id: m.next}, nil
}

func (m *Mock) Connect(h Handle, fb *Framebuffer) error {
	m.record("connect")
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.id(h)
	if err != nil {
		return err
	}
	if !m.open[id] {
		return fmt.Errorf("mock: connect on closed handle %d", id)
	}
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if len(fb.Bytes()) != fb.Geometry().Size() {
		return fmt.Errorf("mock: buffer is %d bytes, want %d", len(fb.Bytes()), fb.Geometry().Size())
	}
	m.conn[id] = true
	return nil
}

func (m *Mock) Disconnect(h Handle) error {
	m.record("disconnect")
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.id(h)
	if err != nil {
		return err
	}
	if !m.conn[id] {
		return fmt.Errorf("mock: disconnect without connect on handle %d", id)
	}
	delete(m.conn, id)
	return m.DisconnectErr
}

func (m *Mock) Close(h Handle) error {
	m.record("close")
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.id(h)
	if err != nil {
		return err
	}
	if !m.open[id] {
		return fmt.Errorf("mock: close on closed handle %d", id)
	}
	delete(m.open, id)
	return m.CloseErr
}

func (m *Mock) Damage(h Handle, fb *Framebuffer) (int, error) {
	m.mu.Lock()
	rects := append([]Rect(nil), m.DamageRects...)
	m.mu.Unlock()

	fb.SetDamage(rects)
	return len(rects), nil
}

// Calls returns the recorded lifecycle calls in order
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Count returns how many times op was called
func (m *Mock) Count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Balanced reports whether every handle was closed and every connection dropped
func (m *Mock) Balanced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open) == 0 && len(m.conn) == 0
}
