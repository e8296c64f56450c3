package vfb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/swayproj/internal/logger"
)

// State is the lifecycle position of a device handle
type State int

const (
	Closed State = iota
	Open
	Connected
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrDeviceUnavailable is fatal: no virtual display device could be opened
	ErrDeviceUnavailable = errors.New("virtual display device unavailable")
	// ErrInvalidTransition is returned for an out-of-order lifecycle call
	ErrInvalidTransition = errors.New("invalid framebuffer state transition")
	// ErrCancelled is returned when acquiring after cancellation
	ErrCancelled = errors.New("framebuffer provisioning cancelled")
)

// Manager drives Closed -> Open -> Connected -> Open -> Closed on a single
// device handle. Failed calls are never retried.
type Manager struct {
	dev Device

	mu     sync.Mutex
	state  State
	handle Handle
	fb     *Framebuffer
}

// NewManager creates a manager in the Closed state
func NewManager(dev Device) *Manager {
	return &Manager{dev: dev}
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, m.state)
}

// Open acquires the device handle
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	if m.state != Closed {
		return m.invalid("open")
	}

	h, err := m.dev.Open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if h == nil {
		return ErrDeviceUnavailable
	}

	m.handle = h
	m.state = Open
	logger.Debug("Virtual display device opened")
	return nil
}

// Connect registers fb with the device and plugs the display in
func (m *Manager) Connect(ctx context.Context, fb *Framebuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	if m.state != Open {
		return m.invalid("connect")
	}
	if fb == nil || fb.Freed() {
		return fmt.Errorf("connect: %w", ErrFreed)
	}

	if err := m.dev.Connect(m.handle, fb); err != nil {
		return fmt.Errorf("failed to connect virtual display: %w", err)
	}

	m.fb = fb
	m.state = Connected
	logger.Debugf("Virtual display connected (%s)", fb.Geometry())
	return nil
}

// Disconnect unplugs the display. The handle is back to Open even when the
// device reports an error, so Close can still follow.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Connected {
		return m.invalid("disconnect")
	}

	err := m.dev.Disconnect(m.handle)
	m.fb = nil
	m.state = Open
	if err != nil {
		return fmt.Errorf("failed to disconnect virtual display: %w", err)
	}
	logger.Debug("Virtual display disconnected")
	return nil
}

// Close releases the handle
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Open {
		return m.invalid("close")
	}

	err := m.dev.Close(m.handle)
	m.handle = nil
	m.state = Closed
	if err != nil {
		return fmt.Errorf("failed to close virtual display device: %w", err)
	}
	logger.Debug("Virtual display device closed")
	return nil
}

// Damage asks the device for changed regions. Devices without damage
// reporting return 0.
func (m *Manager) Damage() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Connected {
		return 0, m.invalid("damage")
	}
	dr, ok := m.dev.(DamageReporter)
	if !ok {
		return 0, nil
	}
	return dr.Damage(m.handle, m.fb)
}
