// Package vfb manages a virtual display device and the framebuffer it scans out of.
package vfb

import (
	"errors"
	"fmt"
)

// Handle is an opaque open device connection
type Handle any

// Device is the virtual display capability. Implementations do not retry.
type Device interface {
	// Open acquires a device handle. A nil handle means no device.
	Open() (Handle, error)
	// Connect plugs the virtual display in and registers fb for writes
	Connect(h Handle, fb *Framebuffer) error
	Disconnect(h Handle) error
	Close(h Handle) error
}

// DamageReporter is implemented by devices that report changed regions.
// Damage stores the rectangles on fb and returns how many there were.
type DamageReporter interface {
	Damage(h Handle, fb *Framebuffer) (int, error)
}

// Device kinds accepted by NewDevice
const (
	KindEvdi = "evdi"
	KindMock = "mock"
)

var errNoEvdi = errors.New(`evdi support not compiled in (build with CGO_ENABLED=1 -tags evdi, or set framebuffer.device = "mock")`)

// CheckDevice reports whether kind can drive geom in this build, so a
// misconfiguration surfaces before any output is touched
func CheckDevice(kind string, geom Geometry) error {
	if err := geom.Validate(); err != nil {
		return err
	}
	switch kind {
	case KindMock:
		return nil
	case KindEvdi:
		if !EvdiAvailable {
			return fmt.Errorf("%w: %w", ErrDeviceUnavailable, errNoEvdi)
		}
		if geom.BytesPerPixel != 4 {
			return fmt.Errorf("evdi needs 4 bytes per pixel, got %d", geom.BytesPerPixel)
		}
		return nil
	}
	return fmt.Errorf("unknown framebuffer device %q", kind)
}

// NewDevice returns the backend for kind
func NewDevice(kind string) (Device, error) {
	switch kind {
	case KindEvdi:
		return newEvdi(), nil
	case KindMock:
		return NewMock(), nil
	}
	return nil, fmt.Errorf("unknown framebuffer device %q", kind)
}
