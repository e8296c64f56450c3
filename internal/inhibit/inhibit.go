// Package inhibit keeps the session from blanking while the projector is in use
package inhibit

import (
	"fmt"
	"sync"

	"github.com/bnema/swayproj/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	screensaverName  = "org.freedesktop.ScreenSaver"
	screensaverPath  = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	screensaverIface = "org.freedesktop.ScreenSaver"
)

// Release drops an inhibition. It is safe to call more than once.
type Release func()

// Inhibitor blocks idle actions until the returned Release is called
type Inhibitor interface {
	Inhibit(app, reason string) (Release, error)
}

// Noop inhibits nothing
type Noop struct{}

func (Noop) Inhibit(string, string) (Release, error) {
	return func() {}, nil
}

// caller is the subset of dbus.BusObject used here
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBus inhibits through org.freedesktop.ScreenSaver on the session bus
type DBus struct {
	conn *dbus.Conn
	obj  caller
}

// NewDBus connects to the session bus
func NewDBus() (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBus{conn: conn, obj: conn.Object(screensaverName, screensaverPath)}, nil
}

func (d *DBus) Inhibit(app, reason string) (Release, error) {
	var cookie uint32
	if err := d.obj.Call(screensaverIface+".Inhibit", 0, app, reason).Store(&cookie); err != nil {
		return nil, fmt.Errorf("screensaver inhibit failed: %w", err)
	}
	logger.Debugf("Idle inhibited (cookie %d)", cookie)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := d.obj.Call(screensaverIface+".UnInhibit", 0, cookie).Err; err != nil {
				logger.Warnf("Failed to release idle inhibitor: %v", err)
				return
			}
			logger.Debugf("Idle inhibitor %d released", cookie)
		})
	}, nil
}

// Close closes the bus connection
func (d *DBus) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// New returns a DBus inhibitor when enabled and reachable, otherwise Noop.
// The close function is never nil.
func New(enabled bool) (Inhibitor, func() error) {
	if !enabled {
		return Noop{}, func() error { return nil }
	}
	d, err := NewDBus()
	if err != nil {
		logger.Warnf("Idle inhibition unavailable: %v", err)
		return Noop{}, func() error { return nil }
	}
	return d, d.Close
}
