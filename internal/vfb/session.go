package vfb

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Session owns one framebuffer and one device handle from acquisition to
// release. Release runs exactly once whatever path the caller takes.
type Session struct {
	mgr *Manager
	fb  *Framebuffer

	once sync.Once
	err  error
}

// Acquire maps the framebuffer, opens the device and connects. On failure
// everything acquired so far is released before returning.
func Acquire(ctx context.Context, dev Device, geom Geometry) (*Session, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}

	fb, err := NewFramebuffer(geom)
	if err != nil {
		return nil, err
	}

	s := &Session{mgr: NewManager(dev), fb: fb}
	if err := s.mgr.Open(ctx); err != nil {
		return nil, errors.Join(err, s.Release())
	}
	if err := s.mgr.Connect(ctx, fb); err != nil {
		return nil, errors.Join(err, s.Release())
	}
	return s, nil
}

// With acquires a session, runs fn and releases the session on every exit
// path, panics included.
func With(ctx context.Context, dev Device, geom Geometry, fn func(*Session) error) (err error) {
	s, err := Acquire(ctx, dev, geom)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := s.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(s)
}

// Framebuffer returns the pixel buffer
func (s *Session) Framebuffer() *Framebuffer {
	return s.fb
}

// State returns the device state
func (s *Session) State() State {
	return s.mgr.State()
}

// Damage polls the device for changed regions
func (s *Session) Damage() (int, error) {
	return s.mgr.Damage()
}

// Release disconnects, closes and unmaps, in that order. Later calls return
// the first result.
func (s *Session) Release() error {
	s.once.Do(func() {
		var errs []error
		if s.mgr.State() == Connected {
			errs = append(errs, s.mgr.Disconnect())
		}
		if s.mgr.State() == Open {
			errs = append(errs, s.mgr.Close())
		}
		errs = append(errs, s.fb.Free())
		s.err = errors.Join(errs...)
	})
	return s.err
}
