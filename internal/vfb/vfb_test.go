package vfb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var small = Geometry{Width: 64, Height: 32, BytesPerPixel: 3}

func TestGeometry(t *testing.T) {
	g := Geometry{Width: 1920, Height: 1080, BytesPerPixel: 3}
	assert.Equal(t, 5760, g.Stride())
	assert.Equal(t, 1920*1080*3, g.Size())
	assert.NoError(t, g.Validate())
	assert.Equal(t, "1920x1080x3", g.String())

	assert.Error(t, Geometry{Width: 0, Height: 10, BytesPerPixel: 3}.Validate())
	assert.Error(t, Geometry{Width: 10, Height: 10, BytesPerPixel: 2}.Validate())
	assert.Error(t, Geometry{Width: 10000, Height: 10, BytesPerPixel: 4}.Validate())
}

func TestFramebuffer(t *testing.T) {
	fb, err := NewFramebuffer(small)
	require.NoError(t, err)

	assert.Len(t, fb.Bytes(), small.Size())

	require.NoError(t, fb.Fill(1, 2, 3))
	buf := fb.Bytes()
	assert.Equal(t, []byte{1, 2, 3}, buf[:3])
	assert.Equal(t, []byte{1, 2, 3}, buf[len(buf)-3:])

	fb.SetDamage([]Rect{{0, 0, 8, 8}})
	assert.Equal(t, []Rect{{0, 0, 8, 8}}, fb.Damage())

	require.NoError(t, fb.Free())
	assert.True(t, fb.Freed())
	assert.Nil(t, fb.Bytes())
	assert.NoError(t, fb.Free(), "second free is a no-op")
	assert.ErrorIs(t, fb.Fill(0, 0, 0), ErrFreed)
}

func TestFramebufferXRGB(t *testing.T) {
	fb, err := NewFramebuffer(Geometry{Width: 2, Height: 2, BytesPerPixel: 4})
	require.NoError(t, err)
	defer fb.Free()

	require.NoError(t, fb.Fill(0x10, 0x20, 0x30))
	assert.Equal(t, []byte{0x30, 0x20, 0x10, 0xff}, fb.Bytes()[:4])
}

func TestManagerTransitions(t *testing.T) {
	ctx := context.Background()
	dev := NewMock()
	m := NewManager(dev)
	fb, err := NewFramebuffer(small)
	require.NoError(t, err)
	defer fb.Free()

	assert.Equal(t, Closed, m.State())

	// out of order calls are rejected without reaching the device
	assert.ErrorIs(t, m.Connect(ctx, fb), ErrInvalidTransition)
	assert.ErrorIs(t, m.Disconnect(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Close(), ErrInvalidTransition)
	assert.Empty(t, dev.Calls())

	require.NoError(t, m.Open(ctx))
	assert.Equal(t, Open, m.State())
	assert.ErrorIs(t, m.Open(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, m.Disconnect(), ErrInvalidTransition)

	require.NoError(t, m.Connect(ctx, fb))
	assert.Equal(t, Connected, m.State())
	assert.ErrorIs(t, m.Close(), ErrInvalidTransition)

	require.NoError(t, m.Disconnect())
	assert.Equal(t, Open, m.State())
	require.NoError(t, m.Close())
	assert.Equal(t, Closed, m.State())

	assert.Equal(t, []string{"open", "connect", "disconnect", "close"}, dev.Calls())
	assert.True(t, dev.Balanced())
}

func TestManagerDeviceUnavailable(t *testing.T) {
	t.Run("open error", func(t *testing.T) {
		dev := NewMock()
		dev.OpenErr = errors.New("no such device")
		m := NewManager(dev)

		err := m.Open(context.Background())
		assert.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Contains(t, err.Error(), "no such device")
		assert.Equal(t, Closed, m.State())
	})

	t.Run("nil handle", func(t *testing.T) {
		dev := NewMock()
		dev.NilHandle = true
		m := NewManager(dev)

		assert.ErrorIs(t, m.Open(context.Background()), ErrDeviceUnavailable)
		assert.Equal(t, Closed, m.State())
	})
}

func TestManagerRefusesAfterCancel(t *testing.T) {
	dev := NewMock()
	m := NewManager(dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Open(ctx), ErrCancelled)
	assert.Empty(t, dev.Calls())
}

func TestManagerDisconnectErrorStillAllowsClose(t *testing.T) {
	ctx := context.Background()
	dev := NewMock()
	dev.DisconnectErr = errors.New("stuck")
	m := NewManager(dev)
	fb, err := NewFramebuffer(small)
	require.NoError(t, err)
	defer fb.Free()

	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Connect(ctx, fb))
	assert.Error(t, m.Disconnect())
	assert.Equal(t, Open, m.State())
	assert.NoError(t, m.Close())
}

func TestManagerDamage(t *testing.T) {
	ctx := context.Background()
	dev := NewMock()
	dev.DamageRects = []Rect{{0, 0, 4, 4}, {10, 10, 12, 12}}
	m := NewManager(dev)
	fb, err := NewFramebuffer(small)
	require.NoError(t, err)
	defer fb.Free()

	_, err = m.Damage()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Connect(ctx, fb))
	n, err := m.Damage()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, dev.DamageRects, fb.Damage())
}

func TestSessionReleaseOnce(t *testing.T) {
	dev := NewMock()
	s, err := Acquire(context.Background(), dev, small)
	require.NoError(t, err)
	assert.Equal(t, Connected, s.State())

	fb := s.Framebuffer()
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())

	assert.Equal(t, []string{"open", "connect", "disconnect", "close"}, dev.Calls())
	assert.True(t, dev.Balanced())
	assert.True(t, fb.Freed())
	assert.Equal(t, Closed, s.State())
}

func TestSessionPartialAcquisition(t *testing.T) {
	t.Run("connect fails", func(t *testing.T) {
		dev := NewMock()
		dev.ConnectErr = errors.New("edid rejected")

		_, err := Acquire(context.Background(), dev, small)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "edid rejected")
		assert.Equal(t, []string{"open", "connect", "close"}, dev.Calls(), "no disconnect without connect")
		assert.True(t, dev.Balanced())
	})

	t.Run("open fails", func(t *testing.T) {
		dev := NewMock()
		dev.OpenErr = errors.New("busy")

		_, err := Acquire(context.Background(), dev, small)
		assert.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Equal(t, []string{"open"}, dev.Calls(), "no close without open")
	})

	t.Run("cancelled between open and connect", func(t *testing.T) {
		dev := NewMock()
		ctx, cancel := context.WithCancel(context.Background())
		dev.Hook = func(op string) {
			if op == "open" {
				cancel()
			}
		}

		_, err := Acquire(ctx, dev, small)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, []string{"open", "close"}, dev.Calls())
		assert.True(t, dev.Balanced())
	})

	t.Run("already cancelled", func(t *testing.T) {
		dev := NewMock()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Acquire(ctx, dev, small)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Empty(t, dev.Calls())
	})

	t.Run("bad geometry", func(t *testing.T) {
		dev := NewMock()
		_, err := Acquire(context.Background(), dev, Geometry{})
		assert.Error(t, err)
		assert.Empty(t, dev.Calls())
	})
}

func TestWithReleasesOnEveryPath(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		dev := NewMock()
		boom := errors.New("boom")
		err := With(context.Background(), dev, small, func(*Session) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.True(t, dev.Balanced())
		assert.Equal(t, 1, dev.Count("close"))
	})

	t.Run("panic", func(t *testing.T) {
		dev := NewMock()
		assert.Panics(t, func() {
			_ = With(context.Background(), dev, small, func(*Session) error { panic("render crashed") })
		})
		assert.True(t, dev.Balanced())
		assert.Equal(t, []string{"open", "connect", "disconnect", "close"}, dev.Calls())
	})

	t.Run("release error surfaces", func(t *testing.T) {
		dev := NewMock()
		dev.CloseErr = errors.New("close failed")
		err := With(context.Background(), dev, small, func(*Session) error { return nil })
		assert.ErrorContains(t, err, "close failed")
	})
}

func TestNewDevice(t *testing.T) {
	dev, err := NewDevice(KindMock)
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, dev)

	dev, err = NewDevice(KindEvdi)
	require.NoError(t, err)
	assert.NotNil(t, dev)

	_, err = NewDevice("vga")
	assert.Error(t, err)
}

func TestCheckDevice(t *testing.T) {
	xrgb := Geometry{Width: 1920, Height: 1080, BytesPerPixel: 4}
	rgb := Geometry{Width: 1920, Height: 1080, BytesPerPixel: 3}

	assert.NoError(t, CheckDevice(KindMock, xrgb))
	assert.NoError(t, CheckDevice(KindMock, rgb))
	assert.Error(t, CheckDevice(KindMock, Geometry{Width: 0, Height: 1080, BytesPerPixel: 4}))
	assert.Error(t, CheckDevice("vga", xrgb))

	if EvdiAvailable {
		assert.NoError(t, CheckDevice(KindEvdi, xrgb))
		assert.Error(t, CheckDevice(KindEvdi, rgb))
	} else {
		assert.ErrorIs(t, CheckDevice(KindEvdi, xrgb), ErrDeviceUnavailable)
	}
}
