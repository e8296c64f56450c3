package vfb

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Geometry is the pixel layout of a framebuffer
type Geometry struct {
	Width         int
	Height        int
	BytesPerPixel int
}

// Stride is the number of bytes per row
func (g Geometry) Stride() int {
	return g.Width * g.BytesPerPixel
}

// Size is the buffer size in bytes
func (g Geometry) Size() int {
	return g.Stride() * g.Height
}

// Validate rejects empty or oversized geometries
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid framebuffer size %dx%d", g.Width, g.Height)
	}
	if g.BytesPerPixel != 3 && g.BytesPerPixel != 4 {
		return fmt.Errorf("unsupported bytes per pixel: %d", g.BytesPerPixel)
	}
	if g.Width > 8192 || g.Height > 8192 {
		return fmt.Errorf("framebuffer size %dx%d too large", g.Width, g.Height)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%dx%d", g.Width, g.Height, g.BytesPerPixel)
}

// Rect is a damaged region, X2/Y2 exclusive
type Rect struct {
	X1, Y1, X2, Y2 int
}

// ErrFreed is returned when a released framebuffer is used
var ErrFreed = errors.New("framebuffer freed")

// Framebuffer is a raw pixel buffer mapped outside the Go heap, so a device
// driver may hold a pointer to it between calls. The device only borrows it.
type Framebuffer struct {
	geom Geometry

	mu     sync.Mutex
	buf    []byte
	damage []Rect
}

// NewFramebuffer maps a zeroed buffer of geom.Size() bytes
func NewFramebuffer(geom Geometry) (*Framebuffer, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	buf, err := unix.Mmap(-1, 0, geom.Size(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("failed to map %d byte framebuffer: %w", geom.Size(), err)
	}
	return &Framebuffer{geom: geom, buf: buf}, nil
}

// Geometry returns the pixel layout
func (f *Framebuffer) Geometry() Geometry {
	return f.geom
}

// Bytes returns the pixel memory, or nil once freed
func (f *Framebuffer) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf
}

// Freed reports whether Free has been called
func (f *Framebuffer) Freed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf == nil
}

// Fill paints every pixel with one color. 4-byte pixels are XRGB8888.
func (f *Framebuffer) Fill(r, g, b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buf == nil {
		return ErrFreed
	}

	var px []byte
	switch f.geom.BytesPerPixel {
	case 3:
		px = []byte{r, g, b}
	default:
		px = []byte{b, g, r, 0xff}
	}
	for i := 0; i+len(px) <= len(f.buf); i += len(px) {
		copy(f.buf[i:], px)
	}
	return nil
}

// Damage returns the rectangles last reported by the device
func (f *Framebuffer) Damage() []Rect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Rect(nil), f.damage...)
}

// SetDamage records the rectangles reported by the device
func (f *Framebuffer) SetDamage(rects []Rect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.damage = append(f.damage[:0], rects...)
}

// Free unmaps the buffer. Calling it again is a no-op.
func (f *Framebuffer) Free() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buf == nil {
		return nil
	}
	err := unix.Munmap(f.buf)
	f.buf = nil
	f.damage = nil
	if err != nil {
		return fmt.Errorf("failed to unmap framebuffer: %w", err)
	}
	return nil
}
