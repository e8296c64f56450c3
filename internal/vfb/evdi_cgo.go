//go:build cgo && evdi

package vfb

/*
#cgo LDFLAGS: -levdi
#include <stdlib.h>
#include <stdint.h>
#include <stdbool.h>
#include <poll.h>
#include <evdi_lib.h>

#define VFB_MAX_RECTS 16

static void vfb_update_ready(int buffer, void *user_data) {
	*(int *)user_data = 1;
}

// vfb_pump dispatches pending device events and reports whether an
// update_ready event arrived. It waits at most timeout_ms for one.
static int vfb_pump(evdi_handle h, int timeout_ms) {
	struct pollfd p = { .fd = evdi_get_event_ready(h), .events = POLLIN };
	if (poll(&p, 1, timeout_ms) <= 0) {
		return 0;
	}
	int ready = 0;
	struct evdi_event_context ctx = {0};
	ctx.update_ready_handler = vfb_update_ready;
	ctx.user_data = &ready;
	evdi_handle_events(h, &ctx);
	return ready;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

const (
	bufferID = 1
	// pumpTimeoutMs bounds the wait for an asynchronous update_ready event
	pumpTimeoutMs = 10
)

// EvdiAvailable reports whether the libevdi backend is compiled in
const EvdiAvailable = true

// evdiDevice drives a virtual display through libevdi
type evdiDevice struct{}

type evdiHandle struct {
	h          C.evdi_handle
	rects      *C.struct_evdi_rect
	registered bool
}

func newEvdi() Device {
	return &evdiDevice{}
}

func (d *evdiDevice) handle(h Handle) (*evdiHandle, error) {
	eh, ok := h.(*evdiHandle)
	if !ok || eh == nil || eh.h == nil {
		return nil, errors.New("evdi: invalid handle")
	}
	return eh, nil
}

func (d *evdiDevice) Open() (Handle, error) {
	h := C.evdi_open_attached_to(nil)
	if h == nil {
		return nil, errors.New("evdi_open_attached_to returned no device (is the evdi module loaded?)")
	}
	rects := (*C.struct_evdi_rect)(C.calloc(C.VFB_MAX_RECTS, C.size_t(unsafe.Sizeof(C.struct_evdi_rect{}))))
	return &evdiHandle{h: h, rects: rects}, nil
}

func (d *evdiDevice) Connect(h Handle, fb *Framebuffer) error {
	eh, err := d.handle(h)
	if err != nil {
		return err
	}

	geom := fb.Geometry()
	if geom.BytesPerPixel != 4 {
		return fmt.Errorf("evdi needs 4 bytes per pixel, got %d", geom.BytesPerPixel)
	}
	edid, err := EDID(geom, "swayproj")
	if err != nil {
		return err
	}
	pix := fb.Bytes()
	if len(pix) == 0 {
		return ErrFreed
	}

	// The framebuffer is mmapped outside the Go heap, so libevdi may keep the pointer
	cedid := C.CBytes(edid)
	defer C.free(cedid)
	C.evdi_connect(eh.h, (*C.uchar)(cedid), C.uint(len(edid)), C.uint32_t(geom.Width*geom.Height))

	C.evdi_register_buffer(eh.h, C.struct_evdi_buffer{
		id:         bufferID,
		buffer:     unsafe.Pointer(&pix[0]),
		width:      C.int(geom.Width),
		height:     C.int(geom.Height),
		stride:     C.int(geom.Stride()),
		rects:      eh.rects,
		rect_count: 0,
	})
	eh.registered = true
	return nil
}

func (d *evdiDevice) Damage(h Handle, fb *Framebuffer) (int, error) {
	eh, err := d.handle(h)
	if err != nil {
		return 0, err
	}
	if !eh.registered {
		return 0, errors.New("evdi: no buffer registered")
	}
	// false means the update is delivered later as an update_ready event
	if !C.evdi_request_update(eh.h, bufferID) && C.vfb_pump(eh.h, pumpTimeoutMs) == 0 {
		return 0, nil
	}

	var n C.int
	C.evdi_grab_pixels(eh.h, eh.rects, &n)

	raw := unsafe.Slice(eh.rects, C.VFB_MAX_RECTS)
	rects := make([]Rect, 0, int(n))
	for i := 0; i < int(n) && i < len(raw); i++ {
		rects = append(rects, Rect{X1: int(raw[i].x1), Y1: int(raw[i].y1), X2: int(raw[i].x2), Y2: int(raw[i].y2)})
	}
	fb.SetDamage(rects)
	return len(rects), nil
}

func (d *evdiDevice) Disconnect(h Handle) error {
	eh, err := d.handle(h)
	if err != nil {
		return err
	}
	if eh.registered {
		C.evdi_unregister_buffer(eh.h, bufferID)
		eh.registered = false
	}
	C.evdi_disconnect(eh.h)
	return nil
}

func (d *evdiDevice) Close(h Handle) error {
	eh, err := d.handle(h)
	if err != nil {
		return err
	}
	C.evdi_close(eh.h)
	eh.h = nil
	if eh.rects != nil {
		C.free(unsafe.Pointer(eh.rects))
		eh.rects = nil
	}
	return nil
}
