//go:build !cgo || !evdi

package vfb

// EvdiAvailable reports whether the libevdi backend is compiled in
const EvdiAvailable = false

// evdiDevice stub for builds without libevdi
type evdiDevice struct{}

func newEvdi() Device {
	return &evdiDevice{}
}

func (d *evdiDevice) Open() (Handle, error) {
	return nil, errNoEvdi
}

func (d *evdiDevice) Connect(Handle, *Framebuffer) error {
	return errNoEvdi
}

func (d *evdiDevice) Disconnect(Handle) error {
	return errNoEvdi
}

func (d *evdiDevice) Close(Handle) error {
	return errNoEvdi
}
