package daemon

import (
	"sync"
	"time"
)

// Phase is the workflow position reported over the control socket
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseWaiting       Phase = "waiting"
	PhaseReconfiguring Phase = "reconfiguring"
	PhaseProvisioning  Phase = "provisioning"
	PhaseActive        Phase = "active"
	PhaseReleasing     Phase = "releasing"
	PhaseDone          Phase = "done"
)

// Status is a snapshot of the workflow
type Status struct {
	Phase         Phase
	Projector     string
	Workspace     string
	VirtualOutput string
	Framebuffer   string
	Damage        int
	Since         time.Time
}

type statusBoard struct {
	mu sync.RWMutex
	st Status
}

func (b *statusBoard) get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st
}

func (b *statusBoard) update(fn func(*Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.st)
}
