// Package daemon runs the projector workflow: wait for the projector, move it
// out of the way, provision the virtual display, hold it, then clean up.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/swayproj/internal/detect"
	"github.com/bnema/swayproj/internal/inhibit"
	"github.com/bnema/swayproj/internal/layout"
	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/shutdown"
	"github.com/bnema/swayproj/internal/sway"
	"github.com/bnema/swayproj/internal/ui"
	"github.com/bnema/swayproj/internal/vfb"
	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/pool"
)

// VirtualOptions describes the headless output
type VirtualOptions struct {
	Enabled     bool
	Name        string
	Width       int
	Height      int
	Side        layout.Side
	X, Y        int // SideManual only
	Background  string
	SweepPrefix string
	SweepCount  int
}

// Options configures a Daemon
type Options struct {
	Candidates          []string
	PollInterval        time.Duration
	ReleaseOnDisconnect bool
	Offscreen           layout.Placement
	Virtual             VirtualOptions

	Framebuffer         bool
	FramebufferGeometry vfb.Geometry

	// Bound on cleanup commands issued after cancellation
	TeardownTimeout time.Duration
}

// Daemon owns one projector session
type Daemon struct {
	opts   Options
	client sway.Client
	device vfb.Device
	layout *layout.Reconfigurator

	Clock     clockwork.Clock
	Inhibitor inhibit.Inhibitor
	Progress  ui.Progress

	status statusBoard
}

// New creates a daemon. device may be nil when the framebuffer is disabled.
func New(opts Options, client sway.Client, device vfb.Device) *Daemon {
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = 2 * time.Second
	}
	d := &Daemon{
		opts:      opts,
		client:    client,
		device:    device,
		layout:    layout.New(client, opts.Virtual.SweepPrefix, opts.Virtual.SweepCount),
		Clock:     clockwork.NewRealClock(),
		Inhibitor: inhibit.Noop{},
		Progress:  ui.Silent{},
	}
	d.status.update(func(s *Status) {
		s.Phase = PhaseIdle
		s.Since = time.Now()
	})
	return d
}

// Status returns the current workflow status
func (d *Daemon) Status() Status {
	return d.status.get()
}

func (d *Daemon) setPhase(p Phase) {
	d.status.update(func(s *Status) {
		s.Phase = p
		s.Since = time.Now()
	})
	logger.Debugf("Phase: %s", p)
	d.Progress.Phase(string(p))
}

// Run executes the workflow once. done is marked on every return path.
// Cancellation of ctx is a normal exit and yields a nil error; a missing
// virtual display device yields an error wrapping vfb.ErrDeviceUnavailable.
func (d *Daemon) Run(ctx context.Context, done *shutdown.Completion) error {
	// completion first so the coordinator is not held up by a slow UI
	defer func() {
		d.setPhase(PhaseDone)
		done.Mark()
		d.Progress.Stop()
	}()

	det := &detect.Detector{
		Client:     d.client,
		Candidates: d.opts.Candidates,
		Interval:   d.opts.PollInterval,
		Clock:      d.Clock,
		OnPoll:     d.Progress.Poll,
	}

	d.setPhase(PhaseWaiting)
	d.Progress.Waiting(d.opts.Candidates)
	logger.Infof("Waiting for one of %v to be connected...", d.opts.Candidates)

	res, err := det.Wait(ctx)
	if err != nil {
		if errors.Is(err, detect.ErrCancelled) {
			logger.Debug("Cancelled while waiting for the projector")
			return nil
		}
		return err
	}

	d.Progress.Found(res.Name, res.Workspace)
	logger.Info("Projector connected", "output", res.Name, "workspace", res.Workspace)
	d.status.update(func(s *Status) {
		s.Projector = res.Name
		s.Workspace = res.Workspace
	})

	d.setPhase(PhaseReconfiguring)
	d.layout.Relocate(ctx, res.Name, d.opts.Offscreen)

	if ctx.Err() != nil {
		return nil
	}

	if d.opts.Virtual.Enabled {
		name := d.provisionVirtual(ctx, det, res.Name)
		defer d.teardown(ctx, name)
	}

	if ctx.Err() != nil {
		return nil
	}

	release := d.inhibitIdle()
	defer release()

	if !d.opts.Framebuffer {
		d.setPhase(PhaseActive)
		d.Progress.Done("Projector ready")
		return d.hold(ctx, det, res.Name, nil)
	}

	d.setPhase(PhaseProvisioning)
	err = vfb.With(ctx, d.device, d.opts.FramebufferGeometry, func(s *vfb.Session) error {
		defer d.setPhase(PhaseReleasing)

		if err := s.Framebuffer().Fill(0, 0, 0); err != nil {
			logger.Warnf("Failed to clear framebuffer: %v", err)
		}
		d.status.update(func(st *Status) { st.Framebuffer = d.opts.FramebufferGeometry.String() })
		d.setPhase(PhaseActive)
		d.Progress.Done(fmt.Sprintf("Virtual display %s ready", d.opts.FramebufferGeometry))
		return d.hold(ctx, det, res.Name, s)
	})
	d.status.update(func(st *Status) { st.Framebuffer = "" })

	switch {
	case err == nil:
		return nil
	case errors.Is(err, vfb.ErrCancelled):
		logger.Debug("Cancelled before the virtual display was connected")
		return nil
	default:
		return fmt.Errorf("failed to provision virtual display: %w", err)
	}
}

// provisionVirtual creates the headless output if needed and places it
// next to the primary display
func (d *Daemon) provisionVirtual(ctx context.Context, det *detect.Detector, projector string) string {
	v := d.opts.Virtual
	snapshot := det.Snapshot(ctx)

	d.layout.EnsureVirtualOutput(ctx, v.Name, snapshot)

	x, y := v.X, v.Y
	if v.Side != layout.SideManual {
		if ref, ok := layout.Primary(snapshot, projector, v.Name); ok {
			x, y = layout.Adjacent(ref, v.Width, v.Height, v.Side)
		} else {
			logger.Warn("No primary display found, placing virtual output at the origin")
			x, y = 0, 0
		}
	}

	d.layout.Relocate(ctx, v.Name, layout.Placement{
		Width:      v.Width,
		Height:     v.Height,
		X:          x,
		Y:          y,
		Background: v.Background,
	})
	d.status.update(func(s *Status) { s.VirtualOutput = v.Name })
	logger.Info("Virtual output placed", "output", v.Name, "x", x, "y", y)
	return v.Name
}

// teardown runs on a context detached from cancellation so cleanup still
// reaches the compositor after a shutdown request
func (d *Daemon) teardown(ctx context.Context, name string) {
	d.setPhase(PhaseReleasing)

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.TeardownTimeout)
	defer cancel()

	d.layout.Teardown(tctx, name)
	d.status.update(func(s *Status) { s.VirtualOutput = "" })
}

func (d *Daemon) inhibitIdle() inhibit.Release {
	release, err := d.Inhibitor.Inhibit("swayproj", "projector session active")
	if err != nil {
		logger.Warnf("Could not inhibit idle: %v", err)
		return func() {}
	}
	return release
}

// hold keeps the session up until ctx is cancelled or, when configured, the
// projector goes away
func (d *Daemon) hold(ctx context.Context, det *detect.Detector, projector string, s *vfb.Session) error {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Releasing projector session")
			return nil
		case <-d.Clock.After(d.opts.PollInterval):
		}

		if s != nil {
			if n, err := s.Damage(); err != nil {
				logger.Debugf("Damage poll failed: %v", err)
			} else if n > 0 {
				d.status.update(func(st *Status) { st.Damage += n })
			}
		}

		if d.opts.ReleaseOnDisconnect {
			present, known := det.Present(ctx, projector)
			if known && !present {
				logger.Info("Projector disconnected", "output", projector)
				return nil
			}
		}
	}
}

// Supervise runs the workflow and the shutdown coordinator side by side on
// a two-worker pool and returns the workflow's error
func Supervise(ctx context.Context, d *Daemon, coord *shutdown.Coordinator) error {
	p := pool.New().WithErrors().WithMaxGoroutines(2)

	p.Go(func() error {
		coord.Run(ctx)
		return nil
	})
	p.Go(func() error {
		return d.Run(ctx, coord.Completion)
	})

	return p.Wait()
}
