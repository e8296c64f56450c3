package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bnema/swayproj/internal/config"
	"github.com/bnema/swayproj/internal/daemon"
	"github.com/bnema/swayproj/internal/inhibit"
	"github.com/bnema/swayproj/internal/ipc"
	"github.com/bnema/swayproj/internal/layout"
	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/shutdown"
	"github.com/bnema/swayproj/internal/sway"
	"github.com/bnema/swayproj/internal/ui"
	"github.com/bnema/swayproj/internal/vfb"
	"github.com/spf13/cobra"
)

var (
	dryRun       bool
	pollInterval time.Duration
	candidates   []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Wait for the projector and provision the virtual display",
	Long: `Poll sway until one of the configured projector outputs is connected, move it
off-screen, create the headless virtual output and attach the virtual
framebuffer. Runs until interrupted (or until the projector is unplugged when
release_on_disconnect is set), then restores the output layout.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use the in-memory framebuffer device instead of evdi")
	runCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "Projector poll interval (default from config)")
	runCmd.Flags().StringSliceVar(&candidates, "candidate", nil, "Projector output name, repeatable (default from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := *config.Get()

	if len(candidates) > 0 {
		cfg.Projector.Candidates = candidates
	}
	if pollInterval > 0 {
		cfg.Projector.PollInterval = pollInterval
	}
	if dryRun {
		cfg.Framebuffer.Device = vfb.KindMock
	}

	opts, err := daemonOptions(&cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	// subscribe before dialling so an interrupt while sway is retried is honored
	coord := shutdown.NewCoordinator(cancel, shutdown.NewCompletion(), cfg.Shutdown.Step, cfg.Shutdown.Steps)
	coord.Listen()
	defer coord.Unlisten()

	go func() {
		select {
		case <-coord.Requested():
			cancel(shutdown.ErrShutdownRequested)
		case <-ctx.Done():
		}
	}()

	client, err := sway.Dial(ctx, sway.Options{
		SocketPath: cfg.Sway.Socket,
		Timeout:    cfg.Sway.CallTimeout,
		Attempts:   uint(max(cfg.Sway.ConnectAttempts, 1)), //nolint:gosec // clamped positive
		Delay:      cfg.Sway.ConnectDelay,
	})
	if err != nil {
		if errors.Is(context.Cause(ctx), shutdown.ErrShutdownRequested) {
			logger.Info("Interrupted before sway answered")
			return nil
		}
		return err
	}

	var device vfb.Device
	if cfg.Framebuffer.Enabled {
		device, err = vfb.NewDevice(cfg.Framebuffer.Device)
		if err != nil {
			_ = client.Close()
			return err
		}
	}

	progress, err := ui.New(cfg.UI.Mode, os.Stdout)
	if err != nil {
		_ = client.Close()
		return err
	}
	if inline, ok := progress.(*ui.Inline); ok {
		logger.SetOutput(inline)
	}

	d := daemon.New(opts, client, device)
	d.Progress = progress

	inh, closeInhibitor := inhibit.New(cfg.Session.InhibitIdle)
	d.Inhibitor = inh

	var server *ipc.SocketServer
	if cfg.Control.Enabled {
		server, err = ipc.NewSocketServer(statusHandler(d), cfg.Control.Socket)
		if err == nil {
			err = server.Start()
		}
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			_ = closeInhibitor()
			_ = client.Close()
			progress.Stop()
			logger.SetOutput(os.Stderr)
			return err
		}
		if err != nil {
			logger.Warnf("Control socket disabled: %v", err)
			server = nil
		}
	}

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			if server != nil {
				server.Stop()
			}
			if err := closeInhibitor(); err != nil {
				logger.Debugf("Failed to close session bus: %v", err)
			}
			if err := client.Close(); err != nil {
				logger.Debugf("Failed to close sway connection: %v", err)
			}
			progress.Stop()
			logger.SetOutput(os.Stderr)
		})
	}
	defer cleanup()

	coord.Exit = func(code int) {
		cleanup()
		os.Exit(code)
	}

	return daemon.Supervise(ctx, d, coord)
}

// daemonOptions maps the configuration onto the workflow options
func daemonOptions(cfg *config.Config) (daemon.Options, error) {
	side, err := layout.ParseSide(cfg.Virtual.Placement)
	if err != nil {
		return daemon.Options{}, err
	}

	geom := vfb.Geometry{
		Width:         cfg.Framebuffer.Width,
		Height:        cfg.Framebuffer.Height,
		BytesPerPixel: cfg.Framebuffer.BytesPerPixel,
	}
	if cfg.Framebuffer.Enabled {
		if err := vfb.CheckDevice(cfg.Framebuffer.Device, geom); err != nil {
			return daemon.Options{}, fmt.Errorf("framebuffer %s: %w", cfg.Framebuffer.Device, err)
		}
	}

	off := cfg.Projector.Offscreen
	return daemon.Options{
		Candidates:          cfg.Projector.Candidates,
		PollInterval:        cfg.Projector.PollInterval,
		ReleaseOnDisconnect: cfg.Projector.ReleaseOnDisconnect,
		Offscreen: layout.Placement{
			Width:      off.Width,
			Height:     off.Height,
			X:          off.X,
			Y:          off.Y,
			Background: off.Background,
		},
		Virtual: daemon.VirtualOptions{
			Enabled:     cfg.Virtual.Enabled,
			Name:        cfg.Virtual.Name,
			Width:       cfg.Virtual.Width,
			Height:      cfg.Virtual.Height,
			Side:        side,
			X:           cfg.Virtual.X,
			Y:           cfg.Virtual.Y,
			Background:  cfg.Virtual.Background,
			SweepPrefix: cfg.Virtual.SweepPrefix,
			SweepCount:  cfg.Virtual.SweepCount,
		},
		Framebuffer:         cfg.Framebuffer.Enabled,
		FramebufferGeometry: geom,
		TeardownTimeout:     2 * cfg.Sway.CallTimeout,
	}, nil
}

// statusHandler exposes the workflow status on the control socket
func statusHandler(d *daemon.Daemon) ipc.Handler {
	return ipc.HandlerFunc(func() (*ipc.StatusResponse, error) {
		st := d.Status()
		return &ipc.StatusResponse{
			Phase:         string(st.Phase),
			Projector:     st.Projector,
			Workspace:     st.Workspace,
			VirtualOutput: st.VirtualOutput,
			Framebuffer:   st.Framebuffer,
			Damage:        st.Damage,
			Since:         st.Since,
		}, nil
	})
}
