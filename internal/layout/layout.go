// Package layout issues the output reconfiguration commands: moving the
// projector off-screen, creating and placing the virtual output, and
// unplugging virtual outputs on cleanup.
package layout

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/sway"
)

// Placement is a mode, a position and a solid background for one output
type Placement struct {
	Width      int
	Height     int
	X          int
	Y          int
	Background string
}

// ModeCommand renders `output <name> mode <W>x<H> pos <x> <y> bg <color> solid_color`
func ModeCommand(name string, p Placement) string {
	return fmt.Sprintf("output %s mode %dx%d pos %d %d bg %s solid_color",
		name, p.Width, p.Height, p.X, p.Y, p.Background)
}

// CreateCommand renders `create_output <name>`
func CreateCommand(name string) string {
	return "create_output " + name
}

// UnplugCommand renders `output <name> unplug`
func UnplugCommand(name string) string {
	return fmt.Sprintf("output %s unplug", name)
}

// Reconfigurator sends layout commands. Every command is fire-and-forget:
// failures are logged and never retried.
type Reconfigurator struct {
	Client sway.Client

	// Teardown also unplugs <SweepPrefix>-<i> for i in [0, SweepCount)
	SweepPrefix string
	SweepCount  int

	mu      sync.Mutex
	created map[string]bool
}

// New creates a reconfigurator
func New(client sway.Client, sweepPrefix string, sweepCount int) *Reconfigurator {
	return &Reconfigurator{
		Client:      client,
		SweepPrefix: sweepPrefix,
		SweepCount:  sweepCount,
	}
}

// send runs one command and reports whether the compositor accepted it
func (r *Reconfigurator) send(ctx context.Context, cmd string) bool {
	logger.Debugf("sway: %s", cmd)
	if err := r.Client.RunCommand(ctx, cmd); err != nil {
		logger.Warnf("Command failed: %v", err)
		return false
	}
	return true
}

// Relocate sets mode, position and background of an output
func (r *Reconfigurator) Relocate(ctx context.Context, name string, p Placement) bool {
	return r.send(ctx, ModeCommand(name, p))
}

// EnsureVirtualOutput creates the named virtual output unless the snapshot
// already reports it or a creation for it is outstanding. It reports
// whether a creation command was issued.
func (r *Reconfigurator) EnsureVirtualOutput(ctx context.Context, name string, snapshot []sway.Output) bool {
	if _, ok := sway.FindOutput(snapshot, name); ok {
		logger.Debugf("Virtual output %s already present", name)
		return false
	}

	r.mu.Lock()
	if r.created[name] {
		r.mu.Unlock()
		logger.Debugf("Virtual output %s already requested", name)
		return false
	}
	if r.created == nil {
		r.created = make(map[string]bool)
	}
	r.created[name] = true
	r.mu.Unlock()

	r.send(ctx, CreateCommand(name))
	return true
}

// Teardown unplugs name and sweeps leftover indexed virtual outputs from
// earlier runs. It returns the commands that were accepted.
func (r *Reconfigurator) Teardown(ctx context.Context, name string) []string {
	targets := SweepNames(name, r.SweepPrefix, r.SweepCount)

	var accepted []string
	for _, target := range targets {
		cmd := UnplugCommand(target)
		// Most sweep targets do not exist, so failures stay at debug level
		if err := r.Client.RunCommand(ctx, cmd); err != nil {
			logger.Debugf("Unplug %s: %v", target, err)
			continue
		}
		accepted = append(accepted, cmd)
	}

	r.mu.Lock()
	r.created = nil
	r.mu.Unlock()

	if len(accepted) > 0 {
		logger.Infof("Removed %d virtual output(s)", len(accepted))
	}
	return accepted
}

// SweepNames lists the outputs Teardown unplugs, name first, without duplicates
func SweepNames(name, prefix string, count int) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}

	add(name)
	if prefix != "" {
		for i := 0; i < count; i++ {
			add(fmt.Sprintf("%s-%d", prefix, i))
		}
	}
	return names
}
