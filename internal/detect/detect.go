// Package detect waits for the projector output to show up in the compositor topology
package detect

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/sway"
	"github.com/jonboulle/clockwork"
)

// ErrCancelled is returned by Wait when the context is cancelled before a match
var ErrCancelled = errors.New("projector detection cancelled")

// Result identifies the detected projector
type Result struct {
	Name      string
	Workspace string
}

// PollOnce matches one topology snapshot against the candidate names.
// An output matches when it is active, powered, carries one of the
// candidate names and has a workspace assigned. When several outputs
// match, the last one in snapshot order wins.
func PollOnce(outputs []sway.Output, candidates []string) (Result, bool) {
	var (
		res   Result
		found bool
	)
	for _, o := range outputs {
		if !slices.Contains(candidates, o.Name) {
			continue
		}
		if ws, ok := usable(o); ok {
			res = Result{Name: o.Name, Workspace: ws}
			found = true
		}
	}
	return res, found
}

// usable returns the workspace of an active, powered output
func usable(o sway.Output) (string, bool) {
	if !o.Active || !o.Powered() {
		return "", false
	}
	return o.Workspace()
}

// Detector polls the compositor until the projector is present
type Detector struct {
	Client     sway.Client
	Candidates []string
	Interval   time.Duration
	Clock      clockwork.Clock

	// OnPoll is called after every unsuccessful poll with the poll count
	OnPoll func(n int)
}

// New creates a detector using the real clock
func New(client sway.Client, candidates []string, interval time.Duration) *Detector {
	return &Detector{
		Client:     client,
		Candidates: candidates,
		Interval:   interval,
		Clock:      clockwork.NewRealClock(),
	}
}

// Snapshot lists the current outputs. An IPC failure is logged and
// reported as an empty snapshot.
func (d *Detector) Snapshot(ctx context.Context) []sway.Output {
	outputs, err := d.Client.ListOutputs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("Failed to list outputs: %v", err)
		}
		return nil
	}
	return outputs
}

// Wait polls every Interval until a candidate output matches or ctx is
// cancelled. Cancellation yields ErrCancelled.
func (d *Detector) Wait(ctx context.Context) (Result, error) {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return Result{}, cancelled(ctx)
		}

		if res, ok := PollOnce(d.Snapshot(ctx), d.Candidates); ok {
			logger.Debugf("Projector matched after %d poll(s): %s (workspace %s)", n, res.Name, res.Workspace)
			return res, nil
		}

		if d.OnPoll != nil {
			d.OnPoll(n)
		}

		select {
		case <-ctx.Done():
			return Result{}, cancelled(ctx)
		case <-d.Clock.After(d.Interval):
		}
	}
}

// Present reports whether the named output is still active, powered and
// assigned a workspace. Other candidates are ignored. known is false
// when the topology could not be read, in which case present is meaningless.
func (d *Detector) Present(ctx context.Context, name string) (present, known bool) {
	outputs, err := d.Client.ListOutputs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debugf("Presence check failed: %v", err)
		}
		return false, false
	}
	o, ok := sway.FindOutput(outputs, name)
	if !ok {
		return false, true
	}
	_, ok = usable(o)
	return ok, true
}

func cancelled(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	return ErrCancelled
}
