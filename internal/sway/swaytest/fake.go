// Package swaytest provides an in-memory sway.Client for tests
package swaytest

import (
	"context"
	"errors"
	"sync"

	"github.com/bnema/swayproj/internal/sway"
)

// ErrIPC is the default injected IPC failure
var ErrIPC = errors.New("swaytest: ipc failure")

// Step is one scripted ListOutputs reply
type Step struct {
	Outputs []sway.Output
	Err     error
}

// Fake replays scripted snapshots and records commands. Once the script is
// exhausted the last step repeats.
type Fake struct {
	mu        sync.Mutex
	steps     []Step
	next      int
	listCalls int
	commands  []string
	closed    bool

	// CommandErr, if set, decides the result of each RunCommand
	CommandErr func(cmd string) error
}

var _ sway.Client = (*Fake)(nil)

// New returns a fake serving the given steps
func New(steps ...Step) *Fake {
	return &Fake{steps: steps}
}

// Static returns a fake that always reports outputs
func Static(outputs ...sway.Output) *Fake {
	return New(Step{Outputs: outputs})
}

// SetSteps replaces the script
func (f *Fake) SetSteps(steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = steps
	f.next = 0
}

// SetOutputs replaces the script with a steady topology
func (f *Fake) SetOutputs(outputs ...sway.Output) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = []Step{{Outputs: outputs}}
	f.next = 0
}

func (f *Fake) ListOutputs(ctx context.Context) ([]sway.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if len(f.steps) == 0 {
		return nil, nil
	}
	step := f.steps[f.next]
	if f.next < len(f.steps)-1 {
		f.next++
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return append([]sway.Output(nil), step.Outputs...), nil
}

func (f *Fake) RunCommand(ctx context.Context, cmd string) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	hook := f.CommandErr
	f.mu.Unlock()

	if hook != nil {
		return hook(cmd)
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Commands returns the commands received so far
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// ListCalls returns how many times ListOutputs was called
func (f *Fake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// Closed reports whether Close was called
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Output builds an output record
func Output(name string, active, powered bool, workspace string) sway.Output {
	o := sway.Output{Name: name, Active: active, Power: &powered}
	if workspace != "" {
		ws := workspace
		o.CurrentWorkspace = &ws
	}
	return o
}
