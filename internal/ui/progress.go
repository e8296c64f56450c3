package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Progress reports workflow progress to the user
type Progress interface {
	Waiting(candidates []string)
	Poll(n int)
	Found(name, workspace string)
	Phase(text string)
	Done(text string)
	Stop()
}

// Silent discards progress
type Silent struct{}

func (Silent) Waiting([]string)     {}
func (Silent) Poll(int)             {}
func (Silent) Found(string, string) {}
func (Silent) Phase(string)         {}
func (Silent) Done(string)          {}
func (Silent) Stop()                {}

// Dots prints one dot per unsuccessful poll, for logs and pipes
type Dots struct {
	mu      sync.Mutex
	w       io.Writer
	midLine bool
}

// NewDots writes progress to w
func NewDots(w io.Writer) *Dots {
	return &Dots{w: w}
}

func (d *Dots) Waiting(candidates []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "Waiting for one of [%s] to be connected...\n", strings.Join(candidates, ", "))
}

func (d *Dots) Poll(int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.w, ".")
	d.midLine = true
}

func (d *Dots) Found(name, workspace string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endLine()
	fmt.Fprintf(d.w, "Saw connected projector at %s (workspace %s)\n", name, workspace)
}

func (d *Dots) Phase(string) {}

func (d *Dots) Done(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endLine()
	fmt.Fprintln(d.w, text)
}

func (d *Dots) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endLine()
}

func (d *Dots) endLine() {
	if d.midLine {
		fmt.Fprintln(d.w)
		d.midLine = false
	}
}

// Display modes accepted by New
const (
	ModeAuto   = "auto"
	ModeInline = "inline"
	ModePlain  = "plain"
	ModeNone   = "none"
)

// New picks a progress display. auto uses the inline view on a terminal and
// dots otherwise.
func New(mode string, out *os.File) (Progress, error) {
	switch mode {
	case ModeNone:
		return Silent{}, nil
	case ModePlain:
		return NewDots(out), nil
	case ModeInline:
		return NewInline(out), nil
	case ModeAuto, "":
		if term.IsTerminal(int(out.Fd())) {
			return NewInline(out), nil
		}
		return NewDots(out), nil
	}
	return nil, fmt.Errorf("unknown ui mode %q", mode)
}
