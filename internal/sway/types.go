// Package sway talks to the compositor over its i3-compatible IPC socket
package sway

import (
	"fmt"
	"strings"
)

// Rect is an output rectangle in layout coordinates
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Mode is a video mode reported by the compositor
type Mode struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Refresh int `json:"refresh"` // mHz
}

// Output is one entry of a GET_OUTPUTS reply. It is a read-only snapshot.
type Output struct {
	Name    string `json:"name"`
	Make    string `json:"make"`
	Model   string `json:"model"`
	Serial  string `json:"serial"`
	Active  bool   `json:"active"`
	Focused bool   `json:"focused"`

	// sway >= 1.8 reports "power"; older versions only "dpms"
	Power *bool `json:"power"`
	DPMS  *bool `json:"dpms"`

	CurrentWorkspace *string `json:"current_workspace"`
	Rect             Rect    `json:"rect"`
	CurrentMode      *Mode   `json:"current_mode"`
	Scale            float64 `json:"scale"`
}

// Powered reports the display power state
func (o Output) Powered() bool {
	if o.Power != nil {
		return *o.Power
	}
	if o.DPMS != nil {
		return *o.DPMS
	}
	return o.Active
}

// Workspace returns the assigned workspace, if any
func (o Output) Workspace() (string, bool) {
	if ws := o.CurrentWorkspace; ws != nil && *ws != "" {
		return *ws, true
	}
	return "", false
}

// Headless reports whether the output is a software-only output
func (o Output) Headless() bool {
	return strings.HasPrefix(o.Name, "HEADLESS-")
}

func (o Output) String() string {
	ws, _ := o.Workspace()
	return fmt.Sprintf("%s active=%v powered=%v ws=%q %dx%d+%d+%d",
		o.Name, o.Active, o.Powered(), ws, o.Rect.Width, o.Rect.Height, o.Rect.X, o.Rect.Y)
}

// FindOutput returns the output with the given name
func FindOutput(outputs []Output, name string) (Output, bool) {
	for _, o := range outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// Version is the GET_VERSION reply
type Version struct {
	Major                int    `json:"major"`
	Minor                int    `json:"minor"`
	Patch                int    `json:"patch"`
	HumanReadable        string `json:"human_readable"`
	LoadedConfigFileName string `json:"loaded_config_file_name"`
}

// CommandResult is one element of a RUN_COMMAND reply
type CommandResult struct {
	Success    bool   `json:"success"`
	ParseError bool   `json:"parse_error"`
	Error      string `json:"error"`
}

// CommandError is returned when the compositor rejects a command
type CommandError struct {
	Command string
	Results []CommandResult
}

func (e *CommandError) Error() string {
	var msgs []string
	for _, r := range e.Results {
		if r.Success {
			continue
		}
		msg := r.Error
		if r.ParseError {
			msg = "parse error: " + msg
		}
		msgs = append(msgs, msg)
	}
	return fmt.Sprintf("command %q failed: %s", e.Command, strings.Join(msgs, "; "))
}
