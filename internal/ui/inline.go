package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages driving WaitingModel
type (
	WaitingMsg struct{ Candidates []string }
	PollMsg    struct{ N int }
	FoundMsg   struct{ Name, Workspace string }
	PhaseMsg   struct{ Phase string }
	DoneMsg    struct{ Text string }
	LogMsg     struct{ Line string }
)

// WaitingModel renders a status line plus the most recent log lines
type WaitingModel struct {
	spinner    spinner.Model
	candidates []string
	polls      int
	projector  string
	workspace  string
	phase      string
	message    string

	logBuffer   []string
	maxLogLines int
}

// NewWaitingModel creates the model
func NewWaitingModel() *WaitingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &WaitingModel{
		spinner:     s,
		maxLogLines: 8,
	}
}

func (m *WaitingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *WaitingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case WaitingMsg:
		m.candidates = msg.Candidates
		m.projector = ""
		m.polls = 0

	case PollMsg:
		m.polls = msg.N

	case FoundMsg:
		m.projector = msg.Name
		m.workspace = msg.Workspace

	case PhaseMsg:
		m.phase = msg.Phase

	case DoneMsg:
		m.message = msg.Text

	case LogMsg:
		m.logBuffer = append(m.logBuffer, msg.Line)
		if len(m.logBuffer) > m.maxLogLines {
			m.logBuffer = m.logBuffer[len(m.logBuffer)-m.maxLogLines:]
		}
	}
	return m, nil
}

func (m *WaitingModel) View() string {
	var b strings.Builder

	parts := []string{AppNameStyle.Render("SWAYPROJ")}
	if m.projector == "" {
		text := fmt.Sprintf("%s Waiting for %s", m.spinner.View(), strings.Join(m.candidates, ", "))
		if m.polls > 0 {
			text += SubtleStyle.Render(fmt.Sprintf(" (%d polls)", m.polls))
		}
		parts = append(parts, text)
	} else {
		parts = append(parts, FormatStatus(true, fmt.Sprintf("%s on workspace %s", m.projector, m.workspace)))
	}
	if m.phase != "" {
		parts = append(parts, InfoStyle.Render(IconPhase+" "+m.phase))
	}
	b.WriteString(strings.Join(parts, "  "))
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString(SuccessStyle.Render(IconSuccess+" "+m.message) + "\n")
	}
	for _, line := range m.logBuffer {
		b.WriteString(SubtleStyle.Render(line) + "\n")
	}
	return b.String()
}

// Inline runs WaitingModel as a bubbletea program. It takes no keyboard
// input and installs no signal handler, so ctrl+c reaches the process.
type Inline struct {
	program  *tea.Program
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool

	// Log lines written after Stop go here
	fallback io.Writer
}

// NewInline starts the program rendering to out
func NewInline(out io.Writer) *Inline {
	p := tea.NewProgram(NewWaitingModel(),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	i := &Inline{program: p, done: make(chan struct{}), fallback: os.Stderr}
	go func() {
		defer close(i.done)
		_, _ = p.Run()
	}()
	return i
}

func (i *Inline) send(msg tea.Msg) {
	if i.stopped.Load() {
		return
	}
	i.program.Send(msg)
}

func (i *Inline) Waiting(candidates []string) { i.send(WaitingMsg{Candidates: candidates}) }
func (i *Inline) Poll(n int)                  { i.send(PollMsg{N: n}) }
func (i *Inline) Found(name, workspace string) {
	i.send(FoundMsg{Name: name, Workspace: workspace})
}
func (i *Inline) Phase(text string) { i.send(PhaseMsg{Phase: text}) }
func (i *Inline) Done(text string)  { i.send(DoneMsg{Text: text}) }

// Write feeds log output into the view, one LogMsg per line
func (i *Inline) Write(p []byte) (int, error) {
	if i.stopped.Load() {
		return i.fallback.Write(p)
	}
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		i.program.Send(LogMsg{Line: line})
	}
	return len(p), nil
}

// Stop quits the program and waits briefly for the final render
func (i *Inline) Stop() {
	i.stopOnce.Do(func() {
		i.stopped.Store(true)
		i.program.Quit()
		select {
		case <-i.done:
		case <-time.After(time.Second):
		}
	})
}
