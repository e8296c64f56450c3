package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/bnema/swayproj/internal/ipc"
	"github.com/bnema/swayproj/internal/ui"
	"github.com/charmbracelet/lipgloss"
)

func TestRenderStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	t.Run("active session", func(t *testing.T) {
		got := renderStatus(&ipc.StatusResponse{
			Phase:         "active",
			Projector:     "DP-1",
			Workspace:     "2",
			VirtualOutput: "HEADLESS-1",
			Framebuffer:   "1920x1080x3",
			Damage:        7,
			Since:         now.Add(-90 * time.Second),
		}, now)

		for _, want := range []string{"active", "1m30s", "DP-1", "HEADLESS-1", "1920x1080x3", "7"} {
			if !strings.Contains(got, want) {
				t.Errorf("renderStatus() missing %q in %q", want, got)
			}
		}
	})

	t.Run("waiting", func(t *testing.T) {
		got := renderStatus(&ipc.StatusResponse{Phase: "waiting"}, now)
		if !strings.Contains(got, "waiting") {
			t.Errorf("renderStatus() missing phase in %q", got)
		}
		if strings.Contains(got, "Damage") {
			t.Error("Damage should be hidden without a framebuffer")
		}
	})

	t.Run("transitional phases", func(t *testing.T) {
		for _, phase := range []string{"reconfiguring", "provisioning", "releasing", "done"} {
			got := renderStatus(&ipc.StatusResponse{Phase: phase}, now)
			if !strings.Contains(got, phase) {
				t.Errorf("renderStatus() missing phase %q in %q", phase, got)
			}
			if !strings.Contains(got, ui.InactiveIndicator) {
				t.Errorf("renderStatus(%q) should use the inactive indicator", phase)
			}
		}
	})
}

func TestPhaseStyle(t *testing.T) {
	tests := []struct {
		phase string
		want  lipgloss.Style
	}{
		{"active", ui.TextStyle},
		{"waiting", ui.TextStyle},
		{"releasing", ui.WarningStyle},
		{"provisioning", ui.WarningStyle},
		{"done", ui.ErrorStyle},
	}
	for _, tt := range tests {
		got := phaseStyle(tt.phase)
		if got.GetForeground() != tt.want.GetForeground() {
			t.Errorf("phaseStyle(%q) foreground = %v, want %v", tt.phase, got.GetForeground(), tt.want.GetForeground())
		}
	}
}
