package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSetLevel(t *testing.T) {
	defer Logger.SetLevel(Logger.GetLevel())

	tests := []struct {
		name string
		ok   bool
		want log.Level
	}{
		{name: "debug", ok: true, want: log.DebugLevel},
		{name: " WARNING ", ok: true, want: log.WarnLevel},
		{name: "Error", ok: true, want: log.ErrorLevel},
		{name: "", ok: false},
		{name: "verbose", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger.SetLevel(log.InfoLevel)
			if got := SetLevel(tt.name); got != tt.ok {
				t.Fatalf("SetLevel(%q) = %v, want %v", tt.name, got, tt.ok)
			}
			want := tt.want
			if !tt.ok {
				want = log.InfoLevel
			}
			if Logger.GetLevel() != want {
				t.Errorf("level = %v, want %v", Logger.GetLevel(), want)
			}
		})
	}
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	level := Logger.GetLevel()
	defer Logger.SetLevel(level)
	Logger.SetLevel(log.InfoLevel)

	Info("Projector connected", "output", "DP-1")
	Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "Projector connected") || !strings.Contains(out, "output=DP-1") {
		t.Errorf("unexpected log output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line logged at info level")
	}
}
