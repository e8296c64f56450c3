package layout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bnema/swayproj/internal/sway"
	"github.com/bnema/swayproj/internal/sway/swaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandGrammar(t *testing.T) {
	p := Placement{Width: 1920, Height: 1080, X: -19200, Y: 0, Background: "#000000"}
	assert.Equal(t, "output DP-1 mode 1920x1080 pos -19200 0 bg #000000 solid_color", ModeCommand("DP-1", p))
	assert.Equal(t, "create_output HEADLESS-1", CreateCommand("HEADLESS-1"))
	assert.Equal(t, "output HEADLESS-1 unplug", UnplugCommand("HEADLESS-1"))
}

func TestRelocateFailureIsNotFatal(t *testing.T) {
	fake := swaytest.Static()
	fake.CommandErr = func(string) error { return errors.New("rejected") }
	r := New(fake, "HEADLESS", 0)

	ok := r.Relocate(context.Background(), "DP-1", Placement{Width: 1, Height: 1, Background: "#fff"})
	assert.False(t, ok)
	assert.Len(t, fake.Commands(), 1, "no retry")
}

func TestEnsureVirtualOutput(t *testing.T) {
	ctx := context.Background()

	t.Run("present in snapshot", func(t *testing.T) {
		fake := swaytest.Static()
		r := New(fake, "HEADLESS", 12)
		snapshot := []sway.Output{swaytest.Output("HEADLESS-1", true, true, "")}

		assert.False(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", snapshot))
		assert.Empty(t, fake.Commands())
	})

	t.Run("created at most once while missing", func(t *testing.T) {
		fake := swaytest.Static()
		r := New(fake, "HEADLESS", 12)

		assert.True(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", nil))
		assert.False(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", nil))
		assert.Equal(t, []string{"create_output HEADLESS-1"}, fake.Commands())
	})

	t.Run("failed creation still counts", func(t *testing.T) {
		fake := swaytest.Static()
		fake.CommandErr = func(string) error { return errors.New("boom") }
		r := New(fake, "HEADLESS", 12)

		assert.True(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", nil))
		assert.False(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", nil))
		assert.Len(t, fake.Commands(), 1)
	})

	t.Run("teardown resets the guard", func(t *testing.T) {
		fake := swaytest.Static()
		r := New(fake, "", 0)

		assert.True(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", nil))
		r.Teardown(ctx, "HEADLESS-1")
		assert.True(t, r.EnsureVirtualOutput(ctx, "HEADLESS-1", nil))
		assert.Equal(t, []string{
			"create_output HEADLESS-1",
			"output HEADLESS-1 unplug",
			"create_output HEADLESS-1",
		}, fake.Commands())
	})
}

func TestTeardownSweep(t *testing.T) {
	fake := swaytest.Static()
	fake.CommandErr = func(cmd string) error {
		if strings.Contains(cmd, "HEADLESS-3") || strings.Contains(cmd, "HEADLESS-1 ") {
			return nil
		}
		return errors.New("unknown output")
	}
	r := New(fake, "HEADLESS", 12)

	accepted := r.Teardown(context.Background(), "HEADLESS-1")
	assert.Equal(t, []string{"output HEADLESS-1 unplug", "output HEADLESS-3 unplug"}, accepted)

	cmds := fake.Commands()
	require.Len(t, cmds, 12, "name plus HEADLESS-0..11 minus the duplicate")
	assert.Equal(t, "output HEADLESS-1 unplug", cmds[0])
	assert.Equal(t, "output HEADLESS-11 unplug", cmds[len(cmds)-1])
}

func TestSweepNames(t *testing.T) {
	assert.Equal(t, []string{"VIRT", "HEADLESS-0", "HEADLESS-1"}, SweepNames("VIRT", "HEADLESS", 2))
	assert.Equal(t, []string{"HEADLESS-0"}, SweepNames("HEADLESS-0", "HEADLESS", 1))
	assert.Equal(t, []string{"VIRT"}, SweepNames("VIRT", "", 5))
	assert.Empty(t, SweepNames("", "", 0))
}

func TestAdjacent(t *testing.T) {
	ref := sway.Output{Name: "eDP-1", Rect: sway.Rect{X: 100, Y: 50, Width: 2560, Height: 1440}}

	tests := []struct {
		side Side
		x, y int
	}{
		{SideLeft, 100 - 1920, 50},
		{SideRight, 100 + 2560, 50},
		{SideAbove, 100, 50 - 1080},
		{SideBelow, 100, 50 + 1440},
	}
	for _, tt := range tests {
		t.Run(string(tt.side), func(t *testing.T) {
			x, y := Adjacent(ref, 1920, 1080, tt.side)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.y, y)
		})
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("right")
	require.NoError(t, err)
	assert.Equal(t, SideRight, s)

	_, err = ParseSide("diagonal")
	assert.Error(t, err)
}

func TestPrimary(t *testing.T) {
	edp := swaytest.Output("eDP-1", true, true, "1")
	edp.Rect = sway.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	hdmi := swaytest.Output("HDMI-A-1", true, true, "2")
	hdmi.Rect = sway.Rect{X: 1920, Y: 0, Width: 1920, Height: 1080}
	projector := swaytest.Output("DP-1", true, true, "3")
	projector.Focused = true
	headless := swaytest.Output("HEADLESS-1", true, true, "4")
	headless.Focused = true

	t.Run("focused wins", func(t *testing.T) {
		focused := hdmi
		focused.Focused = true
		o, ok := Primary([]sway.Output{edp, focused})
		require.True(t, ok)
		assert.Equal(t, "HDMI-A-1", o.Name)
	})

	t.Run("excluded and headless are skipped", func(t *testing.T) {
		o, ok := Primary([]sway.Output{hdmi, projector, headless, edp}, "DP-1")
		require.True(t, ok)
		assert.Equal(t, "eDP-1", o.Name, "origin fallback")
	})

	t.Run("first active fallback", func(t *testing.T) {
		o, ok := Primary([]sway.Output{hdmi})
		require.True(t, ok)
		assert.Equal(t, "HDMI-A-1", o.Name)
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, ok := Primary([]sway.Output{swaytest.Output("eDP-1", false, false, "")})
		assert.False(t, ok)
	})
}
