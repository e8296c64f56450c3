package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/swayproj/internal/config"
	"github.com/bnema/swayproj/internal/ipc"
	"github.com/bnema/swayproj/internal/ui"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running swayproj",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient(config.Get().Control.Socket)
		if err != nil {
			return fmt.Errorf("failed to create IPC client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		st, err := client.Status(ctx)
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(false, "swayproj is not running"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), renderStatus(st, time.Now()))
		return nil
	},
}

// phaseStyle highlights phases in which the outputs are being changed
func phaseStyle(phase string) lipgloss.Style {
	switch phase {
	case "reconfiguring", "provisioning", "releasing":
		return ui.WarningStyle
	case "done":
		return ui.ErrorStyle
	}
	return ui.TextStyle
}

func renderStatus(st *ipc.StatusResponse, now time.Time) string {
	var b strings.Builder

	b.WriteString(ui.FormatHeader("swayproj"))
	b.WriteString("\n")
	b.WriteString(ui.FormatStatus(st.Phase == "active", phaseStyle(st.Phase).Render(st.Phase)))
	if !st.Since.IsZero() {
		b.WriteString(ui.SubtleStyle.Render(fmt.Sprintf(" for %s", now.Sub(st.Since).Round(time.Second))))
	}
	b.WriteString("\n\n")

	row := func(k, v string) {
		if v == "" {
			v = "-"
		}
		b.WriteString(ui.FormatKeyValue(k, v))
		b.WriteString("\n")
	}
	row("Projector", st.Projector)
	row("Workspace", st.Workspace)
	row("Virtual output", st.VirtualOutput)
	row("Framebuffer", st.Framebuffer)
	if st.Framebuffer != "" {
		row("Damage", fmt.Sprintf("%d", st.Damage))
	}
	return b.String()
}
