package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/swayproj/internal/config"
	"github.com/bnema/swayproj/internal/layout"
	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/sway"
	"github.com/bnema/swayproj/internal/ui"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Unplug leftover virtual outputs",
	Long: `Unplug the configured virtual output and any leftover outputs named
<sweep_prefix>-<n>, for when a previous run was killed before it could clean up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		ctx, cancel := context.WithTimeout(context.Background(), 5*cfg.Sway.CallTimeout)
		defer cancel()

		client, err := sway.Dial(ctx, sway.Options{
			SocketPath: cfg.Sway.Socket,
			Timeout:    cfg.Sway.CallTimeout,
			Attempts:   1,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Debugf("Failed to close sway connection: %v", err)
			}
		}()

		r := layout.New(client, cfg.Virtual.SweepPrefix, cfg.Virtual.SweepCount)
		removed := r.Teardown(ctx, cfg.Virtual.Name)
		for _, c := range removed {
			logger.Debugf("Accepted: %s", c)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, fmt.Sprintf("Unplugged %d output(s)", len(removed))))
		return nil
	},
}
