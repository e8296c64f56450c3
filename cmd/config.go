package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/swayproj/internal/config"
	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/sway"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage swayproj configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		logger.Info("Current Configuration:")
		logger.Infof("Config file: %s\n", config.GetConfigPath())

		logger.Info("[Projector]")
		logger.Infof("  Candidates: %s", strings.Join(cfg.Projector.Candidates, ", "))
		logger.Infof("  Poll Interval: %s", cfg.Projector.PollInterval)
		logger.Infof("  Release On Disconnect: %v", cfg.Projector.ReleaseOnDisconnect)
		off := cfg.Projector.Offscreen
		logger.Infof("  Offscreen: %dx%d at %d,%d bg %s", off.Width, off.Height, off.X, off.Y, off.Background)

		logger.Info("\n[Virtual]")
		logger.Infof("  Enabled: %v", cfg.Virtual.Enabled)
		logger.Infof("  Name: %s", cfg.Virtual.Name)
		logger.Infof("  Mode: %dx%d", cfg.Virtual.Width, cfg.Virtual.Height)
		if cfg.Virtual.Placement == "manual" {
			logger.Infof("  Placement: manual at %d,%d", cfg.Virtual.X, cfg.Virtual.Y)
		} else {
			logger.Infof("  Placement: %s", cfg.Virtual.Placement)
		}
		logger.Infof("  Sweep: %s-0..%s-%d", cfg.Virtual.SweepPrefix, cfg.Virtual.SweepPrefix, cfg.Virtual.SweepCount-1)

		logger.Info("\n[Framebuffer]")
		logger.Infof("  Enabled: %v", cfg.Framebuffer.Enabled)
		logger.Infof("  Device: %s", cfg.Framebuffer.Device)
		logger.Infof("  Geometry: %dx%dx%d", cfg.Framebuffer.Width, cfg.Framebuffer.Height, cfg.Framebuffer.BytesPerPixel)

		logger.Info("\n[Shutdown]")
		logger.Infof("  Grace: %d x %s", cfg.Shutdown.Steps, cfg.Shutdown.Step)

		logger.Info("\n[Sway]")
		socket := cfg.Sway.Socket
		if socket == "" {
			socket = "(from $SWAYSOCK)"
		}
		logger.Infof("  Socket: %s", socket)
		logger.Infof("  Connect: %d attempts, %s apart", cfg.Sway.ConnectAttempts, cfg.Sway.ConnectDelay)
		logger.Infof("  Call Timeout: %s", cfg.Sway.CallTimeout)

		logger.Info("\n[Misc]")
		logger.Infof("  Control Socket: %v %s", cfg.Control.Enabled, cfg.Control.Socket)
		logger.Infof("  Inhibit Idle: %v", cfg.Session.InhibitIdle)
		logger.Infof("  UI Mode: %s", cfg.UI.Mode)

		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save current configuration to file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(); err != nil {
			return err
		}
		logger.Infof("Configuration saved to: %s", config.GetConfigPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a configuration file with default values. On a terminal, the projector
candidates can be picked from the outputs sway currently reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()

		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Config file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if term.IsTerminal(int(os.Stdin.Fd())) {
			if picked, err := pickCandidates(); err != nil {
				logger.Warnf("Keeping default projector candidates: %v", err)
			} else if len(picked) > 0 {
				config.SetCandidates(picked)
			}
		}

		if err := config.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		logger.Infof("Configuration file created at: %s", configPath)
		return nil
	},
}

// pickCandidates offers the physical outputs sway reports right now
func pickCandidates() ([]string, error) {
	cfg := config.Get()
	ctx, cancel := context.WithTimeout(context.Background(), 5*cfg.Sway.CallTimeout)
	defer cancel()

	client, err := sway.Dial(ctx, sway.Options{
		SocketPath: cfg.Sway.Socket,
		Timeout:    cfg.Sway.CallTimeout,
		Attempts:   1,
	})
	if err != nil {
		return nil, err
	}
	outputs, err := client.ListOutputs(ctx)
	_ = client.Close()
	if err != nil {
		return nil, err
	}

	var options []huh.Option[string]
	for _, o := range outputs {
		if o.Headless() {
			continue
		}
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s %s)", o.Name, o.Make, o.Model), o.Name))
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("no physical outputs reported")
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select Projector Outputs").
				Description("Outputs that count as the projector when connected. Leave empty to keep the defaults.").
				Options(options...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("output selection cancelled: %w", err)
	}
	return selected, nil
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configInitCmd)
}
