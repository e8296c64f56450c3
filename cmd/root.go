package cmd

import (
	"github.com/bnema/swayproj/internal/config"
	"github.com/bnema/swayproj/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "swayproj",
		Short: "swayproj - projector helper for sway",
		Long: `swayproj waits for a projector to be plugged into a sway session, moves it
out of the way and stands up a headless virtual output backed by a virtual
framebuffer in its place. Everything is undone on exit.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetConfigPath(configPath)
			if err := config.Init(); err != nil {
				return err
			}
			logger.SetLevel(config.Get().Logging.Level)
			return nil
		},
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/swayproj/swayproj.toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
