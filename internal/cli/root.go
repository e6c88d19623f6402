// Package cli builds the handyman command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/handyman/internal/config"
	"github.com/jerkytreats/handyman/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// NewRootCommand returns the handyman command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	var settingsFile string

	root := &cobra.Command{
		Use:   "handyman",
		Short: "Run shell commands when health checks pass or fail",
		Long: `Handyman evaluates the health checks declared in its configuration
directory and runs handler commands whenever a check group reports
a matching state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.ConfigOption
			if settingsFile != "" {
				opts = append(opts, config.WithConfigPath(settingsFile))
			}
			if err := config.InitConfig(opts...); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if Version != "dev" {
				config.Set(config.AppVersionKey, Version)
			}
			if err := logging.Init(config.GetString(config.LogLevelKey)); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&settingsFile, "settings", "", "path to the daemon settings file")

	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckConfigCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	defer logging.Sync()
	return NewRootCommand().Execute()
}
