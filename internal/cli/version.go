package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/handyman/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the handyman version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "handyman %s\n", config.GetString(config.AppVersionKey))
		},
	}
}
