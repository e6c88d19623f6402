package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/handyman/internal/configuration"
)

func newCheckConfigCommand() *cobra.Command {
	var printSyntax bool

	cmd := &cobra.Command{
		Use:   "check-config FILE",
		Short: "Validate a configuration file and its handler commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			cfg, err := configuration.NewLoader(nil).CheckFile(path, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			if printSyntax {
				return configuration.WriteYAML(out, cfg)
			}

			kinds := "none"
			if k := configuration.Kinds(cfg); len(k) > 0 {
				kinds = strings.Join(k, ", ")
			}
			fmt.Fprintf(out, "%s: configuration %q is valid (%d handlers, probes: %s)\n",
				path, cfg.DisplayName(), len(cfg.Handlers), kinds)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&printSyntax, "print-syntax", "p", false, "print the parsed configuration as YAML")
	return cmd
}
