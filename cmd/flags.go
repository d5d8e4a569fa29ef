package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/rolodex/internal/config"
	"github.com/zjrosen/rolodex/internal/flags"
)

func newFlagsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Show or change feature flags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List feature flags and whether they are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range flags.Known() {
				desc, _ := flags.Describe(name)
				_, _ = fmt.Fprintf(tw, "%s\t%t\t%s\n", name, c.flags.Enabled(name), desc)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <true|false>",
		Short: "Enable or disable a feature flag in the config file",
		Long: `Enable or disable a feature flag. The config file in use is edited in place;
other settings and comments are kept.

Example:
  rolodex flags set memory-only true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, ok := flags.Describe(name); !ok {
				return fmt.Errorf("unknown flag %q (known: %v)", name, flags.Known())
			}
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("flag value must be true or false, got %q", args[1])
			}
			if err := config.SetFlag(c.configPath, name, value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s=%t (%s)\n", name, value, c.configPath)
			return nil
		},
	})

	return cmd
}
