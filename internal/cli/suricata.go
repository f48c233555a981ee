package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type commandResult struct {
	Command string `json:"command" yaml:"command"`
	Output  string `json:"output" yaml:"output"`
}

func newSuricataCommand(a *app) *cobra.Command {
	suricataCmd := &cobra.Command{
		Use:   "suricata",
		Short: "Run Suricata control socket commands",
	}

	run := func(command string, fn func(context.Context) (string, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			out, err := fn(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Render(commandResult{Command: command, Output: out}, func(w io.Writer) {
				fmt.Fprint(w, out)
			})
		}
	}

	suricataCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show engine uptime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("uptime", a.controller().Status)(cmd, args)
		},
	})

	suricataCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show rule set statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("ruleset-stats", a.controller().RuleStatistics)(cmd, args)
		},
	})

	suricataCmd.AddCommand(&cobra.Command{
		Use:   "iface [name]",
		Short: "Show capture interface statistics",
		Long:  "Show statistics for the named interface, or the configured network interface when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller()
			iface := a.cfg.Suricata.NetworkInterface
			if len(args) == 1 {
				iface = args[0]
			}
			return run("iface-stat "+iface, func(ctx context.Context) (string, error) {
				return ctrl.InterfaceStatisticsFor(ctx, iface)
			})(cmd, args)
		},
	})

	suricataCmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload the rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.controller().ReloadRules(cmd.Context()); err != nil {
				return err
			}
			if a.printer.Structured() {
				return a.printer.Render(commandResult{Command: "reload-rules", Output: "ok"}, nil)
			}
			a.printer.Success("Rules reloaded")
			return nil
		},
	})

	return suricataCmd
}
