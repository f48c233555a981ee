// Package cli implements the sensor command line.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/config"
	"github.com/telhawk-systems/telhawk-sensor/internal/rules"
	"github.com/telhawk-systems/telhawk-sensor/internal/suricata"
)

// Version is stamped at build time.
var Version = "0.1.0"

type app struct {
	configPath string
	output     string

	cfg     *config.Config
	printer *Printer
	logger  *slog.Logger

	stdout io.Writer
	stderr io.Writer
	runner suricata.Runner
}

// Execute runs the sensor command line with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree. Without a subcommand the agent is
// started, as with "sensor serve".
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{stdout: os.Stdout, stderr: os.Stderr})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sensor",
		Short: "TelHawk Suricata sensor agent",
		Long: `sensor runs next to a Suricata instance. It forwards EVE events to the
central API, manages the custom rules file and bridges control socket
commands for operators.`,
		Version:       Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./config.yaml or /etc/telhawk/sensor/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", FormatTable, "output format: table, json, yaml")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newRulesCommand(a))
	rootCmd.AddCommand(newSuricataCommand(a))
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	printer, err := NewPrinter(a.stdout, a.stderr, a.output)
	if err != nil {
		return err
	}
	a.printer = printer

	// Command output owns stdout; logs go to stderr.
	a.logger = logging.NewWithWriter(a.stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).Logger
	return nil
}

func (a *app) store() *rules.Store {
	return rules.NewStore(a.cfg.RulesFilePath(),
		rules.WithBackupThreshold(a.cfg.Rules.BackupThreshold),
		rules.WithLogger(a.logger),
	)
}

func (a *app) controller() *suricata.Controller {
	return suricata.NewController(suricata.ControllerConfig{
		ExecHelper:   a.cfg.Suricata.ExecHelper,
		Container:    a.cfg.Suricata.Container,
		SocketClient: a.cfg.Suricata.SocketClient,
		Interface:    a.cfg.Suricata.NetworkInterface,
		Timeout:      a.cfg.Suricata.CommandTimeout,
	}, a.runner, a.logger)
}

// reloadsOnChange reports whether rule mutations trigger reload-rules.
func (a *app) reloadsOnChange() bool {
	return a.cfg.Suricata.ReloadOnChange && !a.cfg.Suricata.Skip
}
