package suricata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/metrics"
)

// Control socket commands understood by suricatasc.
const (
	CommandUptime       = "uptime"
	CommandReloadRules  = "reload-rules"
	CommandRulesetStats = "ruleset-stats"
	CommandIfaceStat    = "iface-stat"
)

// ErrInvalidInterface is returned before any process is started when the
// interface name contains characters outside [A-Za-z0-9_-].
var ErrInvalidInterface = errors.New("Invalid interface name")

var interfacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidInterface reports whether name is safe to pass to iface-stat.
func ValidInterface(name string) bool {
	return interfacePattern.MatchString(name)
}

// CommandError is returned when a control command cannot be started or
// exits unsuccessfully. Message is safe to show to operators.
type CommandError struct {
	Command string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitError reports a process that started and exited unsuccessfully.
type ExitError struct {
	Status string
}

func (e *ExitError) Error() string {
	return e.Status
}

// Runner executes a program with an explicit argument vector and returns
// its captured output. A process that ran but failed yields *ExitError;
// any other error means it could not be started.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec. No shell is involved.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), &ExitError{Status: exitErr.ProcessState.String()}
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

type ControllerConfig struct {
	ExecHelper   string
	Container    string
	SocketClient string
	Interface    string
	Timeout      time.Duration
}

// Controller issues commands to the Suricata control socket through a
// container exec helper: <helper> exec <container> <client> -c <command>.
type Controller struct {
	cfg    ControllerConfig
	runner Runner
	logger *slog.Logger
}

func NewController(cfg ControllerConfig, runner Runner, logger *slog.Logger) *Controller {
	if cfg.ExecHelper == "" {
		cfg.ExecHelper = "docker"
	}
	if cfg.Container == "" {
		cfg.Container = "suricata"
	}
	if cfg.SocketClient == "" {
		cfg.SocketClient = "suricatasc"
	}
	if cfg.Interface == "" {
		cfg.Interface = "eth0"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, runner: runner, logger: logger}
}

// Status returns the output of uptime.
func (c *Controller) Status(ctx context.Context) (string, error) {
	return c.run(ctx, CommandUptime)
}

// ReloadRules asks Suricata to reload its rule files.
func (c *Controller) ReloadRules(ctx context.Context) (string, error) {
	return c.run(ctx, CommandReloadRules)
}

// RuleStatistics returns the output of ruleset-stats.
func (c *Controller) RuleStatistics(ctx context.Context) (string, error) {
	return c.run(ctx, CommandRulesetStats)
}

// InterfaceStatistics returns iface-stat for the configured interface.
func (c *Controller) InterfaceStatistics(ctx context.Context) (string, error) {
	return c.InterfaceStatisticsFor(ctx, c.cfg.Interface)
}

// InterfaceStatisticsFor returns iface-stat for iface after checking it
// against the whitelist.
func (c *Controller) InterfaceStatisticsFor(ctx context.Context, iface string) (string, error) {
	if !ValidInterface(iface) {
		metrics.SuricataCommands.WithLabelValues(CommandIfaceStat, "rejected").Inc()
		c.logger.Warn("rejected interface name", logging.Interface(iface))
		return "", ErrInvalidInterface
	}
	return c.run(ctx, CommandIfaceStat+" "+iface)
}

// Args returns the argument vector passed to the exec helper for command.
func (c *Controller) Args(command string) []string {
	return []string{"exec", c.cfg.Container, c.cfg.SocketClient, "-c", command}
}

func (c *Controller) run(ctx context.Context, command string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	label := strings.Fields(command)[0]
	out, err := c.execute(ctx, command)
	metrics.SuricataCommands.WithLabelValues(label, metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Error("suricata command failed", logging.Command(command), logging.Error(err))
		return "", err
	}
	c.logger.Debug("suricata command succeeded", logging.Command(command))
	return out, nil
}

func (c *Controller) execute(ctx context.Context, command string) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, c.cfg.ExecHelper, c.Args(command)...)
	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			msg := fmt.Sprintf("Failed to execute command: %v", err)
			if command == CommandReloadRules {
				msg = fmt.Sprintf("Failed to execute reload command: %v", err)
			}
			return "", &CommandError{Command: command, Message: msg, Err: err}
		}
		stderrText := "Failed to decode stderr output"
		if utf8.Valid(stderr) {
			stderrText = string(stderr)
		}
		msg := fmt.Sprintf("Command failed with status: %s (%s)", exitErr.Status, stderrText)
		if command == CommandReloadRules {
			msg = "Failed to reload rules: " + stderrText
		}
		return "", &CommandError{Command: command, Message: msg, Err: err}
	}

	if !utf8.Valid(stdout) {
		return "", &CommandError{Command: command, Message: "Failed to decode command output"}
	}
	return string(stdout), nil
}
