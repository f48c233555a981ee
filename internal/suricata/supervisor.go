package suricata

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
)

type SupervisorConfig struct {
	Binary     string
	ConfigPath string
	Interface  string
	Skip       bool
}

// Supervisor launches the Suricata engine once at startup and watches it
// exit. The process is not restarted.
type Supervisor struct {
	cfg    SupervisorConfig
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

func NewSupervisor(cfg SupervisorConfig, logger *slog.Logger) *Supervisor {
	if cfg.Binary == "" {
		cfg.Binary = "suricata"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{cfg: cfg, logger: logger, done: make(chan struct{})}
}

// Args returns the engine argument vector.
func (s *Supervisor) Args() []string {
	return []string{"-c", s.cfg.ConfigPath, "-i", s.cfg.Interface}
}

// Start spawns the engine unless skipping is configured. It returns once
// the process has started; a failure to start is returned and the agent is
// expected to continue without a supervised engine.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("suricata already started")
	}
	s.started = true

	if s.cfg.Skip {
		s.logger.Info("suricata spawn skipped")
		close(s.done)
		return nil
	}

	cmd := exec.Command(s.cfg.Binary, s.Args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		s.err = err
		close(s.done)
		return fmt.Errorf("failed to start suricata: %w", err)
	}

	s.logger.Info("suricata started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("config", s.cfg.ConfigPath),
		logging.Interface(s.cfg.Interface),
	)

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("suricata exited", logging.Error(err))
		} else {
			s.logger.Warn("suricata exited cleanly")
		}
		close(s.done)
	}()
	return nil
}

// Done is closed when the engine exits, fails to start, or was skipped.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Err returns the exit or start error once Done is closed.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
