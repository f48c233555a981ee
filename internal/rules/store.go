package rules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/models"
)

var (
	ErrRuleNotFound      = errors.New("rule not found")
	ErrRulesFileNotFound = errors.New("rules file does not exist")
)

// DefaultBackupThreshold is the size above which the rules file is copied
// to <name>.bak before an append.
const DefaultBackupThreshold int64 = 1_000_000

const lockRetryDelay = 50 * time.Millisecond

// Store manages the custom rules file. All operations are serialized inside
// the process by a mutex and across processes by an advisory lock on
// <name>.lock, so the CLI can edit the file while the agent is running.
type Store struct {
	path            string
	backupThreshold int64
	logger          *slog.Logger

	mu   sync.Mutex
	lock *flock.Flock
}

type StoreOption func(*Store)

func WithBackupThreshold(n int64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.backupThreshold = n
		}
	}
}

func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:            path,
		backupThreshold: DefaultBackupThreshold,
		logger:          slog.Default(),
		lock:            flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the rules file location.
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns the location of the size-triggered backup.
func (s *Store) BackupPath() string {
	return s.path + ".bak"
}

// Append validates rule and appends it as a new line. The file and its
// directory are created when missing. The returned Rule carries the ID that
// List will report for the same line.
func (s *Store) Append(ctx context.Context, rule string) (models.Rule, error) {
	content := Normalize(rule)
	if err := Validate(content); err != nil {
		return models.Rule{}, err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return models.Rule{}, fmt.Errorf("failed to create rules directory: %w", err)
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return models.Rule{}, err
	}
	defer unlock()

	needsSeparator := false
	if info, err := os.Stat(s.path); err == nil {
		if info.Size() > s.backupThreshold {
			if err := s.backup(); err != nil {
				s.logger.Warn("failed to back up rules file", logging.File(s.path), logging.Error(err))
			}
		}
		if info.Size() > 0 {
			needsSeparator, err = lacksTrailingNewline(s.path, info.Size())
			if err != nil {
				return models.Rule{}, fmt.Errorf("failed to read rules file: %w", err)
			}
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return models.Rule{}, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	line := content + "\n"
	if needsSeparator {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return models.Rule{}, fmt.Errorf("failed to write rule: %w", err)
	}
	if err := f.Sync(); err != nil {
		s.logger.Warn("failed to sync rules file", logging.File(s.path), logging.Error(err))
	}

	return Parse(content), nil
}

// List returns every rule line in file order. A missing file is an empty
// list.
func (s *Store) List(ctx context.Context) (models.RulesList, error) {
	lines, err := s.readLines(ctx)
	if errors.Is(err, ErrRulesFileNotFound) {
		return models.RulesList{Rules: []models.Rule{}, Count: 0}, nil
	}
	if err != nil {
		return models.RulesList{}, err
	}

	rules := make([]models.Rule, 0, len(lines))
	for _, line := range lines {
		if isRuleLine(line) {
			rules = append(rules, Parse(line))
		}
	}
	return models.RulesList{Rules: rules, Count: len(rules)}, nil
}

// Get returns the first rule whose ID matches.
func (s *Store) Get(ctx context.Context, id string) (models.Rule, error) {
	lines, err := s.readLines(ctx)
	if err != nil {
		return models.Rule{}, err
	}
	for _, line := range lines {
		if isRuleLine(line) && ID(line) == id {
			return Parse(line), nil
		}
	}
	return models.Rule{}, ErrRuleNotFound
}

// Delete removes every rule line whose ID matches and rewrites the file
// atomically. Comments and blank lines are kept. It returns the number of
// lines removed.
func (s *Store) Delete(ctx context.Context, id string) (int, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return 0, ErrRulesFileNotFound
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrRulesFileNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rules file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if isRuleLine(line) && ID(line) == id {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		return 0, ErrRuleNotFound
	}

	if err := atomic.WriteFile(s.path, strings.NewReader(strings.Join(kept, "\n"))); err != nil {
		return 0, fmt.Errorf("failed to write rules file: %w", err)
	}
	return removed, nil
}

func (s *Store) readLines(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrRulesFileNotFound
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrRulesFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return strings.Split(string(data), "\n"), nil
}

// acquire takes the in-process mutex and then the cross-process file lock.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("failed to lock rules file: %w", err)
	}

	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release rules file lock", logging.File(s.lock.Path()), logging.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func (s *Store) backup() error {
	src, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := atomic.WriteFile(s.BackupPath(), src); err != nil {
		return err
	}
	if err := os.Chmod(s.BackupPath(), 0o644); err != nil {
		return err
	}
	s.logger.Info("rules file backed up", logging.File(s.BackupPath()))
	return nil
}

func lacksTrailingNewline(path string, size int64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}
