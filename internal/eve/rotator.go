package eve

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/metrics"
)

// ArchiveTimeLayout is the UTC suffix appended to rotated logs.
const ArchiveTimeLayout = "20060102150405"

// activeFileMode lets the Suricata process, which may run as another user,
// write to a file created by the agent.
const activeFileMode os.FileMode = 0o666

// Rotator renames the active EVE log into the log directory once it grows
// past a size threshold and recreates an empty active file.
type Rotator struct {
	activePath string
	logDir     string
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

func NewRotator(activePath, logDir string, maxBytes int64, logger *slog.Logger) *Rotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{
		activePath: activePath,
		logDir:     logDir,
		maxBytes:   maxBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureActive creates the log directories and an empty active file when
// they are missing.
func (r *Rotator) EnsureActive() error {
	for _, dir := range []string{r.logDir, filepath.Dir(r.activePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}
	if _, err := os.Stat(r.activePath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat active log: %w", err)
	}
	return r.createActive()
}

// Check rotates the active log when it exceeds the threshold. It returns
// the archive path, or "" when nothing was rotated.
func (r *Rotator) Check() (string, error) {
	info, err := os.Stat(r.activePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", r.EnsureActive()
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat active log: %w", err)
	}
	if info.Size() <= r.maxBytes {
		return "", nil
	}

	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", r.logDir, err)
	}
	archive := r.archivePath()
	if err := moveFile(r.activePath, archive); err != nil {
		return "", fmt.Errorf("failed to rotate %s: %w", r.activePath, err)
	}
	if err := r.createActive(); err != nil {
		return archive, err
	}

	metrics.LogRotations.Inc()
	r.logger.Info("rotated EVE log",
		logging.File(r.activePath),
		slog.String("archive", archive),
		slog.Int64("size_bytes", info.Size()),
	)
	return archive, nil
}

func (r *Rotator) archivePath() string {
	base := filepath.Join(r.logDir, filepath.Base(r.activePath)+"."+r.now().UTC().Format(ArchiveTimeLayout))
	candidate := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
}

func (r *Rotator) createActive() error {
	f, err := os.OpenFile(r.activePath, os.O_CREATE|os.O_WRONLY, activeFileMode)
	if err != nil {
		return fmt.Errorf("failed to create active log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to create active log: %w", err)
	}
	// The process umask usually strips group and other write bits.
	if err := os.Chmod(r.activePath, activeFileMode); err != nil {
		return fmt.Errorf("failed to set active log permissions: %w", err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy and remove when they
// live on different filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
