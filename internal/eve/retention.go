package eve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/metrics"
)

// ArchiveGlob matches archives written by Suricata's own file rotation.
const ArchiveGlob = "eve.*.json"

// Retainer deletes archived EVE logs whose content has already been
// ingested, judged by comparing modification time with the watermark.
type Retainer struct {
	logDir     string
	activePath string
	watermark  *Watermark
	logger     *slog.Logger
	rotated    *regexp.Regexp

	// includeRotated widens the sweep to Rotator archives.
	includeRotated bool
}

func NewRetainer(logDir, activePath string, watermark *Watermark, logger *slog.Logger) *Retainer {
	if logger == nil {
		logger = slog.Default()
	}
	base := regexp.QuoteMeta(filepath.Base(activePath))
	return &Retainer{
		logDir:     logDir,
		activePath: activePath,
		watermark:  watermark,
		logger:     logger,
		rotated:    regexp.MustCompile(`^` + base + `\.\d{14}(-\d+)?$`),
	}
}

// WithRotatedArchives makes the sweep also delete names produced by Rotator
// for the active file. By default only eve.*.json archives are eligible.
func (r *Retainer) WithRotatedArchives(enabled bool) *Retainer {
	r.includeRotated = enabled
	return r
}

// IsArchive reports whether a basename is eligible for retention:
// eve.<anything>.json, plus Rotator archives when WithRotatedArchives is set.
func (r *Retainer) IsArchive(name string) bool {
	if name == "eve.json" {
		return false
	}
	if ok, _ := filepath.Match(ArchiveGlob, name); ok {
		return true
	}
	return r.includeRotated && r.rotated.MatchString(name)
}

// Sweep deletes every archive strictly older than the watermark. Failures
// on single files are logged and skipped. It returns the deleted paths.
func (r *Retainer) Sweep() ([]string, error) {
	watermark := r.watermark.Load()
	if watermark.IsZero() {
		return nil, nil
	}

	entries, err := os.ReadDir(r.logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	activeInfo, _ := os.Stat(r.activePath)
	activeAbs, _ := filepath.Abs(r.activePath)

	var deleted []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !r.IsArchive(entry.Name()) {
			continue
		}
		path := filepath.Join(r.logDir, entry.Name())
		if abs, _ := filepath.Abs(path); abs == activeAbs {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			r.logger.Warn("failed to stat archived log", logging.File(path), logging.Error(err))
			continue
		}
		if activeInfo != nil && os.SameFile(info, activeInfo) {
			continue
		}
		if !info.ModTime().Before(watermark) {
			continue
		}

		if err := os.Remove(path); err != nil {
			r.logger.Warn("failed to delete archived log", logging.File(path), logging.Error(err))
			continue
		}
		metrics.ArchivesDeleted.Inc()
		deleted = append(deleted, path)
		r.logger.Info("deleted archived log", logging.File(path), slog.Time("mtime", info.ModTime()))
	}
	return deleted, nil
}

// Run sweeps on a fixed cadence until ctx is cancelled.
func (r *Retainer) Run(ctx context.Context, interval time.Duration) error {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if _, err := r.Sweep(); err != nil {
			r.logger.Error("retention sweep failed", logging.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule retention: %w", err)
	}

	scheduler.Start()
	r.logger.Info("retention scheduled", slog.Duration("interval", interval), slog.String("log_dir", r.logDir))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}
