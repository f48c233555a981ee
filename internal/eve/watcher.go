package eve

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nxadm/tail"
	"github.com/nxadm/tail/watch"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/common/messaging"
	"github.com/telhawk-systems/telhawk-sensor/internal/forwarder"
	"github.com/telhawk-systems/telhawk-sensor/internal/metrics"
)

// Forwarder delivers one EVE event upstream.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (*forwarder.Result, error)
}

type WatcherConfig struct {
	Path                  string
	PollInterval          time.Duration
	RotationCheckInterval time.Duration
	ReadFromStart         bool
	MirrorSubjectPrefix   string
}

// Watcher follows the active EVE log and forwards every line in file order.
// Delivery is best effort: failed posts are logged and not retried.
type Watcher struct {
	cfg       WatcherConfig
	rotator   *Rotator
	forwarder Forwarder
	publisher messaging.Publisher
	watermark *Watermark
	logger    *slog.Logger
	now       func() time.Time
}

func NewWatcher(cfg WatcherConfig, rotator *Rotator, fwd Forwarder, watermark *Watermark, logger *slog.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RotationCheckInterval <= 0 {
		cfg.RotationCheckInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:       cfg,
		rotator:   rotator,
		forwarder: fwd,
		watermark: watermark,
		logger:    logger,
		now:       time.Now,
	}
}

// WithPublisher mirrors every parsed event to the message bus.
func (w *Watcher) WithPublisher(p messaging.Publisher) *Watcher {
	w.publisher = p
	return w
}

// SetPollInterval sets how often the tail library polls watched files. The
// setting is process wide, so call it once before any watcher starts.
func SetPollInterval(d time.Duration) {
	if d > 0 {
		watch.POLL_DURATION = d
	}
}

// Run tails the active log until ctx is cancelled. Failures to open the
// log are retried after the poll interval.
func (w *Watcher) Run(ctx context.Context) error {
	w.checkRotation()

	ticker := time.NewTicker(w.cfg.RotationCheckInterval)
	defer ticker.Stop()

	whence := io.SeekEnd
	if w.cfg.ReadFromStart {
		whence = io.SeekStart
	}

	for {
		t, err := tail.TailFile(w.cfg.Path, tail.Config{
			Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
			ReOpen:    true,
			Follow:    true,
			Poll:      true,
			MustExist: false,
			Logger:    slog.NewLogLogger(w.logger.Handler(), slog.LevelDebug),
		})
		if err != nil {
			w.logger.Error("failed to open EVE log", logging.File(w.cfg.Path), logging.Error(err))
		} else {
			w.logger.Info("tailing EVE log", logging.File(w.cfg.Path), slog.Bool("from_start", whence == io.SeekStart))
			err = w.consume(ctx, t, ticker.C)
			_ = t.Stop()
			t.Cleanup()
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("EVE tail stopped", logging.File(w.cfg.Path), logging.Error(err))
			}
		}

		// A restarted tail must not replay lines already forwarded.
		whence = io.SeekEnd

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Watcher) consume(ctx context.Context, t *tail.Tail, rotationTick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rotationTick:
			w.checkRotation()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				w.logger.Warn("error reading EVE log", logging.Error(line.Err))
				continue
			}
			w.HandleLine(ctx, line.Text)
		}
	}
}

func (w *Watcher) checkRotation() {
	if w.rotator == nil {
		return
	}
	if _, err := w.rotator.Check(); err != nil {
		w.logger.Error("log rotation failed", logging.File(w.cfg.Path), logging.Error(err))
	}
}

// HandleLine processes one line of the EVE log: it advances the watermark,
// parses the event and posts it upstream.
func (w *Watcher) HandleLine(ctx context.Context, text string) {
	now := w.now()
	w.watermark.Touch(now)
	metrics.WatermarkTimestamp.Set(float64(now.Unix()))

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	metrics.EventsRead.Inc()

	eventType, err := parseEventType([]byte(text))
	if err != nil {
		metrics.EventParseErrors.Inc()
		w.logger.Warn("skipping malformed EVE line", logging.Error(err))
		return
	}
	if eventType != "" {
		w.logger.Debug("EVE event", logging.EventType(eventType))
	}

	body := []byte(text)
	if _, err := w.forwarder.Forward(ctx, body); err != nil {
		var statusErr *forwarder.StatusError
		if errors.Is(err, forwarder.ErrNotConfigured) {
			w.logger.Debug("central API not configured, event dropped", logging.EventType(eventType))
		} else if errors.As(err, &statusErr) {
			w.logger.Warn("central API rejected event",
				logging.EventType(eventType),
				logging.Status(statusErr.StatusCode),
			)
		} else {
			w.logger.Error("failed to forward event", logging.EventType(eventType), logging.Error(err))
		}
	}

	if w.publisher != nil {
		subject := messaging.EveSubject(w.cfg.MirrorSubjectPrefix, eventType)
		if err := w.publisher.Publish(ctx, subject, body); err != nil {
			metrics.EventsMirrored.WithLabelValues("error").Inc()
			w.logger.Warn("failed to mirror event", slog.String("subject", subject), logging.Error(err))
		} else {
			metrics.EventsMirrored.WithLabelValues("success").Inc()
		}
	}
}

// parseEventType checks that line is a JSON object and returns its
// event_type, or "" when absent or not a string.
func parseEventType(line []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return "", err
	}
	if fields == nil {
		return "", errors.New("EVE line is not a JSON object")
	}
	var eventType string
	if raw, ok := fields["event_type"]; ok {
		_ = json.Unmarshal(raw, &eventType)
	}
	return eventType, nil
}
