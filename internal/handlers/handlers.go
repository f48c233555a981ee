// Package handlers implements the sensor's HTTP control surface.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/telhawk-systems/telhawk-sensor/common/httputil"
	"github.com/telhawk-systems/telhawk-sensor/internal/eve"
	"github.com/telhawk-systems/telhawk-sensor/internal/ratelimit"
	"github.com/telhawk-systems/telhawk-sensor/internal/service"
)

// Greeting is the body served at the root path.
const Greeting = "Friede sei mit euch!"

// SuricataControl runs control socket commands. *suricata.Controller
// implements it.
type SuricataControl interface {
	Status(ctx context.Context) (string, error)
	ReloadRules(ctx context.Context) (string, error)
	RuleStatistics(ctx context.Context) (string, error)
	InterfaceStatistics(ctx context.Context) (string, error)
}

// Options carries the collaborators of Handler.
type Options struct {
	Rules        *service.RuleService
	Ingest       *service.IngestService
	Control      SuricataControl
	Limiter      ratelimit.RateLimiter
	Watermark    *eve.Watermark
	RulesPath    string
	MaxBodyBytes int64
	Logger       *slog.Logger
}

type Handler struct {
	rules     *service.RuleService
	ingest    *service.IngestService
	control   SuricataControl
	limiter   ratelimit.RateLimiter
	watermark *eve.Watermark
	rulesPath string
	maxBody   int64
	logger    *slog.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.Limiter == nil {
		opts.Limiter = &ratelimit.NoOpRateLimiter{}
	}
	if opts.Watermark == nil {
		opts.Watermark = &eve.Watermark{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		rules:     opts.Rules,
		ingest:    opts.Ingest,
		control:   opts.Control,
		limiter:   opts.Limiter,
		watermark: opts.Watermark,
		rulesPath: opts.RulesPath,
		maxBody:   opts.MaxBodyBytes,
		logger:    opts.Logger,
	}
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteText(w, http.StatusOK, Greeting)
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /readyz and reports the ingest watermark.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":     "ready",
		"rules_file": h.rulesPath,
	}
	if wm := h.watermark.Load(); !wm.IsZero() {
		status["watermark"] = wm.UTC().Format(time.RFC3339Nano)
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
