package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-sensor/common/middleware"
	"github.com/telhawk-systems/telhawk-sensor/internal/handlers"
)

type RouterConfig struct {
	CORSOrigins    []string
	MetricsEnabled bool
	Logger         *slog.Logger
}

// NewRouter registers the sensor routes. Paths are also served with a
// trailing slash.
func NewRouter(h *handlers.Handler, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	handle := func(path string, fn http.HandlerFunc, methods ...string) {
		r.HandleFunc(path, fn).Methods(methods...)
		if path != "/" {
			r.HandleFunc(path+"/", fn).Methods(methods...)
		}
	}

	handle("/", h.Root, http.MethodGet)
	handle("/healthz", h.HealthCheck, http.MethodGet)
	handle("/readyz", h.Ready, http.MethodGet)

	handle("/eve_json_log", h.IngestEve, http.MethodPost)

	handle("/rule", h.ListRules, http.MethodGet)
	handle("/rule", h.CreateRule, http.MethodPost)
	handle("/rule/{id}", h.GetRule, http.MethodGet)
	handle("/rule/{id}", h.DeleteRule, http.MethodDelete)

	handle("/suricata/status", h.SuricataStatus, http.MethodGet)
	handle("/suricata/statistics", h.SuricataStatistics, http.MethodGet)
	handle("/suricata/interface", h.SuricataInterface, http.MethodGet)
	handle("/suricata/rules/reload", h.ReloadRules, http.MethodPost)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	// CORS wraps the router so preflight requests never reach route matching.
	var handler http.Handler = r
	handler = middleware.CORS(middleware.SensorCORSConfig(cfg.CORSOrigins))(handler)
	handler = middleware.AccessLog(cfg.Logger)(handler)
	return middleware.RequestID(handler)
}
