package handlers

import (
	"context"
	"net/http"

	"github.com/telhawk-systems/telhawk-sensor/common/httputil"
	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/models"
)

// SuricataStatus handles GET /suricata/status
func (h *Handler) SuricataStatus(w http.ResponseWriter, r *http.Request) {
	h.commandText(w, r, h.control.Status)
}

// SuricataStatistics handles GET /suricata/statistics
func (h *Handler) SuricataStatistics(w http.ResponseWriter, r *http.Request) {
	h.commandText(w, r, h.control.RuleStatistics)
}

// SuricataInterface handles GET /suricata/interface
func (h *Handler) SuricataInterface(w http.ResponseWriter, r *http.Request) {
	h.commandText(w, r, h.control.InterfaceStatistics)
}

// ReloadRules handles POST /suricata/rules/reload
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if _, err := h.control.ReloadRules(r.Context()); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("rule reload failed", logging.Error(err))
		httputil.WriteJSON(w, http.StatusInternalServerError, models.Fail(err.Error()))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.OK("Rules reloaded successfully", nil))
}

// commandText writes the command output as text, or the error text with 500.
func (h *Handler) commandText(w http.ResponseWriter, r *http.Request, run func(context.Context) (string, error)) {
	out, err := run(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("suricata command failed", logging.Error(err))
		httputil.WriteText(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteText(w, http.StatusOK, out)
}
