package handlers

import (
	"errors"
	"net/http"

	"github.com/telhawk-systems/telhawk-sensor/common/httputil"
	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/forwarder"
	"github.com/telhawk-systems/telhawk-sensor/internal/models"
	"github.com/telhawk-systems/telhawk-sensor/internal/service"
)

// IngestEve handles POST /eve_json_log. The body is one EVE object or an
// array of them; each event is forwarded to the central API on its own and
// the upstream replies are returned.
func (h *Handler) IngestEve(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	clientIP := httputil.GetClientIP(r)
	allowed, err := h.limiter.Allow(r.Context(), clientIP)
	if err != nil {
		log.Warn("rate limiter unavailable, allowing request", logging.IP(clientIP), logging.Error(err))
	} else if !allowed {
		httputil.WriteJSON(w, http.StatusTooManyRequests, models.Fail("Rate limit exceeded"))
		return
	}

	body, err := httputil.ReadBody(r, h.maxBody)
	if err != nil {
		h.bodyError(w, err)
		return
	}

	out, err := h.ingest.Ingest(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidJSON):
			httputil.WriteJSON(w, http.StatusBadRequest, models.Fail("Invalid JSON format"))
		case errors.Is(err, service.ErrUnsupportedPayload):
			httputil.WriteJSON(w, http.StatusBadRequest, models.Fail("Unsupported JSON format: must be an array or an object"))
		case errors.Is(err, forwarder.ErrNotConfigured):
			log.Error("central API URL is not configured")
			httputil.WriteJSON(w, http.StatusInternalServerError, models.Fail("Server configuration error"))
		case errors.Is(err, service.ErrAllEventsFailed):
			httputil.WriteJSON(w, http.StatusBadGateway, models.Fail("Failed to process all events"))
		default:
			log.Error("EVE ingest failed", logging.Error(err))
			httputil.WriteJSON(w, http.StatusInternalServerError, models.Fail(err.Error()))
		}
		return
	}

	httputil.WriteRawJSON(w, http.StatusOK, out)
}
