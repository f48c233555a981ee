package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/telhawk-systems/telhawk-sensor/common/httputil"
	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/models"
	"github.com/telhawk-systems/telhawk-sensor/internal/rules"
)

// ListRules handles GET /rule
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.rules.ListRules(r.Context())
	if err != nil {
		h.ruleError(w, r, err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.OK("", list))
}

// GetRule handles GET /rule/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := h.rules.GetRule(r.Context(), id)
	if err != nil {
		h.ruleError(w, r, err, id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.OK("", rule))
}

// CreateRule handles POST /rule. rule_type and filename are accepted but
// ignored: every rule goes to the single custom rules file. Duplicate rules
// are allowed; they share an ID and DELETE removes all copies together.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r, h.maxBody)
	if err != nil {
		h.bodyError(w, err)
		return
	}

	var req models.RuleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.Fail("Invalid request body"))
		return
	}

	if _, err := h.rules.AddRule(r.Context(), req.RuleContent); err != nil {
		h.ruleError(w, r, err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.OK("Rule added and applied successfully", nil))
}

// DeleteRule handles DELETE /rule/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.rules.DeleteRule(r.Context(), id); err != nil {
		h.ruleError(w, r, err, id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.OK("Rule deleted and changes applied successfully", nil))
}

func (h *Handler) ruleError(w http.ResponseWriter, r *http.Request, err error, id string) {
	var validationErr *rules.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.WriteJSON(w, http.StatusBadRequest, models.Fail(validationErr.Message))
	case errors.Is(err, rules.ErrRulesFileNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, models.Fail("Rules file does not exist"))
	case errors.Is(err, rules.ErrRuleNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, models.Fail(fmt.Sprintf("Rule with ID '%s' not found", id)))
	default:
		logging.FromContext(r.Context(), h.logger).Error("rules file operation failed",
			logging.RuleID(id),
			logging.Error(err),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, models.Fail(err.Error()))
	}
}

func (h *Handler) bodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, models.Fail("Request body too large"))
		return
	}
	httputil.WriteJSON(w, http.StatusBadRequest, models.Fail("Unable to read request body"))
}
