// Package service coordinates the rules file with the running Suricata
// instance and fans ingested EVE payloads out to the central API.
package service

import (
	"context"
	"log/slog"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/metrics"
	"github.com/telhawk-systems/telhawk-sensor/internal/models"
)

// RuleStore is the persistence behind RuleService. *rules.Store implements it.
type RuleStore interface {
	Append(ctx context.Context, rule string) (models.Rule, error)
	List(ctx context.Context) (models.RulesList, error)
	Get(ctx context.Context, id string) (models.Rule, error)
	Delete(ctx context.Context, id string) (int, error)
}

// Reloader asks Suricata to reload its rule set. *suricata.Controller
// implements it.
type Reloader interface {
	ReloadRules(ctx context.Context) (string, error)
}

type RuleService struct {
	store    RuleStore
	reloader Reloader
	logger   *slog.Logger
}

// NewRuleService returns a service backed by store. When reloader is nil,
// mutations are not followed by a rule reload.
func NewRuleService(store RuleStore, reloader Reloader, logger *slog.Logger) *RuleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleService{store: store, reloader: reloader, logger: logger}
}

// AddRule validates and appends content to the rules file.
func (s *RuleService) AddRule(ctx context.Context, content string) (models.Rule, error) {
	rule, err := s.store.Append(ctx, content)
	metrics.RuleOperations.WithLabelValues("add", metrics.Result(err)).Inc()
	if err != nil {
		return models.Rule{}, err
	}

	s.logger.Info("rule added", logging.RuleID(rule.ID), slog.String("sid", rule.SID))
	s.reload(ctx)
	return rule, nil
}

func (s *RuleService) ListRules(ctx context.Context) (models.RulesList, error) {
	list, err := s.store.List(ctx)
	metrics.RuleOperations.WithLabelValues("list", metrics.Result(err)).Inc()
	return list, err
}

func (s *RuleService) GetRule(ctx context.Context, id string) (models.Rule, error) {
	rule, err := s.store.Get(ctx, id)
	metrics.RuleOperations.WithLabelValues("get", metrics.Result(err)).Inc()
	return rule, err
}

// DeleteRule removes every line whose ID is id and returns how many were
// removed.
func (s *RuleService) DeleteRule(ctx context.Context, id string) (int, error) {
	removed, err := s.store.Delete(ctx, id)
	metrics.RuleOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return 0, err
	}

	s.logger.Info("rule deleted", logging.RuleID(id), slog.Int("removed", removed))
	s.reload(ctx)
	return removed, nil
}

// reload failures are logged only; the file change already happened.
func (s *RuleService) reload(ctx context.Context) {
	if s.reloader == nil {
		return
	}
	if _, err := s.reloader.ReloadRules(ctx); err != nil {
		s.logger.Warn("rule reload after change failed", logging.Error(err))
	}
}
