package rules

import (
	"context"
	"sync/atomic"
	"time"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/pkg/errors"
	"ledger-matching-engine/pkg/logger"
)

// RuleStore is the persistence collaborator the engine reads rules from
// and reports usage statistics to.
type RuleStore interface {
	// ActiveRulesForTenant returns the active rules scoped to a tenant,
	// with conditions and actions attached.
	ActiveRulesForTenant(ctx context.Context, tenantID string) ([]models.Rule, error)

	// GetRule fetches one rule by ID within a tenant scope.
	GetRule(ctx context.Context, tenantID, ruleID string) (models.Rule, error)

	// RecordRuleMatch increments the rule's times_matched counter and
	// refreshes its last_matched timestamp.
	RecordRuleMatch(ctx context.Context, tenantID, ruleID string) error
}

// ExecutionLogEntry is one audit record of a rule evaluation.
type ExecutionLogEntry struct {
	RuleID      string              `json:"rule_id"`
	RuleName    string              `json:"rule_name"`
	TenantID    string              `json:"tenant_id"`
	Transaction models.Transaction  `json:"transaction"`
	Matched     bool                `json:"matched"`
	SplitLines  []models.SplitLine  `json:"split_lines,omitempty"`
	ExecutedAt  time.Time           `json:"executed_at"`
}

// ExecutionLogSink receives execution log entries. Writes are best
// effort: the engine swallows sink failures so a logging outage never
// blocks reconciliation.
type ExecutionLogSink interface {
	Record(ctx context.Context, entry ExecutionLogEntry) error
}

// ruleConfidence is the confidence assigned to rule-based matches when
// merging with pattern suggestions. Rules are operator-authored, so they
// rank above all but the strongest learned patterns.
const ruleConfidence = 90.0

// Engine orchestrates rule evaluation for transactions: fetch, match,
// allocate, validate, log. Engines are safe for concurrent use as long as
// the underlying store is; each evaluation is independent.
type Engine struct {
	config  *EngineConfig
	store   RuleStore
	logSink ExecutionLogSink
	logger  logger.Logger

	logFailures atomic.Int64
}

// NewEngine creates a rule engine backed by the given store. The log sink
// may be nil, in which case execution logging is disabled.
func NewEngine(store RuleStore, logSink ExecutionLogSink, config *EngineConfig) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}

	return &Engine{
		config:  config,
		store:   store,
		logSink: logSink,
		logger:  logger.GetGlobalLogger().WithComponent("rule_engine"),
	}
}

// LogFailures returns how many execution-log writes have failed since the
// engine was created. Failures are swallowed during evaluation and only
// observable here and in warn-level diagnostics.
func (e *Engine) LogFailures() int64 {
	return e.logFailures.Load()
}

// Evaluate runs the full rule pipeline for one transaction and returns a
// MatchResult. A transaction no rule matches is an expected outcome and
// yields a non-matched result with a nil error; store read failures and
// validation problems are returned as errors for the caller to map.
func (e *Engine) Evaluate(ctx context.Context, tx models.Transaction) (result *models.MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.InternalError("rule evaluation", nil).WithContext("panic", r)
		}
	}()

	if verr := tx.Validate(); verr != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "transaction", verr.Error())
	}

	activeRules, err := e.store.ActiveRulesForTenant(ctx, tx.TenantID)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStore, errors.CodeStoreUnavailable, "failed to fetch rules")
	}

	matches := FindMatches(activeRules, tx)
	if len(matches) == 0 {
		e.logger.WithField("tenant_id", tx.TenantID).Debug("No rules matched transaction")
		return models.NoMatchResult("no matching rules found"), nil
	}

	// Multiple rules may match when stop_on_match is off, but allocation
	// is single-rule-wins: only the highest-priority match builds splits.
	winner := matches[0]

	splits, err := BuildSplits(
		winner.Rule.Actions,
		tx.Amount,
		e.templateContext(winner.Rule, tx),
		winner.Rule.Name,
		e.config.RoundingTolerance,
	)
	if err != nil {
		e.recordLog(ctx, winner.Rule, tx, false, nil)
		return nil, err
	}

	result = &models.MatchResult{
		Matched:       true,
		SplitLines:    splits,
		RulesMatched:  len(matches),
		Confidence:    ruleConfidence,
		RuleMatched:   true,
		ConditionsMet: true,
	}
	for _, match := range matches {
		result.MatchedRuleIDs = append(result.MatchedRuleIDs, match.Rule.ID)
	}
	result.RecalculateTotal()

	e.recordLog(ctx, winner.Rule, tx, true, splits)
	e.recordUsage(ctx, tx.TenantID, matches)

	e.logger.WithFields(logger.Fields{
		"tenant_id":     tx.TenantID,
		"rule":          winner.Rule.Name,
		"rules_matched": len(matches),
		"split_lines":   len(splits),
	}).Info("Rule evaluation matched")

	return result, nil
}

// TestRule runs the pipeline for exactly one rule without touching usage
// counters or the execution log. The returned result distinguishes
// "conditions were false" (ConditionsMet=false) from an engine error.
func (e *Engine) TestRule(ctx context.Context, ruleID string, tx models.Transaction) (result *models.MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.InternalError("rule test", nil).WithContext("panic", r)
		}
	}()

	rule, err := e.store.GetRule(ctx, tx.TenantID, ruleID)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStore, errors.CodeNotFound, "failed to fetch rule")
	}

	if !RuleMatches(rule, tx) {
		return &models.MatchResult{
			Matched:       false,
			RuleMatched:   false,
			ConditionsMet: false,
			ErrorMessage:  "rule conditions not met",
		}, nil
	}

	splits, err := BuildSplits(rule.Actions, tx.Amount, e.templateContext(rule, tx), rule.Name, e.config.RoundingTolerance)
	if err != nil {
		return nil, err
	}

	result = &models.MatchResult{
		Matched:        true,
		SplitLines:     splits,
		MatchedRuleIDs: []string{rule.ID},
		RulesMatched:   1,
		Confidence:     ruleConfidence,
		RuleMatched:    true,
		ConditionsMet:  true,
	}
	result.RecalculateTotal()

	return result, nil
}

// templateContext assembles the variables available to action description
// templates for one evaluation.
func (e *Engine) templateContext(rule models.Rule, tx models.Transaction) TemplateContext {
	return TemplateContext{
		"customer_name":           tx.CounterpartyRef,
		"transaction_amount":      tx.Amount.StringFixed(2),
		"transaction_description": tx.Description,
		"rule_name":               rule.Name,
	}
}

// recordLog writes an execution log entry, swallowing failures.
func (e *Engine) recordLog(ctx context.Context, rule models.Rule, tx models.Transaction, matched bool, splits []models.SplitLine) {
	if e.logSink == nil {
		return
	}

	entry := ExecutionLogEntry{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		TenantID:    tx.TenantID,
		Transaction: tx,
		Matched:     matched,
		SplitLines:  splits,
		ExecutedAt:  time.Now().UTC(),
	}

	if err := e.logSink.Record(ctx, entry); err != nil {
		e.logFailures.Add(1)
		e.logger.WithError(err).WithField("rule", rule.Name).Warn("Failed to write execution log")
	}
}

// recordUsage increments usage statistics for every matched rule,
// swallowing failures: a statistics outage never blocks reconciliation.
func (e *Engine) recordUsage(ctx context.Context, tenantID string, matches []RuleMatch) {
	for _, match := range matches {
		if err := e.store.RecordRuleMatch(ctx, tenantID, match.Rule.ID); err != nil {
			e.logger.WithError(err).WithField("rule", match.Rule.Name).Warn("Failed to update rule usage statistics")
		}
	}
}
