package rules

import (
	"context"
	"fmt"
	"testing"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// fakeRuleStore is a minimal in-test store with injectable failures
type fakeRuleStore struct {
	rules      []models.Rule
	fetchErr   error
	matchCount map[string]int
}

func newFakeRuleStore(rules ...models.Rule) *fakeRuleStore {
	return &fakeRuleStore{rules: rules, matchCount: make(map[string]int)}
}

func (s *fakeRuleStore) ActiveRulesForTenant(_ context.Context, tenantID string) ([]models.Rule, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	var result []models.Rule
	for _, rule := range s.rules {
		if rule.TenantID == tenantID && rule.IsActive {
			result = append(result, rule)
		}
	}
	return result, nil
}

func (s *fakeRuleStore) GetRule(_ context.Context, tenantID, ruleID string) (models.Rule, error) {
	for _, rule := range s.rules {
		if rule.ID == ruleID && rule.TenantID == tenantID {
			return rule, nil
		}
	}
	return models.Rule{}, errors.StoreError(errors.CodeNotFound, "get rule", nil)
}

func (s *fakeRuleStore) RecordRuleMatch(_ context.Context, _ string, ruleID string) error {
	s.matchCount[ruleID]++
	return nil
}

// fakeLogSink records entries and can be told to fail
type fakeLogSink struct {
	entries []ExecutionLogEntry
	fail    bool
}

func (s *fakeLogSink) Record(_ context.Context, entry ExecutionLogEntry) error {
	if s.fail {
		return fmt.Errorf("sink unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func splitRule(id, tenantID string, priority int, value string) models.Rule {
	rule := containsRule(id, tenantID, priority, value)
	rule.Actions = []models.Action{
		{Sequence: 1, AccountCode: "6100", AllocationType: models.AllocationPercentage, Value: decimal.NewFromInt(10), DescriptionTemplate: "Fee: {rule_name}"},
		{Sequence: 2, AccountCode: "6000", AllocationType: models.AllocationRemainder},
	}
	return rule
}

func TestEngineEvaluateMatch(t *testing.T) {
	store := newFakeRuleStore(splitRule("r1", "tenant-1", 10, "stripe"))
	sink := &fakeLogSink{}
	engine := NewEngine(store, sink, nil)

	tx := testTransaction()
	result, err := engine.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if !result.Matched {
		t.Fatal("expected a matched result")
	}
	if len(result.SplitLines) != 2 {
		t.Fatalf("expected 2 split lines, got %d", len(result.SplitLines))
	}
	if !result.TotalAllocated.Equal(tx.Amount) {
		t.Errorf("total allocated %s != transaction amount %s", result.TotalAllocated, tx.Amount)
	}
	if result.Confidence != 90.0 {
		t.Errorf("rule match confidence = %v, want 90", result.Confidence)
	}
	if result.SplitLines[0].Description != "Fee: r1" {
		t.Errorf("template not rendered: %q", result.SplitLines[0].Description)
	}

	// Usage statistics and execution log are written on match
	if store.matchCount["r1"] != 1 {
		t.Errorf("rule usage count = %d, want 1", store.matchCount["r1"])
	}
	if len(sink.entries) != 1 || !sink.entries[0].Matched {
		t.Errorf("expected one matched execution log entry, got %+v", sink.entries)
	}
}

func TestEngineEvaluateNoMatchIsNotAnError(t *testing.T) {
	store := newFakeRuleStore(splitRule("r1", "tenant-1", 10, "paypal"))
	engine := NewEngine(store, nil, nil)

	result, err := engine.Evaluate(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("no-match must not return an error, got %v", err)
	}
	if result.Matched {
		t.Fatal("expected a non-matched result")
	}
	if result.ErrorMessage == "" {
		t.Error("expected an explanatory message on the no-match result")
	}
	if !result.TotalAllocated.IsZero() {
		t.Errorf("no-match total allocated = %s, want 0", result.TotalAllocated)
	}
}

func TestEngineEvaluateHighestPriorityWins(t *testing.T) {
	low := splitRule("low", "tenant-1", 10, "stripe")
	high := splitRule("high", "tenant-1", 100, "stripe")
	high.StopOnMatch = false

	store := newFakeRuleStore(low, high)
	engine := NewEngine(store, nil, nil)

	result, err := engine.Evaluate(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if result.RulesMatched != 2 {
		t.Errorf("rules matched = %d, want 2", result.RulesMatched)
	}
	if result.MatchedRuleIDs[0] != "high" {
		t.Errorf("winner = %s, want high", result.MatchedRuleIDs[0])
	}
	// Only the winner builds splits; both rules count as matched
	if result.SplitLines[0].RuleName != "high" {
		t.Errorf("splits built by %s, want high", result.SplitLines[0].RuleName)
	}
	if store.matchCount["low"] != 1 || store.matchCount["high"] != 1 {
		t.Errorf("usage counts = %v, want both incremented", store.matchCount)
	}
}

func TestEngineEvaluateValidationError(t *testing.T) {
	engine := NewEngine(newFakeRuleStore(), nil, nil)

	tx := testTransaction()
	tx.TenantID = ""

	_, err := engine.Evaluate(context.Background(), tx)
	if err == nil {
		t.Fatal("expected validation error for missing tenant")
	}

	engineErr, ok := errors.AsEngineError(err)
	if !ok || engineErr.Category != errors.CategoryValidation {
		t.Errorf("expected validation EngineError, got %v", err)
	}
}

func TestEngineEvaluateStoreError(t *testing.T) {
	store := newFakeRuleStore()
	store.fetchErr = fmt.Errorf("connection refused")
	engine := NewEngine(store, nil, nil)

	_, err := engine.Evaluate(context.Background(), testTransaction())
	if err == nil {
		t.Fatal("expected store error")
	}

	engineErr, ok := errors.AsEngineError(err)
	if !ok || engineErr.Category != errors.CategoryStore {
		t.Errorf("expected store EngineError, got %v", err)
	}
}

func TestEngineLogFailuresAreSwallowed(t *testing.T) {
	store := newFakeRuleStore(splitRule("r1", "tenant-1", 10, "stripe"))
	sink := &fakeLogSink{fail: true}
	engine := NewEngine(store, sink, nil)

	result, err := engine.Evaluate(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("log sink failure must not fail evaluation: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected a matched result despite log failure")
	}
	if engine.LogFailures() != 1 {
		t.Errorf("LogFailures() = %d, want 1", engine.LogFailures())
	}
}

func TestEngineTestRule(t *testing.T) {
	store := newFakeRuleStore(splitRule("r1", "tenant-1", 10, "stripe"))
	sink := &fakeLogSink{}
	engine := NewEngine(store, sink, nil)

	tx := testTransaction()

	result, err := engine.TestRule(context.Background(), "r1", tx)
	if err != nil {
		t.Fatalf("TestRule failed: %v", err)
	}
	if !result.RuleMatched || !result.ConditionsMet {
		t.Error("expected the rule to match the transaction")
	}
	if len(result.SplitLines) != 2 {
		t.Errorf("expected 2 split lines, got %d", len(result.SplitLines))
	}

	// Dry runs leave counters and the execution log untouched
	if store.matchCount["r1"] != 0 {
		t.Errorf("test-rule incremented usage count to %d", store.matchCount["r1"])
	}
	if len(sink.entries) != 0 {
		t.Errorf("test-rule wrote %d execution log entries", len(sink.entries))
	}
}

func TestEngineTestRuleConditionsNotMet(t *testing.T) {
	store := newFakeRuleStore(splitRule("r1", "tenant-1", 10, "paypal"))
	engine := NewEngine(store, nil, nil)

	result, err := engine.TestRule(context.Background(), "r1", testTransaction())
	if err != nil {
		t.Fatalf("conditions-not-met must not be an error: %v", err)
	}
	if result.ConditionsMet {
		t.Error("expected ConditionsMet=false")
	}
	if result.Matched {
		t.Error("expected a non-matched result")
	}
}

func TestEngineTestRuleNotFound(t *testing.T) {
	engine := NewEngine(newFakeRuleStore(), nil, nil)

	_, err := engine.TestRule(context.Background(), "missing", testTransaction())
	if err == nil {
		t.Fatal("expected error for unknown rule")
	}
}
