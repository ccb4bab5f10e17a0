package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"ledger-matching-engine/internal/models"

	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "matchengine.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSQLiteStoreRuleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rule := sampleRule("tenant-1", "Payouts", 10)
	rule.Conditions = append(rule.Conditions, models.Condition{
		Field: models.FieldAmount, Operator: models.OpBetween, Value: "100", ValueSecondary: "500", Order: 2,
	})
	rule.Actions = []models.Action{
		{Sequence: 1, AccountCode: "6100", AllocationType: models.AllocationPercentage, Value: decimal.NewFromFloat(12.5), DescriptionTemplate: "Fee for {customer_name}"},
		{Sequence: 2, AccountCode: "6000", AllocationType: models.AllocationRemainder},
	}

	created, err := s.CreateRule(ctx, rule)
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an assigned rule ID")
	}

	fetched, err := s.GetRule(ctx, "tenant-1", created.ID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}

	if fetched.Name != "Payouts" || fetched.Priority != 10 {
		t.Errorf("fetched rule = %s prio %d, want Payouts prio 10", fetched.Name, fetched.Priority)
	}
	if len(fetched.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(fetched.Conditions))
	}
	if fetched.Conditions[1].ValueSecondary != "500" {
		t.Errorf("secondary value = %q, want 500", fetched.Conditions[1].ValueSecondary)
	}
	if len(fetched.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(fetched.Actions))
	}
	if !fetched.Actions[0].Value.Equal(decimal.NewFromFloat(12.5)) {
		t.Errorf("action value = %s, want 12.5", fetched.Actions[0].Value)
	}

	if _, err := s.GetRule(ctx, "tenant-2", created.ID); err == nil {
		t.Error("expected not-found for foreign tenant")
	}
}

func TestSQLiteStoreActiveRulesOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRule(ctx, sampleRule("tenant-1", "Low", 10)); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if _, err := s.CreateRule(ctx, sampleRule("tenant-1", "High", 100)); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	inactive := sampleRule("tenant-1", "Inactive", 200)
	inactive.IsActive = false
	if _, err := s.CreateRule(ctx, inactive); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	result, err := s.ActiveRulesForTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ActiveRulesForTenant failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(result))
	}
	if result[0].Name != "High" || result[1].Name != "Low" {
		t.Errorf("order = [%s, %s], want [High, Low]", result[0].Name, result[1].Name)
	}
}

func TestSQLiteStoreRecordRuleMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rule, err := s.CreateRule(ctx, sampleRule("tenant-1", "Payouts", 10))
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	if err := s.RecordRuleMatch(ctx, "tenant-1", rule.ID); err != nil {
		t.Fatalf("RecordRuleMatch failed: %v", err)
	}

	updated, _ := s.GetRule(ctx, "tenant-1", rule.ID)
	if updated.TimesMatched != 1 {
		t.Errorf("times matched = %d, want 1", updated.TimesMatched)
	}
	if updated.LastMatched == nil {
		t.Error("expected last matched timestamp to be set")
	}

	if err := s.RecordRuleMatch(ctx, "tenant-1", "missing"); err == nil {
		t.Error("expected not-found for unknown rule")
	}
}

func TestSQLiteStorePatternRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(500)

	pattern := samplePattern("tenant-1", "stripe-payouts")
	pattern.AmountMin = &min
	pattern.AmountMax = &max
	pattern.DirectionFilter = models.DirectionCredit
	pattern.SuggestedWho = "Stripe"
	pattern.SuggestedAccountCode = "1200"

	created, err := s.CreatePattern(ctx, pattern)
	if err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}

	fetched, err := s.GetPattern(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPattern failed: %v", err)
	}

	if fetched.PatternName != "stripe-payouts" || fetched.SuggestedWho != "Stripe" {
		t.Errorf("unexpected pattern: %+v", fetched)
	}
	if fetched.AmountMin == nil || !fetched.AmountMin.Equal(min) {
		t.Errorf("amount min = %v, want 100", fetched.AmountMin)
	}
	if fetched.DirectionFilter != models.DirectionCredit {
		t.Errorf("direction filter = %v, want credit", fetched.DirectionFilter)
	}
}

func TestSQLiteStoreGlobalPatterns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreatePattern(ctx, samplePattern("tenant-1", "own")); err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}
	if _, err := s.CreatePattern(ctx, samplePattern("", "global")); err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}
	if _, err := s.CreatePattern(ctx, samplePattern("tenant-2", "foreign")); err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}

	result, err := s.ActivePatternsForTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ActivePatternsForTenant failed: %v", err)
	}

	names := make(map[string]bool)
	for _, p := range result {
		names[p.PatternName] = true
	}
	if len(result) != 2 || !names["own"] || !names["global"] {
		t.Errorf("expected [own, global], got %v", names)
	}
}

func TestSQLiteStoreUpdatePatternMetricsConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pattern, err := s.CreatePattern(ctx, samplePattern("tenant-1", "learning"))
	if err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.UpdatePatternMetrics(ctx, pattern.ID, func(p *models.Pattern) error {
				p.TimesSeen++
				return nil
			})
			if err != nil {
				t.Errorf("concurrent UpdatePatternMetrics failed: %v", err)
			}
		}()
	}
	wg.Wait()

	updated, err := s.GetPattern(ctx, pattern.ID)
	if err != nil {
		t.Fatalf("GetPattern failed: %v", err)
	}
	if updated.TimesSeen != workers {
		t.Errorf("times seen = %d, want %d (no lost increments)", updated.TimesSeen, workers)
	}
	if updated.Version != workers {
		t.Errorf("version = %d, want %d", updated.Version, workers)
	}
}
