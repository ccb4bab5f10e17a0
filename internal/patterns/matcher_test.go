package patterns

import (
	"context"
	"testing"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/internal/store"
)

func seedPattern(t *testing.T, s *store.MemoryStore, pattern models.Pattern) models.Pattern {
	t.Helper()
	stored, err := s.AddPattern(pattern)
	if err != nil {
		t.Fatalf("failed to seed pattern: %v", err)
	}
	return stored
}

func TestGetSuggestionsFiltersBelowMinConfidence(t *testing.T) {
	s := store.NewMemoryStore()

	strong := models.Pattern{
		TenantID:             "tenant-1",
		PatternName:          "stripe-payouts",
		PatternType:          models.PatternContains,
		DescriptionPattern:   "stripe",
		SuggestedWho:         "Stripe",
		SuggestedAccountCode: "1200",
		AccuracyRate:         100.0,
		Confidence:           100.0,
		IsActive:             true,
	}
	weak := strong
	weak.PatternName = "weak-pattern"
	weak.DescriptionPattern = "no-such-text"
	weak.Confidence = 20.0

	seedPattern(t, s, strong)
	seedPattern(t, s, weak)

	matcher := NewMatcher(s, nil)
	tx := scoringTransaction("STRIPE PAYOUT 8842", 1250.00)
	tx.TenantID = "tenant-1"

	suggestions, err := matcher.GetSuggestions(context.Background(), tx)
	if err != nil {
		t.Fatalf("GetSuggestions failed: %v", err)
	}

	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion above the floor, got %d", len(suggestions))
	}
	if suggestions[0].PatternName != "stripe-payouts" {
		t.Errorf("suggestion = %s, want stripe-payouts", suggestions[0].PatternName)
	}
	if suggestions[0].Confidence != 100.0 {
		t.Errorf("confidence = %v, want 100", suggestions[0].Confidence)
	}
}

func TestGetSuggestionsOrderedByConfidence(t *testing.T) {
	s := store.NewMemoryStore()

	base := models.Pattern{
		TenantID:           "tenant-1",
		PatternType:        models.PatternContains,
		DescriptionPattern: "stripe",
		AccuracyRate:       100.0,
		IsActive:           true,
	}

	mid := base
	mid.PatternName = "mid"
	mid.Confidence = 70.0

	top := base
	top.PatternName = "top"
	top.Confidence = 100.0

	seedPattern(t, s, mid)
	seedPattern(t, s, top)

	matcher := NewMatcher(s, nil)
	tx := scoringTransaction("STRIPE PAYOUT", 100.00)
	tx.TenantID = "tenant-1"

	suggestions, err := matcher.GetSuggestions(context.Background(), tx)
	if err != nil {
		t.Fatalf("GetSuggestions failed: %v", err)
	}

	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	if suggestions[0].PatternName != "top" || suggestions[1].PatternName != "mid" {
		t.Errorf("order = [%s, %s], want [top, mid]", suggestions[0].PatternName, suggestions[1].PatternName)
	}
}

func TestGetSuggestionsAutoApplyGating(t *testing.T) {
	s := store.NewMemoryStore()

	flagged := models.Pattern{
		TenantID:           "tenant-1",
		PatternName:        "flagged",
		PatternType:        models.PatternContains,
		DescriptionPattern: "stripe",
		AccuracyRate:       100.0,
		Confidence:         100.0,
		IsActive:           true,
		AutoApply:          true,
	}

	unflagged := flagged
	unflagged.PatternName = "unflagged"
	unflagged.AutoApply = false

	lowScore := flagged
	lowScore.PatternName = "low-score"
	lowScore.Confidence = 60.0 // perfect signals scale down to 60, below threshold

	seedPattern(t, s, flagged)
	seedPattern(t, s, unflagged)
	seedPattern(t, s, lowScore)

	matcher := NewMatcher(s, nil)
	tx := scoringTransaction("STRIPE PAYOUT", 100.00)
	tx.TenantID = "tenant-1"

	suggestions, err := matcher.GetSuggestions(context.Background(), tx)
	if err != nil {
		t.Fatalf("GetSuggestions failed: %v", err)
	}

	autoApply := make(map[string]bool)
	for _, s := range suggestions {
		autoApply[s.PatternName] = s.AutoApply
	}

	if !autoApply["flagged"] {
		t.Error("flagged pattern clearing the threshold should auto-apply")
	}
	if autoApply["unflagged"] {
		t.Error("pattern without the auto-apply flag must not auto-apply regardless of score")
	}
	if autoApply["low-score"] {
		t.Error("flagged pattern below the threshold must not auto-apply")
	}
}

func TestGetSuggestionsIncludesGlobalPatterns(t *testing.T) {
	s := store.NewMemoryStore()

	global := models.Pattern{
		PatternName:        "global-stripe",
		PatternType:        models.PatternContains,
		DescriptionPattern: "stripe",
		AccuracyRate:       100.0,
		Confidence:         100.0,
		IsActive:           true,
	}
	otherTenant := global
	otherTenant.PatternName = "other-tenant"
	otherTenant.TenantID = "tenant-2"

	seedPattern(t, s, global)
	seedPattern(t, s, otherTenant)

	matcher := NewMatcher(s, nil)
	tx := scoringTransaction("STRIPE PAYOUT", 100.00)
	tx.TenantID = "tenant-1"

	suggestions, err := matcher.GetSuggestions(context.Background(), tx)
	if err != nil {
		t.Fatalf("GetSuggestions failed: %v", err)
	}

	if len(suggestions) != 1 {
		t.Fatalf("expected only the global pattern, got %d suggestions", len(suggestions))
	}
	if suggestions[0].PatternName != "global-stripe" {
		t.Errorf("suggestion = %s, want global-stripe", suggestions[0].PatternName)
	}
}

func TestGetSuggestionsRejectsInvalidTransaction(t *testing.T) {
	matcher := NewMatcher(store.NewMemoryStore(), nil)

	tx := scoringTransaction("STRIPE", 100.00)
	tx.TenantID = ""

	if _, err := matcher.GetSuggestions(context.Background(), tx); err == nil {
		t.Fatal("expected validation error for missing tenant")
	}
}
