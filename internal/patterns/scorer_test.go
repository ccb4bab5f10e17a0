package patterns

import (
	"testing"
	"time"

	"ledger-matching-engine/internal/models"

	"github.com/shopspring/decimal"
)

func scoringTransaction(description string, amount float64) models.Transaction {
	return models.Transaction{
		TenantID:    "tenant-1",
		Description: description,
		Amount:      decimal.NewFromFloat(amount),
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func trustedPattern(patternType models.PatternType, descriptionPattern string) models.Pattern {
	return models.Pattern{
		ID:                 "p1",
		PatternName:        "test-pattern",
		PatternType:        patternType,
		DescriptionPattern: descriptionPattern,
		AccuracyRate:       100.0,
		Confidence:         100.0,
		IsActive:           true,
	}
}

func TestScorePerfectMatch(t *testing.T) {
	pattern := trustedPattern(models.PatternContains, "stripe")
	tx := scoringTransaction("STRIPE PAYOUT 8842", 1250.00)

	score := Score(pattern, tx, DefaultScoringConfig().Weights)
	if score != 100.0 {
		t.Errorf("perfect match on a fully-trusted pattern = %v, want 100", score)
	}
}

func TestScoreScaledByPatternConfidence(t *testing.T) {
	pattern := trustedPattern(models.PatternContains, "stripe")
	pattern.Confidence = 50.0
	tx := scoringTransaction("STRIPE PAYOUT", 100.00)

	score := Score(pattern, tx, DefaultScoringConfig().Weights)
	if score != 50.0 {
		t.Errorf("half-trusted pattern = %v, want 50 (full signal scaled by confidence)", score)
	}
}

func TestScoreDescriptionMiss(t *testing.T) {
	pattern := trustedPattern(models.PatternContains, "paypal")
	tx := scoringTransaction("STRIPE PAYOUT", 100.00)

	// Amount, direction and history signals still contribute 0.2+0.1+0.1
	score := Score(pattern, tx, DefaultScoringConfig().Weights)
	if score != 40.0 {
		t.Errorf("description miss = %v, want 40", score)
	}
}

func TestScorePatternTypes(t *testing.T) {
	tx := scoringTransaction("STRIPE PAYOUT 8842", 100.00)
	weights := DefaultScoringConfig().Weights

	tests := []struct {
		name        string
		patternType models.PatternType
		pattern     string
		expected    float64
	}{
		{"exact match", models.PatternExact, "stripe payout 8842", 100.0},
		{"exact miss", models.PatternExact, "stripe payout", 40.0},
		{"contains match", models.PatternContains, "payout", 100.0},
		{"regex match", models.PatternRegex, `stripe payout \d+`, 100.0},
		{"regex miss", models.PatternRegex, `^paypal`, 40.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := trustedPattern(tt.patternType, tt.pattern)
			if got := Score(pattern, tx, weights); got != tt.expected {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestScoreInvalidRegexDegradesToContains(t *testing.T) {
	broken := trustedPattern(models.PatternRegex, `([unclosed`)

	tx := scoringTransaction("([unclosed CHARGE", 100.00)
	weights := DefaultScoringConfig().Weights

	// The broken expression cannot compile but its literal text appears in
	// the description, so containment semantics still score it
	if got := Score(broken, tx, weights); got != 100.0 {
		t.Errorf("broken regex with contained text = %v, want 100", got)
	}
}

func TestScoreFuzzyMatching(t *testing.T) {
	pattern := trustedPattern(models.PatternFuzzy, "stripe payout")
	weights := DefaultScoringConfig().Weights

	exact := Score(pattern, scoringTransaction("STRIPE PAYOUT", 100.00), weights)
	if exact != 100.0 {
		t.Errorf("identical fuzzy match = %v, want 100", exact)
	}

	near := Score(pattern, scoringTransaction("STRIPE PAYOUTS", 100.00), weights)
	if near <= 40.0 || near >= 100.0 {
		t.Errorf("near fuzzy match = %v, want between 40 and 100", near)
	}

	far := Score(pattern, scoringTransaction("ZZZZZZ", 100.00), weights)
	if far >= near {
		t.Errorf("distant fuzzy match %v should score below near match %v", far, near)
	}
}

func TestScoreAmountRange(t *testing.T) {
	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(200)

	pattern := trustedPattern(models.PatternContains, "stripe")
	pattern.AmountMin = &min
	pattern.AmountMax = &max

	weights := DefaultScoringConfig().Weights

	inRange := Score(pattern, scoringTransaction("STRIPE", 150.00), weights)
	if inRange != 100.0 {
		t.Errorf("in-range amount = %v, want 100", inRange)
	}

	// Negative amounts compare by absolute value
	negative := Score(pattern, scoringTransaction("STRIPE", -150.00), weights)
	if negative != 100.0 {
		t.Errorf("negative in-range amount = %v, want 100", negative)
	}

	outOfRange := Score(pattern, scoringTransaction("STRIPE", 500.00), weights)
	if outOfRange != 80.0 {
		t.Errorf("out-of-range amount = %v, want 80 (amount signal lost)", outOfRange)
	}
}

func TestScoreDirectionFilter(t *testing.T) {
	pattern := trustedPattern(models.PatternContains, "stripe")
	pattern.DirectionFilter = models.DirectionCredit

	weights := DefaultScoringConfig().Weights

	credit := scoringTransaction("STRIPE", 100.00)
	if got := Score(pattern, credit, weights); got != 100.0 {
		t.Errorf("matching direction = %v, want 100", got)
	}

	debit := scoringTransaction("STRIPE", -100.00)
	if got := Score(pattern, debit, weights); got != 90.0 {
		t.Errorf("wrong direction = %v, want 90 (direction signal lost)", got)
	}
}

func TestScoreHistorySignal(t *testing.T) {
	pattern := trustedPattern(models.PatternContains, "stripe")
	pattern.AccuracyRate = 0.0

	tx := scoringTransaction("STRIPE", 100.00)
	if got := Score(pattern, tx, DefaultScoringConfig().Weights); got != 90.0 {
		t.Errorf("zero-accuracy pattern = %v, want 90 (history signal lost)", got)
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b     string
		expected float64
	}{
		{"abc", "abc", 1.0},
		{"", "", 1.0},
		{"abc", "abd", 1.0 - 1.0/3.0},
		{"abc", "", 0.0},
	}

	for _, tt := range tests {
		got := SimilarityRatio(tt.a, tt.b)
		diff := got - tt.expected
		if diff < -1e-9 || diff > 1e-9 {
			t.Errorf("SimilarityRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}
