package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SplitLine is one (account, amount, description) triple produced when a
// matched transaction amount is divided among target accounts.
type SplitLine struct {
	Description string          `json:"description"`
	AccountCode string          `json:"account_code"`
	Amount      decimal.Decimal `json:"amount"`
	Sequence    int             `json:"sequence"`
	RuleName    string          `json:"rule_name,omitempty"`
}

// MarshalJSON implements custom JSON marshaling so amounts serialize as
// decimal strings rather than floats.
func (s SplitLine) MarshalJSON() ([]byte, error) {
	type Alias SplitLine
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Alias
	}{
		Amount: s.Amount.StringFixed(2),
		Alias:  (Alias)(s),
	})
}

// MatchResult is the outcome of one rule evaluation. It is constructed
// fresh per call and never persisted by the core; a non-match is an
// expected outcome, not an error.
type MatchResult struct {
	Matched        bool            `json:"success"`
	SplitLines     []SplitLine     `json:"split_lines"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	MatchedRuleIDs []string        `json:"matched_rule_ids,omitempty"`
	RulesMatched   int             `json:"rules_matched"`
	Confidence     float64         `json:"confidence"`
	ErrorMessage   string          `json:"error_message,omitempty"`

	// Set by test-rule evaluations to distinguish "conditions were false"
	// from "the engine failed".
	RuleMatched   bool `json:"rule_matched"`
	ConditionsMet bool `json:"conditions_met"`
}

// NoMatchResult constructs the result for the expected no-rules-matched outcome
func NoMatchResult(message string) *MatchResult {
	return &MatchResult{
		Matched:        false,
		TotalAllocated: decimal.Zero,
		ErrorMessage:   message,
	}
}

// ErrorResult constructs a failed result carrying an engine error message
func ErrorResult(message string) *MatchResult {
	return &MatchResult{
		Matched:        false,
		TotalAllocated: decimal.Zero,
		ErrorMessage:   message,
	}
}

// RecalculateTotal recomputes TotalAllocated from the split lines
func (mr *MatchResult) RecalculateTotal() {
	total := decimal.Zero
	for _, line := range mr.SplitLines {
		total = total.Add(line.Amount)
	}
	mr.TotalAllocated = total
}

// MarshalJSON implements custom JSON marshaling for MatchResult
func (mr MatchResult) MarshalJSON() ([]byte, error) {
	type Alias MatchResult
	return json.Marshal(&struct {
		TotalAllocated string `json:"total_allocated"`
		Alias
	}{
		TotalAllocated: mr.TotalAllocated.StringFixed(2),
		Alias:          (Alias)(mr),
	})
}

// Suggestion is one ranked pattern suggestion for a transaction.
type Suggestion struct {
	PatternID            string  `json:"pattern_id"`
	PatternName          string  `json:"pattern_name"`
	Confidence           float64 `json:"confidence"`
	SuggestedWho         string  `json:"suggested_who"`
	SuggestedAccountCode string  `json:"suggested_account_code"`
	AutoApply            bool    `json:"auto_apply"`
	AccuracyHistory      float64 `json:"accuracy_history"`
	TimesUsed            int     `json:"times_used"`
}
