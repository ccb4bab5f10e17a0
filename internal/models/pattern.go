package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PatternType selects the description-matching algorithm for a pattern.
type PatternType string

const (
	// PatternExact requires case-normalized equality with the description
	PatternExact PatternType = "exact"
	// PatternContains requires the pattern text to appear in the description
	PatternContains PatternType = "contains"
	// PatternRegex matches the description against a regular expression
	PatternRegex PatternType = "regex"
	// PatternFuzzy scores the description by sequence similarity
	PatternFuzzy PatternType = "fuzzy"
)

// IsValid checks if the pattern type is valid
func (p PatternType) IsValid() bool {
	return p == PatternExact || p == PatternContains || p == PatternRegex || p == PatternFuzzy
}

// Pattern is a learned, confidence-scored mapping from a transaction
// description to a suggested counterparty and account. Its quality metrics
// evolve from user feedback and are mutated only through the pattern store.
type Pattern struct {
	ID                 string      `json:"id"`
	TenantID           string      `json:"tenant_id,omitempty"`
	PatternName        string      `json:"pattern_name"`
	PatternType        PatternType `json:"pattern_type"`
	DescriptionPattern string      `json:"description_pattern"`

	// Optional constraints narrowing which transactions the pattern applies to.
	AmountMin       *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax       *decimal.Decimal `json:"amount_max,omitempty"`
	DirectionFilter Direction        `json:"direction_filter,omitempty"`

	SuggestedWho         string `json:"suggested_who"`
	SuggestedAccountCode string `json:"suggested_account_code"`

	// Quality metrics, updated through the feedback learning loop.
	TimesSeen     int     `json:"times_seen"`
	TimesAccepted int     `json:"times_accepted"`
	TimesRejected int     `json:"times_rejected"`
	AccuracyRate  float64 `json:"accuracy_rate"`
	Confidence    float64 `json:"confidence"`

	IsActive  bool `json:"is_active"`
	AutoApply bool `json:"auto_apply"`

	// Version supports optimistic concurrency control on metric updates.
	Version     int        `json:"version"`
	LastTrained *time.Time `json:"last_trained,omitempty"`
}

// Validate performs basic validation on the Pattern
func (p Pattern) Validate() error {
	if strings.TrimSpace(p.PatternName) == "" {
		return fmt.Errorf("pattern name cannot be empty")
	}

	if !p.PatternType.IsValid() {
		return fmt.Errorf("invalid pattern type: %s", p.PatternType)
	}

	if strings.TrimSpace(p.DescriptionPattern) == "" {
		return fmt.Errorf("description pattern cannot be empty")
	}

	if p.DirectionFilter != "" && !p.DirectionFilter.IsValid() {
		return fmt.Errorf("invalid direction filter: %s", p.DirectionFilter)
	}

	if p.AmountMin != nil && p.AmountMax != nil && p.AmountMin.GreaterThan(*p.AmountMax) {
		return fmt.Errorf("amount_min %s exceeds amount_max %s", p.AmountMin, p.AmountMax)
	}

	return nil
}

// TotalFeedback returns the number of definitive accept/reject decisions
// recorded for this pattern. Modified feedback is neutral and not counted.
func (p Pattern) TotalFeedback() int {
	return p.TimesAccepted + p.TimesRejected
}

// String returns a string representation of the Pattern
func (p Pattern) String() string {
	return fmt.Sprintf("Pattern{Name: %s, Type: %s, Accuracy: %.1f%%, Seen: %d}",
		p.PatternName, p.PatternType, p.AccuracyRate, p.TimesSeen)
}

// FeedbackAction is a user's decision on a pattern suggestion.
type FeedbackAction string

const (
	// FeedbackAccepted means the suggestion was applied as-is
	FeedbackAccepted FeedbackAction = "accepted"
	// FeedbackModified means the user changed the suggestion before applying it
	FeedbackModified FeedbackAction = "modified"
	// FeedbackRejected means the suggestion was discarded entirely
	FeedbackRejected FeedbackAction = "rejected"
)

// IsValid checks if the feedback action is valid
func (f FeedbackAction) IsValid() bool {
	return f == FeedbackAccepted || f == FeedbackModified || f == FeedbackRejected
}

// ParseFeedbackAction parses and validates a feedback action from string
func ParseFeedbackAction(s string) (FeedbackAction, error) {
	action := FeedbackAction(strings.ToLower(strings.TrimSpace(s)))
	if !action.IsValid() {
		return "", fmt.Errorf("invalid feedback action '%s': must be accepted, modified or rejected", s)
	}
	return action, nil
}
