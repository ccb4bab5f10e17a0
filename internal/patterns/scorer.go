package patterns

import (
	"math"
	"regexp"
	"strings"

	"ledger-matching-engine/internal/models"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Score computes how well a pattern matches a transaction as a confidence
// value in [0, 100]. It is a weighted sum of four independent signals
// (description similarity, amount-range fit, direction fit and the
// pattern's historical accuracy) scaled by the pattern's own confidence,
// so a low-trust pattern can never produce a high combined score even on
// a perfect textual match. The result is rounded to two decimals.
//
// Pure function; safe for concurrent use.
func Score(pattern models.Pattern, tx models.Transaction, weights ScoringWeights) float64 {
	score := descriptionScore(pattern, tx.Description)*weights.Description +
		amountScore(pattern, tx)*weights.Amount +
		directionScore(pattern, tx)*weights.Direction +
		pattern.AccuracyRate*weights.History

	score = score * (pattern.Confidence / 100.0)

	return math.Round(score*100) / 100
}

// descriptionScore scores the description signal according to the
// pattern's matching algorithm. Exact, contains and regex are binary;
// fuzzy is continuous in [0, 100].
func descriptionScore(pattern models.Pattern, description string) float64 {
	desc := strings.ToLower(strings.TrimSpace(description))
	target := strings.ToLower(strings.TrimSpace(pattern.DescriptionPattern))

	switch pattern.PatternType {
	case models.PatternExact:
		if desc == target {
			return 100.0
		}
		return 0.0

	case models.PatternContains:
		if strings.Contains(desc, target) {
			return 100.0
		}
		return 0.0

	case models.PatternRegex:
		re, err := regexp.Compile("(?i)" + pattern.DescriptionPattern)
		if err != nil {
			// Invalid expression degrades to containment semantics
			if strings.Contains(desc, target) {
				return 100.0
			}
			return 0.0
		}
		if re.MatchString(desc) {
			return 100.0
		}
		return 0.0

	case models.PatternFuzzy:
		return SimilarityRatio(desc, target) * 100.0
	}

	return 0.0
}

// amountScore is binary: 100 when the pattern has no amount constraints
// or the transaction amount falls within [min, max], otherwise 0.
func amountScore(pattern models.Pattern, tx models.Transaction) float64 {
	if pattern.AmountMin == nil && pattern.AmountMax == nil {
		return 100.0
	}

	amount := tx.AbsoluteAmount()

	if pattern.AmountMin != nil && amount.LessThan(*pattern.AmountMin) {
		return 0.0
	}

	if pattern.AmountMax != nil && amount.GreaterThan(*pattern.AmountMax) {
		return 0.0
	}

	return 100.0
}

// directionScore is binary: 100 when the pattern has no direction filter
// or it equals the transaction's direction, otherwise 0.
func directionScore(pattern models.Pattern, tx models.Transaction) float64 {
	if pattern.DirectionFilter == "" {
		return 100.0
	}

	if pattern.DirectionFilter == tx.EffectiveDirection() {
		return 100.0
	}

	return 0.0
}

// SimilarityRatio computes a sequence-similarity ratio in [0, 1] between
// two strings based on edit distance: 1 − distance/maxLen. Identical
// strings score 1; strings sharing nothing score 0.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return 1.0 - float64(distance)/float64(maxLen)
}
