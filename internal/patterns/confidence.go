package patterns

// CombineConfidence merges a rule-based confidence with a pattern-based
// one when both engines produced a suggestion for the same transaction.
// The stronger signal wins; zero stands in for "no suggestion".
func CombineConfidence(ruleConfidence, patternConfidence float64) float64 {
	if ruleConfidence > patternConfidence {
		return ruleConfidence
	}
	return patternConfidence
}

// AdjustForNovelty discounts a confidence score for patterns that have
// rarely been seen: brand-new patterns lose 30%, moderately new ones 10%,
// and established patterns keep their full score.
func AdjustForNovelty(confidence float64, timesSeen int) float64 {
	switch {
	case timesSeen < 3:
		return confidence * 0.7
	case timesSeen < 10:
		return confidence * 0.9
	default:
		return confidence
	}
}

// ConfidenceLabel returns a human-readable band for a confidence score.
func ConfidenceLabel(confidence float64) string {
	switch {
	case confidence >= 90:
		return "Very High"
	case confidence >= 75:
		return "High"
	case confidence >= 60:
		return "Medium"
	case confidence >= 40:
		return "Low"
	default:
		return "Very Low"
	}
}
