package rules

import (
	"sort"

	"ledger-matching-engine/internal/models"
)

// ConditionMatch records one condition that evaluated true together with
// the transaction field value it matched against.
type ConditionMatch struct {
	Condition    models.Condition
	MatchedValue string
}

// RuleMatch pairs a matched rule with the conditions that held for the
// transaction.
type RuleMatch struct {
	Rule              models.Rule
	MatchedConditions []ConditionMatch
}

// SortRulesByPriority orders rules by descending priority. The sort is
// stable so priority ties keep their original insertion order.
func SortRulesByPriority(rules []models.Rule) []models.Rule {
	sorted := make([]models.Rule, len(rules))
	copy(sorted, rules)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return sorted
}

// RuleMatches reports whether a rule's conditions hold for the
// transaction. A rule with zero conditions never matches: a rule that
// would fire on everything is almost always a misconfiguration, so the
// engine requires at least one explicit condition.
func RuleMatches(rule models.Rule, tx models.Transaction) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	switch rule.MatchLogic {
	case models.MatchAny:
		for _, cond := range rule.Conditions {
			if EvaluateCondition(cond, tx) {
				return true
			}
		}
		return false
	default:
		// ALL logic is the default for unset match logic
		for _, cond := range rule.Conditions {
			if !EvaluateCondition(cond, tx) {
				return false
			}
		}
		return true
	}
}

// FindMatches evaluates the given rules against a transaction and returns
// the matches in priority order. Rules are expected to be pre-filtered to
// is_active for the tenant; they are (re)sorted by descending priority
// here so callers cannot accidentally pass a mis-ordered slice.
//
// When a matching rule has stop_on_match set, evaluation halts and
// lower-priority rules are never inspected. The matcher itself is pure:
// usage counters and logging belong to the Engine.
func FindMatches(rules []models.Rule, tx models.Transaction) []RuleMatch {
	var matches []RuleMatch

	for _, rule := range SortRulesByPriority(rules) {
		if !RuleMatches(rule, tx) {
			continue
		}

		matches = append(matches, RuleMatch{
			Rule:              rule,
			MatchedConditions: matchedConditions(rule, tx),
		})

		if rule.StopOnMatch {
			break
		}
	}

	return matches
}

// matchedConditions collects the conditions that evaluated true, with the
// resolved field value for each. Used by the execution log and the CLI.
func matchedConditions(rule models.Rule, tx models.Transaction) []ConditionMatch {
	var matched []ConditionMatch

	for _, cond := range rule.Conditions {
		if EvaluateCondition(cond, tx) {
			matched = append(matched, ConditionMatch{
				Condition:    cond,
				MatchedValue: FieldValue(cond.Field, tx),
			})
		}
	}

	return matched
}
