// Package rules implements the transaction rule engine: condition
// evaluation, priority-ordered rule matching, split allocation and the
// orchestration that ties them to the rule store.
//
// The evaluation pipeline is:
//  1. Fetch active rules for the tenant, ordered by descending priority
//  2. Match conditions per rule (ALL/AND or ANY/OR logic)
//  3. Build monetary split lines from the matched rule's actions
//  4. Correct rounding drift and validate the allocation total
//  5. Record the execution log and usage statistics (best effort)
//
// Condition evaluation and split building are pure functions; all I/O is
// confined to the Engine orchestrator.
package rules

import (
	"regexp"
	"strings"

	"ledger-matching-engine/internal/models"
)

// FieldValue resolves a condition field to its comparable string value for
// the given transaction. Amounts use their exact decimal representation,
// dates format as YYYY-MM-DD and direction derives from the amount sign
// when no explicit direction is stored.
func FieldValue(field models.ConditionField, tx models.Transaction) string {
	switch field {
	case models.FieldDescription:
		return tx.Description
	case models.FieldAmount:
		return tx.Amount.String()
	case models.FieldAmountAbs:
		return tx.Amount.Abs().String()
	case models.FieldDirection:
		return tx.EffectiveDirection().String()
	case models.FieldCounterparty:
		return tx.CounterpartyRef
	case models.FieldDate:
		if tx.Date.IsZero() {
			return ""
		}
		return tx.Date.Format("2006-01-02")
	case models.FieldReference:
		return tx.Reference
	}
	return ""
}

// EvaluateCondition evaluates one condition against a transaction. It is a
// pure function: no side effects, and it never fails; malformed values
// simply evaluate to false.
func EvaluateCondition(cond models.Condition, tx models.Transaction) bool {
	fieldValue := FieldValue(cond.Field, tx)

	// Blank fields satisfy only the is_blank operator; every other
	// comparison against an empty value is false.
	if fieldValue == "" {
		return cond.Operator == models.OpIsBlank
	}

	switch cond.Operator {
	case models.OpIsBlank:
		return false
	case models.OpIsNotBlank:
		return true
	case models.OpEquals, models.OpNotEquals, models.OpContains,
		models.OpNotContains, models.OpStartsWith, models.OpEndsWith:
		return evaluateText(cond, fieldValue)
	case models.OpRegex:
		return evaluateRegex(cond, fieldValue)
	case models.OpGreaterThan, models.OpGreaterEq, models.OpLessThan,
		models.OpLessEq, models.OpBetween:
		return evaluateNumeric(cond, fieldValue)
	}

	return false
}

func evaluateText(cond models.Condition, fieldValue string) bool {
	fieldStr := fieldValue
	valueStr := cond.Value

	if !cond.CaseSensitive {
		fieldStr = strings.ToLower(fieldStr)
		valueStr = strings.ToLower(valueStr)
	}

	switch cond.Operator {
	case models.OpEquals:
		return fieldStr == valueStr
	case models.OpNotEquals:
		return fieldStr != valueStr
	case models.OpContains:
		return strings.Contains(fieldStr, valueStr)
	case models.OpNotContains:
		return !strings.Contains(fieldStr, valueStr)
	case models.OpStartsWith:
		return strings.HasPrefix(fieldStr, valueStr)
	case models.OpEndsWith:
		return strings.HasSuffix(fieldStr, valueStr)
	}

	return false
}

func evaluateRegex(cond models.Condition, fieldValue string) bool {
	expr := cond.Value
	if !cond.CaseSensitive {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		// Invalid pattern never matches
		return false
	}

	return re.MatchString(fieldValue)
}

func evaluateNumeric(cond models.Condition, fieldValue string) bool {
	fieldNum, err := models.ParseDecimalFromString(fieldValue)
	if err != nil {
		return false
	}

	valueNum, err := models.ParseDecimalFromString(cond.Value)
	if err != nil {
		return false
	}

	switch cond.Operator {
	case models.OpGreaterThan:
		return fieldNum.GreaterThan(valueNum)
	case models.OpGreaterEq:
		return fieldNum.GreaterThanOrEqual(valueNum)
	case models.OpLessThan:
		return fieldNum.LessThan(valueNum)
	case models.OpLessEq:
		return fieldNum.LessThanOrEqual(valueNum)
	case models.OpBetween:
		upperNum, err := models.ParseDecimalFromString(cond.ValueSecondary)
		if err != nil {
			return false
		}
		return fieldNum.GreaterThanOrEqual(valueNum) && fieldNum.LessThanOrEqual(upperNum)
	}

	return false
}
