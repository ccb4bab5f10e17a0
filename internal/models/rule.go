package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchLogic defines how multiple conditions on a rule are combined.
type MatchLogic string

const (
	// MatchAll requires every condition to evaluate true (AND logic)
	MatchAll MatchLogic = "ALL"
	// MatchAny requires at least one condition to evaluate true (OR logic)
	MatchAny MatchLogic = "ANY"
)

// IsValid checks if the match logic is valid
func (m MatchLogic) IsValid() bool {
	return m == MatchAll || m == MatchAny
}

// ConditionField identifies which transaction field a condition inspects.
type ConditionField string

const (
	FieldDescription  ConditionField = "description"
	FieldAmount       ConditionField = "amount"
	FieldAmountAbs    ConditionField = "amount_abs"
	FieldDirection    ConditionField = "direction"
	FieldCounterparty ConditionField = "counterparty"
	FieldDate         ConditionField = "date"
	FieldReference    ConditionField = "reference"
)

// IsValid checks if the condition field is valid
func (f ConditionField) IsValid() bool {
	switch f {
	case FieldDescription, FieldAmount, FieldAmountAbs, FieldDirection,
		FieldCounterparty, FieldDate, FieldReference:
		return true
	}
	return false
}

// ConditionOperator is the comparison applied between a transaction field
// and a condition value.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpStartsWith  ConditionOperator = "starts_with"
	OpEndsWith    ConditionOperator = "ends_with"
	OpRegex       ConditionOperator = "regex"
	OpIsBlank     ConditionOperator = "is_blank"
	OpIsNotBlank  ConditionOperator = "is_not_blank"
	OpGreaterThan ConditionOperator = "gt"
	OpGreaterEq   ConditionOperator = "gte"
	OpLessThan    ConditionOperator = "lt"
	OpLessEq      ConditionOperator = "lte"
	OpBetween     ConditionOperator = "between"
)

// IsValid checks if the condition operator is valid
func (o ConditionOperator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith,
		OpEndsWith, OpRegex, OpIsBlank, OpIsNotBlank, OpGreaterThan,
		OpGreaterEq, OpLessThan, OpLessEq, OpBetween:
		return true
	}
	return false
}

// IsNumeric reports whether the operator compares decimal values
func (o ConditionOperator) IsNumeric() bool {
	switch o {
	case OpGreaterThan, OpGreaterEq, OpLessThan, OpLessEq, OpBetween:
		return true
	}
	return false
}

// Condition is one field/operator/value check on a rule. Conditions are
// stateless and evaluated independently on each call.
type Condition struct {
	ID             string            `json:"id"`
	Field          ConditionField    `json:"field"`
	Operator       ConditionOperator `json:"operator"`
	Value          string            `json:"value"`
	ValueSecondary string            `json:"value_secondary,omitempty"`
	CaseSensitive  bool              `json:"case_sensitive"`
	Order          int               `json:"order"`
}

// String returns a string representation of the Condition
func (c Condition) String() string {
	if c.Operator == OpBetween && c.ValueSecondary != "" {
		return fmt.Sprintf("%s %s %s and %s", c.Field, c.Operator, c.Value, c.ValueSecondary)
	}
	return fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value)
}

// Validate performs basic validation on the Condition
func (c Condition) Validate() error {
	if !c.Field.IsValid() {
		return fmt.Errorf("invalid condition field: %s", c.Field)
	}

	if !c.Operator.IsValid() {
		return fmt.Errorf("invalid condition operator: %s", c.Operator)
	}

	if c.Operator == OpBetween && strings.TrimSpace(c.ValueSecondary) == "" {
		return fmt.Errorf("between operator requires a secondary value")
	}

	return nil
}

// AllocationType defines how a rule action computes its split amount.
type AllocationType string

const (
	// AllocationPercentage allocates a percentage of the transaction amount
	AllocationPercentage AllocationType = "percentage"
	// AllocationFixed allocates a fixed currency amount
	AllocationFixed AllocationType = "fixed_amount"
	// AllocationRemainder allocates whatever is left after the other actions
	AllocationRemainder AllocationType = "remainder"
)

// IsValid checks if the allocation type is valid
func (a AllocationType) IsValid() bool {
	return a == AllocationPercentage || a == AllocationFixed || a == AllocationRemainder
}

// Action describes one split line a matched rule produces: the target
// account, how the amount is computed, and a description template that
// supports {variable} interpolation.
type Action struct {
	ID                  string          `json:"id"`
	Sequence            int             `json:"sequence"`
	DescriptionTemplate string          `json:"description_template"`
	AccountCode         string          `json:"account_code"`
	AllocationType      AllocationType  `json:"allocation_type"`
	Value               decimal.Decimal `json:"value"`
}

// Validate performs basic validation on the Action
func (a Action) Validate() error {
	if !a.AllocationType.IsValid() {
		return fmt.Errorf("invalid allocation type: %s", a.AllocationType)
	}

	if strings.TrimSpace(a.AccountCode) == "" {
		return fmt.Errorf("action account code cannot be empty")
	}

	if a.AllocationType == AllocationPercentage {
		if a.Value.IsNegative() || a.Value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("percentage value must be between 0 and 100, got %s", a.Value)
		}
	}

	return nil
}

// Rule is a named, prioritized condition/action definition created by an
// operator to auto-categorize transactions. Higher priority values are
// evaluated first; ties break by insertion order.
type Rule struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Name        string     `json:"name"`
	Priority    int        `json:"priority"`
	MatchLogic  MatchLogic `json:"match_logic"`
	IsActive    bool       `json:"is_active"`
	StopOnMatch bool       `json:"stop_on_match"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Action    `json:"actions"`

	// Usage statistics, maintained by the rule store.
	TimesMatched int        `json:"times_matched"`
	LastMatched  *time.Time `json:"last_matched,omitempty"`
}

// Validate performs basic validation on the Rule
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}

	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("rule tenant ID cannot be empty")
	}

	if !r.MatchLogic.IsValid() {
		return fmt.Errorf("invalid match logic: %s", r.MatchLogic)
	}

	for i, cond := range r.Conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}

	for i, action := range r.Actions {
		if err := action.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	return nil
}

// String returns a string representation of the Rule
func (r Rule) String() string {
	return fmt.Sprintf("Rule{Name: %s, Priority: %d, Logic: %s, Conditions: %d, Actions: %d}",
		r.Name, r.Priority, r.MatchLogic, len(r.Conditions), len(r.Actions))
}
