package rules

import (
	"regexp"
	"sort"
	"strings"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// TemplateContext carries the variables available to action description
// templates, e.g. {customer_name} or {rule_name}.
type TemplateContext map[string]string

var templateVarPattern = regexp.MustCompile(`\{(\w+)\}`)

// RenderTemplate interpolates context variables into a description
// template. If the template references a variable the context does not
// provide, the template is returned unrendered rather than partially
// substituted.
func RenderTemplate(template string, ctx TemplateContext) string {
	if len(ctx) == 0 {
		return template
	}

	for _, match := range templateVarPattern.FindAllStringSubmatch(template, -1) {
		if _, ok := ctx[match[1]]; !ok {
			return template
		}
	}

	rendered := template
	for key, value := range ctx {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", value)
	}

	return rendered
}

// BuildSplits turns a matched rule's ordered actions into monetary split
// lines against the transaction amount. Percentage and fixed allocations
// are computed first; remainder actions then share whatever is left,
// evenly when there are several.
//
// Percentage amounts round half-up to two decimal places before the
// remainder subtraction. After both passes, residual rounding drift up to
// the tolerance is folded into the largest split line so the total equals
// the transaction amount exactly; a larger mismatch indicates a
// misconfigured rule and is returned as an allocation error alongside the
// uncorrected splits.
//
// Pure function: no I/O and no mutation of the inputs.
func BuildSplits(actions []models.Action, transactionAmount decimal.Decimal, ctx TemplateContext, ruleName string, tolerance decimal.Decimal) ([]models.SplitLine, error) {
	if len(actions) == 0 {
		return []models.SplitLine{}, nil
	}

	ordered := make([]models.Action, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	var splits []models.SplitLine
	var remainderActions []models.Action
	allocated := decimal.Zero

	// First pass: percentage and fixed allocations
	for _, action := range ordered {
		if action.AllocationType == models.AllocationRemainder {
			remainderActions = append(remainderActions, action)
			continue
		}

		var amount decimal.Decimal
		switch action.AllocationType {
		case models.AllocationPercentage:
			amount = transactionAmount.Mul(action.Value).Div(decimal.NewFromInt(100)).Round(2)
		case models.AllocationFixed:
			amount = action.Value
		}

		allocated = allocated.Add(amount)
		splits = append(splits, models.SplitLine{
			Description: RenderTemplate(action.DescriptionTemplate, ctx),
			AccountCode: action.AccountCode,
			Amount:      amount,
			Sequence:    action.Sequence,
			RuleName:    ruleName,
		})
	}

	// Second pass: distribute the remainder
	if len(remainderActions) > 0 {
		remainder := transactionAmount.Sub(allocated)
		share := remainder.Div(decimal.NewFromInt(int64(len(remainderActions)))).Round(2)

		for _, action := range remainderActions {
			splits = append(splits, models.SplitLine{
				Description: RenderTemplate(action.DescriptionTemplate, ctx),
				AccountCode: action.AccountCode,
				Amount:      share,
				Sequence:    action.Sequence,
				RuleName:    ruleName,
			})
		}
	}

	return correctRounding(splits, transactionAmount, tolerance)
}

// correctRounding reconciles the split total against the transaction
// amount. Differences within the tolerance are rounding noise and are
// folded into the largest line; anything larger is a logic defect that
// must surface rather than be silently patched.
func correctRounding(splits []models.SplitLine, target decimal.Decimal, tolerance decimal.Decimal) ([]models.SplitLine, error) {
	total := decimal.Zero
	for _, line := range splits {
		total = total.Add(line.Amount)
	}

	difference := target.Sub(total)
	if difference.IsZero() {
		return splits, nil
	}

	if difference.Abs().GreaterThan(tolerance) {
		return splits, errors.AllocationError(target.StringFixed(2), total.StringFixed(2))
	}

	largestIdx := 0
	largestAmount := splits[0].Amount
	for i, line := range splits {
		if line.Amount.GreaterThan(largestAmount) {
			largestAmount = line.Amount
			largestIdx = i
		}
	}

	splits[largestIdx].Amount = splits[largestIdx].Amount.Add(difference)
	return splits, nil
}
