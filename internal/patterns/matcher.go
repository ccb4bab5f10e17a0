package patterns

import (
	"context"
	"sort"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/pkg/errors"
	"ledger-matching-engine/pkg/logger"
)

// PatternStore is the persistence collaborator patterns are read from and
// their feedback-driven metrics written back to.
type PatternStore interface {
	// ActivePatternsForTenant returns the active patterns scoped to a
	// tenant plus any tenant-agnostic global patterns.
	ActivePatternsForTenant(ctx context.Context, tenantID string) ([]models.Pattern, error)

	// GetPattern fetches one pattern by ID.
	GetPattern(ctx context.Context, patternID string) (models.Pattern, error)

	// UpdatePatternMetrics applies a mutation to a pattern's metrics with
	// read-modify-write atomicity and returns the updated pattern.
	// Concurrent updates to the same pattern must not lose increments.
	UpdatePatternMetrics(ctx context.Context, patternID string, mutate func(*models.Pattern) error) (models.Pattern, error)
}

// Matcher scores learned patterns against transactions and produces
// ranked suggestions.
type Matcher struct {
	config *ScoringConfig
	store  PatternStore
	logger logger.Logger
}

// NewMatcher creates a pattern matcher backed by the given store
func NewMatcher(store PatternStore, config *ScoringConfig) *Matcher {
	if config == nil {
		config = DefaultScoringConfig()
	}

	return &Matcher{
		config: config,
		store:  store,
		logger: logger.GetGlobalLogger().WithComponent("pattern_matcher"),
	}
}

// GetSuggestions scores every candidate pattern for the transaction's
// tenant and returns those above the minimum confidence floor, highest
// confidence first (stable for ties). A suggestion is flagged auto_apply
// only when the pattern's own auto_apply flag is set AND this score
// clears the auto-apply threshold: a globally low-trust pattern cannot
// auto-apply even on a perfect match for one transaction.
func (m *Matcher) GetSuggestions(ctx context.Context, tx models.Transaction) ([]models.Suggestion, error) {
	if verr := tx.Validate(); verr != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "transaction", verr.Error())
	}

	candidates, err := m.store.ActivePatternsForTenant(ctx, tx.TenantID)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStore, errors.CodeStoreUnavailable, "failed to fetch patterns")
	}

	var suggestions []models.Suggestion
	for _, pattern := range candidates {
		score := Score(pattern, tx, m.config.Weights)
		if score < m.config.MinConfidence {
			continue
		}

		suggestions = append(suggestions, models.Suggestion{
			PatternID:            pattern.ID,
			PatternName:          pattern.PatternName,
			Confidence:           score,
			SuggestedWho:         pattern.SuggestedWho,
			SuggestedAccountCode: pattern.SuggestedAccountCode,
			AutoApply:            pattern.AutoApply && score >= m.config.AutoApplyThreshold,
			AccuracyHistory:      pattern.AccuracyRate,
			TimesUsed:            pattern.TimesSeen,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})

	m.logger.WithFields(logger.Fields{
		"tenant_id":   tx.TenantID,
		"candidates":  len(candidates),
		"suggestions": len(suggestions),
	}).Debug("Pattern suggestions computed")

	return suggestions, nil
}
