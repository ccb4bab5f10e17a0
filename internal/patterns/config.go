// Package patterns implements the learned-pattern matching engine: a
// weighted multi-signal scorer over historical match patterns, a
// suggestion orchestrator, and the feedback loop that keeps each
// pattern's accuracy and confidence calibrated.
package patterns

import "fmt"

// ScoringWeights defines the relative importance of each scoring signal.
// Description similarity dominates; amount range, direction fit and the
// pattern's historical accuracy refine it.
type ScoringWeights struct {
	Description float64 `json:"description_weight"`
	Amount      float64 `json:"amount_weight"`
	Direction   float64 `json:"direction_weight"`
	History     float64 `json:"history_weight"`
}

// Validate checks if the scoring weights are valid
func (w *ScoringWeights) Validate() error {
	for name, weight := range map[string]float64{
		"description": w.Description,
		"amount":      w.Amount,
		"direction":   w.Direction,
		"history":     w.History,
	} {
		if weight < 0.0 || weight > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, weight)
		}
	}

	total := w.Description + w.Amount + w.Direction + w.History
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}

	return nil
}

// ScoringConfig holds configuration for pattern scoring, suggestion
// filtering and the feedback learning thresholds.
type ScoringConfig struct {
	// Weights for the four scoring signals.
	Weights ScoringWeights `json:"weights"`

	// MinConfidence is the floor below which a scored pattern is not
	// suggested at all.
	MinConfidence float64 `json:"min_confidence"`

	// AutoApplyThreshold is the per-suggestion score a pattern must
	// exceed before it may auto-apply (in addition to its own flag).
	AutoApplyThreshold float64 `json:"auto_apply_threshold"`

	// PromoteAccuracy and DemoteAccuracy bound the auto-apply hysteresis:
	// promotion requires accuracy at or above the first, demotion happens
	// below the second. The gap prevents flapping near one boundary.
	PromoteAccuracy float64 `json:"promote_accuracy"`
	DemoteAccuracy  float64 `json:"demote_accuracy"`

	// VolumeTarget is the feedback count at which confidence stops being
	// discounted for small sample sizes and promotion becomes possible.
	VolumeTarget int `json:"volume_target"`
}

// DefaultScoringConfig returns a configuration with sensible defaults
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		Weights: ScoringWeights{
			Description: 0.6,
			Amount:      0.2,
			Direction:   0.1,
			History:     0.1,
		},
		MinConfidence:      30.0,
		AutoApplyThreshold: 90.0,
		PromoteAccuracy:    95.0,
		DemoteAccuracy:     85.0,
		VolumeTarget:       10,
	}
}

// StrictScoringConfig returns a configuration that suggests less and
// never auto-applies below a near-perfect score
func StrictScoringConfig() *ScoringConfig {
	config := DefaultScoringConfig()
	config.MinConfidence = 50.0
	config.AutoApplyThreshold = 97.0
	return config
}

// Validate checks if the scoring configuration is valid
func (c *ScoringConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	if c.MinConfidence < 0.0 || c.MinConfidence > 100.0 {
		return fmt.Errorf("minimum confidence must be between 0 and 100: %f", c.MinConfidence)
	}

	if c.AutoApplyThreshold < 0.0 || c.AutoApplyThreshold > 100.0 {
		return fmt.Errorf("auto-apply threshold must be between 0 and 100: %f", c.AutoApplyThreshold)
	}

	if c.DemoteAccuracy > c.PromoteAccuracy {
		return fmt.Errorf("demotion accuracy %f must not exceed promotion accuracy %f (hysteresis)",
			c.DemoteAccuracy, c.PromoteAccuracy)
	}

	if c.VolumeTarget <= 0 {
		return fmt.Errorf("volume target must be positive: %d", c.VolumeTarget)
	}

	return nil
}

// Clone creates a copy of the scoring configuration
func (c *ScoringConfig) Clone() *ScoringConfig {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}
