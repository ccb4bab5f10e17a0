package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EngineConfig holds configuration parameters for the rule engine.
type EngineConfig struct {
	// RoundingTolerance is the maximum allocation drift, in currency
	// units, that is treated as rounding noise and corrected. Larger
	// mismatches are surfaced as allocation errors.
	RoundingTolerance decimal.Decimal `json:"rounding_tolerance"`
}

// DefaultEngineConfig returns a configuration with sensible defaults
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		RoundingTolerance: decimal.RequireFromString("0.02"),
	}
}

// Validate checks if the engine configuration is valid
func (c *EngineConfig) Validate() error {
	if c.RoundingTolerance.IsNegative() {
		return fmt.Errorf("rounding tolerance cannot be negative: %s", c.RoundingTolerance)
	}

	if c.RoundingTolerance.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("rounding tolerance above 1.00 would hide real allocation defects: %s", c.RoundingTolerance)
	}

	return nil
}

// Clone creates a copy of the engine configuration
func (c *EngineConfig) Clone() *EngineConfig {
	if c == nil {
		return nil
	}

	return &EngineConfig{
		RoundingTolerance: c.RoundingTolerance,
	}
}
