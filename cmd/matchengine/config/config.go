package config

import (
	"ledger-matching-engine/internal/patterns"
	"ledger-matching-engine/internal/rules"
	"ledger-matching-engine/internal/store"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// CreateEngineConfig builds the rule engine configuration, applying any
// CLI or config-file overrides on top of the defaults
func CreateEngineConfig() (*rules.EngineConfig, error) {
	config := rules.DefaultEngineConfig()

	if viper.IsSet("rounding-tolerance") {
		config.RoundingTolerance = decimal.NewFromFloat(viper.GetFloat64("rounding-tolerance"))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreateScoringConfig builds the pattern scoring configuration, applying
// any CLI or config-file overrides on top of the defaults
func CreateScoringConfig() (*patterns.ScoringConfig, error) {
	var config *patterns.ScoringConfig
	if viper.GetBool("strict") {
		config = patterns.StrictScoringConfig()
	} else {
		config = patterns.DefaultScoringConfig()
	}

	if viper.IsSet("min-confidence") {
		config.MinConfidence = viper.GetFloat64("min-confidence")
	}
	if viper.IsSet("auto-apply-threshold") {
		config.AutoApplyThreshold = viper.GetFloat64("auto-apply-threshold")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// OpenStore opens the SQLite-backed store at the given path
func OpenStore(dbPath string) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(dbPath)
}
