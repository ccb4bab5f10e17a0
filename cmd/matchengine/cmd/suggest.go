package cmd

import (
	"context"
	"fmt"
	"os"

	"ledger-matching-engine/cmd/matchengine/config"
	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/internal/patterns"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the suggest command
var (
	suggestDB            string
	suggestTenant        string
	suggestTransaction   string
	suggestMinConfidence float64
	suggestThreshold     float64
	suggestStrict        bool
)

// labeledSuggestion augments a suggestion with its confidence band for
// CLI display
type labeledSuggestion struct {
	models.Suggestion
	ConfidenceLabel string `json:"confidence_label"`
}

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest categorizations for a transaction from learned patterns",
	Long: `Suggest scores a transaction against the tenant's learned description
patterns and prints the qualifying suggestions as JSON, ordered by
descending confidence.

Suggestions below the minimum confidence floor are dropped. A suggestion
is marked auto-applicable only when its pattern has auto-apply enabled
and its score clears the auto-apply threshold.

Examples:
  matchengine suggest --db rules.db --tenant acme --transaction tx.json
  matchengine suggest --db rules.db --tenant acme --transaction tx.json --min-confidence 50
  matchengine suggest --db rules.db --tenant acme --transaction tx.json --strict`,

	PreRunE: validateSuggestFlags,
	RunE:    runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().StringVar(&suggestDB, "db", "", "path to the rules database (required)")
	suggestCmd.Flags().StringVarP(&suggestTenant, "tenant", "t", "", "tenant identifier (required)")
	suggestCmd.Flags().StringVar(&suggestTransaction, "transaction", "", "path to transaction JSON file (required)")
	suggestCmd.Flags().Float64Var(&suggestMinConfidence, "min-confidence", 30.0, "confidence floor for returned suggestions (0-100)")
	suggestCmd.Flags().Float64Var(&suggestThreshold, "auto-apply-threshold", 90.0, "score required to mark a suggestion auto-applicable (0-100)")
	suggestCmd.Flags().BoolVar(&suggestStrict, "strict", false, "use the stricter scoring profile")

	suggestCmd.MarkFlagRequired("db")
	suggestCmd.MarkFlagRequired("tenant")
	suggestCmd.MarkFlagRequired("transaction")

	viper.BindPFlag("min-confidence", suggestCmd.Flags().Lookup("min-confidence"))
	viper.BindPFlag("auto-apply-threshold", suggestCmd.Flags().Lookup("auto-apply-threshold"))
	viper.BindPFlag("strict", suggestCmd.Flags().Lookup("strict"))
}

func validateSuggestFlags(cmd *cobra.Command, args []string) error {
	if suggestDB == "" {
		return fmt.Errorf("db is required")
	}
	if suggestTenant == "" {
		return fmt.Errorf("tenant is required")
	}
	if suggestMinConfidence < 0 || suggestMinConfidence > 100 {
		return fmt.Errorf("min-confidence must be between 0 and 100")
	}
	if _, err := os.Stat(suggestTransaction); err != nil {
		return fmt.Errorf("transaction file is not readable: %w", err)
	}
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	scoringConfig, err := config.CreateScoringConfig()
	if err != nil {
		return fmt.Errorf("failed to create scoring config: %w", err)
	}

	st, err := config.OpenStore(suggestDB)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer st.Close()

	tx, err := loadTransaction(suggestTransaction, suggestTenant)
	if err != nil {
		return err
	}

	matcher := patterns.NewMatcher(st, scoringConfig)
	suggestions, err := matcher.GetSuggestions(ctx, tx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	labeled := make([]labeledSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		labeled = append(labeled, labeledSuggestion{
			Suggestion:      s,
			ConfidenceLabel: patterns.ConfidenceLabel(s.Confidence),
		})
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Found %d suggestions above confidence %.1f\n", len(labeled), scoringConfig.MinConfidence)
	}

	return printJSON(labeled)
}
