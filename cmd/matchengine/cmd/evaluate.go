package cmd

import (
	"context"
	"fmt"
	"os"

	"ledger-matching-engine/cmd/matchengine/config"
	"ledger-matching-engine/internal/rules"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the evaluate command
var (
	evaluateDB          string
	evaluateTenant      string
	evaluateTransaction string
	evaluateTolerance   float64
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a transaction against a tenant's categorization rules",
	Long: `Evaluate runs a transaction through the tenant's active rules in
priority order and prints the winning rule's split allocation as JSON.

A transaction that matches no rule produces a non-matching result with
success=false; this is a normal outcome, not an error.

Examples:
  matchengine evaluate --db rules.db --tenant acme --transaction tx.json
  matchengine evaluate --db rules.db --tenant acme --transaction tx.json --rounding-tolerance 0.05`,

	PreRunE: validateEvaluateFlags,
	RunE:    runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateDB, "db", "", "path to the rules database (required)")
	evaluateCmd.Flags().StringVarP(&evaluateTenant, "tenant", "t", "", "tenant identifier (required)")
	evaluateCmd.Flags().StringVar(&evaluateTransaction, "transaction", "", "path to transaction JSON file (required)")
	evaluateCmd.Flags().Float64Var(&evaluateTolerance, "rounding-tolerance", 0.02, "maximum allocation drift absorbed into the largest split line")

	evaluateCmd.MarkFlagRequired("db")
	evaluateCmd.MarkFlagRequired("tenant")
	evaluateCmd.MarkFlagRequired("transaction")

	viper.BindPFlag("rounding-tolerance", evaluateCmd.Flags().Lookup("rounding-tolerance"))
}

func validateEvaluateFlags(cmd *cobra.Command, args []string) error {
	if evaluateDB == "" {
		return fmt.Errorf("db is required")
	}
	if evaluateTenant == "" {
		return fmt.Errorf("tenant is required")
	}
	if _, err := os.Stat(evaluateTransaction); err != nil {
		return fmt.Errorf("transaction file is not readable: %w", err)
	}
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	engineConfig, err := config.CreateEngineConfig()
	if err != nil {
		return fmt.Errorf("failed to create engine config: %w", err)
	}

	st, err := config.OpenStore(evaluateDB)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer st.Close()

	tx, err := loadTransaction(evaluateTransaction, evaluateTenant)
	if err != nil {
		return err
	}

	engine := rules.NewEngine(st, st, engineConfig)
	result, err := engine.Evaluate(ctx, tx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	return printJSON(result)
}
