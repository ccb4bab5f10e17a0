package cmd

import (
	"context"
	"fmt"
	"os"

	"ledger-matching-engine/cmd/matchengine/config"
	"ledger-matching-engine/internal/rules"

	"github.com/spf13/cobra"
)

// Flags for the test-rule command
var (
	testRuleDB          string
	testRuleTenant      string
	testRuleID          string
	testRuleTransaction string
)

// testRuleCmd represents the test-rule command
var testRuleCmd = &cobra.Command{
	Use:   "test-rule",
	Short: "Dry-run one rule against a transaction",
	Long: `Test-rule evaluates a single rule against a transaction without
recording execution history or incrementing usage counters.

The output shows whether the conditions matched and, when they did, the
split allocation the rule would produce.

Examples:
  matchengine test-rule --db rules.db --tenant acme --rule 7f3a... --transaction tx.json`,

	PreRunE: validateTestRuleFlags,
	RunE:    runTestRule,
}

func init() {
	rootCmd.AddCommand(testRuleCmd)

	testRuleCmd.Flags().StringVar(&testRuleDB, "db", "", "path to the rules database (required)")
	testRuleCmd.Flags().StringVarP(&testRuleTenant, "tenant", "t", "", "tenant identifier (required)")
	testRuleCmd.Flags().StringVarP(&testRuleID, "rule", "r", "", "rule identifier (required)")
	testRuleCmd.Flags().StringVar(&testRuleTransaction, "transaction", "", "path to transaction JSON file (required)")

	testRuleCmd.MarkFlagRequired("db")
	testRuleCmd.MarkFlagRequired("tenant")
	testRuleCmd.MarkFlagRequired("rule")
	testRuleCmd.MarkFlagRequired("transaction")
}

func validateTestRuleFlags(cmd *cobra.Command, args []string) error {
	if testRuleDB == "" {
		return fmt.Errorf("db is required")
	}
	if testRuleTenant == "" {
		return fmt.Errorf("tenant is required")
	}
	if testRuleID == "" {
		return fmt.Errorf("rule is required")
	}
	if _, err := os.Stat(testRuleTransaction); err != nil {
		return fmt.Errorf("transaction file is not readable: %w", err)
	}
	return nil
}

func runTestRule(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	engineConfig, err := config.CreateEngineConfig()
	if err != nil {
		return fmt.Errorf("failed to create engine config: %w", err)
	}

	st, err := config.OpenStore(testRuleDB)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer st.Close()

	tx, err := loadTransaction(testRuleTransaction, testRuleTenant)
	if err != nil {
		return err
	}

	engine := rules.NewEngine(st, st, engineConfig)
	result, err := engine.TestRule(ctx, testRuleID, tx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	return printJSON(result)
}
