package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"ledger-matching-engine/cmd/matchengine/config"
	"ledger-matching-engine/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the import command
var (
	importDB       string
	importRules    string
	importPatterns string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load rules and patterns into the database from JSON files",
	Long: `Import reads rule and pattern definitions from JSON array files and
stores them in the database, assigning IDs to entries that lack one.

Examples:
  matchengine import --db rules.db --rules rules.json
  matchengine import --db rules.db --rules rules.json --patterns patterns.json`,

	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDB, "db", "", "path to the rules database (required)")
	importCmd.Flags().StringVar(&importRules, "rules", "", "path to rules JSON file")
	importCmd.Flags().StringVar(&importPatterns, "patterns", "", "path to patterns JSON file")

	importCmd.MarkFlagRequired("db")
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if importDB == "" {
		return fmt.Errorf("db is required")
	}
	if importRules == "" && importPatterns == "" {
		return fmt.Errorf("at least one of --rules or --patterns is required")
	}
	for _, path := range []string{importRules, importPatterns} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input file is not readable: %w", err)
		}
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	st, err := config.OpenStore(importDB)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer st.Close()

	var ruleCount, patternCount int

	if importRules != "" {
		data, err := os.ReadFile(importRules)
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}

		var ruleList []models.Rule
		if err := json.Unmarshal(data, &ruleList); err != nil {
			return fmt.Errorf("failed to parse rules file: %w", err)
		}

		for _, rule := range ruleList {
			if _, err := st.CreateRule(ctx, rule); err != nil {
				os.Exit(handler.HandleError(err))
			}
			ruleCount++
		}
	}

	if importPatterns != "" {
		data, err := os.ReadFile(importPatterns)
		if err != nil {
			return fmt.Errorf("failed to read patterns file: %w", err)
		}

		var patternList []models.Pattern
		if err := json.Unmarshal(data, &patternList); err != nil {
			return fmt.Errorf("failed to parse patterns file: %w", err)
		}

		for _, pattern := range patternList {
			if _, err := st.CreatePattern(ctx, pattern); err != nil {
				os.Exit(handler.HandleError(err))
			}
			patternCount++
		}
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Imported %d rules and %d patterns into %s\n", ruleCount, patternCount, importDB)
	}

	fmt.Printf("Imported %d rules, %d patterns\n", ruleCount, patternCount)
	return nil
}
