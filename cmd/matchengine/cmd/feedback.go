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

// Flags for the feedback command
var (
	feedbackDB      string
	feedbackPattern string
	feedbackAction  string
)

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record user feedback on a pattern suggestion",
	Long: `Feedback records whether a suggestion was accepted, modified or
rejected, and recomputes the pattern's accuracy, confidence and
auto-apply eligibility.

Accepted and rejected feedback move the pattern's accuracy; modified
feedback counts the sighting without judging correctness either way.

Examples:
  matchengine feedback --db rules.db --pattern 9c1b... --action accepted
  matchengine feedback --db rules.db --pattern 9c1b... --action rejected`,

	PreRunE: validateFeedbackFlags,
	RunE:    runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().StringVar(&feedbackDB, "db", "", "path to the rules database (required)")
	feedbackCmd.Flags().StringVarP(&feedbackPattern, "pattern", "p", "", "pattern identifier (required)")
	feedbackCmd.Flags().StringVarP(&feedbackAction, "action", "a", "", "feedback action: accepted, modified, rejected (required)")

	feedbackCmd.MarkFlagRequired("db")
	feedbackCmd.MarkFlagRequired("pattern")
	feedbackCmd.MarkFlagRequired("action")
}

func validateFeedbackFlags(cmd *cobra.Command, args []string) error {
	if feedbackDB == "" {
		return fmt.Errorf("db is required")
	}
	if feedbackPattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if _, err := models.ParseFeedbackAction(feedbackAction); err != nil {
		return err
	}
	return nil
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	scoringConfig, err := config.CreateScoringConfig()
	if err != nil {
		return fmt.Errorf("failed to create scoring config: %w", err)
	}

	st, err := config.OpenStore(feedbackDB)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer st.Close()

	action, err := models.ParseFeedbackAction(feedbackAction)
	if err != nil {
		return err
	}

	learner := patterns.NewLearner(st, scoringConfig)
	update, err := learner.RecordFeedback(ctx, feedbackPattern, action)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Recorded %s feedback for pattern %s\n", action, feedbackPattern)
	}

	return printJSON(update)
}
